package ui

import (
	"strings"
	"time"
)

type toastLevel int

const (
	toastInfo toastLevel = iota
	toastSuccess
	toastError
)

// maxToasts is how many notices stay on screen at once.
const maxToasts = 3

type toast struct {
	text    string
	level   toastLevel
	expires time.Time
}

// pushToast shows a transient notice under the table.
func (m *Model) pushToast(level toastLevel, text string) {
	t := toast{text: text, level: level, expires: m.now().Add(ToastDuration)}
	if level == toastError {
		t.expires = t.expires.Add(ToastDuration)
	}
	m.toasts = append(m.toasts, t)
	if len(m.toasts) > maxToasts {
		m.toasts = m.toasts[len(m.toasts)-maxToasts:]
	}
	m.layout()
}

func (m *Model) expireToasts() {
	now := m.now()
	kept := m.toasts[:0]
	for _, t := range m.toasts {
		if now.Before(t.expires) {
			kept = append(kept, t)
		}
	}
	if len(kept) != len(m.toasts) {
		m.toasts = kept
		m.layout()
	}
}

// renderToasts renders the live notices on one line, newest last.
func (m Model) renderToasts(styles Styles) string {
	if len(m.toasts) == 0 {
		return ""
	}
	parts := make([]string, 0, len(m.toasts))
	for _, t := range m.toasts {
		style := styles.InfoText
		switch t.level {
		case toastSuccess:
			style = styles.SuccessText
		case toastError:
			style = styles.DangerText
		}
		parts = append(parts, style.Render(truncate(t.text, max(m.width/len(m.toasts)-3, 10))))
	}
	return strings.Join(parts, styles.FaintText.Render(" · "))
}
