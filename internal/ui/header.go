package ui

import (
	"fmt"
	"strings"
	"time"
)

// renderHeader renders the status bar: screen, role, fetch state and age of
// the data.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)
	compact := m.width < LayoutCompactWidth
	sep := bg.Spaces(2)

	screen := m.screens[m.current]
	parts := []string{
		bg.Render("depot", styles.Logo),
		bg.Render(screen.Title, styles.Text.Bold(true)),
	}
	if !compact {
		parts = append(parts, bg.Render(fmt.Sprintf("(%d/%d)", m.current+1, len(m.screens)), styles.FaintText))
	}
	parts = append(parts,
		bg.Render("Role:", styles.MutedText)+bg.Space()+bg.Render(m.role.String(), styles.AccentText))

	switch {
	case m.view.Fetching || m.detailFetching():
		parts = append(parts, bg.Render(m.spinner.View(), styles.InfoText)+bg.Space()+bg.Render("fetching", styles.InfoText))
	case m.view.Err != nil && m.view.Total > 0:
		parts = append(parts, bg.Render("offline", styles.DangerText))
	case m.view.Stale:
		parts = append(parts, bg.Render("stale", styles.WarningText))
	}

	if !m.view.FetchedAt.IsZero() {
		parts = append(parts, bg.Render("updated "+formatAge(m.now().Sub(m.view.FetchedAt)), styles.MutedText))
	}

	if m.mutations != nil && m.mutations.Pending() {
		parts = append(parts, bg.Render("saving...", styles.WarningText.Bold(true)))
	}

	return styles.Header.Width(m.width).Render(strings.Join(parts, sep))
}

// formatAge renders how long ago data was fetched.
func formatAge(d time.Duration) string {
	switch {
	case d < 5*time.Second:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
}

// renderCommandBar lists the keys that apply right now.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	colon := bg.Sep(":")
	sep := bg.Spaces(2)

	segments := make([]string, 0, 12)
	for _, c := range m.commands() {
		segments = append(segments,
			bg.Render(c.key, styles.AccentText)+colon+bg.Render(c.desc, styles.MutedText))
	}
	segments = append(segments,
		bg.Render("T", styles.AccentText)+colon+bg.Render(m.theme.Name, styles.FaintText))

	return styles.Header.Width(m.width).Render(strings.Join(segments, sep))
}

type command struct{ key, desc string }

// commands are the command bar entries for the current state. Row actions
// only appear for roles allowed to use them.
func (m Model) commands() []command {
	if m.searching {
		return []command{{"enter", "Keep"}, {"esc", "Clear"}}
	}
	cmds := []command{
		{"tab", "Screen"},
		{":", "Jump"},
		{"/", "Search"},
		{"f", "Filter"},
		{"s", "Sort"},
		{"c", "Columns"},
		{"[ ]", "Page"},
	}
	if m.view.Err != nil {
		cmds = append(cmds, command{"r", "Retry"})
	}
	if m.showDetail {
		cmds = append(cmds, command{"esc", "Close"})
	} else {
		cmds = append(cmds, command{"enter", "Details"})
	}
	if m.role.CanEdit() {
		cmds = append(cmds, command{"n", "New"}, command{"e", "Edit"})
	}
	if m.role.CanDelete() {
		cmds = append(cmds, command{"d", "Delete"})
	}
	if m.width >= LayoutCompactWidth {
		cmds = append(cmds, command{"?", "More"})
	}
	return cmds
}

// truncate truncates a string to max runes with ellipsis.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
