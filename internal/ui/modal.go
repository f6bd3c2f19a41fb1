package ui

import (
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"
)

// Modal is the interface for modal dialogs.
// The Update method returns the updated modal, a command, and a bool indicating if the modal should close.
type Modal interface {
	Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool)
	View(theme Theme, width, height int) string
}

// pickPurpose tells the model what a picker's choice means.
type pickPurpose int

const (
	pickScreen pickPurpose = iota
	pickFilter
	pickFilterValue
	pickSort
	pickColumns
)

// pickedMsg carries a picker's choice back to the model.
type pickedMsg struct {
	purpose pickPurpose
	// context is the filter name for pickFilterValue.
	context string
	values  []string
}

type pickerItem struct {
	label   string
	value   string
	checked bool
}

// pickerSource adapts picker items for the fuzzy library.
type pickerSource []pickerItem

func (s pickerSource) String(i int) string { return s[i].label }

func (s pickerSource) Len() int { return len(s) }

// pickerModal is a filterable list. Single pickers choose on enter; multi
// pickers toggle with space and confirm the checked set on enter.
type pickerModal struct {
	title   string
	purpose pickPurpose
	context string
	multi   bool
	items   []pickerItem
	query   textinput.Model
	matches []int
	cursor  int
}

func newPicker(title string, purpose pickPurpose, items []pickerItem) *pickerModal {
	q := textinput.New()
	q.Placeholder = "type to filter"
	q.Prompt = "> "
	q.CharLimit = 64
	q.Focus()
	p := &pickerModal{title: title, purpose: purpose, items: items, query: q}
	p.refilter()
	return p
}

// refilter ranks items against the query, best match first. An empty query
// keeps the original order.
func (p *pickerModal) refilter() {
	query := strings.TrimSpace(p.query.Value())
	p.matches = p.matches[:0]
	if query == "" {
		for i := range p.items {
			p.matches = append(p.matches, i)
		}
	} else {
		found := fuzzy.FindFrom(query, pickerSource(p.items))
		sort.SliceStable(found, func(i, j int) bool { return found[i].Score > found[j].Score })
		for _, f := range found {
			p.matches = append(p.matches, f.Index)
		}
	}
	if p.cursor >= len(p.matches) {
		p.cursor = max(len(p.matches)-1, 0)
	}
}

func (p *pickerModal) selected() (int, bool) {
	if p.cursor < 0 || p.cursor >= len(p.matches) {
		return 0, false
	}
	return p.matches[p.cursor], true
}

func (p *pickerModal) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		p.query, cmd = p.query.Update(msg)
		return p, cmd, false
	}

	switch {
	case key.Matches(km, keys.Escape):
		return p, nil, true
	case km.Type == tea.KeyUp || km.Type == tea.KeyCtrlP:
		if p.cursor > 0 {
			p.cursor--
		}
		return p, nil, false
	case km.Type == tea.KeyDown || km.Type == tea.KeyCtrlN:
		if p.cursor < len(p.matches)-1 {
			p.cursor++
		}
		return p, nil, false
	case p.multi && key.Matches(km, keys.Toggle):
		if i, ok := p.selected(); ok {
			p.items[i].checked = !p.items[i].checked
		}
		return p, nil, false
	case key.Matches(km, keys.Confirm):
		values := p.choice()
		if values == nil {
			return p, nil, false
		}
		picked := pickedMsg{purpose: p.purpose, context: p.context, values: values}
		return p, func() tea.Msg { return picked }, true
	}

	var cmd tea.Cmd
	p.query, cmd = p.query.Update(msg)
	p.refilter()
	return p, cmd, false
}

// choice returns the chosen values, or nil when nothing can be chosen. A
// multi picker may confirm an empty set.
func (p *pickerModal) choice() []string {
	if p.multi {
		values := []string{}
		for _, it := range p.items {
			if it.checked {
				values = append(values, it.value)
			}
		}
		return values
	}
	i, ok := p.selected()
	if !ok {
		return nil
	}
	return []string{p.items[i].value}
}

func (p *pickerModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render(p.title))
	b.WriteString("\n")
	b.WriteString(p.query.View())
	b.WriteString("\n\n")

	limit := max(height-10, 3)
	start := 0
	if p.cursor >= limit {
		start = p.cursor - limit + 1
	}
	for row := start; row < len(p.matches) && row < start+limit; row++ {
		it := p.items[p.matches[row]]
		line := it.label
		if p.multi {
			mark := "[ ] "
			if it.checked {
				mark = "[x] "
			}
			line = mark + line
		}
		if row == p.cursor {
			b.WriteString(styles.Selected.Render("> " + line))
		} else {
			b.WriteString(styles.Text.Render("  " + line))
		}
		b.WriteString("\n")
	}
	if len(p.matches) == 0 {
		b.WriteString(styles.MutedText.Render("  no matches"))
		b.WriteString("\n")
	}

	hint := "enter choose · esc cancel"
	if p.multi {
		hint = "space toggle · enter apply · esc cancel"
	}
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(hint))

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(theme.Accent)).
		Padding(1, 2).
		Width(min(max(width/2, 40), width-4))

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box.Render(b.String()),
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(theme.Background)))
}
