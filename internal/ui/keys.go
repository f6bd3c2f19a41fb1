package ui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
)

// keyMap defines all keyboard bindings for the application.
type keyMap struct {
	// Global
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding
	NextScreen key.Binding
	PrevScreen key.Binding
	JumpScreen key.Binding
	Escape     key.Binding

	// Table
	Up           key.Binding
	Down         key.Binding
	Top          key.Binding
	Bottom       key.Binding
	PrevPage     key.Binding
	NextPage     key.Binding
	GrowPage     key.Binding
	ShrinkPage   key.Binding
	Search       key.Binding
	Filter       key.Binding
	ClearFilters key.Binding
	Sort         key.Binding
	Reverse      key.Binding
	Columns      key.Binding
	Retry        key.Binding

	// Rows
	Open       key.Binding
	New        key.Binding
	Edit       key.Binding
	Delete     key.Binding
	ScrollDown key.Binding
	ScrollUp   key.Binding

	// Modals
	Confirm key.Binding
	Toggle  key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		NextScreen: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "Next screen"),
		),
		PrevScreen: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "Previous screen"),
		),
		JumpScreen: key.NewBinding(
			key.WithKeys(":"),
			key.WithHelp(":", "Jump to screen"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Close / clear search"),
		),

		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "Move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "Move down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "First row"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "Last row"),
		),
		PrevPage: key.NewBinding(
			key.WithKeys("left", "[", "pgup"),
			key.WithHelp("[", "Previous page"),
		),
		NextPage: key.NewBinding(
			key.WithKeys("right", "]", "pgdown"),
			key.WithHelp("]", "Next page"),
		),
		GrowPage: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "Larger pages"),
		),
		ShrinkPage: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "Smaller pages"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "Search"),
		),
		Filter: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "Filter"),
		),
		ClearFilters: key.NewBinding(
			key.WithKeys("F"),
			key.WithHelp("F", "Clear filters"),
		),
		Sort: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "Sort by column"),
		),
		Reverse: key.NewBinding(
			key.WithKeys("S"),
			key.WithHelp("S", "Reverse sort"),
		),
		Columns: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "Choose columns"),
		),
		Retry: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Refresh / retry"),
		),

		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Details"),
		),
		New: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "New record"),
		),
		Edit: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "Edit record"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "Delete record"),
		),

		ScrollDown: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("ctrl+d", "Scroll details down"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("ctrl+u"),
			key.WithHelp("ctrl+u", "Scroll details up"),
		),

		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Confirm"),
		),
		Toggle: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "Toggle"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.NextScreen, k.PrevScreen, k.JumpScreen, k.Escape},
		{k.Up, k.Down, k.Top, k.Bottom, k.PrevPage, k.NextPage, k.GrowPage, k.ShrinkPage},
		{k.Search, k.Filter, k.ClearFilters, k.Sort, k.Reverse, k.Columns, k.Retry},
		{k.Open, k.ScrollDown, k.ScrollUp, k.New, k.Edit, k.Delete},
		{k.CycleTheme, k.Help, k.Quit},
	}
}

// tableKeyMap limits the table to row movement; paging is handled by the
// controller.
func (k keyMap) tableKeyMap() table.KeyMap {
	off := key.NewBinding(key.WithDisabled())
	return table.KeyMap{
		LineUp:       k.Up,
		LineDown:     k.Down,
		GotoTop:      k.Top,
		GotoBottom:   k.Bottom,
		PageUp:       off,
		PageDown:     off,
		HalfPageUp:   off,
		HalfPageDown: off,
	}
}
