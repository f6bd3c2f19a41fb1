package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme is the color set of the UI.
type Theme struct {
	Name string

	Background    string
	Surface       string
	SelectionBg   string
	SelectionText string
	Border        string
	BorderFocus   string

	Text    string
	Muted   string
	Faint   string
	Accent  string
	Success string
	Warning string
	Danger  string
	Info    string

	// StatusColors maps a lower-cased status label to a badge color.
	StatusColors map[string]string
}

// Styles are the lipgloss styles derived from a Theme.
type Styles struct {
	Text        lipgloss.Style
	MutedText   lipgloss.Style
	FaintText   lipgloss.Style
	AccentText  lipgloss.Style
	SuccessText lipgloss.Style
	WarningText lipgloss.Style
	DangerText  lipgloss.Style
	InfoText    lipgloss.Style

	Header   lipgloss.Style
	Logo     lipgloss.Style
	Selected lipgloss.Style

	statusColors map[string]string
	background   string
	muted        string
}

// Styles returns lipgloss styles for this theme.
func (t Theme) Styles() Styles {
	fg := func(c string) lipgloss.Style { return lipgloss.NewStyle().Foreground(lipgloss.Color(c)) }
	return Styles{
		Text:        fg(t.Text),
		MutedText:   fg(t.Muted),
		FaintText:   fg(t.Faint),
		AccentText:  fg(t.Accent),
		SuccessText: fg(t.Success).Bold(true),
		WarningText: fg(t.Warning),
		DangerText:  fg(t.Danger).Bold(true),
		InfoText:    fg(t.Info),

		Header: fg(t.Text).Background(lipgloss.Color(t.Surface)).Padding(0, 1),
		Logo:   fg(t.Warning).Bold(true),
		Selected: fg(t.SelectionText).
			Background(lipgloss.Color(t.SelectionBg)),

		statusColors: t.StatusColors,
		background:   t.Background,
		muted:        t.Muted,
	}
}

// StatusStyle returns the badge style for a row status. Unknown statuses
// use the muted color.
func (s Styles) StatusStyle(status string) lipgloss.Style {
	color := s.statusColors[strings.ToLower(strings.TrimSpace(status))]
	if color == "" {
		color = s.muted
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(s.background)).
		Background(lipgloss.Color(color)).
		Padding(0, 1)
}

// WithBackground returns a copy of Styles whose text styles paint bgColor
// instead of inheriting the terminal background.
func (s Styles) WithBackground(bgColor string) Styles {
	bg := lipgloss.Color(bgColor)
	out := s
	for _, st := range []*lipgloss.Style{
		&out.Text, &out.MutedText, &out.FaintText, &out.AccentText,
		&out.SuccessText, &out.WarningText, &out.DangerText, &out.InfoText,
		&out.Header, &out.Logo,
	} {
		*st = st.Background(bg)
	}
	return out
}

// palette is the handful of colors a theme is built from.
type palette struct {
	bg, surface, selection, border, focus    string
	text, muted, faint                       string
	blue, green, yellow, red, cyan, onSelect string
}

func newTheme(name string, p palette) Theme {
	return Theme{
		Name:          name,
		Background:    p.bg,
		Surface:       p.surface,
		SelectionBg:   p.selection,
		SelectionText: p.onSelect,
		Border:        p.border,
		BorderFocus:   p.focus,
		Text:          p.text,
		Muted:         p.muted,
		Faint:         p.faint,
		Accent:        p.blue,
		Success:       p.green,
		Warning:       p.yellow,
		Danger:        p.red,
		Info:          p.cyan,
		StatusColors:  statusColors(p.green, p.yellow, p.red, p.blue, p.faint),
	}
}

// themeOrder is the cycle order of the T key; the first is the default.
var themeOrder = []string{"Nightfox", "Kanagawa", "Slate"}

var themes = map[string]Theme{
	// https://github.com/EdenEast/nightfox.nvim
	"Nightfox": newTheme("Nightfox", palette{
		bg: "#131a24", surface: "#192330", selection: "#2b3b51", border: "#39506d", focus: "#719cd6",
		text: "#cdcecf", muted: "#738091", faint: "#71839b",
		blue: "#719cd6", green: "#81b29a", yellow: "#dbc074", red: "#c94f6d", cyan: "#63cdcf", onSelect: "#cdcecf",
	}),
	// https://github.com/rebelot/kanagawa.nvim
	"Kanagawa": newTheme("Kanagawa", palette{
		bg: "#16161D", surface: "#1F1F28", selection: "#2D4F67", border: "#54546D", focus: "#7E9CD8",
		text: "#DCD7BA", muted: "#C8C093", faint: "#727169",
		blue: "#7E9CD8", green: "#98BB6C", yellow: "#E6C384", red: "#E46876", cyan: "#7FB4CA", onSelect: "#DCD7BA",
	}),
	// Tailwind slate and sky
	"Slate": newTheme("Slate", palette{
		bg: "#020617", surface: "#0f172a", selection: "#0284c7", border: "#334155", focus: "#38bdf8",
		text: "#f1f5f9", muted: "#94a3b8", faint: "#64748b",
		blue: "#38bdf8", green: "#22c55e", yellow: "#f59e0b", red: "#ef4444", cyan: "#06b6d4", onSelect: "#f8fafc",
	}),
}

// GetTheme returns a theme by name, or the default theme.
func GetTheme(name string) Theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return themes[themeOrder[0]]
}

// NextTheme returns the next theme name in the cycle.
func NextTheme(current string) string {
	for i, name := range themeOrder {
		if name == current {
			return themeOrder[(i+1)%len(themeOrder)]
		}
	}
	return themeOrder[0]
}

// ThemeNames returns available theme names.
func ThemeNames() []string {
	return themeOrder
}

// statusColors assigns the row statuses of every screen to the palette.
func statusColors(good, warn, bad, active, neutral string) map[string]string {
	return map[string]string{
		"in stock":          good,
		"low stock":         warn,
		"out of stock":      bad,
		"active":            good,
		"idle":              neutral,
		"under maintenance": warn,
		"retired":           neutral,
		"pending":           warn,
		"approved":          active,
		"partially issued":  active,
		"issued":            good,
		"rejected":          bad,
		"partial":           active,
		"received":          good,
		"draft":             neutral,
		"ordered":           active,
		"closed":            neutral,
		"scheduled":         active,
		"in progress":       warn,
		"completed":         good,
	}
}
