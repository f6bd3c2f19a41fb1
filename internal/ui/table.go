package ui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/depot/internal/entity"
	"github.com/five82/depot/internal/paging"
	"github.com/five82/depot/internal/tablectl"
)

const (
	maxColumnWidth = 32
	minColumnWidth = 4
)

// refresh rebuilds the table from the active controller. It returns a
// spinner command when a fetch has just started.
func (m *Model) refresh() tea.Cmd {
	st := m.active()
	if st == nil {
		return nil
	}
	m.view = st.ctl.View()

	cursor := m.table.Cursor()
	m.table.SetRows(nil)
	m.table.SetColumns(tableColumns(m.view))
	rows := make([]table.Row, len(m.view.Cells))
	for i, cells := range m.view.Cells {
		rows[i] = table.Row(cells)
	}
	m.table.SetRows(rows)
	if cursor >= len(rows) {
		cursor = max(len(rows)-1, 0)
	}
	m.table.SetCursor(cursor)
	m.layout()
	return m.spinIfFetching()
}

func (m *Model) spinIfFetching() tea.Cmd {
	if m.spinning || (!m.view.Fetching && !m.detailFetching()) {
		return nil
	}
	m.spinning = true
	return m.spinner.Tick
}

func (m Model) selectedRow() (entity.Entity, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.view.Rows) {
		return nil, false
	}
	return m.view.Rows[i], true
}

// tableColumns sizes each visible column to its widest cell on the page,
// bounded by the column's width hint.
func tableColumns(v tablectl.View) []table.Column {
	cols := make([]table.Column, len(v.Columns))
	for j, c := range v.Columns {
		title := c.Label
		if c.Key == v.SortKey {
			title += " " + sortArrow(v.SortDesc)
		}
		width := utf8.RuneCountInString(title)
		for _, row := range v.Cells {
			if j < len(row) {
				width = max(width, utf8.RuneCountInString(row[j]))
			}
		}
		limit := maxColumnWidth
		if c.Width > 0 {
			limit = max(c.Width, utf8.RuneCountInString(title))
		}
		cols[j] = table.Column{Title: title, Width: min(max(width, minColumnWidth), limit)}
	}
	return cols
}

func sortArrow(desc bool) string {
	if desc {
		return "▼"
	}
	return "▲"
}

// layout sizes the table and the detail pane to the window.
func (m *Model) layout() {
	if !m.ready {
		return
	}
	tableWidth, detailWidth := m.paneWidths()
	height := max(m.height-m.chromeHeight(), 3)
	m.table.SetWidth(tableWidth)
	m.table.SetHeight(height)
	// The detail pane spends one line on its status badge.
	if detailWidth > 0 {
		m.detail.Width = detailWidth - 2
		m.detail.Height = max(height-1, 1)
	} else {
		m.detail.Width = m.width - 2
		m.detail.Height = max(m.height-5, 3)
	}
}

// paneWidths splits the window between table and detail. A zero detail
// width means the detail pane, when open, takes the whole screen.
func (m Model) paneWidths() (tableWidth, detailWidth int) {
	if !m.showDetail || m.width < LayoutDetailWidth {
		return m.width, 0
	}
	tableWidth = m.width * 55 / 100
	return tableWidth, m.width - tableWidth
}

// chromeHeight counts the lines around the table: header, command bar,
// status line, filter line, pager and toast.
func (m Model) chromeHeight() int {
	h := 5
	if len(m.toasts) > 0 {
		h++
	}
	return h
}

func (m Model) tableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color(m.theme.Border)).
		BorderBottom(true).
		Bold(true).
		Foreground(lipgloss.Color(m.theme.Text))
	s.Cell = s.Cell.Foreground(lipgloss.Color(m.theme.Text))
	s.Selected = s.Selected.
		Foreground(lipgloss.Color(m.theme.SelectionText)).
		Background(lipgloss.Color(m.theme.SelectionBg)).
		Bold(false)
	return s
}

// renderContent renders everything below the command bar.
func (m Model) renderContent() string {
	styles := m.theme.Styles()
	tableWidth, detailWidth := m.paneWidths()

	if m.showDetail && detailWidth == 0 {
		return m.renderDetailPane(m.width, m.height-2)
	}

	lines := []string{m.renderStatusLine(), m.renderFilterLine()}
	body := m.renderTableBody(tableWidth)
	if m.showDetail {
		body = lipgloss.JoinHorizontal(lipgloss.Top,
			lipgloss.NewStyle().Width(tableWidth).Render(body),
			m.renderDetailPane(detailWidth, m.table.Height()+2))
	}
	lines = append(lines, body)
	if !m.view.Loading && !m.view.Empty() {
		lines = append(lines, m.renderPager())
	}
	if t := m.renderToasts(styles); t != "" {
		lines = append(lines, t)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderTableBody(width int) string {
	styles := m.theme.Styles()
	height := m.table.Height() + 2
	title := m.screens[m.current].Title
	switch {
	case m.view.Loading:
		msg := m.spinner.View() + " " + styles.MutedText.Render("Loading "+strings.ToLower(title)+"...")
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, msg)
	case m.view.Err != nil && m.view.Total == 0:
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center,
			styles.DangerText.Render(errorBanner(title)))
	case m.view.Empty():
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center,
			styles.MutedText.Render(emptyMessage(m.view)))
	}
	return m.table.View()
}

// renderStatusLine shows the error banner when the last fetch failed, and
// the screen's summary figures otherwise.
func (m Model) renderStatusLine() string {
	styles := m.theme.Styles()
	title := m.screens[m.current].Title
	if m.view.Err != nil {
		return styles.DangerText.Render(errorBanner(title))
	}
	if len(m.view.Summary) == 0 {
		return styles.MutedText.Render(m.screens[m.current].Description)
	}
	return summaryLine(m.view.Summary, styles)
}

func summaryLine(stats []tablectl.Stat, styles Styles) string {
	parts := make([]string, 0, len(stats))
	for _, s := range stats {
		parts = append(parts, styles.MutedText.Render(s.Label+":")+" "+styles.AccentText.Render(s.Value))
	}
	return strings.Join(parts, styles.FaintText.Render("  ·  "))
}

// errorBanner is the message shown while a list's last fetch failed.
func errorBanner(title string) string {
	return fmt.Sprintf("Error loading %s - press r to retry", strings.ToLower(title))
}

func emptyMessage(v tablectl.View) string {
	if v.Total > 0 {
		return "No results match the current search and filters"
	}
	return "No records"
}

// renderFilterLine lists the active search and filters.
func (m Model) renderFilterLine() string {
	styles := m.theme.Styles()
	if m.searching {
		return m.search.View()
	}
	parts := activeConstraints(m.view)
	if len(parts) == 0 {
		return styles.FaintText.Render("no filters · / search · f filter")
	}
	return styles.InfoText.Render(strings.Join(parts, "  "))
}

func activeConstraints(v tablectl.View) []string {
	var parts []string
	if s := strings.TrimSpace(v.Search); s != "" {
		parts = append(parts, "/"+s)
	}
	names := make([]string, 0, len(v.Filters))
	for name := range v.Filters {
		if _, ok := v.Filters.Active(name); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		value, _ := v.Filters.Active(name)
		parts = append(parts, name+"="+value)
	}
	return parts
}

// renderPager shows page numbers, the visible range and the page size.
func (m Model) renderPager() string {
	styles := m.theme.Styles()
	meta := m.view.Page
	var b strings.Builder
	b.WriteString(styles.MutedText.Render(pagerPrefix(meta)))
	for _, n := range meta.Pages {
		label := strconv.Itoa(n)
		if n == meta.PageIndex+1 {
			b.WriteString(styles.Selected.Render(" " + label + " "))
		} else {
			b.WriteString(styles.Text.Render(" " + label + " "))
		}
	}
	b.WriteString(styles.MutedText.Render(pagerSuffix(meta)))
	return b.String()
}

func pagerPrefix(meta paging.Meta) string {
	prev := "  "
	if meta.HasPrev() {
		prev = "◀ "
	}
	return prev
}

func pagerSuffix(meta paging.Meta) string {
	next := "  "
	if meta.HasNext() {
		next = " ▶"
	}
	return fmt.Sprintf("%s   %s   %d per page", next, rangeText(meta), meta.PageSize)
}

// rangeText is the "Showing X to Y of Z" line under a table.
func rangeText(meta paging.Meta) string {
	if !meta.HasRange() {
		return "No results"
	}
	return fmt.Sprintf("Showing %d to %d of %d", meta.From, meta.To, meta.Total)
}
