package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/depot/internal/collection"
	"github.com/five82/depot/internal/entity"
	"github.com/five82/depot/internal/render"
)

// glamourStyle is fixed because auto-detection queries the terminal, which
// the running program owns.
const glamourStyle = "dark"

// openDetail starts watching the detail entry of id on the active screen.
func (m *Model) openDetail(id string) {
	if m.details == nil || id == "" {
		return
	}
	k := collection.DetailKey(m.active().screen.Resource, id)
	if m.showDetail && k == m.detailKey {
		return
	}
	if m.releaseDetail != nil {
		m.releaseDetail()
	}
	m.detailKey = k
	m.releaseDetail = m.details.Watch(k)
	m.showDetail = true
	m.detail.GotoTop()
}

func (m *Model) closeDetail() {
	if m.releaseDetail != nil {
		m.releaseDetail()
		m.releaseDetail = nil
	}
	m.showDetail = false
	m.detailKey = collection.Key{}
}

func (m Model) detailFetching() bool {
	if !m.showDetail || m.details == nil {
		return false
	}
	return m.details.Peek(m.detailKey).Fetching
}

// renderDetail renders the open record into the viewport. Until the detail
// request answers, the list row is shown.
func (m *Model) renderDetail() {
	if !m.showDetail || !m.ready {
		return
	}
	snap := m.details.Get(m.detailKey)
	record := snap.Data
	if !snap.HasData {
		record = m.listRow(m.detailKey.ID)
	}

	var b strings.Builder
	styles := m.theme.Styles()
	if snap.Err != nil {
		b.WriteString(styles.DangerText.Render("Error loading details - press r to retry"))
		b.WriteString("\n\n")
	}
	if record == nil {
		b.WriteString(styles.MutedText.Render("Loading..."))
		m.detail.SetContent(b.String())
		return
	}
	md := render.Markdown(m.active().screen.RecordTitle(record), record)
	out, err := render.Glamour(md, max(m.detail.Width-2, 20), glamourStyle)
	if err != nil {
		m.logger.Debug("render detail", "err", err)
		out = md
	}
	b.WriteString(out)
	m.detail.SetContent(b.String())
}

func (m Model) listRow(id string) entity.Entity {
	for _, row := range m.active().ctl.Rows() {
		if row.ID() == id {
			return row
		}
	}
	return nil
}

func (m Model) renderDetailPane(width, height int) string {
	styles := m.theme.Styles()
	badge := styles.MutedText.Render(m.detailKey.Resource + " #" + m.detailKey.ID)
	if status := m.detailStatus(); status != "" {
		badge = styles.StatusStyle(status).Render(" "+status+" ") + " " + badge
	}
	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.BorderFocus)).
		Width(width - 2).
		Height(max(height-2, 1))
	return border.Render(badge + "\n" + m.detail.View())
}

// detailStatus is the status cell of the open record when it is on the
// current page.
func (m Model) detailStatus() string {
	col := -1
	for j, c := range m.view.Columns {
		if c.Key == "status" {
			col = j
		}
	}
	if col < 0 {
		return ""
	}
	for i, row := range m.view.Rows {
		if row.ID() == m.detailKey.ID && col < len(m.view.Cells[i]) {
			return m.view.Cells[i][col]
		}
	}
	return ""
}

// handleCacheChange refreshes whatever shows key.
func (m *Model) handleCacheChange(msg cacheChangedMsg) tea.Cmd {
	if msg.detail {
		if m.showDetail && msg.key == m.detailKey {
			m.renderDetail()
		}
		return m.spinIfFetching()
	}
	if st := m.active(); st != nil && msg.key == st.ctl.Key() {
		cmd := m.refresh()
		if m.showDetail {
			m.renderDetail()
		}
		return cmd
	}
	return nil
}
