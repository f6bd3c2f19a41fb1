package ui

import (
	"context"
	"fmt"
	"slices"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/depot/internal/collection"
	"github.com/five82/depot/internal/filter"
	"github.com/five82/depot/internal/paging"
	"github.com/five82/depot/internal/prefs"
	"github.com/five82/depot/internal/screens"
	"github.com/five82/depot/internal/tablectl"
)

// screenState is the table controller of one screen. It survives screen
// switches so filters, search and paging are kept.
type screenState struct {
	screen  screens.Screen
	ctl     *tablectl.Controller
	release func()
}

func (m Model) screenIndex(resource string) int {
	for i, s := range m.screens {
		if s.Resource == resource {
			return i
		}
	}
	return 0
}

func (m Model) active() *screenState {
	return m.states[m.screens[m.current].Resource]
}

func (m *Model) stateFor(s screens.Screen) *screenState {
	if st, ok := m.states[s.Resource]; ok {
		return st
	}
	sp := m.prefs.Screen(s.Resource)
	size := sp.PageSize
	if size <= 0 {
		size = m.pageSize
	}
	ctl := tablectl.New(s.TableConfig(m.role, size, sp.Hidden()), m.lists)
	if sp.Sort != "" {
		ctl.SetSort(sp.Sort, sp.Desc)
	}
	st := &screenState{screen: s, ctl: ctl}
	m.states[s.Resource] = st
	return st
}

// activate switches to screen i: the previous screen stops watching its
// collection and the new one starts.
func (m *Model) activate(i int) {
	if len(m.screens) == 0 {
		return
	}
	if prev, ok := m.states[m.screens[m.current].Resource]; ok && prev.release != nil {
		prev.release()
		prev.release = nil
	}
	m.closeDetail()
	m.current = i
	st := m.stateFor(m.screens[i])
	if m.lists != nil {
		st.release = st.ctl.Mount()
	}
	m.search.SetValue(st.ctl.View().Search)
	m.searching = false
	m.search.Blur()
	m.table.SetCursor(0)
	if m.prefs.LastScreen != st.screen.Resource {
		m.prefs.LastScreen = st.screen.Resource
		m.savePrefs()
	}
	m.logger.Debug("screen activated", "screen", st.screen.Resource)
	m.refresh()
}

func (m Model) screenPicker() *pickerModal {
	items := make([]pickerItem, 0, len(m.screens))
	for _, s := range m.screens {
		items = append(items, pickerItem{label: s.Title, value: s.Resource})
	}
	return newPicker("Go to screen", pickScreen, items)
}

func (m *Model) openFilterPicker() tea.Cmd {
	st := m.active()
	filters := st.ctl.Filters()
	if len(filters) == 0 {
		m.pushToast(toastInfo, st.screen.Title+" has no filters")
		return nil
	}
	items := make([]pickerItem, 0, len(filters))
	for _, f := range filters {
		label := f.Label
		if v, ok := m.view.Filters.Active(f.Name); ok {
			label = fmt.Sprintf("%s = %s", f.Label, v)
		}
		items = append(items, pickerItem{label: label, value: f.Name})
	}
	m.modal = newPicker("Filter "+st.screen.Title, pickFilter, items)
	return nil
}

func (m Model) filterValuePicker(name string) *pickerModal {
	st := m.active()
	label := name
	for _, f := range st.ctl.Filters() {
		if f.Name == name {
			label = f.Label
		}
	}
	current, _ := m.view.Filters.Active(name)
	opts := st.ctl.FilterOptions(name)
	items := make([]pickerItem, 0, len(opts))
	cursor := 0
	for i, o := range opts {
		if o == current {
			cursor = i
		}
		items = append(items, pickerItem{label: o, value: o})
	}
	p := newPicker(label, pickFilterValue, items)
	p.context = name
	p.cursor = cursor
	return p
}

func (m *Model) openSortPicker() tea.Cmd {
	var items []pickerItem
	for _, c := range m.view.Columns {
		if !c.Sortable {
			continue
		}
		label := c.Label
		if c.Key == m.view.SortKey {
			label += " " + sortArrow(m.view.SortDesc)
		}
		items = append(items, pickerItem{label: label, value: c.Key})
	}
	if len(items) == 0 {
		m.pushToast(toastInfo, "No sortable columns")
		return nil
	}
	m.modal = newPicker("Sort by", pickSort, items)
	return nil
}

func (m Model) columnPicker() *pickerModal {
	cols := m.active().ctl.AllColumns()
	items := make([]pickerItem, 0, len(cols))
	for _, c := range cols {
		items = append(items, pickerItem{label: c.Label, value: c.Key, checked: !c.Hidden})
	}
	p := newPicker("Columns", pickColumns, items)
	p.multi = true
	return p
}

func (m *Model) handlePicked(msg pickedMsg) tea.Cmd {
	st := m.active()
	switch msg.purpose {
	case pickScreen:
		m.activate(m.screenIndex(msg.values[0]))
	case pickFilter:
		m.modal = m.filterValuePicker(msg.values[0])
		return nil
	case pickFilterValue:
		st.ctl.OnFilterChange(msg.context, msg.values[0])
	case pickSort:
		if st.ctl.OnSort(msg.values[0]) {
			m.rememberSort()
		}
	case pickColumns:
		st.ctl.ShowOnly(msg.values)
		sp := m.prefs.Screen(st.screen.Resource).WithHidden(st.ctl.HiddenColumns())
		m.prefs.SetScreen(st.screen.Resource, sp)
		m.savePrefs()
	}
	return m.refresh()
}

func (m *Model) clearFilters() {
	st := m.active()
	for _, f := range st.ctl.Filters() {
		st.ctl.OnFilterChange(f.Name, filter.All)
	}
}

func (m *Model) rememberSort() {
	st := m.active()
	v := st.ctl.View()
	sp := m.prefs.Screen(st.screen.Resource)
	sp.Sort, sp.Desc = v.SortKey, v.SortDesc
	m.prefs.SetScreen(st.screen.Resource, sp)
	m.savePrefs()
}

// stepPageSize moves to the next or previous offered page size.
func (m *Model) stepPageSize(dir int) {
	st := m.active()
	size := nextPageSize(st.ctl.PageSize(), dir)
	if size == st.ctl.PageSize() {
		return
	}
	st.ctl.OnPageSizeChange(size)
	sp := m.prefs.Screen(st.screen.Resource)
	sp.PageSize = size
	m.prefs.SetScreen(st.screen.Resource, sp)
	m.savePrefs()
}

// nextPageSize steps through paging.PageSizes, staying at either end.
// Sizes not on the list snap to the nearest offered size in dir.
func nextPageSize(current, dir int) int {
	sizes := paging.PageSizes
	i := slices.Index(sizes, current)
	if i < 0 {
		for j, s := range sizes {
			if s > current {
				if dir > 0 {
					return s
				}
				return sizes[max(j-1, 0)]
			}
		}
		return sizes[len(sizes)-1]
	}
	return sizes[min(max(i+dir, 0), len(sizes)-1)]
}

func (m Model) savePrefs() {
	if m.prefsPath == "" {
		return
	}
	if err := prefs.Save(m.prefsPath, *m.prefs); err != nil {
		m.logger.Warn("save prefs", "err", err)
	}
}

// retryCmd refetches the active list, and the open detail, off the UI
// goroutine. Results arrive as cache change messages.
func (m Model) retryCmd() tea.Cmd {
	if m.lists == nil {
		return nil
	}
	keys := []collection.Key{m.active().ctl.Key()}
	if m.showDetail {
		keys = append(keys, m.detailKey)
	}
	cmds := []tea.Cmd{m.spinner.Tick}
	for _, k := range keys {
		cmds = append(cmds, m.refetchCmd(k))
	}
	return tea.Batch(cmds...)
}

func (m Model) refetchCmd(k collection.Key) tea.Cmd {
	ctx := m.ctx
	lists, details := m.lists, m.details
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, MutationTimeout)
		defer cancel()
		var err error
		if k.IsList() {
			_, err = lists.Refetch(ctx, k)
		} else if details != nil {
			_, err = details.Refetch(ctx, k)
		}
		return refetchDoneMsg{key: k, err: err}
	}
}
