package ui

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/depot/internal/auth"
	"github.com/five82/depot/internal/collection"
	"github.com/five82/depot/internal/mutation"
	"github.com/five82/depot/internal/prefs"
	"github.com/five82/depot/internal/screens"
	"github.com/five82/depot/internal/tablectl"
)

// Options configures the UI.
type Options struct {
	Context   context.Context
	Lists     *collection.Lists
	Details   *collection.Details
	Mutations *mutation.Coordinator
	Role      auth.Role
	Prefs     prefs.Prefs
	// PrefsPath is where preference changes are saved; empty disables saving.
	PrefsPath string
	// PageSize applies to screens without a remembered page size.
	PageSize int
	Logger   *slog.Logger
	// Screen is the resource shown first. Empty falls back to the last
	// screen in Prefs, then to the first screen.
	Screen string
	Now    func() time.Time
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	lists     *collection.Lists
	details   *collection.Details
	mutations *mutation.Coordinator
	role      auth.Role
	logger    *slog.Logger
	prefs     *prefs.Prefs
	prefsPath string
	pageSize  int
	now       func() time.Time

	// UI state
	theme  Theme
	keys   keyMap
	width  int
	height int
	ready  bool

	// Screens
	screens []screens.Screen
	current int
	states  map[string]*screenState
	view    tablectl.View
	table   table.Model

	// Fetch indicator
	spinner  spinner.Model
	spinning bool

	// Search box
	search    textinput.Model
	searching bool

	// Detail pane
	detail        viewport.Model
	showDetail    bool
	detailKey     collection.Key
	releaseDetail func()

	// Overlays
	showHelp bool
	modal    Modal
	form     *formModal
	toasts   []toast

	// Cache change feeds
	listChanges   <-chan collection.Key
	detailChanges <-chan collection.Key
	unsubscribe   []func()
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	p := opts.Prefs

	search := textinput.New()
	search.Placeholder = "search"
	search.Prompt = "/ "
	search.CharLimit = 80

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		ctx:       ctx,
		lists:     opts.Lists,
		details:   opts.Details,
		mutations: opts.Mutations,
		role:      opts.Role,
		logger:    logger,
		prefs:     &p,
		prefsPath: opts.PrefsPath,
		pageSize:  opts.PageSize,
		now:       now,
		theme:     GetTheme(p.Theme),
		keys:      DefaultKeyMap(),
		screens:   screens.All(),
		states:    make(map[string]*screenState),
		spinner:   sp,
		search:    search,
		detail:    viewport.New(0, 0),
	}
	m.table = table.New(table.WithFocused(true), table.WithKeyMap(m.keys.tableKeyMap()))
	m.table.SetStyles(m.tableStyles())

	if m.lists != nil {
		ch, stop := m.lists.Subscribe()
		m.listChanges = ch
		m.unsubscribe = append(m.unsubscribe, stop)
	}
	if m.details != nil {
		ch, stop := m.details.Subscribe()
		m.detailChanges = ch
		m.unsubscribe = append(m.unsubscribe, stop)
	}

	start := opts.Screen
	if start == "" {
		start = p.LastScreen
	}
	m.activate(m.screenIndex(start))
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tea.EnterAltScreen,
		tickCmd(DefaultUIInterval),
		waitForChange(m.listChanges, false),
		waitForChange(m.detailChanges, true),
	}
	if m.view.Fetching {
		cmds = append(cmds, m.spinner.Tick)
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()
		m.renderDetail()
		return m, nil

	case tickMsg:
		m.expireToasts()
		return m, tickCmd(DefaultUIInterval)

	case cacheChangedMsg:
		cmd := m.handleCacheChange(msg)
		return m, tea.Batch(cmd, waitForChange(m.feed(msg.detail), msg.detail))

	case spinner.TickMsg:
		if !m.view.Fetching && !m.detailFetching() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case pickedMsg:
		return m, m.handlePicked(msg)

	case mutationDoneMsg:
		return m, m.handleMutationDone(msg)

	case refetchDoneMsg:
		if msg.err != nil {
			m.logger.Debug("refetch failed", "key", msg.key.String(), "err", msg.err)
		}
		return m, m.refresh()
	}

	if m.form != nil {
		return m.updateForm(msg)
	}

	if km, ok := msg.(tea.KeyMsg); ok {
		return m.handleKey(km)
	}

	if m.modal != nil {
		var cmd tea.Cmd
		var closed bool
		m.modal, cmd, closed = m.modal.Update(msg, m.keys)
		if closed {
			m.modal = nil
		}
		return m, cmd
	}
	if m.searching {
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	if m.form != nil {
		return m.form.View(m.theme, m.width, m.height)
	}
	if m.modal != nil {
		return m.modal.View(m.theme, m.width, m.height)
	}
	return m.renderMain()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	if m.modal != nil {
		var cmd tea.Cmd
		var closed bool
		m.modal, cmd, closed = m.modal.Update(msg, m.keys)
		if closed {
			m.modal = nil
		}
		return m, cmd
	}

	if m.searching {
		return m.handleSearchKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.table.SetStyles(m.tableStyles())
		m.prefs.Theme = m.theme.Name
		m.savePrefs()
		m.renderDetail()
		return m, nil

	case key.Matches(msg, m.keys.NextScreen):
		m.activate((m.current + 1) % len(m.screens))
		return m, m.refresh()

	case key.Matches(msg, m.keys.PrevScreen):
		m.activate((m.current - 1 + len(m.screens)) % len(m.screens))
		return m, m.refresh()

	case key.Matches(msg, m.keys.JumpScreen):
		m.modal = m.screenPicker()
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Escape):
		switch {
		case m.showDetail:
			m.closeDetail()
			m.layout()
		case m.view.Search != "":
			m.search.SetValue("")
			m.active().ctl.OnSearchChange("")
			return m, m.refresh()
		}
		return m, nil

	case key.Matches(msg, m.keys.Search):
		m.searching = true
		m.layout()
		return m, m.search.Focus()

	case key.Matches(msg, m.keys.Filter):
		return m, m.openFilterPicker()

	case key.Matches(msg, m.keys.ClearFilters):
		m.clearFilters()
		return m, m.refresh()

	case key.Matches(msg, m.keys.Sort):
		return m, m.openSortPicker()

	case key.Matches(msg, m.keys.Reverse):
		st := m.active()
		if m.view.SortKey != "" && st.ctl.SetSort(m.view.SortKey, !m.view.SortDesc) {
			m.rememberSort()
		}
		return m, m.refresh()

	case key.Matches(msg, m.keys.Columns):
		m.modal = m.columnPicker()
		return m, textinput.Blink

	case key.Matches(msg, m.keys.PrevPage):
		m.active().ctl.PrevPage()
		return m, m.refresh()

	case key.Matches(msg, m.keys.NextPage):
		m.active().ctl.NextPage()
		return m, m.refresh()

	case key.Matches(msg, m.keys.GrowPage):
		m.stepPageSize(1)
		return m, m.refresh()

	case key.Matches(msg, m.keys.ShrinkPage):
		m.stepPageSize(-1)
		return m, m.refresh()

	case key.Matches(msg, m.keys.Retry):
		return m, m.retryCmd()

	case key.Matches(msg, m.keys.Open):
		if row, ok := m.selectedRow(); ok {
			m.openDetail(row.ID())
			m.layout()
			m.renderDetail()
		}
		return m, m.spinIfFetching()

	case key.Matches(msg, m.keys.ScrollDown):
		m.detail.HalfPageDown()
		return m, nil

	case key.Matches(msg, m.keys.ScrollUp):
		m.detail.HalfPageUp()
		return m, nil

	case key.Matches(msg, m.keys.New):
		return m, m.openCreateForm()

	case key.Matches(msg, m.keys.Edit):
		return m, m.openEditForm()

	case key.Matches(msg, m.keys.Delete):
		return m, m.openDeleteConfirm()
	}

	// Row navigation belongs to the table.
	before := m.table.Cursor()
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	if m.table.Cursor() != before && m.showDetail {
		if row, ok := m.selectedRow(); ok {
			m.openDetail(row.ID())
			m.renderDetail()
			return m, tea.Batch(cmd, m.spinIfFetching())
		}
	}
	return m, cmd
}

// handleSearchKey edits the search box. The table filters as the user types;
// enter keeps the term and esc clears it.
func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.searching = false
		m.search.Blur()
		m.layout()
		return m, nil
	case tea.KeyEsc:
		m.searching = false
		m.search.Blur()
		m.search.SetValue("")
		m.active().ctl.OnSearchChange("")
		m.layout()
		return m, m.refresh()
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.active().ctl.OnSearchChange(m.search.Value())
	return m, tea.Batch(cmd, m.refresh())
}

// renderMain renders the full UI.
func (m Model) renderMain() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")
	b.WriteString(m.renderContent())
	return b.String()
}

// Messages

type tickMsg time.Time

// cacheChangedMsg reports that the list or detail cache committed key.
type cacheChangedMsg struct {
	key    collection.Key
	detail bool
}

type refetchDoneMsg struct {
	key collection.Key
	err error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForChange blocks on a store subscription and turns the next change
// into a message. A closed or nil feed ends the loop.
func waitForChange(ch <-chan collection.Key, detail bool) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		k, ok := <-ch
		if !ok {
			return nil
		}
		return cacheChangedMsg{key: k, detail: detail}
	}
}

func (m Model) feed(detail bool) <-chan collection.Key {
	if detail {
		return m.detailChanges
	}
	return m.listChanges
}

// Run starts the Bubble Tea program and releases the cache watchers when it
// exits.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	final, err := p.Run()
	if fm, ok := final.(Model); ok {
		fm.shutdown()
	} else {
		m.shutdown()
	}
	return err
}

// shutdown releases watchers and subscriptions.
func (m Model) shutdown() {
	for _, st := range m.states {
		if st.release != nil {
			st.release()
			st.release = nil
		}
	}
	if m.releaseDetail != nil {
		m.releaseDetail()
	}
	for _, stop := range m.unsubscribe {
		stop()
	}
}
