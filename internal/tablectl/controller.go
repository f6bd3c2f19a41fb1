// Package tablectl binds one remote collection to a table: it filters, sorts
// and paginates the cached rows and projects them into display cells. A
// Controller is owned by a single goroutine, the UI loop or a CLI command.
package tablectl

import (
	"context"
	"time"

	"github.com/five82/depot/internal/collection"
	"github.com/five82/depot/internal/column"
	"github.com/five82/depot/internal/entity"
	"github.com/five82/depot/internal/filter"
	"github.com/five82/depot/internal/paging"
)

// Source is the part of the list cache a Controller reads.
type Source interface {
	Get(key collection.Key) collection.Entry[[]entity.Entity]
	Refetch(ctx context.Context, key collection.Key) (collection.Entry[[]entity.Entity], error)
	Watch(key collection.Key) func()
}

// Stat is one summary figure shown above a table.
type Stat struct {
	Label string
	Value string
}

// Config describes one table. Columns are expected to be already gated for
// the current role.
type Config struct {
	Resource string
	Columns  column.Set
	Filters  []filter.Filter
	PageSize int
	// Hidden lists column keys hidden on start. Nil keeps the column
	// defaults; an empty slice shows everything.
	Hidden []string
	// DefaultSort is a column key; empty keeps backend order.
	DefaultSort string
	// Summary computes figures over the filtered rows.
	Summary func(rows []entity.Entity) []Stat
}

// View is everything a renderer needs for one frame.
type View struct {
	Resource string
	Columns  column.Set
	Rows     []entity.Entity
	Cells    [][]string
	Page     paging.Meta
	Summary  []Stat
	// Total is the unfiltered row count.
	Total     int
	Loading   bool
	Fetching  bool
	Stale     bool
	Err       error
	FetchedAt time.Time
	Filters   filter.State
	Search    string
	SortKey   string
	SortDesc  bool
}

// Empty reports whether the filtered set has no rows. Renderers show a
// "no results" line instead of page controls.
func (v View) Empty() bool { return v.Page.Total == 0 }

type memoKey struct {
	version  uint64
	hasData  bool
	filters  string
	search   string
	sortKey  string
	sortDesc bool
}

// Controller holds the user-controlled state of one table.
type Controller struct {
	cfg      Config
	source   Source
	key      collection.Key
	pipeline *filter.Pipeline

	columns  column.Set
	filters  filter.State
	search   string
	sortKey  string
	sortDesc bool
	page     paging.State

	memo     memoKey
	memoRows []entity.Entity
	memoOK   bool
}

// New builds a Controller for cfg reading from source.
func New(cfg Config, source Source) *Controller {
	cols := cfg.Columns.WithHidden(cfg.Hidden)
	size := cfg.PageSize
	if size <= 0 {
		size = paging.DefaultPageSize
	}
	c := &Controller{
		cfg:      cfg,
		source:   source,
		key:      collection.ListKey(cfg.Resource),
		pipeline: filter.NewPipeline(cfg.Columns, cfg.Filters...),
		columns:  cols,
		filters:  filter.State{},
		page:     paging.State{PageSize: size},
	}
	if col, ok := cfg.Columns.ByKey(cfg.DefaultSort); ok && col.Sortable {
		c.sortKey = col.Key
	}
	return c
}

// Key is the cache key this table reads.
func (c *Controller) Key() collection.Key { return c.key }

// Mount registers the table as a watcher of its key. Call the returned func
// when the table goes away.
func (c *Controller) Mount() func() { return c.source.Watch(c.key) }

// Filters returns the configured filters.
func (c *Controller) Filters() []filter.Filter { return c.pipeline.Filters() }

// FilterOptions lists the choices for filter name: the declared options, or
// the distinct values found in the cached rows. filter.All always comes
// first.
func (c *Controller) FilterOptions(name string) []string {
	for _, f := range c.pipeline.Filters() {
		if f.Name != name {
			continue
		}
		opts := f.Options
		if len(opts) == 0 && f.Path != "" {
			opts = filter.Options(c.source.Get(c.key).Data, f.Path)
		}
		return append([]string{filter.All}, opts...)
	}
	return nil
}

// AllColumns returns every column including hidden ones.
func (c *Controller) AllColumns() column.Set { return c.columns }

// HiddenColumns returns the keys of hidden columns.
func (c *Controller) HiddenColumns() []string { return c.columns.HiddenKeys() }

// PageSize returns the current page size.
func (c *Controller) PageSize() int { return c.page.PageSize }

// View reads the cache, which may schedule a background fetch, and builds
// the current frame.
func (c *Controller) View() View {
	snap := c.source.Get(c.key)
	return c.build(snap)
}

// Rows returns all filtered and sorted rows without paginating.
func (c *Controller) Rows() []entity.Entity {
	return c.derive(c.source.Get(c.key))
}

func (c *Controller) build(snap collection.Entry[[]entity.Entity]) View {
	rows := c.derive(snap)
	c.page = c.page.Clamped(len(rows))
	meta := paging.Describe(len(rows), c.page)
	pageRows := paging.Slice(rows, meta.PageIndex, meta.PageSize)

	visible := c.columns.Visible()
	cells := make([][]string, len(pageRows))
	for i, row := range pageRows {
		line := make([]string, len(visible))
		for j, col := range visible {
			line[j] = column.Display(row, col)
		}
		cells[i] = line
	}

	v := View{
		Resource:  c.cfg.Resource,
		Columns:   visible,
		Rows:      pageRows,
		Cells:     cells,
		Page:      meta,
		Total:     len(snap.Data),
		Loading:   snap.Fetching && !snap.HasData,
		Fetching:  snap.Fetching,
		Stale:     snap.Stale,
		Err:       snap.Err,
		FetchedAt: snap.FetchedAt,
		Filters:   c.filters,
		Search:    c.search,
		SortKey:   c.sortKey,
		SortDesc:  c.sortDesc,
	}
	if c.cfg.Summary != nil && snap.HasData {
		v.Summary = c.cfg.Summary(rows)
	}
	return v
}

// derive runs filter and sort, reusing the previous result while the
// collection version and the inputs are unchanged.
func (c *Controller) derive(snap collection.Entry[[]entity.Entity]) []entity.Entity {
	key := memoKey{
		version:  snap.Version,
		hasData:  snap.HasData,
		filters:  c.filters.Key(),
		search:   c.search,
		sortKey:  c.sortKey,
		sortDesc: c.sortDesc,
	}
	if c.memoOK && key == c.memo {
		return c.memoRows
	}
	rows := c.pipeline.Apply(snap.Data, c.filters, c.search)
	if col, ok := c.columns.ByKey(c.sortKey); ok && col.Sortable {
		rows = column.Sort(rows, col, c.sortDesc)
	}
	c.memo, c.memoRows, c.memoOK = key, rows, true
	return rows
}

// OnPageChange moves to a 0-based page. Out-of-range values are clamped on
// the next View.
func (c *Controller) OnPageChange(pageIndex int) {
	if pageIndex < 0 {
		pageIndex = 0
	}
	c.page.PageIndex = pageIndex
}

// NextPage and PrevPage step one page, clamped.
func (c *Controller) NextPage() { c.OnPageChange(c.page.PageIndex + 1) }

func (c *Controller) PrevPage() { c.OnPageChange(c.page.PageIndex - 1) }

// OnPageSizeChange switches page size and returns to the first page.
func (c *Controller) OnPageSizeChange(size int) {
	c.page = c.page.WithPageSize(size)
}

// OnFilterChange sets one filter; filter.All clears it.
func (c *Controller) OnFilterChange(name, value string) {
	c.filters = c.filters.With(name, value)
}

// OnSearchChange sets the free-text search term.
func (c *Controller) OnSearchChange(term string) {
	c.search = term
}

// OnSort sorts by key. Repeating the current key flips direction. It returns
// false for unknown or unsortable columns.
func (c *Controller) OnSort(key string) bool {
	col, ok := c.columns.ByKey(key)
	if !ok || !col.Sortable {
		return false
	}
	if c.sortKey == key {
		c.sortDesc = !c.sortDesc
	} else {
		c.sortKey = key
		c.sortDesc = false
	}
	return true
}

// SetSort sets the sort column and direction directly.
func (c *Controller) SetSort(key string, desc bool) bool {
	col, ok := c.columns.ByKey(key)
	if !ok || !col.Sortable {
		return false
	}
	c.sortKey, c.sortDesc = key, desc
	return true
}

// ToggleColumn flips a column's visibility.
func (c *Controller) ToggleColumn(key string) {
	c.columns = c.columns.Toggle(key)
}

// ShowOnly hides every column not in keys. Unknown keys are ignored.
func (c *Controller) ShowOnly(keys []string) {
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	hidden := []string{}
	for _, col := range c.columns {
		if !want[col.Key] {
			hidden = append(hidden, col.Key)
		}
	}
	c.columns = c.cfg.Columns.WithHidden(hidden)
}

// Retry refetches the collection and waits for it.
func (c *Controller) Retry(ctx context.Context) (View, error) {
	snap, err := c.source.Refetch(ctx, c.key)
	return c.build(snap), err
}
