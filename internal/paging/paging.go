// Package paging slices filtered rows into fixed-size pages and computes the
// page-number window shown under a table.
package paging

// DefaultWindow is the number of page buttons shown at once.
const DefaultWindow = 5

// DefaultPageSize is used when a screen or preference does not pick one.
const DefaultPageSize = 10

// PageSizes are the sizes offered to the user.
var PageSizes = []int{10, 20, 50, 100}

// State is the user-controlled pagination position. PageIndex is 0-based.
type State struct {
	PageIndex int
	PageSize  int
}

// Meta is everything a view needs to draw pagination controls.
type Meta struct {
	PageIndex int
	PageSize  int
	PageCount int
	Total     int
	// From and To are the 1-based visible range; both are 0 when Total is 0.
	From  int
	To    int
	Pages []int
}

// HasRange reports whether "Showing From to To of Total" should be drawn.
func (m Meta) HasRange() bool { return m.Total > 0 }

// HasPrev reports whether an earlier page exists.
func (m Meta) HasPrev() bool { return m.PageIndex > 0 }

// HasNext reports whether a later page exists.
func (m Meta) HasNext() bool { return m.PageIndex+1 < m.PageCount }

func normalizeSize(size int) int {
	if size <= 0 {
		return DefaultPageSize
	}
	return size
}

// PageCount returns ceil(total/size); zero rows means zero pages.
func PageCount(total, size int) int {
	if total <= 0 {
		return 0
	}
	size = normalizeSize(size)
	return (total + size - 1) / size
}

// Clamp bounds pageIndex to [0, max(1, pageCount)-1].
func Clamp(pageIndex, total, size int) int {
	last := PageCount(total, size) - 1
	if pageIndex > last {
		pageIndex = last
	}
	if pageIndex < 0 {
		pageIndex = 0
	}
	return pageIndex
}

// Range returns the 1-based inclusive bounds of the rows on pageIndex.
// ok is false when there is nothing to show.
func Range(total, pageIndex, size int) (from, to int, ok bool) {
	if total <= 0 {
		return 0, 0, false
	}
	size = normalizeSize(size)
	pageIndex = Clamp(pageIndex, total, size)
	from = pageIndex*size + 1
	to = min((pageIndex+1)*size, total)
	return from, to, true
}

// VisiblePageNumbers returns the 1-based page numbers to render around
// current. With the default window of five: pages 1-5 while current <= 3,
// the last five once current >= totalPages-2, otherwise current±2.
func VisiblePageNumbers(current, totalPages, window int) []int {
	if totalPages <= 0 {
		return nil
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if totalPages <= window {
		return seq(1, totalPages)
	}
	half := window / 2
	switch {
	case current <= half+1:
		return seq(1, window)
	case current >= totalPages-half:
		return seq(totalPages-window+1, totalPages)
	default:
		start := current - half
		return seq(start, start+window-1)
	}
}

func seq(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

// Slice returns the rows on pageIndex. The result shares the backing array
// of rows and must be treated as read-only.
func Slice[T any](rows []T, pageIndex, size int) []T {
	from, to, ok := Range(len(rows), pageIndex, size)
	if !ok {
		return nil
	}
	return rows[from-1 : to : to]
}

// Describe computes pagination metadata for total rows at state.
func Describe(total int, s State) Meta {
	size := normalizeSize(s.PageSize)
	idx := Clamp(s.PageIndex, total, size)
	m := Meta{
		PageIndex: idx,
		PageSize:  size,
		PageCount: PageCount(total, size),
		Total:     total,
	}
	if from, to, ok := Range(total, idx, size); ok {
		m.From, m.To = from, to
	}
	m.Pages = VisiblePageNumbers(idx+1, m.PageCount, DefaultWindow)
	return m
}

// WithPageSize switches to size and resets to the first page.
func (s State) WithPageSize(size int) State {
	return State{PageIndex: 0, PageSize: normalizeSize(size)}
}

// WithPage moves to pageIndex, clamped against total rows.
func (s State) WithPage(pageIndex, total int) State {
	s.PageSize = normalizeSize(s.PageSize)
	s.PageIndex = Clamp(pageIndex, total, s.PageSize)
	return s
}

// Clamped re-validates the position after the row count changed.
func (s State) Clamped(total int) State {
	return s.WithPage(s.PageIndex, total)
}
