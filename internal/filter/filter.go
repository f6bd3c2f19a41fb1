// Package filter narrows a cached collection on the client.
//
// A Pipeline holds named predicates plus the searchable columns of a screen.
// Apply is pure: it never mutates its input and returns the input slice
// itself when no constraint is active.
package filter

import (
	"maps"
	"slices"
	"strings"

	"github.com/five82/depot/internal/column"
	"github.com/five82/depot/internal/entity"
)

// All is the filter value meaning "no constraint".
const All = "all"

// Unknown is what a nested path resolves to when an intermediate object is
// missing.
const Unknown = "Unknown"

// Predicate reports whether the entity satisfies the filter at value.
type Predicate func(e entity.Entity, value string) bool

// Filter is a named predicate with an optional label and known options.
type Filter struct {
	Name    string
	Label   string
	Match   Predicate
	Options []string
	// Path is the field an Equals filter compares, used to derive options
	// from the data when none are declared.
	Path string
}

// State maps filter name to its current value.
type State map[string]string

// IsActive reports whether value constrains anything.
func IsActive(value string) bool {
	v := strings.TrimSpace(value)
	return v != "" && !strings.EqualFold(v, All)
}

// Active returns the value for name when it constrains the result.
func (s State) Active(name string) (string, bool) {
	v, ok := s[name]
	if !ok || !IsActive(v) {
		return "", false
	}
	return strings.TrimSpace(v), true
}

// With returns a copy of the state with name set to value.
func (s State) With(name, value string) State {
	out := maps.Clone(s)
	if out == nil {
		out = State{}
	}
	out[name] = value
	return out
}

// Key is a stable fingerprint of the active constraints, used for memoizing.
func (s State) Key() string {
	names := slices.Sorted(maps.Keys(s))
	var b strings.Builder
	for _, name := range names {
		v, ok := s.Active(name)
		if !ok {
			continue
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(v)
		b.WriteByte(0)
	}
	return b.String()
}

// FieldValue resolves path to text, substituting Unknown for missing data.
func FieldValue(e entity.Entity, path string) string {
	v, ok := entity.Lookup(e, path)
	if !ok {
		return Unknown
	}
	text := strings.TrimSpace(entity.Text(v))
	if text == "" {
		return Unknown
	}
	return text
}

// Equals builds a filter matching path against the value, case-insensitively.
func Equals(name, label, path string, options ...string) Filter {
	return Filter{
		Name:    name,
		Label:   label,
		Options: options,
		Path:    path,
		Match: func(e entity.Entity, value string) bool {
			return strings.EqualFold(FieldValue(e, path), value)
		},
	}
}

// Func builds a filter from an arbitrary predicate.
func Func(name, label string, match Predicate, options ...string) Filter {
	return Filter{Name: name, Label: label, Match: match, Options: options}
}

// Pipeline applies predicate filters and free-text search.
type Pipeline struct {
	filters    []Filter
	searchable column.Set
}

// NewPipeline builds a pipeline over the searchable columns of cols.
func NewPipeline(cols column.Set, filters ...Filter) *Pipeline {
	return &Pipeline{filters: slices.Clone(filters), searchable: cols.Searchable()}
}

// Filters returns the configured filters.
func (p *Pipeline) Filters() []Filter {
	return slices.Clone(p.filters)
}

// Apply keeps rows matching every active filter and, when search is
// non-empty, containing search in at least one searchable column.
func (p *Pipeline) Apply(rows []entity.Entity, state State, search string) []entity.Entity {
	active := p.activeFilters(state)
	needle := strings.ToLower(strings.TrimSpace(search))
	if len(active) == 0 && needle == "" {
		return rows
	}

	out := make([]entity.Entity, 0, len(rows))
	for _, row := range rows {
		if !matchAll(row, active) {
			continue
		}
		if needle != "" && !p.matchSearch(row, needle) {
			continue
		}
		out = append(out, row)
	}
	return out
}

type boundFilter struct {
	match Predicate
	value string
}

func (p *Pipeline) activeFilters(state State) []boundFilter {
	var active []boundFilter
	for _, f := range p.filters {
		v, ok := state.Active(f.Name)
		if !ok || f.Match == nil {
			continue
		}
		active = append(active, boundFilter{match: f.Match, value: v})
	}
	return active
}

func matchAll(row entity.Entity, active []boundFilter) bool {
	for _, f := range active {
		if !safeMatch(f.match, row, f.value) {
			return false
		}
	}
	return true
}

// safeMatch treats a panicking predicate as "does not match".
func safeMatch(match Predicate, row entity.Entity, value string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return match(row, value)
}

func (p *Pipeline) matchSearch(row entity.Entity, needle string) bool {
	for _, c := range p.searchable {
		if strings.Contains(strings.ToLower(column.SearchText(row, c)), needle) {
			return true
		}
	}
	return false
}

// Options collects distinct values at path across rows, sorted, for filter
// pickers. Rows missing the path contribute Unknown.
func Options(rows []entity.Entity, path string) []string {
	seen := make(map[string]struct{})
	for _, row := range rows {
		seen[FieldValue(row, path)] = struct{}{}
	}
	out := slices.Collect(maps.Keys(seen))
	slices.SortFunc(out, func(a, b string) int {
		if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	return out
}
