// Package column describes how entities project into table cells.
//
// A Column is one of three kinds: a field column reads a dotted path, a
// computed column derives its value from the whole entity on every call, and
// an action column only renders (edit/delete affordances). Resolution never
// fails; missing data renders as Placeholder unless the column opts out with
// KeepEmpty.
package column

import (
	"strings"

	"github.com/five82/depot/internal/entity"
)

// Placeholder is shown for nil or empty values.
const Placeholder = "NA"

// Kind tags the accessor variant of a column.
type Kind int

const (
	KindField Kind = iota
	KindComputed
	KindAction
)

func (k Kind) String() string {
	switch k {
	case KindField:
		return "field"
	case KindComputed:
		return "computed"
	case KindAction:
		return "action"
	default:
		return "unknown"
	}
}

// RenderFunc formats a resolved value for display.
type RenderFunc func(value any, e entity.Entity) string

// ComputeFunc derives a value from the raw entity.
type ComputeFunc func(e entity.Entity) any

// Column is an immutable descriptor. Builder methods return modified copies.
type Column struct {
	Key        string
	Label      string
	Kind       Kind
	Path       string
	Compute    ComputeFunc
	Render     RenderFunc
	Sortable   bool
	Searchable bool
	Hidden     bool
	// KeepEmpty exempts the column from the placeholder convention (dates
	// that format to "", action cells).
	KeepEmpty bool
	Width     int
}

// Field builds a path-backed column. Field columns are sortable and
// searchable by default.
func Field(key, label, path string) Column {
	return Column{Key: key, Label: label, Kind: KindField, Path: path, Sortable: true, Searchable: true}
}

// Computed builds a column whose value is derived from the entity.
func Computed(key, label string, fn ComputeFunc) Column {
	return Column{Key: key, Label: label, Kind: KindComputed, Compute: fn, Sortable: true}
}

// Action builds a render-only column.
func Action(key, label string, render RenderFunc) Column {
	return Column{Key: key, Label: label, Kind: KindAction, Render: render, KeepEmpty: true}
}

func (c Column) WithRender(fn RenderFunc) Column { c.Render = fn; return c }
func (c Column) WithWidth(w int) Column          { c.Width = w; return c }
func (c Column) Unsortable() Column              { c.Sortable = false; return c }
func (c Column) Unsearchable() Column            { c.Searchable = false; return c }
func (c Column) Searched() Column                { c.Searchable = true; return c }
func (c Column) Hide() Column                    { c.Hidden = true; return c }
func (c Column) NoPlaceholder() Column           { c.KeepEmpty = true; return c }

// Resolve returns the raw value for the column, or nil when the path is
// missing. Action columns always resolve to nil.
func Resolve(e entity.Entity, c Column) any {
	switch c.Kind {
	case KindField:
		v, ok := entity.Lookup(e, c.Path)
		if !ok {
			return nil
		}
		return v
	case KindComputed:
		if c.Compute == nil || e == nil {
			return nil
		}
		return safeCompute(c.Compute, e)
	default:
		return nil
	}
}

func safeCompute(fn ComputeFunc, e entity.Entity) (v any) {
	defer func() {
		if recover() != nil {
			v = nil
		}
	}()
	return fn(e)
}

// Display renders the cell text, applying the placeholder policy.
func Display(e entity.Entity, c Column) string {
	value := Resolve(e, c)
	var text string
	if c.Render != nil {
		text = c.Render(value, e)
	} else {
		text = entity.Text(value)
	}
	if strings.TrimSpace(text) == "" && !c.KeepEmpty {
		return Placeholder
	}
	return text
}

// SearchText is the projected string used by free-text search: the rendered
// cell when the column has a renderer. Missing values are "" so neither the
// placeholder nor a renderer's empty form ever matches a query.
func SearchText(e entity.Entity, c Column) string {
	if c.Kind == KindAction || !c.Searchable {
		return ""
	}
	value := Resolve(e, c)
	text := entity.Text(value)
	if strings.TrimSpace(text) == "" {
		return ""
	}
	if c.Render != nil {
		return c.Render(value, e)
	}
	return text
}
