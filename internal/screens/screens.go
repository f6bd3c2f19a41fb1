// Package screens declares every list screen: its endpoint, columns,
// filters, summary figures, form fields and the other collections a write
// to it invalidates.
package screens

import (
	"slices"
	"sort"
	"strings"

	"github.com/five82/depot/internal/auth"
	"github.com/five82/depot/internal/collection"
	"github.com/five82/depot/internal/column"
	"github.com/five82/depot/internal/entity"
	"github.com/five82/depot/internal/filter"
	"github.com/five82/depot/internal/tablectl"
)

// ActionsKey is the key of the role-gated actions column.
const ActionsKey = "actions"

// FieldKind selects the input used for a form field.
type FieldKind int

const (
	FieldText FieldKind = iota
	FieldNumber
	FieldDate
	FieldSelect
)

// FormField is one input of the create/update form. Key is a dotted path
// into the request payload.
type FormField struct {
	Key      string
	Label    string
	Kind     FieldKind
	Options  []string
	Required bool
}

// Screen is the static description of one resource.
type Screen struct {
	Resource    string
	Title       string
	Description string
	Columns     column.Set
	Filters     []filter.Filter
	DefaultSort string
	Summary     func(rows []entity.Entity) []tablectl.Stat
	Form        []FormField
	// Depends lists other collections changed by writes to this resource.
	Depends []collection.Key
}

// Actions lists the row actions role may use on this screen.
func (s Screen) Actions(role auth.Role) []string {
	var out []string
	if role.CanEdit() {
		out = append(out, "edit")
	}
	if role.CanDelete() {
		out = append(out, "delete")
	}
	return out
}

// ColumnsFor returns the screen's columns plus an actions column when role
// has any actions.
func (s Screen) ColumnsFor(role auth.Role) column.Set {
	cols := slices.Clone(s.Columns)
	actions := s.Actions(role)
	if len(actions) == 0 {
		return cols
	}
	label := strings.Join(actions, " · ")
	return append(cols, column.Action(ActionsKey, "Actions", func(any, entity.Entity) string {
		return label
	}).WithWidth(len(label)+2))
}

// titleFields are tried in order when naming a record.
var titleFields = []string{"name", "orderNumber", "requisitionNumber", "issueNumber", "Machine.name", "Item.name"}

// RecordTitle names a record by its most descriptive field, falling back to
// the screen title and id.
func (s Screen) RecordTitle(e entity.Entity) string {
	for _, k := range titleFields {
		if v, ok := entity.Lookup(e, k); ok {
			if t := strings.TrimSpace(entity.Text(v)); t != "" {
				return t
			}
		}
	}
	return s.Title + " #" + e.ID()
}

// TableConfig builds the controller configuration for role.
func (s Screen) TableConfig(role auth.Role, pageSize int, hidden []string) tablectl.Config {
	return tablectl.Config{
		Resource:    s.Resource,
		Columns:     s.ColumnsFor(role),
		Filters:     s.Filters,
		PageSize:    pageSize,
		Hidden:      hidden,
		DefaultSort: s.DefaultSort,
		Summary:     s.Summary,
	}
}

var registry = map[string]Screen{}

func register(s Screen) {
	if _, dup := registry[s.Resource]; dup {
		panic("screens: duplicate resource " + s.Resource)
	}
	registry[s.Resource] = s
}

// order is the navigation order of the screens.
var order = []string{
	"inventory",
	"machines",
	"logbook",
	"maintenance",
	"requisitions",
	"issues",
	"procurement",
	"vendors",
	"users",
}

// All returns every screen in navigation order.
func All() []Screen {
	out := make([]Screen, 0, len(registry))
	seen := map[string]bool{}
	for _, name := range order {
		if s, ok := registry[name]; ok {
			out = append(out, s)
			seen[name] = true
		}
	}
	var rest []string
	for name := range registry {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		out = append(out, registry[name])
	}
	return out
}

// Names returns resource names in navigation order.
func Names() []string {
	all := All()
	out := make([]string, len(all))
	for i, s := range all {
		out[i] = s.Resource
	}
	return out
}

// Lookup finds a screen by resource name or title, case-insensitively.
func Lookup(name string) (Screen, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if s, ok := registry[name]; ok {
		return s, true
	}
	for _, s := range registry {
		if strings.EqualFold(s.Title, name) {
			return s, true
		}
	}
	return Screen{}, false
}

// Dependencies maps each resource to the keys it invalidates, for
// mutation.Coordinator.Declare.
func Dependencies() map[string][]collection.Key {
	out := make(map[string][]collection.Key)
	for _, s := range All() {
		if len(s.Depends) > 0 {
			out[s.Resource] = slices.Clone(s.Depends)
		}
	}
	return out
}

func stat(label string, value string) tablectl.Stat {
	return tablectl.Stat{Label: label, Value: value}
}

func dateRender(v any, _ entity.Entity) string {
	if t := entity.ParseTime(v); !t.IsZero() {
		return t.Format("2006-01-02")
	}
	return entity.Text(v)
}

// dateField is a date column that renders blank rather than the placeholder.
func dateField(key, label, path string) column.Column {
	return column.Field(key, label, path).WithRender(dateRender).NoPlaceholder()
}

func boolRender(v any, _ entity.Entity) string {
	switch val := v.(type) {
	case bool:
		if val {
			return "Yes"
		}
		return "No"
	case nil:
		return ""
	}
	return entity.Text(v)
}
