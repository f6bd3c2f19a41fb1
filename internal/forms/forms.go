// Package forms builds create and edit forms for a screen and turns the
// entered text into a request payload. The same field rules back the
// interactive huh forms and the --set flags of the CLI.
package forms

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/shopspring/decimal"

	"github.com/five82/depot/internal/entity"
	"github.com/five82/depot/internal/screens"
)

// Mode is whether a form creates or edits a record.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

var (
	errRequired  = errors.New("is required")
	errNotNumber = errors.New("must be a number")
	errNotDate   = errors.New("must be a date (YYYY-MM-DD)")
)

// ErrNothingChanged is returned by Payload for an edit that changes no field.
var ErrNothingChanged = errors.New("nothing changed")

// State holds one open form and the values bound to its inputs.
type State struct {
	Mode   Mode
	Screen screens.Screen
	// ID is the record being edited.
	ID   string
	Form *huh.Form

	values  map[string]*string
	initial map[string]string
}

// NewCreate opens an empty form for screen.
func NewCreate(s screens.Screen) *State {
	st := &State{Mode: ModeCreate, Screen: s}
	st.bind(nil)
	return st
}

// NewEdit opens a form pre-filled from e.
func NewEdit(s screens.Screen, e entity.Entity) *State {
	st := &State{Mode: ModeEdit, Screen: s, ID: e.ID()}
	st.bind(e)
	return st
}

func (st *State) bind(e entity.Entity) {
	st.values = make(map[string]*string, len(st.Screen.Form))
	st.initial = make(map[string]string, len(st.Screen.Form))
	for _, f := range st.Screen.Form {
		v := ""
		if e != nil {
			v = initialValue(f, e)
		}
		st.initial[f.Key] = v
		st.values[f.Key] = &v
	}
	st.buildForm()
}

func initialValue(f screens.FormField, e entity.Entity) string {
	raw, ok := entity.Lookup(e, f.Key)
	if !ok {
		return ""
	}
	if f.Kind == screens.FieldDate {
		if t := entity.ParseTime(raw); !t.IsZero() {
			return t.Format(time.DateOnly)
		}
	}
	return entity.Text(raw)
}

// Title is the heading shown above the form.
func (st *State) Title() string {
	if st.Mode == ModeEdit {
		return fmt.Sprintf("Edit %s #%s", st.Screen.Title, st.ID)
	}
	return "New " + st.Screen.Title
}

func (st *State) buildForm() {
	fields := make([]huh.Field, 0, len(st.Screen.Form))
	for _, f := range st.Screen.Form {
		label := f.Label
		if f.Required {
			label += " *"
		}
		switch f.Kind {
		case screens.FieldSelect:
			opts := huh.NewOptions(f.Options...)
			if !f.Required {
				opts = append([]huh.Option[string]{huh.NewOption("(none)", "")}, opts...)
			}
			fields = append(fields, huh.NewSelect[string]().
				Title(label).
				Options(opts...).
				Value(st.values[f.Key]).
				Validate(func(s string) error { return fieldError(f, s) }))
		default:
			in := huh.NewInput().
				Title(label).
				Value(st.values[f.Key]).
				Validate(func(s string) error { return fieldError(f, s) })
			switch f.Kind {
			case screens.FieldNumber:
				in = in.Placeholder("0")
			case screens.FieldDate:
				in = in.Placeholder(time.DateOnly)
			}
			fields = append(fields, in)
		}
	}
	st.Form = huh.NewForm(huh.NewGroup(fields...).Title(st.Title())).
		WithTheme(huh.ThemeDracula()).
		WithShowHelp(true)
}

// Value returns the current text of field key.
func (st *State) Value(key string) string {
	if p, ok := st.values[key]; ok {
		return *p
	}
	return ""
}

// SetValue overwrites the text of field key, as if typed.
func (st *State) SetValue(key, v string) {
	if p, ok := st.values[key]; ok {
		*p = v
	}
}

// Payload validates every field and builds the request body. Creates carry
// every non-blank field; edits carry only fields that changed.
func (st *State) Payload() (map[string]any, error) {
	out := entity.Entity{}
	fieldErrs := map[string]string{}
	for _, f := range st.Screen.Form {
		v := strings.TrimSpace(st.Value(f.Key))
		if st.Mode == ModeEdit && v == strings.TrimSpace(st.initial[f.Key]) {
			continue
		}
		if err := fieldError(f, v); err != nil {
			fieldErrs[f.Key] = err.Error()
			continue
		}
		if v == "" && st.Mode == ModeCreate {
			continue
		}
		val, err := Coerce(f, v)
		if err != nil {
			fieldErrs[f.Key] = err.Error()
			continue
		}
		entity.Set(out, f.Key, val)
	}
	if len(fieldErrs) > 0 {
		return nil, &ValidationError{Fields: fieldErrs}
	}
	if st.Mode == ModeEdit && len(out) == 0 {
		return nil, ErrNothingChanged
	}
	return out, nil
}

// ValidationError lists the fields that failed local checks.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + " " + e.Fields[k]
	}
	return strings.Join(parts, "; ")
}

func fieldError(f screens.FormField, s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		if f.Required {
			return errRequired
		}
		return nil
	}
	switch f.Kind {
	case screens.FieldNumber:
		if _, err := decimal.NewFromString(s); err != nil {
			return errNotNumber
		}
	case screens.FieldDate:
		if _, err := time.Parse(time.DateOnly, s); err != nil {
			return errNotDate
		}
	case screens.FieldSelect:
		if !slices.Contains(f.Options, s) {
			return fmt.Errorf("must be one of %s", strings.Join(f.Options, ", "))
		}
	}
	return nil
}

// Coerce converts entered text to the JSON value for f. Numbers become
// json.Number so they are sent exactly as typed; blank optional fields
// become null.
func Coerce(f screens.FormField, s string) (any, error) {
	s = strings.TrimSpace(s)
	if err := fieldError(f, s); err != nil {
		return nil, err
	}
	if s == "" {
		return nil, nil
	}
	if f.Kind == screens.FieldNumber {
		d, _ := decimal.NewFromString(s)
		return json.Number(d.String()), nil
	}
	return s, nil
}

// ParseAssignments turns --set key=value pairs into a payload. Keys that
// match a form field are checked and coerced like form input; other keys
// are sent as strings. Dotted keys build nested objects.
func ParseAssignments(s screens.Screen, pairs []string) (map[string]any, error) {
	out := entity.Entity{}
	fieldErrs := map[string]string{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q (want key=value)", pair)
		}
		f, known := field(s, key)
		if !known {
			entity.Set(out, key, value)
			continue
		}
		v, err := Coerce(f, value)
		if err != nil {
			fieldErrs[key] = err.Error()
			continue
		}
		entity.Set(out, key, v)
	}
	if len(fieldErrs) > 0 {
		return nil, &ValidationError{Fields: fieldErrs}
	}
	return out, nil
}

// MissingRequired lists required fields absent from payload.
func MissingRequired(s screens.Screen, payload map[string]any) []string {
	var missing []string
	for _, f := range s.Form {
		if !f.Required {
			continue
		}
		v, ok := entity.Lookup(payload, f.Key)
		if !ok || strings.TrimSpace(entity.Text(v)) == "" {
			missing = append(missing, f.Key)
		}
	}
	return missing
}

func field(s screens.Screen, key string) (screens.FormField, bool) {
	for _, f := range s.Form {
		if f.Key == key {
			return f, true
		}
	}
	return screens.FormField{}, false
}

// Confirm builds a yes/no form bound to value, used before deletes.
func Confirm(title, description string, value *bool) *huh.Form {
	return huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Description(description).
			Affirmative("Delete").
			Negative("Cancel").
			Value(value),
	)).WithTheme(huh.ThemeDracula())
}
