package column

import "slices"

// Set is an ordered list of columns for one screen.
type Set []Column

// Visible returns the columns that are not hidden.
func (s Set) Visible() Set {
	out := make(Set, 0, len(s))
	for _, c := range s {
		if !c.Hidden {
			out = append(out, c)
		}
	}
	return out
}

// Searchable returns columns that participate in free-text search.
func (s Set) Searchable() Set {
	out := make(Set, 0, len(s))
	for _, c := range s {
		if c.Searchable && c.Kind != KindAction {
			out = append(out, c)
		}
	}
	return out
}

// ByKey finds a column by key.
func (s Set) ByKey(key string) (Column, bool) {
	for _, c := range s {
		if c.Key == key {
			return c, true
		}
	}
	return Column{}, false
}

// Toggle returns a copy of the set with the named column's visibility flipped.
func (s Set) Toggle(key string) Set {
	out := slices.Clone(s)
	for i := range out {
		if out[i].Key == key {
			out[i].Hidden = !out[i].Hidden
		}
	}
	return out
}

// WithHidden returns a copy where exactly the listed keys are hidden. Keys
// not in the set are ignored; nil keeps the defaults.
func (s Set) WithHidden(keys []string) Set {
	out := slices.Clone(s)
	if keys == nil {
		return out
	}
	for i := range out {
		out[i].Hidden = slices.Contains(keys, out[i].Key)
	}
	return out
}

// HiddenKeys lists keys of hidden columns, for persisting preferences.
func (s Set) HiddenKeys() []string {
	var keys []string
	for _, c := range s {
		if c.Hidden {
			keys = append(keys, c.Key)
		}
	}
	return keys
}

// Labels returns header labels for the set.
func (s Set) Labels() []string {
	out := make([]string, len(s))
	for i, c := range s {
		out[i] = c.Label
	}
	return out
}
