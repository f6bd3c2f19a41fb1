// Package entity holds the opaque JSON records returned by the backend and
// helpers for reading nested fields from them.
package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Entity is a backend record decoded from JSON. Numbers are kept as
// json.Number so quantities survive without float rounding.
type Entity map[string]any

// ID returns the record identifier as text, or "" when absent.
func (e Entity) ID() string {
	if e == nil {
		return ""
	}
	return Text(e["id"])
}

// Clone returns a deep copy. Nested objects and arrays are copied; scalar
// values are shared.
func (e Entity) Clone() Entity {
	if e == nil {
		return nil
	}
	return Entity(cloneMap(e))
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case Entity:
		return val.Clone()
	case []any:
		out := make([]any, len(val))
		for i, x := range val {
			out[i] = cloneValue(x)
		}
		return out
	default:
		return v
	}
}

// Lookup resolves a dotted path such as "Item.ItemGroup.name". Any missing or
// null segment yields (nil, false).
func Lookup(e Entity, path string) (any, bool) {
	if e == nil || path == "" {
		return nil, false
	}
	var cur any = map[string]any(e)
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok || next == nil {
				return nil, false
			}
			cur = next
		case Entity:
			next, ok := node[seg]
			if !ok || next == nil {
				return nil, false
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) || node[idx] == nil {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Text renders a resolved value as display text. nil becomes "".
func Text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case decimal.Decimal:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case time.Time:
		if val.IsZero() {
			return ""
		}
		return val.Format(time.DateOnly)
	case fmt.Stringer:
		return val.String()
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := Text(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		if name, ok := val["name"]; ok {
			return Text(name)
		}
		return ""
	default:
		return fmt.Sprint(val)
	}
}

// Decimal converts a resolved value to a decimal. Missing or unparsable
// values report ok=false.
func Decimal(v any) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return val, true
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(val), true
	case int:
		return decimal.NewFromInt(int64(val)), true
	case int64:
		return decimal.NewFromInt(val), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(val))
		return d, err == nil
	default:
		return decimal.Zero, false
	}
}

// DecimalAt resolves path and converts it, treating missing values as zero.
func DecimalAt(e Entity, path string) decimal.Decimal {
	v, _ := Lookup(e, path)
	d, _ := Decimal(v)
	return d
}

var timeLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", time.DateOnly}

// ParseTime interprets backend timestamp strings. The zero time means the
// value is not a timestamp.
func ParseTime(v any) time.Time {
	switch val := v.(type) {
	case time.Time:
		return val
	case string:
		s := strings.TrimSpace(val)
		if len(s) < len(time.DateOnly) || s[4] != '-' {
			return time.Time{}
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

// Items returns the nested array at path as entities, skipping non-objects.
func Items(e Entity, path string) []Entity {
	v, ok := Lookup(e, path)
	if !ok {
		return nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]Entity, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, Entity(m))
		}
	}
	return out
}

// Decode parses a JSON object into an Entity, keeping numbers exact.
func Decode(data []byte) (Entity, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var e Entity
	if err := dec.Decode(&e); err != nil {
		return nil, err
	}
	return e, nil
}

// Flatten returns every scalar leaf as a dotted key. Arrays are left under
// their own key so callers can render them separately.
func Flatten(e Entity) map[string]any {
	out := make(map[string]any)
	flattenInto(out, "", map[string]any(e))
	return out
}

func flattenInto(out map[string]any, prefix string, node map[string]any) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flattenInto(out, key, val)
		default:
			out[key] = val
		}
	}
}

// Set assigns value at a dotted path, creating intermediate objects.
func Set(e Entity, path string, value any) {
	segs := strings.Split(path, ".")
	node := map[string]any(e)
	for _, seg := range segs[:len(segs)-1] {
		next, ok := node[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			node[seg] = next
		}
		node = next
	}
	node[segs[len(segs)-1]] = value
}
