package column

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/five82/depot/internal/entity"
)

// value ranks; nil is handled separately so it always lands last.
const (
	rankNumber = iota
	rankTime
	rankBool
	rankString
)

type sortKey struct {
	null bool
	rank int
	num  decimal.Decimal
	at   time.Time
	flag bool
	text string
}

func keyOf(v any) sortKey {
	if v == nil {
		return sortKey{null: true}
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return sortKey{null: true}
	}
	if t := entity.ParseTime(v); !t.IsZero() {
		return sortKey{rank: rankTime, at: t}
	}
	switch val := v.(type) {
	case bool:
		return sortKey{rank: rankBool, flag: val}
	case string:
		// Backends often send DECIMAL columns as strings.
		if d, ok := entity.Decimal(val); ok {
			return sortKey{rank: rankNumber, num: d}
		}
		return sortKey{rank: rankString, text: val}
	}
	if d, ok := entity.Decimal(v); ok {
		return sortKey{rank: rankNumber, num: d}
	}
	return sortKey{rank: rankString, text: entity.Text(v)}
}

// Compare orders two resolved values of any type. Values of different kinds
// order by kind (numbers, times, booleans, strings). nil and blank strings
// compare greater than everything else.
func Compare(a, b any) int {
	return compareKeys(keyOf(a), keyOf(b))
}

func compareKeys(ka, kb sortKey) int {
	switch {
	case ka.null && kb.null:
		return 0
	case ka.null:
		return 1
	case kb.null:
		return -1
	}
	if ka.rank != kb.rank {
		return cmp.Compare(ka.rank, kb.rank)
	}
	switch ka.rank {
	case rankNumber:
		return ka.num.Cmp(kb.num)
	case rankTime:
		return ka.at.Compare(kb.at)
	case rankBool:
		switch {
		case ka.flag == kb.flag:
			return 0
		case !ka.flag:
			return -1
		default:
			return 1
		}
	default:
		if c := strings.Compare(strings.ToLower(ka.text), strings.ToLower(kb.text)); c != 0 {
			return c
		}
		return strings.Compare(ka.text, kb.text)
	}
}

// Sort returns a stably sorted copy of rows ordered by the column. Nulls stay
// last in both directions. The input slice is never reordered.
func Sort(rows []entity.Entity, c Column, desc bool) []entity.Entity {
	type keyed struct {
		row entity.Entity
		key sortKey
	}
	tmp := make([]keyed, len(rows))
	for i, r := range rows {
		tmp[i] = keyed{row: r, key: keyOf(Resolve(r, c))}
	}
	slices.SortStableFunc(tmp, func(a, b keyed) int {
		if a.key.null || b.key.null {
			return compareKeys(a.key, b.key)
		}
		res := compareKeys(a.key, b.key)
		if desc {
			return -res
		}
		return res
	})
	out := make([]entity.Entity, len(tmp))
	for i, k := range tmp {
		out[i] = k.row
	}
	return out
}
