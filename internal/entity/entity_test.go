package entity

import (
	"encoding/json"
	"testing"
	"time"
)

func TestLookup_NestedAndMissing(t *testing.T) {
	e, err := Decode([]byte(`{"id": 4, "Item": {"ItemGroup": {"name": "Filters"}}, "tags": ["a", null], "Site": null}`))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}

	cases := []struct {
		path string
		want any
		ok   bool
	}{
		{"Item.ItemGroup.name", "Filters", true},
		{"Item.Missing.name", nil, false},
		{"Site.name", nil, false},
		{"tags.0", "a", true},
		{"tags.1", nil, false},
		{"tags.9", nil, false},
		{"id.deeper", nil, false},
		{"", nil, false},
	}
	for _, tc := range cases {
		got, ok := Lookup(e, tc.path)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("Lookup(%q) = %v, %v; want %v, %v", tc.path, got, ok, tc.want, tc.ok)
		}
	}
	if _, ok := Lookup(nil, "id"); ok {
		t.Fatalf("Lookup on nil entity reported ok")
	}
	if e.ID() != "4" {
		t.Fatalf("ID() = %q, want 4", e.ID())
	}
}

func TestText(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"x", "x"},
		{json.Number("12.50"), "12.50"},
		{true, "true"},
		{float64(2.5), "2.5"},
		{time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC), "2024-03-09"},
		{[]any{"a", nil, "b"}, "a, b"},
		{map[string]any{"name": "Depot"}, "Depot"},
		{map[string]any{"id": 1}, ""},
	}
	for _, tc := range cases {
		if got := Text(tc.in); got != tc.want {
			t.Fatalf("Text(%#v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDecimalAt_ExactAndMissing(t *testing.T) {
	e := Entity{"qty": json.Number("0.1"), "locked": "0.2", "bad": "abc"}
	sum := DecimalAt(e, "qty").Add(DecimalAt(e, "locked"))
	if sum.String() != "0.3" {
		t.Fatalf("sum = %s, want 0.3", sum)
	}
	if !DecimalAt(e, "missing").IsZero() || !DecimalAt(e, "bad").IsZero() {
		t.Fatalf("missing or invalid values should be zero")
	}
	if _, ok := Decimal("abc"); ok {
		t.Fatalf("Decimal(\"abc\") reported ok")
	}
}

func TestParseTime(t *testing.T) {
	if got := ParseTime("2024-05-01T08:30:00Z"); got.IsZero() || got.Hour() != 8 {
		t.Fatalf("ParseTime RFC3339 = %v", got)
	}
	if got := ParseTime("2024-05-01"); got.IsZero() || got.Day() != 1 {
		t.Fatalf("ParseTime date = %v", got)
	}
	for _, s := range []string{"ABC Supplies", "12345-67", "", "2024"} {
		if !ParseTime(s).IsZero() {
			t.Fatalf("ParseTime(%q) should be zero", s)
		}
	}
}

func TestItemsFlattenSet(t *testing.T) {
	e := Entity{"items": []any{map[string]any{"qty": 1}, "junk", map[string]any{"qty": 2}}}
	if got := len(Items(e, "items")); got != 2 {
		t.Fatalf("Items len = %d, want 2", got)
	}

	out := Entity{}
	Set(out, "Vendor.name", "ABC")
	Set(out, "Vendor.code", "V1")
	Set(out, "note", "x")
	flat := Flatten(out)
	if flat["Vendor.name"] != "ABC" || flat["Vendor.code"] != "V1" || flat["note"] != "x" || len(flat) != 3 {
		t.Fatalf("Flatten = %#v", flat)
	}
}

func TestClone_Deep(t *testing.T) {
	orig := Entity{"id": "1", "Item": map[string]any{"name": "Filter"}, "items": []any{map[string]any{"qty": 1}}}
	cp := orig.Clone()
	cp["id"] = "2"
	cp["Item"].(map[string]any)["name"] = "Pump"
	cp["items"].([]any)[0].(map[string]any)["qty"] = 9

	if orig.ID() != "1" {
		t.Fatalf("id changed to %q", orig.ID())
	}
	if v, _ := Lookup(orig, "Item.name"); v != "Filter" {
		t.Fatalf("Item.name = %v, want Filter", v)
	}
	if q := Items(orig, "items")[0]["qty"]; q != 1 {
		t.Fatalf("items[0].qty = %v, want 1", q)
	}
	if Entity(nil).Clone() != nil {
		t.Fatalf("Clone of nil should be nil")
	}
}
