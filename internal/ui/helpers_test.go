package ui

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-playground/assert/v2"

	"github.com/five82/depot/internal/column"
	"github.com/five82/depot/internal/filter"
	"github.com/five82/depot/internal/mutation"
	"github.com/five82/depot/internal/paging"
	"github.com/five82/depot/internal/tablectl"
)

func TestNextPageSize(t *testing.T) {
	tests := []struct {
		current, dir, want int
	}{
		{10, 1, 20},
		{20, -1, 10},
		{10, -1, 10},
		{100, 1, 100},
		{15, 1, 20},
		{15, -1, 10},
		{500, -1, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, nextPageSize(tt.current, tt.dir), tt.want)
	}
}

func TestRangeText(t *testing.T) {
	assert.Equal(t, rangeText(paging.Meta{}), "No results")
	assert.Equal(t, rangeText(paging.Meta{Total: 23, From: 11, To: 20}), "Showing 11 to 20 of 23")
}

func TestErrorBannerAndEmptyMessage(t *testing.T) {
	assert.Equal(t, errorBanner("Inventory"), "Error loading inventory - press r to retry")
	assert.Equal(t, emptyMessage(tablectl.View{}), "No records")
	assert.Equal(t, emptyMessage(tablectl.View{Total: 3}), "No results match the current search and filters")
}

func TestActiveConstraints(t *testing.T) {
	v := tablectl.View{
		Search:  " pump ",
		Filters: filter.State{"site": "North", "category": filter.All, "status": "Low Stock"},
	}
	assert.Equal(t, activeConstraints(v), []string{"/pump", "site=North", "status=Low Stock"})
}

func TestTableColumns_SortArrowAndWidths(t *testing.T) {
	v := tablectl.View{
		Columns: column.Set{
			{Key: "id", Label: "ID", Width: 6},
			{Key: "name", Label: "Name", Width: 8},
		},
		Cells:    [][]string{{"1", "Hydraulic Pump Assembly"}},
		SortKey:  "name",
		SortDesc: true,
	}
	cols := tableColumns(v)
	assert.Equal(t, cols[0].Title, "ID")
	assert.Equal(t, cols[0].Width, minColumnWidth)
	assert.Equal(t, cols[1].Title, "Name ▼")
	assert.Equal(t, cols[1].Width, 8)
}

func TestFormatAge(t *testing.T) {
	assert.Equal(t, formatAge(2*time.Second), "just now")
	assert.Equal(t, formatAge(42*time.Second), "42s ago")
	assert.Equal(t, formatAge(3*time.Minute), "3m ago")
	assert.Equal(t, formatAge(2*time.Hour), "2h ago")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, truncate("short", 10), "short")
	assert.Equal(t, truncate("Hydraulic", 7), "Hydr...")
	assert.Equal(t, truncate("abc", 0), "")
}

func TestHelpSections_CoverEveryGroup(t *testing.T) {
	sections := helpSections(DefaultKeyMap())
	assert.Equal(t, len(sections), len(helpTitles))
	for i, s := range sections {
		assert.Equal(t, s.title, helpTitles[i])
		if len(s.items) == 0 {
			t.Fatalf("section %s is empty", s.title)
		}
	}
}

func TestMutationErrorText(t *testing.T) {
	err := &mutation.Error{Message: "validation failed", Fields: map[string]string{"name": "is required", "gstin": "is invalid"}}
	assert.Equal(t, mutationErrorText(err), "validation failed: gstin is invalid; name is required")
	assert.Equal(t, mutationErrorText(errors.New("boom")), "boom")
}

func TestPicker_FuzzyAndSingleChoice(t *testing.T) {
	p := newPicker("Go to screen", pickScreen, []pickerItem{
		{label: "Inventory", value: "inventory"},
		{label: "Machines", value: "machines"},
		{label: "Maintenance", value: "maintenance"},
	})
	var modal Modal = p
	for _, r := range "mach" {
		modal, _, _ = modal.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}, DefaultKeyMap())
	}
	picked := modal.(*pickerModal)
	assert.Equal(t, picked.items[picked.matches[0]].value, "machines")

	_, cmd, closed := modal.Update(tea.KeyMsg{Type: tea.KeyEnter}, DefaultKeyMap())
	assert.Equal(t, closed, true)
	msg := cmd().(pickedMsg)
	assert.Equal(t, msg.purpose, pickScreen)
	assert.Equal(t, msg.values, []string{"machines"})
}

func TestPicker_MultiToggle(t *testing.T) {
	p := newPicker("Columns", pickColumns, []pickerItem{
		{label: "ID", value: "id", checked: true},
		{label: "Name", value: "name", checked: true},
	})
	p.multi = true
	var modal Modal = p
	modal, _, _ = modal.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}, DefaultKeyMap())
	_, cmd, closed := modal.Update(tea.KeyMsg{Type: tea.KeyEnter}, DefaultKeyMap())
	assert.Equal(t, closed, true)
	assert.Equal(t, cmd().(pickedMsg).values, []string{"name"})
}
