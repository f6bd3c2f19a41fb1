package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-playground/assert/v2"

	"github.com/five82/depot/internal/api"
	"github.com/five82/depot/internal/auth"
	"github.com/five82/depot/internal/collection"
	"github.com/five82/depot/internal/entity"
	"github.com/five82/depot/internal/screens"
)

type fakeBackend struct {
	rows map[string][]entity.Entity
}

func (f *fakeBackend) List(_ context.Context, resource string) ([]entity.Entity, error) {
	rows, ok := f.rows[resource]
	if !ok {
		return nil, api.ErrNotFound
	}
	return rows, nil
}

func (f *fakeBackend) Get(_ context.Context, resource, id string) (entity.Entity, error) {
	for _, r := range f.rows[resource] {
		if r.ID() == id {
			return r, nil
		}
	}
	return nil, api.ErrNotFound
}

func (f *fakeBackend) Create(context.Context, string, any) (entity.Entity, error) {
	return entity.Entity{"id": json.Number("99")}, nil
}

func (f *fakeBackend) Update(_ context.Context, resource, id string, _ any) (entity.Entity, error) {
	return f.Get(context.Background(), resource, id)
}

func (f *fakeBackend) Delete(context.Context, string, string) error { return nil }

func stockRows(n int) []entity.Entity {
	rows := make([]entity.Entity, n)
	for i := range rows {
		rows[i] = entity.Entity{
			"id":             json.Number(fmt.Sprint(i + 1)),
			"quantity":       json.Number("10"),
			"lockedQuantity": json.Number("0"),
			"Item":           map[string]any{"name": fmt.Sprintf("Item %02d", i+1)},
			"Site":           map[string]any{"name": "North"},
		}
	}
	return rows
}

func newTestModel(t *testing.T, role auth.Role) Model {
	t.Helper()
	backend := &fakeBackend{rows: map[string][]entity.Entity{"inventory": stockRows(23)}}
	lists := collection.NewListStore(backend, collection.Options[[]entity.Entity]{})
	details := collection.NewDetailStore(backend, collection.Options[entity.Entity]{})
	t.Cleanup(func() {
		lists.Close()
		details.Close()
	})
	if _, err := lists.Refetch(context.Background(), collection.ListKey("inventory")); err != nil {
		t.Fatalf("Refetch: %v", err)
	}
	m := New(Options{Lists: lists, Details: details, Role: role, PageSize: 10, Screen: "inventory"})
	t.Cleanup(m.shutdown)
	return send(m, tea.WindowSizeMsg{Width: 120, Height: 40})
}

func send(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

func press(m Model, keys string) Model {
	for _, r := range keys {
		m = send(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func TestModel_PagingKeys(t *testing.T) {
	m := newTestModel(t, auth.RoleViewer)
	assert.Equal(t, m.view.Page.PageIndex, 0)
	assert.Equal(t, len(m.view.Rows), 10)

	m = press(m, "]")
	assert.Equal(t, m.view.Page.PageIndex, 1)
	m = press(m, "]]")
	assert.Equal(t, m.view.Page.PageIndex, 2)
	assert.Equal(t, len(m.view.Rows), 3)

	m = press(m, "+")
	assert.Equal(t, m.view.Page.PageSize, 20)
	assert.Equal(t, m.view.Page.PageIndex, 0)
	assert.Equal(t, m.prefs.Screen("inventory").PageSize, 20)
}

func TestModel_SearchFiltersAsYouType(t *testing.T) {
	m := newTestModel(t, auth.RoleViewer)
	m = press(m, "/")
	assert.Equal(t, m.searching, true)

	m = press(m, "item 2")
	assert.Equal(t, m.view.Search, "item 2")
	assert.Equal(t, m.view.Page.Total, 4)

	m = send(m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, m.searching, false)
	assert.Equal(t, m.view.Search, "item 2")

	m = send(m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, m.view.Search, "")
	assert.Equal(t, m.view.Page.Total, 23)
}

func TestModel_ViewerCannotWrite(t *testing.T) {
	m := newTestModel(t, auth.RoleViewer)
	m = press(m, "n")
	if m.form != nil {
		t.Fatalf("viewer opened a create form")
	}
	assert.Equal(t, len(m.toasts), 1)
	if !strings.Contains(m.toasts[0].text, "cannot create") {
		t.Fatalf("toast = %q", m.toasts[0].text)
	}

	m = press(m, "d")
	if m.form != nil {
		t.Fatalf("viewer opened a delete confirmation")
	}
}

func TestModel_EditorOpensForms(t *testing.T) {
	m := newTestModel(t, auth.RoleStorekeeper)
	m = press(m, "e")
	if m.form == nil || m.form.state == nil {
		t.Fatalf("edit form not opened")
	}
	if !strings.HasPrefix(m.form.title, "Edit") {
		t.Fatalf("title = %q", m.form.title)
	}
	m = send(m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.form != nil {
		t.Fatalf("esc did not close the form")
	}

	m = press(m, "d")
	if m.form != nil {
		t.Fatalf("storekeeper opened a delete confirmation")
	}
}

func TestModel_ScreenSwitchKeepsState(t *testing.T) {
	m := newTestModel(t, auth.RoleViewer)
	m = press(m, "]")
	m = send(m, tea.KeyMsg{Type: tea.KeyTab})
	if m.screens[m.current].Resource == "inventory" {
		t.Fatalf("tab did not switch screens")
	}
	m = send(m, tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, m.screens[m.current].Resource, "inventory")
	assert.Equal(t, m.view.Page.PageIndex, 1)
}

func TestModel_OpenDetailShowsRecord(t *testing.T) {
	m := newTestModel(t, auth.RoleViewer)
	m = send(m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, m.showDetail, true)
	assert.Equal(t, m.detailKey, collection.DetailKey("inventory", m.view.Rows[0].ID()))
	assert.Equal(t, m.detailStatus(), screens.StatusInStock)

	m = send(m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, m.showDetail, false)
}
