package forms

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/five82/depot/internal/entity"
	"github.com/five82/depot/internal/screens"
)

func screenNamed(t *testing.T, name string) screens.Screen {
	t.Helper()
	s, ok := screens.Lookup(name)
	if !ok {
		t.Fatalf("no screen %s", name)
	}
	return s
}

func TestCreate_PayloadCoercesAndSkipsBlank(t *testing.T) {
	st := NewCreate(screenNamed(t, "issues"))
	assert.Equal(t, st.Title(), "New Issues")

	st.SetValue("issueNumber", " ISS-9 ")
	st.SetValue("date", "2026-10-01")
	st.SetValue("itemId", "2")
	st.SetValue("siteId", "1")
	st.SetValue("quantity", "5.50")

	payload, err := st.Payload()
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	assert.Equal(t, payload["issueNumber"], "ISS-9")
	assert.Equal(t, payload["quantity"], json.Number("5.5"))
	assert.Equal(t, payload["itemId"], json.Number("2"))
	if _, ok := payload["issuedTo"]; ok {
		t.Fatalf("blank optional field sent: %v", payload)
	}
}

func TestCreate_ReportsFieldErrors(t *testing.T) {
	st := NewCreate(screenNamed(t, "issues"))
	st.SetValue("date", "01/10/2026")
	st.SetValue("quantity", "lots")

	_, err := st.Payload()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	assert.Equal(t, verr.Fields["issueNumber"], "is required")
	assert.Equal(t, verr.Fields["date"], errNotDate.Error())
	assert.Equal(t, verr.Fields["quantity"], errNotNumber.Error())
}

func TestEdit_SendsOnlyChanges(t *testing.T) {
	e, err := entity.Decode([]byte(`{"id": 4, "name": "EX-140 Volvo", "status": "Idle", "purchaseDate": "2024-03-01T00:00:00Z", "address": {"city": "Pune"}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	st := NewEdit(screenNamed(t, "machines"), e)
	assert.Equal(t, st.ID, "4")
	assert.Equal(t, st.Value("purchaseDate"), "2024-03-01")

	if _, err := st.Payload(); !errors.Is(err, ErrNothingChanged) {
		t.Fatalf("err = %v, want ErrNothingChanged", err)
	}

	st.SetValue("status", "Active")
	st.SetValue("make", "Volvo")
	payload, err := st.Payload()
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	assert.Equal(t, len(payload), 2)
	assert.Equal(t, payload["status"], "Active")

	st.SetValue("name", "")
	if _, err := st.Payload(); err == nil {
		t.Fatalf("blanking a required field should fail")
	}
}

func TestEdit_NestedKey(t *testing.T) {
	e := entity.Entity{"id": "1", "name": "ABC", "address": map[string]any{"city": "Pune"}}
	st := NewEdit(screenNamed(t, "vendors"), e)
	assert.Equal(t, st.Value("address.city"), "Pune")

	st.SetValue("address.city", "Nashik")
	payload, err := st.Payload()
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	city, _ := entity.Lookup(payload, "address.city")
	assert.Equal(t, city, "Nashik")
}

func TestParseAssignments(t *testing.T) {
	s := screenNamed(t, "machines")

	payload, err := ParseAssignments(s, []string{"name=Loader 2", "siteId=3", "status=Active", "notes.extra=x=y"})
	if err != nil {
		t.Fatalf("ParseAssignments: %v", err)
	}
	assert.Equal(t, payload["name"], "Loader 2")
	assert.Equal(t, payload["siteId"], json.Number("3"))
	extra, _ := entity.Lookup(payload, "notes.extra")
	assert.Equal(t, extra, "x=y")

	if _, err := ParseAssignments(s, []string{"status=Flying"}); err == nil {
		t.Fatalf("expected select validation error")
	}
	if _, err := ParseAssignments(s, []string{"=oops"}); err == nil {
		t.Fatalf("expected malformed assignment error")
	}
}

func TestMissingRequired(t *testing.T) {
	s := screenNamed(t, "inventory")
	missing := MissingRequired(s, map[string]any{"itemId": json.Number("1"), "quantity": ""})
	assert.Equal(t, missing, []string{"siteId", "quantity"})
}
