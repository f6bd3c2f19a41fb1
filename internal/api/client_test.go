package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestParseBaseURL_DefaultsAndNormalizes(t *testing.T) {
	u, err := parseBaseURL("")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.String() != defaultBaseURL {
		t.Fatalf("url = %q, want %q", u.String(), defaultBaseURL)
	}

	u, err = parseBaseURL("example.com:1234/api/?x=1#frag")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Scheme != "http" || u.Path != "/api" || u.RawQuery != "" || u.Fragment != "" {
		t.Fatalf("url not normalized: %q", u.String())
	}
}

func TestClient_CRUDRoundTrip(t *testing.T) {
	t.Parallel()

	var gotAuth, gotRequestID, gotContentType string
	var gotBody map[string]any
	var gotMethods []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethods = append(gotMethods, r.Method+" "+r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get(requestIDHeader)
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/vendors":
			_, _ = w.Write([]byte(`[{"id": 1, "name": "ABC", "credit": 12.50}]`))
		case r.Method == http.MethodGet && r.URL.Path == "/api/machines":
			_, _ = w.Write([]byte(`{"data": [{"id": 7}], "total": 1}`))
		case r.Method == http.MethodGet && r.URL.Path == "/api/vendors/1":
			_, _ = w.Write([]byte(`{"data": {"id": 1, "name": "ABC"}}`))
		case r.Method == http.MethodPost && r.URL.Path == "/api/vendors":
			gotContentType = r.Header.Get("Content-Type")
			data, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(data, &gotBody)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id": 2, "name": "New"}`))
		case r.Method == http.MethodPut && r.URL.Path == "/api/vendors/2":
			_, _ = w.Write([]byte(`{"id": 2, "name": "Renamed"}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/api/vendors/2":
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(Options{BaseURL: server.URL + "/api", Token: "tok"})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)

	rows, err := c.List(ctx, "vendors")
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(rows) != 1 || rows[0].ID() != "1" {
		t.Fatalf("List rows = %#v, want one row id=1", rows)
	}
	if n, ok := rows[0]["credit"].(json.Number); !ok || n.String() != "12.50" {
		t.Fatalf("credit = %#v, want json.Number 12.50", rows[0]["credit"])
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("Authorization = %q, want Bearer tok", gotAuth)
	}
	if gotRequestID == "" {
		t.Fatalf("missing %s header", requestIDHeader)
	}

	machines, err := c.List(ctx, "machines")
	if err != nil || len(machines) != 1 || machines[0].ID() != "7" {
		t.Fatalf("List envelope = %#v, %v; want one machine id=7", machines, err)
	}

	one, err := c.Get(ctx, "vendors", "1")
	if err != nil || one["name"] != "ABC" {
		t.Fatalf("Get = %#v, %v; want name ABC", one, err)
	}

	created, err := c.Create(ctx, "vendors", map[string]any{"name": "New"})
	if err != nil || created.ID() != "2" {
		t.Fatalf("Create = %#v, %v; want id 2", created, err)
	}
	if gotContentType != "application/json" || gotBody["name"] != "New" {
		t.Fatalf("Create sent content-type %q body %#v", gotContentType, gotBody)
	}

	updated, err := c.Update(ctx, "vendors", "2", map[string]any{"name": "Renamed"})
	if err != nil || updated["name"] != "Renamed" {
		t.Fatalf("Update = %#v, %v", updated, err)
	}

	if err := c.Delete(ctx, "vendors", "2"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if len(gotMethods) != 6 {
		t.Fatalf("requests = %v, want 6", gotMethods)
	}
}

func TestClient_StructuredErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/vendors/9":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error": {"code": "not_found", "message": "vendor 9 not found"}}`))
		case "/vendors":
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"message": "invalid vendor", "errors": [{"field": "name", "issue": "required"}]}`))
		case "/machines":
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`<html><head><title>502 Bad Gateway</title></head><body><h1>Bad &amp; Gateway</h1></body></html>`))
		case "/users":
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error": "not allowed"}`))
		default:
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte("{not-json"))
		}
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(Options{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	ctx := context.Background()

	err = c.Delete(ctx, "vendors", "9")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete error = %v, want ErrNotFound", err)
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Code != "not_found" || apiErr.Message != "vendor 9 not found" {
		t.Fatalf("Delete error = %#v, want structured not_found", err)
	}

	_, err = c.Create(ctx, "vendors", map[string]any{})
	if !errors.As(err, &apiErr) || apiErr.Fields["name"] != "required" || !errors.Is(err, ErrValidation) {
		t.Fatalf("Create error = %#v, want field error name=required", err)
	}

	_, err = c.List(ctx, "machines")
	if !errors.As(err, &apiErr) || strings.Contains(apiErr.Message, "<") || !strings.Contains(apiErr.Message, "Bad & Gateway") {
		t.Fatalf("List error message = %q, want html stripped", apiErr.Message)
	}

	_, err = c.List(ctx, "users")
	if !errors.Is(err, ErrForbidden) || !strings.Contains(err.Error(), "not allowed") {
		t.Fatalf("List users error = %v, want forbidden not allowed", err)
	}

	_, err = c.List(ctx, "logbook")
	if err == nil || !strings.Contains(err.Error(), "decode response") {
		t.Fatalf("List logbook error = %v, want decode response error", err)
	}
}

func TestClient_RequiresID(t *testing.T) {
	c, err := NewClient(Options{BaseURL: "127.0.0.1:1"})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if err := c.Delete(context.Background(), "vendors", " "); err == nil {
		t.Fatalf("Delete returned nil error, want error")
	}
	if _, err := c.Get(context.Background(), "vendors", ""); err == nil {
		t.Fatalf("Get returned nil error, want error")
	}
}

func TestAsEntity_UnwrapsOnlyEnvelopes(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		wantID string
		want   string
	}{
		{"bare record", `{"id": 3, "name": "Pump"}`, "3", "Pump"},
		{"data envelope", `{"data": {"id": 4, "name": "Drill"}}`, "4", "Drill"},
		{"envelope with message", `{"message": "created", "data": {"id": 5, "name": "Saw"}}`, "5", "Saw"},
		{"record with data field", `{"id": 7, "data": {"note": "x"}}`, "7", ""},
		{"record with other fields", `{"name": "Lathe", "data": {"id": 9}}`, "", "Lathe"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var payload any
			if err := json.Unmarshal([]byte(tc.body), &payload); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			got, err := asEntity(payload)
			if err != nil {
				t.Fatalf("asEntity returned error: %v", err)
			}
			if got.ID() != tc.wantID {
				t.Fatalf("id = %q, want %q", got.ID(), tc.wantID)
			}
			if name, _ := got["name"].(string); name != tc.want {
				t.Fatalf("name = %q, want %q", name, tc.want)
			}
		})
	}
}
