package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"sort"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sentinel errors for common HTTP error classes.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
)

// Error is a non-2xx response from the backend.
type Error struct {
	Status  int
	Code    string
	Message string
	// Fields holds per-field validation messages keyed by field name.
	Fields map[string]string
	Method string
	Path   string
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if len(e.Fields) > 0 {
		return fmt.Sprintf("api %s %s returned status %d: %s (%s)", e.Method, e.Path, e.Status, msg, e.fieldSummary())
	}
	return fmt.Sprintf("api %s %s returned status %d: %s", e.Method, e.Path, e.Status, msg)
}

// Unwrap maps the status onto the package sentinels so callers can use
// errors.Is.
func (e *Error) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrValidation
	}
	return nil
}

func (e *Error) fieldSummary() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + ": " + e.Fields[name]
	}
	return strings.Join(parts, "; ")
}

// errorEnvelope covers the error shapes the backend produces:
// {"error": {"code","message","fields"}} and {"message","errors"}.
type errorEnvelope struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Errors  json.RawMessage `json:"errors"`
}

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
}

type fieldIssue struct {
	Field   string `json:"field"`
	Issue   string `json:"issue"`
	Message string `json:"message"`
}

var textPolicy = bluemonday.StrictPolicy()

const maxErrorText = 200

func parseError(status int, method, path string, body []byte) *Error {
	apiErr := &Error{Status: status, Method: method, Path: path}

	var env errorEnvelope
	if json.Unmarshal(body, &env) == nil {
		var nested errorBody
		var text string
		switch {
		case len(env.Error) > 0 && json.Unmarshal(env.Error, &nested) == nil:
			apiErr.Code = nested.Code
			apiErr.Message = nested.Message
			apiErr.Fields = nested.Fields
		case len(env.Error) > 0 && json.Unmarshal(env.Error, &text) == nil:
			apiErr.Message = text
		}
		if apiErr.Message == "" {
			apiErr.Message = env.Message
		}
		if apiErr.Code == "" {
			apiErr.Code = env.Code
		}
		if len(apiErr.Fields) == 0 {
			apiErr.Fields = parseFieldErrors(env.Errors)
		}
		if apiErr.Message != "" || len(apiErr.Fields) > 0 {
			return apiErr
		}
	}

	apiErr.Message = plainText(body)
	return apiErr
}

func parseFieldErrors(raw json.RawMessage) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var byName map[string]any
	if json.Unmarshal(raw, &byName) == nil {
		out := make(map[string]string, len(byName))
		for name, v := range byName {
			switch msg := v.(type) {
			case string:
				out[name] = msg
			case []any:
				parts := make([]string, 0, len(msg))
				for _, m := range msg {
					parts = append(parts, fmt.Sprint(m))
				}
				out[name] = strings.Join(parts, ", ")
			default:
				out[name] = fmt.Sprint(msg)
			}
		}
		return out
	}
	var list []fieldIssue
	if json.Unmarshal(raw, &list) == nil {
		out := make(map[string]string, len(list))
		for _, item := range list {
			msg := item.Message
			if msg == "" {
				msg = item.Issue
			}
			out[item.Field] = msg
		}
		return out
	}
	return nil
}

// plainText reduces an arbitrary body (often an HTML error page from a proxy)
// to one short line.
func plainText(body []byte) string {
	text := html.UnescapeString(textPolicy.Sanitize(string(body)))
	text = strings.Join(strings.Fields(text), " ")
	if len([]rune(text)) > maxErrorText {
		text = string([]rune(text)[:maxErrorText-1]) + "…"
	}
	return text
}
