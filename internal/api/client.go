package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/five82/depot/internal/entity"
)

// Backend defines the REST operations depot needs. It is implemented by
// *Client and can be faked in tests.
type Backend interface {
	List(ctx context.Context, resource string) ([]entity.Entity, error)
	Get(ctx context.Context, resource, id string) (entity.Entity, error)
	Create(ctx context.Context, resource string, payload any) (entity.Entity, error)
	Update(ctx context.Context, resource, id string, payload any) (entity.Entity, error)
	Delete(ctx context.Context, resource, id string) error
}

// Ensure Client implements Backend at compile time.
var _ Backend = (*Client)(nil)

// Client talks to the fleet management REST API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	token     string
	userAgent string
	logger    *slog.Logger
}

const (
	defaultBaseURL   = "http://127.0.0.1:8080/api"
	defaultUserAgent = "depot/0.1"
	defaultTimeout   = 10 * time.Second
	requestIDHeader  = "X-Request-ID"
)

// Options configure a Client.
type Options struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Logger  *slog.Logger
	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client
}

// NewClient builds a Client for the API rooted at opts.BaseURL.
func NewClient(opts Options) (*Client, error) {
	base, err := parseBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		baseURL:   base,
		http:      httpClient,
		token:     strings.TrimSpace(opts.Token),
		userAgent: defaultUserAgent,
		logger:    logger,
	}, nil
}

// BaseURL returns the normalized API root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// List retrieves GET /{resource}. Both bare arrays and {"data": [...]} or
// {"items": [...]} envelopes are accepted.
func (c *Client) List(ctx context.Context, resource string) ([]entity.Entity, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload any
	if err := c.do(ctx, http.MethodGet, resourcePath(resource), nil, &payload); err != nil {
		return nil, err
	}
	rows, err := asEntities(payload)
	if err != nil {
		return nil, fmt.Errorf("decode %s list: %w", resource, err)
	}
	return rows, nil
}

// Get retrieves GET /{resource}/{id}.
func (c *Client) Get(ctx context.Context, resource, id string) (entity.Entity, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("id required")
	}
	var payload any
	if err := c.do(ctx, http.MethodGet, resourcePath(resource, id), nil, &payload); err != nil {
		return nil, err
	}
	return asEntity(payload)
}

// Create issues POST /{resource}.
func (c *Client) Create(ctx context.Context, resource string, body any) (entity.Entity, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload any
	if err := c.do(ctx, http.MethodPost, resourcePath(resource), body, &payload); err != nil {
		return nil, err
	}
	return asEntity(payload)
}

// Update issues PUT /{resource}/{id}.
func (c *Client) Update(ctx context.Context, resource, id string, body any) (entity.Entity, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("id required")
	}
	var payload any
	if err := c.do(ctx, http.MethodPut, resourcePath(resource, id), body, &payload); err != nil {
		return nil, err
	}
	return asEntity(payload)
}

// Delete issues DELETE /{resource}/{id}. It is never retried.
func (c *Client) Delete(ctx context.Context, resource, id string) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("id required")
	}
	return c.do(ctx, http.MethodDelete, resourcePath(resource, id), nil, nil)
}

func resourcePath(resource string, rest ...string) string {
	parts := []string{strings.Trim(resource, "/")}
	for _, r := range rest {
		parts = append(parts, strings.Trim(r, "/"))
	}
	return strings.Join(parts, "/")
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	reqURL := c.baseURL.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(requestIDHeader, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("api request failed", "method", method, "path", path, "request_id", requestID, "err", err)
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("api request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
		"request_id", requestID,
	)

	if resp.StatusCode >= 400 {
		return parseError(resp.StatusCode, method, "/"+path, respBody)
	}
	if dest == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	decoder := json.NewDecoder(bytes.NewReader(respBody))
	decoder.UseNumber()
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func asEntities(payload any) ([]entity.Entity, error) {
	switch v := payload.(type) {
	case nil:
		return []entity.Entity{}, nil
	case []any:
		out := make([]entity.Entity, 0, len(v))
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("element %d is %T, want object", i, item)
			}
			out = append(out, entity.Entity(m))
		}
		return out, nil
	case map[string]any:
		for _, key := range []string{"data", "items", "results"} {
			if inner, ok := v[key]; ok {
				return asEntities(inner)
			}
		}
		return nil, fmt.Errorf("object without data array")
	default:
		return nil, fmt.Errorf("unexpected %T", payload)
	}
}

func asEntity(payload any) (entity.Entity, error) {
	switch v := payload.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		if inner, ok := v["data"].(map[string]any); ok && isEnvelope(v) {
			return entity.Entity(inner), nil
		}
		return entity.Entity(v), nil
	default:
		return nil, fmt.Errorf("decode response: unexpected %T", payload)
	}
}

// envelopeKeys may sit next to "data" in a wrapped single-record response.
var envelopeKeys = map[string]bool{"data": true, "message": true, "success": true, "status": true, "meta": true}

// isEnvelope reports whether v wraps a record rather than being one. A record
// that merely has a "data" field keeps its id and is not unwrapped.
func isEnvelope(v map[string]any) bool {
	if _, ok := v["id"]; ok {
		return false
	}
	for k := range v {
		if !envelopeKeys[k] {
			return false
		}
	}
	return true
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api url %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse api url %q: missing host", raw)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
