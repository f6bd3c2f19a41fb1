// Package devserver is an in-memory implementation of the fleet REST API,
// seeded from embedded fixtures. It backs `depot demo-server` and the
// end-to-end tests of the client and CLI.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/five82/depot/internal/auth"
	"github.com/five82/depot/internal/entity"
	"github.com/five82/depot/internal/screens"
)

const (
	maxBodyBytes    = 1 << 20
	defaultTokenTTL = 12 * time.Hour
	shutdownTimeout = 5 * time.Second
)

// Options configure a Server.
type Options struct {
	Logger *slog.Logger
	// Secret enables bearer-token auth. Writes then need an editing role and
	// deletes need admin.
	Secret []byte
	// Envelope wraps list responses as {"data": [...]}.
	Envelope bool
	// Delay is added to every request, to make loading states visible.
	Delay time.Duration
	// Fixtures replaces the embedded dataset.
	Fixtures []byte
}

// Server serves the demo dataset.
type Server struct {
	opts   Options
	logger *slog.Logger
	data   *db
	router chi.Router
}

// New loads the fixtures and builds the router.
func New(opts Options) (*Server, error) {
	fixtures := opts.Fixtures
	if fixtures == nil {
		fixtures = fixturesYAML
	}
	data, err := loadFixtures(fixtures)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{opts: opts, logger: logger, data: data}
	s.router = s.routes()
	return s, nil
}

// Handler returns the HTTP handler, rooted at /api.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down.
// ready, when non-nil, receives the bound address.
func (s *Server) ListenAndServe(ctx context.Context, addr string, ready func(net.Addr)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	if ready != nil {
		ready(ln.Addr())
	}
	s.logger.Info("demo server started", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware, s.loggerMiddleware, recoveryMiddleware, loggingMiddleware)
	if s.opts.Delay > 0 {
		r.Use(s.delayMiddleware)
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not_found", "route not found", nil)
	})
	r.Route("/api", func(r chi.Router) {
		r.Post("/token", s.handleToken)
		r.Group(func(r chi.Router) {
			if len(s.opts.Secret) > 0 {
				r.Use(s.authMiddleware)
			}
			r.Get("/{resource}", s.handleList)
			r.Post("/{resource}", s.handleCreate)
			r.Get("/{resource}/{id}", s.handleGet)
			r.Put("/{resource}/{id}", s.handleUpdate)
			r.Delete("/{resource}/{id}", s.handleDelete)
		})
	})
	return r
}

func (s *Server) resource(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := chi.URLParam(r, "resource")
	if !s.data.has(name) {
		writeError(w, r, http.StatusNotFound, "not_found", fmt.Sprintf("unknown resource %q", name), nil)
		return "", false
	}
	return name, true
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	name, ok := s.resource(w, r)
	if !ok {
		return
	}
	rows := s.data.list(name)
	if s.opts.Envelope {
		writeJSON(w, r, http.StatusOK, map[string]any{"data": rows})
		return
	}
	writeJSON(w, r, http.StatusOK, rows)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	name, ok := s.resource(w, r)
	if !ok {
		return
	}
	row, err := s.data.get(name, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, http.StatusNotFound, "not_found", fmt.Sprintf("%s %s not found", name, chi.URLParam(r, "id")), nil)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"data": row})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	name, ok := s.resource(w, r)
	if !ok {
		return
	}
	payload, ok := readPayload(w, r)
	if !ok {
		return
	}
	if fields := validate(name, payload, true); len(fields) > 0 {
		writeError(w, r, http.StatusUnprocessableEntity, "validation", "validation failed", fields)
		return
	}
	row := s.data.create(name, payload)
	logFor(r.Context()).Info("created", "resource", name, "id", row.ID())
	writeJSON(w, r, http.StatusCreated, map[string]any{"data": row})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	name, ok := s.resource(w, r)
	if !ok {
		return
	}
	payload, ok := readPayload(w, r)
	if !ok {
		return
	}
	if fields := validate(name, payload, false); len(fields) > 0 {
		writeError(w, r, http.StatusUnprocessableEntity, "validation", "validation failed", fields)
		return
	}
	id := chi.URLParam(r, "id")
	row, err := s.data.update(name, id, payload)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "not_found", fmt.Sprintf("%s %s not found", name, id), nil)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"data": row})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	name, ok := s.resource(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.data.remove(name, id); err != nil {
		writeError(w, r, http.StatusNotFound, "not_found", fmt.Sprintf("%s %s not found", name, id), nil)
		return
	}
	logFor(r.Context()).Info("deleted", "resource", name, "id", id)
	w.WriteHeader(http.StatusNoContent)
}

type tokenRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if len(s.opts.Secret) == 0 {
		writeError(w, r, http.StatusNotFound, "not_found", "auth is disabled", nil)
		return
	}
	var req tokenRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "invalid JSON body", nil)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, r, http.StatusUnprocessableEntity, "validation", "validation failed", map[string]string{"name": "required"})
		return
	}
	token, err := auth.Sign(s.opts.Secret, req.Name, auth.ParseRole(req.Role), defaultTokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal_error", "sign token", nil)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"token": token})
}

func readPayload(w http.ResponseWriter, r *http.Request) (entity.Entity, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "read body", nil)
		return nil, false
	}
	payload, err := entity.Decode(body)
	if err != nil || payload == nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "body must be a JSON object", nil)
		return nil, false
	}
	return payload, true
}

// validate checks the required form fields of the resource's screen. Updates
// only reject required fields that are present but blank.
func validate(resource string, payload entity.Entity, create bool) map[string]string {
	screen, ok := screens.Lookup(resource)
	if !ok {
		return nil
	}
	fields := map[string]string{}
	for _, f := range screen.Form {
		if !f.Required {
			continue
		}
		v, present := entity.Lookup(payload, f.Key)
		if !present && !create {
			continue
		}
		if strings.TrimSpace(entity.Text(v)) == "" {
			fields[f.Key] = "is required"
		}
	}
	return fields
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		if token == "" {
			writeError(w, r, http.StatusUnauthorized, "unauthorized", "missing bearer token", nil)
			return
		}
		claims, err := auth.Verify(s.opts.Secret, token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "unauthorized", "invalid token", nil)
			return
		}
		role := auth.ParseRole(claims.Role)
		switch r.Method {
		case http.MethodPost, http.MethodPut:
			if !role.CanEdit() {
				writeError(w, r, http.StatusForbidden, "forbidden", fmt.Sprintf("role %s cannot edit", role), nil)
				return
			}
		case http.MethodDelete:
			if !role.CanDelete() {
				writeError(w, r, http.StatusForbidden, "forbidden", fmt.Sprintf("role %s cannot delete", role), nil)
				return
			}
		}
		ctx := context.WithValue(r.Context(), ctxKeyLogger, logFor(r.Context()).With("user", claims.Name, "role", role.String()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) delayMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(s.opts.Delay):
		case <-r.Context().Done():
			return
		}
		next.ServeHTTP(w, r)
	})
}

type contextKey int

const (
	ctxKeyRequestID contextKey = iota
	ctxKeyLogger
)

func getRequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

func logFor(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKeyLogger).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// requestIDMiddleware echoes the client's X-Request-ID or assigns one.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := s.logger.With("rid", getRequestID(r.Context()))
		ctx := context.WithValue(r.Context(), ctxKeyLogger, l)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logFor(r.Context()).Error("panic recovered", "panic", rec, "path", r.URL.Path)
				writeError(w, r, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusCapture struct {
	http.ResponseWriter
	code int
}

func (sc *statusCapture) WriteHeader(code int) {
	sc.code = code
	sc.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sc := &statusCapture{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sc, r)
		logFor(r.Context()).Info("req",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sc.code,
			"dur", time.Since(start).String(),
		)
	})
}

type apiError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, fields map[string]string) {
	writeJSON(w, r, status, map[string]apiError{"error": {Code: code, Message: message, Fields: fields}})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logFor(r.Context()).Error("write json response", "err", err)
	}
}
