// Package mutation runs create, update and delete calls against the backend
// and, on success, invalidates every cache key that depends on the record.
// Nothing is applied locally; screens see the change after the refetch.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/five82/depot/internal/api"
	"github.com/five82/depot/internal/collection"
	"github.com/five82/depot/internal/entity"
)

// Op is the kind of write.
type Op int

const (
	OpCreate Op = iota
	OpUpdate
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Mutation describes one write. ID is required for update and delete.
type Mutation struct {
	Op       Op
	Resource string
	ID       string
	Payload  any
}

// Result is returned for a successful mutation.
type Result struct {
	ID       ulid.ULID
	Mutation Mutation
	// Entity is the record echoed by the backend, if any.
	Entity      entity.Entity
	Invalidated []collection.Key
	Duration    time.Duration
}

// Error is a failed mutation in a form suitable for display.
type Error struct {
	ID       ulid.ULID
	Mutation Mutation
	Message  string
	// Fields holds per-field validation messages.
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	target := e.Mutation.Resource
	if e.Mutation.ID != "" {
		target += " " + e.Mutation.ID
	}
	return fmt.Sprintf("%s %s failed: %s", e.Mutation.Op, target, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Summary is the message followed by the field errors in key order.
func (e *Error) Summary() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + " " + e.Fields[k]
	}
	return e.Message + ": " + strings.Join(parts, "; ")
}

// Phase is the lifecycle position of one mutation.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseInvalidating
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePending:
		return "pending"
	case PhaseInvalidating:
		return "invalidating"
	default:
		return "unknown"
	}
}

// Transition reports one step of a mutation's lifecycle.
type Transition struct {
	ID       ulid.ULID
	Mutation Mutation
	From, To Phase
	// Err is set on the pending -> idle step of a failed mutation.
	Err error
}

// Invalidator is implemented by *collection.Store.
type Invalidator interface {
	Invalidate(key collection.Key)
}

// Options configure a Coordinator.
type Options struct {
	Logger       *slog.Logger
	OnTransition func(Transition)
}

// Coordinator executes mutations and invalidates their dependent keys.
type Coordinator struct {
	backend      api.Backend
	stores       []Invalidator
	logger       *slog.Logger
	onTransition func(Transition)

	mu       sync.Mutex
	deps     map[string][]collection.Key
	inFlight int
}

// New builds a Coordinator that invalidates keys on each of stores.
func New(backend api.Backend, opts Options, stores ...Invalidator) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Coordinator{
		backend:      backend,
		stores:       stores,
		logger:       logger,
		onTransition: opts.OnTransition,
		deps:         make(map[string][]collection.Key),
	}
}

// Declare adds keys that must be invalidated after any successful mutation
// of resource, beyond its own list and detail keys.
func (c *Coordinator) Declare(resource string, keys ...collection.Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		if !containsKey(c.deps[resource], k) {
			c.deps[resource] = append(c.deps[resource], k)
		}
	}
}

// Dependents lists the keys invalidated after m succeeds.
func (c *Coordinator) Dependents(m Mutation) []collection.Key {
	keys := []collection.Key{collection.ListKey(m.Resource)}
	if m.ID != "" {
		keys = append(keys, collection.DetailKey(m.Resource, m.ID))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.deps[m.Resource] {
		if !containsKey(keys, k) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Pending reports whether any mutation is in flight.
func (c *Coordinator) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight > 0
}

// Execute performs m. On failure nothing is invalidated and the returned
// error is a *Error. Deletes are never retried, so deleting a record that is
// already gone reports the backend's not-found error.
func (c *Coordinator) Execute(ctx context.Context, m Mutation) (Result, error) {
	id := ulid.Make()
	start := time.Now()

	if err := validate(m); err != nil {
		return Result{}, &Error{ID: id, Mutation: m, Message: err.Error(), Err: err}
	}

	c.mu.Lock()
	c.inFlight++
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.inFlight--
		c.mu.Unlock()
	}()

	c.transition(Transition{ID: id, Mutation: m, From: PhaseIdle, To: PhasePending})
	echoed, err := c.call(ctx, m)
	if err != nil {
		mutErr := newError(id, m, err)
		c.logger.Warn("mutation failed",
			"mutation_id", id.String(),
			"op", m.Op.String(),
			"resource", m.Resource,
			"id", m.ID,
			"error", err,
		)
		c.transition(Transition{ID: id, Mutation: m, From: PhasePending, To: PhaseIdle, Err: mutErr})
		return Result{}, mutErr
	}

	c.transition(Transition{ID: id, Mutation: m, From: PhasePending, To: PhaseInvalidating})
	if m.Op == OpCreate && m.ID == "" {
		m.ID = echoed.ID()
	}
	keys := c.Dependents(m)
	for _, key := range keys {
		for _, s := range c.stores {
			s.Invalidate(key)
		}
	}
	c.transition(Transition{ID: id, Mutation: m, From: PhaseInvalidating, To: PhaseIdle})

	res := Result{ID: id, Mutation: m, Entity: echoed, Invalidated: keys, Duration: time.Since(start)}
	c.logger.Info("mutation applied",
		"mutation_id", id.String(),
		"op", m.Op.String(),
		"resource", m.Resource,
		"id", m.ID,
		"invalidated", len(keys),
		"duration", res.Duration,
	)
	return res, nil
}

func (c *Coordinator) call(ctx context.Context, m Mutation) (entity.Entity, error) {
	switch m.Op {
	case OpCreate:
		return c.backend.Create(ctx, m.Resource, m.Payload)
	case OpUpdate:
		return c.backend.Update(ctx, m.Resource, m.ID, m.Payload)
	case OpDelete:
		return nil, c.backend.Delete(ctx, m.Resource, m.ID)
	default:
		return nil, fmt.Errorf("unsupported operation %s", m.Op)
	}
}

func (c *Coordinator) transition(t Transition) {
	if c.onTransition != nil {
		c.onTransition(t)
	}
}

func validate(m Mutation) error {
	if strings.TrimSpace(m.Resource) == "" {
		return errors.New("resource required")
	}
	if (m.Op == OpUpdate || m.Op == OpDelete) && strings.TrimSpace(m.ID) == "" {
		return errors.New("id required")
	}
	return nil
}

func newError(id ulid.ULID, m Mutation, err error) *Error {
	out := &Error{ID: id, Mutation: m, Err: err, Message: err.Error()}
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		out.Message = apiErr.Message
		if out.Message == "" {
			out.Message = fmt.Sprintf("status %d", apiErr.Status)
		}
		out.Fields = apiErr.Fields
	}
	return out
}

func containsKey(keys []collection.Key, k collection.Key) bool {
	for _, existing := range keys {
		if existing == k {
			return true
		}
	}
	return false
}
