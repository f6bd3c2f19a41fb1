package collection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultStaleAfter is how long a fetched entry counts as fresh.
const DefaultStaleAfter = 5 * time.Minute

// ErrSuperseded is returned by Refetch when the key was invalidated or
// released while the fetch was in flight and its result was discarded.
var ErrSuperseded = errors.New("fetch superseded")

// FetchError records a failed read. The entry keeps its previous data.
type FetchError struct {
	Key Key
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Key, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Loader fetches the value for one key.
type Loader[T any] func(ctx context.Context, key Key) (T, error)

// Entry is a point-in-time copy of one cache entry.
type Entry[T any] struct {
	Key       Key
	Data      T
	HasData   bool
	FetchedAt time.Time
	Err       error
	Fetching  bool
	Stale     bool
	// Version increments on every successful replace; callers memoize on it.
	Version             uint64
	ConsecutiveFailures int
}

// IsOffline returns true when the backend has failed repeatedly for this key.
func (e Entry[T]) IsOffline() bool {
	return e.ConsecutiveFailures >= 2
}

// Options tune a Store.
type Options[T any] struct {
	StaleAfter time.Duration
	Logger     *slog.Logger
	// Clone copies data handed out in snapshots. Nil shares the value.
	Clone func(T) T
	// OnCommit runs after every successful replace, outside the lock.
	OnCommit func(key Key, data T)
	// Now overrides the clock in tests.
	Now func() time.Time
}

type entry[T any] struct {
	data      T
	hasData   bool
	fetchedAt time.Time
	err       error
	failures  int
	fetching  bool
	stale     bool
	version   uint64
	// generation changes whenever an in-flight result must be ignored.
	generation uint64
	watchers   int
}

// Store caches remote values by key. Reads never block: Get returns what is
// cached and schedules a background fetch when needed. At most one fetch per
// key and generation is in flight; concurrent callers share it.
type Store[T any] struct {
	load   Loader[T]
	opts   Options[T]
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	group  singleflight.Group

	mu      sync.Mutex
	entries map[Key]*entry[T]

	subMu sync.Mutex
	subs  map[int]chan Key
	subID int
}

// NewStore builds a Store around load.
func NewStore[T any](load Loader[T], opts Options[T]) *Store[T] {
	if opts.StaleAfter == 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Store[T]{
		load:    load,
		opts:    opts,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[Key]*entry[T]),
		subs:    make(map[int]chan Key),
	}
}

// Close cancels in-flight fetches. Their results are dropped.
func (s *Store[T]) Close() {
	s.cancel()
}

// Get returns the cached entry for key, scheduling a background fetch when the
// entry is absent, invalidated or older than StaleAfter. An entry whose last
// fetch failed is only refetched by Refetch or Invalidate.
func (s *Store[T]) Get(key Key) Entry[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entryLocked(key)
	if s.needsFetchLocked(e) {
		s.launchLocked(key, e)
	}
	return s.snapshotLocked(key, e)
}

// Peek returns the cached entry without scheduling anything.
func (s *Store[T]) Peek(key Key) Entry[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return Entry[T]{Key: key}
	}
	return s.snapshotLocked(key, e)
}

// Refetch fetches key now regardless of staleness and waits for the result.
// It joins a fetch still in flight for the same generation; once that fetch
// has committed, a new one is started. ctx bounds only the wait; the fetch
// itself keeps running for other callers.
func (s *Store[T]) Refetch(ctx context.Context, key Key) (Entry[T], error) {
	s.mu.Lock()
	ch := s.launchLocked(key, s.entryLocked(key))
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return s.Peek(key), ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return s.Peek(key), res.Err
		}
		if superseded, _ := res.Val.(bool); superseded {
			return s.Peek(key), ErrSuperseded
		}
		return s.Peek(key), nil
	}
}

// Invalidate marks key stale and drops any in-flight result. Watched keys are
// refetched immediately; others on their next Get.
func (s *Store[T]) Invalidate(key Key) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		return
	}
	e.generation++
	e.stale = true
	e.fetching = false
	watched := e.watchers > 0
	if watched {
		s.launchLocked(key, e)
	}
	s.mu.Unlock()

	s.logger.Debug("cache invalidated", "key", key.String(), "watched", watched)
	s.notify(key)
}

// InvalidateResource invalidates every cached key of resource.
func (s *Store[T]) InvalidateResource(resource string) {
	for _, key := range s.Keys() {
		if key.Resource == resource {
			s.Invalidate(key)
		}
	}
}

// Seed installs data for a key that has never been fetched. Seeded data is
// served stale so the first Get refetches it.
func (s *Store[T]) Seed(key Key, data T, fetchedAt time.Time) bool {
	s.mu.Lock()
	e := s.entryLocked(key)
	if e.hasData || e.fetching {
		s.mu.Unlock()
		return false
	}
	e.data = data
	e.hasData = true
	e.fetchedAt = fetchedAt
	e.stale = true
	e.version++
	s.mu.Unlock()
	s.notify(key)
	return true
}

// Watch registers interest in key, the way a mounted screen does. The
// returned func releases it; releasing the last watcher while a fetch is in
// flight discards that fetch's result.
func (s *Store[T]) Watch(key Key) (release func()) {
	s.mu.Lock()
	s.entryLocked(key).watchers++
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			e := s.entries[key]
			if e == nil {
				return
			}
			e.watchers--
			if e.watchers <= 0 {
				e.watchers = 0
				if e.fetching {
					e.generation++
					e.fetching = false
					e.stale = true
				}
			}
		})
	}
}

// Watched lists keys with at least one watcher, sorted.
func (s *Store[T]) Watched() []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Key
	for k, e := range s.entries {
		if e.watchers > 0 {
			out = append(out, k)
		}
	}
	sortKeys(out)
	return out
}

// Keys lists every cached key, sorted.
func (s *Store[T]) Keys() []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Key, 0, len(s.entries))
	for k := range s.entries {
		out = append(out, k)
	}
	sortKeys(out)
	return out
}

// RevalidateWatched calls Get on each watched key so stale entries refetch.
// It returns how many fetches were started.
func (s *Store[T]) RevalidateWatched() int {
	started := 0
	for _, key := range s.Watched() {
		before := s.Peek(key).Fetching
		if snap := s.Get(key); snap.Fetching && !before {
			started++
		}
	}
	return started
}

// Subscribe returns a channel that receives a key whenever its entry changes.
// Slow receivers miss notifications rather than block the store.
func (s *Store[T]) Subscribe() (<-chan Key, func()) {
	ch := make(chan Key, 16)
	s.subMu.Lock()
	id := s.subID
	s.subID++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store[T]) notify(key Key) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- key:
		default:
		}
	}
}

func (s *Store[T]) entryLocked(key Key) *entry[T] {
	e, ok := s.entries[key]
	if !ok {
		e = &entry[T]{}
		s.entries[key] = e
	}
	return e
}

func (s *Store[T]) needsFetchLocked(e *entry[T]) bool {
	if e.fetching {
		return false
	}
	if e.err != nil && !e.stale {
		return false
	}
	if !e.hasData || e.stale {
		return true
	}
	return s.opts.StaleAfter > 0 && s.opts.Now().Sub(e.fetchedAt) > s.opts.StaleAfter
}

func (s *Store[T]) snapshotLocked(key Key, e *entry[T]) Entry[T] {
	snap := Entry[T]{
		Key:                 key,
		Data:                e.data,
		HasData:             e.hasData,
		FetchedAt:           e.fetchedAt,
		Err:                 e.err,
		Fetching:            e.fetching,
		Stale:               e.stale,
		Version:             e.version,
		ConsecutiveFailures: e.failures,
	}
	if e.hasData && s.opts.Clone != nil {
		snap.Data = s.opts.Clone(e.data)
	}
	if !snap.Stale && e.hasData && s.opts.StaleAfter > 0 {
		snap.Stale = s.opts.Now().Sub(e.fetchedAt) > s.opts.StaleAfter
	}
	return snap
}

func flightKey(key Key, gen uint64) string {
	return fmt.Sprintf("%s#%d", key, gen)
}

// launchLocked marks e fetching and starts or joins the flight for its
// current generation. The load runs on the DoChan goroutine, not under s.mu.
func (s *Store[T]) launchLocked(key Key, e *entry[T]) <-chan singleflight.Result {
	e.fetching = true
	gen := e.generation
	return s.group.DoChan(flightKey(key, gen), func() (any, error) {
		start := s.opts.Now()
		data, err := s.load(s.ctx, key)
		if err != nil {
			err = &FetchError{Key: key, Err: err}
		}
		committed := s.commit(key, gen, data, err)
		s.logger.Debug("fetch finished",
			"key", key.String(),
			"generation", gen,
			"duration", s.opts.Now().Sub(start),
			"committed", committed,
			"error", err,
		)
		if !committed {
			return true, nil
		}
		return false, err
	})
}

func (s *Store[T]) commit(key Key, gen uint64, data T, err error) bool {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok || e.generation != gen || s.ctx.Err() != nil {
		s.mu.Unlock()
		return false
	}
	// Callers arriving after this point start a new flight instead of joining
	// one whose result is already in.
	s.group.Forget(flightKey(key, gen))
	e.fetching = false
	e.stale = false
	if err != nil {
		e.err = err
		e.failures++
		failures := e.failures
		s.mu.Unlock()
		s.logger.Warn("fetch failed; keeping previous data", "key", key.String(), "failures", failures, "error", err)
		s.notify(key)
		return true
	}
	e.data = data
	e.hasData = true
	e.fetchedAt = s.opts.Now()
	e.err = nil
	e.failures = 0
	e.version++
	s.mu.Unlock()

	if s.opts.OnCommit != nil {
		s.opts.OnCommit(key, data)
	}
	s.notify(key)
	return true
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
}
