package collection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// gatedLoader blocks every call until release is closed or a value is sent.
type gatedLoader struct {
	calls   atomic.Int32
	started chan struct{}
	results chan result
}

type result struct {
	val []string
	err error
}

func newGatedLoader() *gatedLoader {
	return &gatedLoader{started: make(chan struct{}, 16), results: make(chan result, 16)}
}

func (g *gatedLoader) load(ctx context.Context, _ Key) ([]string, error) {
	g.calls.Add(1)
	g.started <- struct{}{}
	select {
	case r := <-g.results:
		return r.val, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func waitStarted(t *testing.T, g *gatedLoader) {
	t.Helper()
	select {
	case <-g.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("loader was not called")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestGet_ConcurrentReadsCoalesce(t *testing.T) {
	g := newGatedLoader()
	s := NewStore(g.load, Options[[]string]{})
	t.Cleanup(s.Close)
	key := ListKey("inventory")

	first := s.Get(key)
	second := s.Get(key)
	if first.HasData || !first.Fetching || !second.Fetching {
		t.Fatalf("Get snapshots = %+v / %+v, want empty and fetching", first, second)
	}
	waitStarted(t, g)
	g.results <- result{val: []string{"a"}}

	waitFor(t, func() bool { return s.Peek(key).HasData })
	if got := g.calls.Load(); got != 1 {
		t.Fatalf("loader calls = %d, want 1", got)
	}
	snap := s.Get(key)
	if snap.Fetching || len(snap.Data) != 1 || snap.Version != 1 {
		t.Fatalf("snapshot = %+v, want one row at version 1", snap)
	}
}

func TestRefetch_ConcurrentCallersShareOneRequest(t *testing.T) {
	g := newGatedLoader()
	s := NewStore(g.load, Options[[]string]{})
	t.Cleanup(s.Close)
	key := ListKey("vendors")

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Refetch(context.Background(), key)
			errs <- err
		}()
	}
	waitStarted(t, g)
	time.Sleep(50 * time.Millisecond)
	g.results <- result{val: []string{"x", "y"}}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Refetch returned error: %v", err)
		}
	}
	if got := g.calls.Load(); got != 1 {
		t.Fatalf("loader calls = %d, want 1", got)
	}
}

func TestRefetch_ErrorKeepsPreviousData(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	var calls atomic.Int32
	boom := errors.New("connection refused")
	load := func(context.Context, Key) ([]string, error) {
		if calls.Add(1) == 1 {
			return []string{"kept"}, nil
		}
		return nil, boom
	}
	s := NewStore(load, Options[[]string]{StaleAfter: time.Minute, Now: clock.Now})
	t.Cleanup(s.Close)
	key := ListKey("machines")
	ctx := context.Background()

	if _, err := s.Refetch(ctx, key); err != nil {
		t.Fatalf("first Refetch returned error: %v", err)
	}
	snap, err := s.Refetch(ctx, key)
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) || !errors.Is(err, boom) {
		t.Fatalf("Refetch error = %v, want FetchError wrapping boom", err)
	}
	if len(snap.Data) != 1 || snap.Data[0] != "kept" || snap.Err == nil || snap.ConsecutiveFailures != 1 {
		t.Fatalf("snapshot after error = %+v, want kept data with error", snap)
	}

	// Failed entries wait for a manual retry even once stale.
	clock.Advance(10 * time.Minute)
	if got := s.Get(key); got.Fetching {
		t.Fatalf("Get after error started a fetch, want manual retry only")
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("loader calls = %d, want 2", got)
	}

	_, _ = s.Refetch(ctx, key)
	if snap := s.Peek(key); snap.ConsecutiveFailures != 2 || !snap.IsOffline() {
		t.Fatalf("failures = %d, want 2 and offline", snap.ConsecutiveFailures)
	}
}

func TestRefetch_AfterCommitStartsNewFetch(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	var calls atomic.Int32
	load := func(context.Context, Key) ([]string, error) {
		return []string{fmt.Sprintf("v%d", calls.Add(1))}, nil
	}
	entered := make(chan struct{})
	unblock := make(chan struct{})
	var blocked atomic.Bool
	s := NewStore(load, Options[[]string]{
		StaleAfter: time.Minute,
		Now:        clock.Now,
		OnCommit: func(Key, []string) {
			if blocked.CompareAndSwap(false, true) {
				close(entered)
				<-unblock
			}
		},
	})
	t.Cleanup(s.Close)
	key := ListKey("inventory")

	s.Get(key)
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("first commit did not run")
	}
	if snap := s.Peek(key); snap.Fetching || snap.Version != 1 {
		t.Fatalf("snapshot while committing = %+v, want version 1 and idle", snap)
	}

	// The first flight is still inside OnCommit; Refetch must not join it.
	snap, err := s.Refetch(context.Background(), key)
	if err != nil {
		t.Fatalf("Refetch returned error: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("loader calls = %d, want 2", got)
	}
	if snap.Fetching || snap.Data[0] != "v2" {
		t.Fatalf("snapshot after Refetch = %+v, want v2 and idle", snap)
	}
	close(unblock)

	clock.Advance(10 * time.Minute)
	if got := s.Get(key); !got.Fetching {
		t.Fatalf("Get on stale entry did not fetch")
	}
	waitFor(t, func() bool { return calls.Load() == 3 && !s.Peek(key).Fetching })
}

func TestFetching_ClearsOnEveryOutcome(t *testing.T) {
	t.Run("joined", func(t *testing.T) {
		g := newGatedLoader()
		s := NewStore(g.load, Options[[]string]{})
		t.Cleanup(s.Close)
		key := ListKey("vendors")

		s.Get(key)
		waitStarted(t, g)
		done := make(chan error, 1)
		go func() {
			_, err := s.Refetch(context.Background(), key)
			done <- err
		}()
		time.Sleep(50 * time.Millisecond)
		g.results <- result{val: []string{"a"}}

		if err := <-done; err != nil {
			t.Fatalf("Refetch returned error: %v", err)
		}
		if got := g.calls.Load(); got != 1 {
			t.Fatalf("loader calls = %d, want 1", got)
		}
		if snap := s.Peek(key); snap.Fetching || !snap.HasData {
			t.Fatalf("snapshot = %+v, want data and idle", snap)
		}
	})

	t.Run("superseded", func(t *testing.T) {
		g := newGatedLoader()
		s := NewStore(g.load, Options[[]string]{})
		t.Cleanup(s.Close)
		key := ListKey("machines")

		done := make(chan error, 1)
		go func() {
			_, err := s.Refetch(context.Background(), key)
			done <- err
		}()
		waitStarted(t, g)
		s.Invalidate(key)
		g.results <- result{val: []string{"old"}}

		if err := <-done; !errors.Is(err, ErrSuperseded) {
			t.Fatalf("Refetch error = %v, want ErrSuperseded", err)
		}
		if snap := s.Peek(key); snap.Fetching {
			t.Fatalf("snapshot = %+v, want idle after superseded fetch", snap)
		}
	})

	t.Run("error", func(t *testing.T) {
		load := func(context.Context, Key) ([]string, error) { return nil, errors.New("timeout") }
		s := NewStore(load, Options[[]string]{})
		t.Cleanup(s.Close)
		key := ListKey("logbook")

		snap, err := s.Refetch(context.Background(), key)
		if err == nil {
			t.Fatalf("Refetch returned nil error")
		}
		if snap.Fetching || snap.Err == nil {
			t.Fatalf("snapshot = %+v, want error and idle", snap)
		}
		if again, _ := s.Refetch(context.Background(), key); again.Fetching || again.ConsecutiveFailures != 2 {
			t.Fatalf("snapshot after retry = %+v, want two failures and idle", again)
		}
	})
}

func TestGet_StaleEntryServedWhileRefetching(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	var calls atomic.Int32
	load := func(context.Context, Key) ([]string, error) {
		n := calls.Add(1)
		if n == 1 {
			return []string{"v1"}, nil
		}
		return []string{"v2"}, nil
	}
	s := NewStore(load, Options[[]string]{StaleAfter: 5 * time.Minute, Now: clock.Now})
	t.Cleanup(s.Close)
	key := ListKey("logbook")

	if _, err := s.Refetch(context.Background(), key); err != nil {
		t.Fatalf("Refetch returned error: %v", err)
	}
	clock.Advance(4 * time.Minute)
	if snap := s.Get(key); snap.Fetching || snap.Stale {
		t.Fatalf("fresh Get = %+v, want no fetch", snap)
	}

	clock.Advance(2 * time.Minute)
	snap := s.Get(key)
	if !snap.Fetching || snap.Data[0] != "v1" {
		t.Fatalf("stale Get = %+v, want v1 served while fetching", snap)
	}
	waitFor(t, func() bool { return s.Peek(key).Version == 2 })
	if got := s.Peek(key).Data[0]; got != "v2" {
		t.Fatalf("data = %q, want v2", got)
	}
}

func TestInvalidate_DiscardsInFlightResult(t *testing.T) {
	g := newGatedLoader()
	s := NewStore(g.load, Options[[]string]{})
	t.Cleanup(s.Close)
	key := ListKey("requisitions")

	done := make(chan error, 1)
	go func() {
		_, err := s.Refetch(context.Background(), key)
		done <- err
	}()
	waitStarted(t, g)
	s.Invalidate(key)
	g.results <- result{val: []string{"pre-mutation"}}

	if err := <-done; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("Refetch error = %v, want ErrSuperseded", err)
	}
	snap := s.Peek(key)
	if snap.HasData || !snap.Stale || snap.Fetching {
		t.Fatalf("snapshot = %+v, want discarded result and stale entry", snap)
	}

	// The next read refetches.
	if got := s.Get(key); !got.Fetching {
		t.Fatalf("Get after invalidate did not fetch")
	}
	waitStarted(t, g)
	g.results <- result{val: []string{"post-mutation"}}
	waitFor(t, func() bool { return s.Peek(key).HasData })
	if got := s.Peek(key).Data[0]; got != "post-mutation" {
		t.Fatalf("data = %q, want post-mutation", got)
	}
}

func TestInvalidate_WatchedKeyRefetchesImmediately(t *testing.T) {
	var calls atomic.Int32
	load := func(context.Context, Key) ([]string, error) {
		calls.Add(1)
		return []string{"row"}, nil
	}
	s := NewStore(load, Options[[]string]{})
	t.Cleanup(s.Close)
	key := ListKey("issues")
	release := s.Watch(key)
	t.Cleanup(release)

	if _, err := s.Refetch(context.Background(), key); err != nil {
		t.Fatalf("Refetch returned error: %v", err)
	}
	s.Invalidate(key)
	waitFor(t, func() bool { return s.Peek(key).Version == 2 })
	if got := calls.Load(); got != 2 {
		t.Fatalf("loader calls = %d, want 2", got)
	}
}

func TestWatch_ReleaseDropsInFlightResult(t *testing.T) {
	g := newGatedLoader()
	s := NewStore(g.load, Options[[]string]{})
	t.Cleanup(s.Close)
	key := DetailKey("vendors", "7")

	release := s.Watch(key)
	s.Get(key)
	waitStarted(t, g)
	release()
	release()
	g.results <- result{val: []string{"late"}}

	time.Sleep(50 * time.Millisecond)
	if snap := s.Peek(key); snap.HasData || snap.Fetching {
		t.Fatalf("snapshot = %+v, want late result dropped", snap)
	}
	if len(s.Watched()) != 0 {
		t.Fatalf("watched = %v, want none", s.Watched())
	}
}

func TestSeed_ServedStaleAndRefetched(t *testing.T) {
	load := func(context.Context, Key) ([]string, error) { return []string{"fresh"}, nil }
	s := NewStore(load, Options[[]string]{})
	t.Cleanup(s.Close)
	key := ListKey("users")

	if !s.Seed(key, []string{"cached"}, time.Now().Add(-time.Hour)) {
		t.Fatalf("Seed returned false for empty key")
	}
	snap := s.Get(key)
	if snap.Data[0] != "cached" || !snap.Stale || !snap.Fetching {
		t.Fatalf("seeded snapshot = %+v, want cached, stale and fetching", snap)
	}
	waitFor(t, func() bool { return s.Peek(key).Data[0] == "fresh" })
	if s.Seed(key, []string{"again"}, time.Now()) {
		t.Fatalf("Seed overwrote fetched data")
	}
}

func TestSubscribeAndOnCommit(t *testing.T) {
	var committed atomic.Int32
	load := func(context.Context, Key) ([]string, error) { return []string{"x"}, nil }
	s := NewStore(load, Options[[]string]{
		OnCommit: func(Key, []string) { committed.Add(1) },
		Clone:    func(v []string) []string { return append([]string(nil), v...) },
	})
	t.Cleanup(s.Close)
	ch, cancel := s.Subscribe()
	t.Cleanup(cancel)
	key := ListKey("procurement")

	if _, err := s.Refetch(context.Background(), key); err != nil {
		t.Fatalf("Refetch returned error: %v", err)
	}
	select {
	case got := <-ch:
		if got != key {
			t.Fatalf("notified key = %v, want %v", got, key)
		}
	case <-time.After(time.Second):
		t.Fatalf("no notification")
	}
	if committed.Load() != 1 {
		t.Fatalf("OnCommit calls = %d, want 1", committed.Load())
	}

	snap := s.Peek(key)
	snap.Data[0] = "mutated"
	if s.Peek(key).Data[0] != "x" {
		t.Fatalf("snapshot mutation leaked into the cache")
	}
}

func TestRevalidateWatched_OnlyStaleKeys(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	var calls atomic.Int32
	load := func(context.Context, Key) ([]string, error) {
		calls.Add(1)
		return []string{"r"}, nil
	}
	s := NewStore(load, Options[[]string]{StaleAfter: time.Minute, Now: clock.Now})
	t.Cleanup(s.Close)
	watched := ListKey("inventory")
	release := s.Watch(watched)
	t.Cleanup(release)

	if _, err := s.Refetch(context.Background(), watched); err != nil {
		t.Fatalf("Refetch returned error: %v", err)
	}
	if _, err := s.Refetch(context.Background(), ListKey("vendors")); err != nil {
		t.Fatalf("Refetch returned error: %v", err)
	}
	if n := s.RevalidateWatched(); n != 0 {
		t.Fatalf("RevalidateWatched on fresh keys started %d", n)
	}
	clock.Advance(2 * time.Minute)
	if n := s.RevalidateWatched(); n != 1 {
		t.Fatalf("RevalidateWatched started %d, want 1", n)
	}
	waitFor(t, func() bool { return calls.Load() == 3 })
}

func TestKeyString(t *testing.T) {
	if got := ListKey("inventory").String(); got != "inventory/list" {
		t.Fatalf("ListKey = %q", got)
	}
	if got := DetailKey("inventory", "12").String(); got != "inventory/detail/12" {
		t.Fatalf("DetailKey = %q", got)
	}
}
