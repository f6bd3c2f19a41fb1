package app

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingRevalidator struct {
	calls   atomic.Int32
	started int
}

func (c *countingRevalidator) RevalidateWatched() int {
	c.calls.Add(1)
	return c.started
}

func TestStartPoller_TicksUntilCancelled(t *testing.T) {
	lists := &countingRevalidator{started: 1}
	details := &countingRevalidator{}
	ctx, cancel := context.WithCancel(context.Background())

	StartPoller(ctx, nil, 5*time.Millisecond, lists, details)

	deadline := time.Now().Add(2 * time.Second)
	for lists.calls.Load() < 3 || details.calls.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("poller calls = %d/%d, want at least 3 each", lists.calls.Load(), details.calls.Load())
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	time.Sleep(20 * time.Millisecond)
	after := lists.calls.Load()
	time.Sleep(30 * time.Millisecond)
	if got := lists.calls.Load(); got != after {
		t.Fatalf("poller kept running after cancel: %d -> %d", after, got)
	}
}

func TestStartPoller_NoImmediateTick(t *testing.T) {
	r := &countingRevalidator{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	StartPoller(ctx, nil, time.Hour, r)
	time.Sleep(20 * time.Millisecond)
	if got := r.calls.Load(); got != 0 {
		t.Fatalf("calls = %d before the first tick, want 0", got)
	}
}

func TestRevalidate_SumsStarted(t *testing.T) {
	got := revalidate([]Revalidator{&countingRevalidator{started: 2}, &countingRevalidator{started: 3}})
	if got != 5 {
		t.Fatalf("revalidate = %d, want 5", got)
	}
}
