package snapshot

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/five82/depot/internal/collection"
	"github.com/five82/depot/internal/entity"
)

func openTemp(t *testing.T, api string) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "cache", "cache.db"), api, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveLoad_KeepsExactNumbers(t *testing.T) {
	db := openTemp(t, "http://a/api")
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	rows := []entity.Entity{
		{"id": json.Number("1"), "quantity": json.Number("10.25"), "Site": map[string]any{"name": "A"}},
	}
	if err := db.Save(ctx, "inventory", rows, at); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// Saving again replaces.
	rows = append(rows, entity.Entity{"id": json.Number("2")})
	if err := db.Save(ctx, "inventory", rows, at.Add(time.Minute)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	recs, err := db.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("records = %d, want 1", len(recs))
	}
	rec := recs[0]
	if rec.Resource != "inventory" || len(rec.Rows) != 2 {
		t.Fatalf("record = %+v", rec)
	}
	if !rec.FetchedAt.Equal(at.Add(time.Minute)) {
		t.Fatalf("FetchedAt = %v", rec.FetchedAt)
	}
	if got := entity.DecimalAt(rec.Rows[0], "quantity").String(); got != "10.25" {
		t.Fatalf("quantity = %s, want 10.25", got)
	}
	if got := entity.Text(mustLookup(t, rec.Rows[0], "Site.name")); got != "A" {
		t.Fatalf("Site.name = %q", got)
	}
}

func mustLookup(t *testing.T, e entity.Entity, path string) any {
	t.Helper()
	v, ok := entity.Lookup(e, path)
	if !ok {
		t.Fatalf("missing %s", path)
	}
	return v
}

func TestLoad_ScopedByAPI(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	a, err := Open(path, "http://a/api", nil)
	if err != nil {
		t.Fatalf("Open a: %v", err)
	}
	if err := a.Save(ctx, "vendors", []entity.Entity{{"id": json.Number("1")}}, time.Now()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	a.Close()

	b, err := Open(path, "http://b/api", nil)
	if err != nil {
		t.Fatalf("Open b: %v", err)
	}
	defer b.Close()
	recs, err := b.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("records from other api = %d, want 0", len(recs))
	}
}

func TestClear(t *testing.T) {
	db := openTemp(t, "http://a/api")
	ctx := context.Background()
	if err := db.Save(ctx, "users", nil, time.Now()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := db.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	recs, err := db.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("records = %d after Clear", len(recs))
	}
}

func TestOnCommitAndSeedInto(t *testing.T) {
	db := openTemp(t, "http://a/api")
	ctx := context.Background()
	at := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)

	hook := db.OnCommit(func() time.Time { return at })
	hook(collection.DetailKey("machines", "7"), []entity.Entity{{"id": "7"}})
	hook(collection.ListKey("machines"), []entity.Entity{{"id": json.Number("7"), "name": "Loader"}})

	recs, err := db.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(recs) != 1 || recs[0].Resource != "machines" {
		t.Fatalf("records = %+v, want only machines list", recs)
	}

	loads := make(chan struct{}, 1)
	lists := collection.NewStore(func(ctx context.Context, key collection.Key) ([]entity.Entity, error) {
		loads <- struct{}{}
		<-ctx.Done()
		return nil, ctx.Err()
	}, collection.Options[[]entity.Entity]{})
	defer lists.Close()

	n, err := db.SeedInto(ctx, lists)
	if err != nil {
		t.Fatalf("SeedInto: %v", err)
	}
	if n != 1 {
		t.Fatalf("seeded = %d, want 1", n)
	}
	snap := lists.Peek(collection.ListKey("machines"))
	if !snap.HasData || !snap.Stale || len(snap.Data) != 1 {
		t.Fatalf("seeded entry = %+v", snap)
	}
	if !snap.FetchedAt.Equal(at) {
		t.Fatalf("FetchedAt = %v, want %v", snap.FetchedAt, at)
	}

	// A seeded entry is stale, so the first Get refetches.
	if got := lists.Get(collection.ListKey("machines")); !got.Fetching {
		t.Fatalf("Get on seeded entry did not start a fetch")
	}
	select {
	case <-loads:
	case <-time.After(2 * time.Second):
		t.Fatalf("loader not called")
	}
}
