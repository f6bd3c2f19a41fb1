// Package snapshot persists the last successfully fetched list collections
// to SQLite so the next start can show them, marked stale, before the first
// network round trip completes.
package snapshot

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/five82/depot/internal/collection"
	"github.com/five82/depot/internal/entity"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	api        TEXT    NOT NULL,
	resource   TEXT    NOT NULL,
	fetched_at INTEGER NOT NULL,
	body       TEXT    NOT NULL,
	PRIMARY KEY (api, resource)
);`

const saveTimeout = 5 * time.Second

// Record is one persisted list collection.
type Record struct {
	Resource  string
	Rows      []entity.Entity
	FetchedAt time.Time
}

// DB stores snapshots for one API base URL. Rows saved against another
// backend are never loaded.
type DB struct {
	db     *sql.DB
	api    string
	logger *slog.Logger
}

// Open opens or creates the snapshot database at path.
func Open(path, api string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir cache db: %w", err)
	}
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}
	return &DB{db: db, api: api, logger: logger}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Save replaces the snapshot for resource.
func (d *DB) Save(ctx context.Context, resource string, rows []entity.Entity, fetchedAt time.Time) error {
	if rows == nil {
		rows = []entity.Entity{}
	}
	body, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encode %s snapshot: %w", resource, err)
	}
	_, err = d.db.ExecContext(ctx, `
		INSERT INTO snapshots (api, resource, fetched_at, body) VALUES (?, ?, ?, ?)
		ON CONFLICT (api, resource) DO UPDATE SET fetched_at = excluded.fetched_at, body = excluded.body
	`, d.api, resource, fetchedAt.UnixNano(), string(body))
	if err != nil {
		return fmt.Errorf("save %s snapshot: %w", resource, err)
	}
	return nil
}

// Load returns every snapshot for the current API, ordered by resource.
// Rows that fail to decode are skipped and logged.
func (d *DB) Load(ctx context.Context) ([]Record, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT resource, fetched_at, body FROM snapshots WHERE api = ? ORDER BY resource
	`, d.api)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			resource string
			nanos    int64
			body     string
		)
		if err := rows.Scan(&resource, &nanos, &body); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		decoded, err := decodeRows(body)
		if err != nil {
			d.logger.Warn("skip corrupt snapshot", "resource", resource, "err", err)
			continue
		}
		out = append(out, Record{Resource: resource, Rows: decoded, FetchedAt: time.Unix(0, nanos)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read snapshots: %w", err)
	}
	return out, nil
}

// Clear removes every snapshot for the current API.
func (d *DB) Clear(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM snapshots WHERE api = ?`, d.api); err != nil {
		return fmt.Errorf("clear snapshots: %w", err)
	}
	return nil
}

// SeedInto loads every snapshot into lists. Seeded entries are stale, so the
// first read refetches them. It returns the number of collections seeded.
func (d *DB) SeedInto(ctx context.Context, lists *collection.Lists) (int, error) {
	records, err := d.Load(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, rec := range records {
		if lists.Seed(collection.ListKey(rec.Resource), rec.Rows, rec.FetchedAt) {
			n++
		}
	}
	d.logger.Debug("seeded from snapshot", "collections", n)
	return n, nil
}

// OnCommit returns a hook for collection.Options.OnCommit that saves every
// list fetch. Detail keys are ignored.
func (d *DB) OnCommit(now func() time.Time) func(collection.Key, []entity.Entity) {
	if now == nil {
		now = time.Now
	}
	return func(key collection.Key, rows []entity.Entity) {
		if !key.IsList() {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		if err := d.Save(ctx, key.Resource, rows, now()); err != nil {
			d.logger.Warn("snapshot save failed", "key", key.String(), "err", err)
		}
	}
}

func decodeRows(body string) ([]entity.Entity, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.UseNumber()
	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	out := make([]entity.Entity, len(raw))
	for i, m := range raw {
		out[i] = entity.Entity(m)
	}
	return out, nil
}
