// Package sqlite provides a SQLite-backed state.Store that persists entity
// records as JSON documents in a single bucket table.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/goliatone/go-draft/internal/hydrate"
	"github.com/goliatone/go-draft/pkg/state"
)

var _ state.Store[struct{}] = (*Store[struct{}])(nil)

const recordsDDL = `CREATE TABLE IF NOT EXISTS entity_records (
	ref TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	payload BLOB NOT NULL,
	etag TEXT NOT NULL,
	revision INTEGER NOT NULL,
	updated_at TEXT NOT NULL,
	extra BLOB
)`

// Store persists entity records in a single SQLite table keyed by
// Ref.Identifier(). Payloads go through an internal hydrate.Decoder on the
// way out, so legacy shapes can be upgraded with pre-hooks.
type Store[E any] struct {
	db      *sql.DB
	decoder *hydrate.Decoder[E]
	ownsDB  bool
}

type Option[E any] func(*Store[E])

// WithDecoder replaces the default payload decoder.
func WithDecoder[E any](decoder *hydrate.Decoder[E]) Option[E] {
	return func(s *Store[E]) {
		if decoder != nil {
			s.decoder = decoder
		}
	}
}

// Open opens (creating if needed) a SQLite database at path and ensures the
// records table exists.
func Open[E any](path string, opts ...Option[E]) (*Store[E], error) {
	if path == "" {
		path = "draft.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("sqlite: create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	store, err := NewWithDB[E](db, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	store.ownsDB = true
	return store, nil
}

// NewWithDB wraps an existing database handle. The caller keeps ownership of
// the handle; Close becomes a no-op.
func NewWithDB[E any](db *sql.DB, opts ...Option[E]) (*Store[E], error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite: db is required")
	}
	if _, err := db.Exec(recordsDDL); err != nil {
		return nil, fmt.Errorf("sqlite: create records table: %w", err)
	}
	s := &Store[E]{db: db, decoder: hydrate.NewDecoder[E]()}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

func (s *Store[E]) Load(ctx context.Context, ref state.Ref) (E, state.Meta, bool, error) {
	var zero E
	key, err := ref.Identifier()
	if err != nil {
		return zero, state.Meta{}, false, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT payload, etag, revision, updated_at, extra FROM entity_records WHERE ref = ?`, key)
	var payload []byte
	var stored storedMeta
	if err := row.Scan(&payload, &stored.etag, &stored.revision, &stored.updatedAt, &stored.extra); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, state.Meta{}, false, nil
		}
		return zero, state.Meta{}, false, fmt.Errorf("sqlite: select %s: %w", key, err)
	}

	entity, err := s.decoder.DecodeRaw(hydrate.Context{Kind: ref.Kind, ID: ref.ID}, payload)
	if err != nil {
		return zero, state.Meta{}, false, err
	}
	meta, err := stored.meta(key)
	if err != nil {
		return zero, state.Meta{}, false, err
	}
	return entity, meta, true, nil
}

func (s *Store[E]) Save(ctx context.Context, ref state.Ref, entity E, meta state.Meta) (state.Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return state.Meta{}, err
	}
	payload, err := json.Marshal(entity)
	if err != nil {
		return state.Meta{}, fmt.Errorf("sqlite: marshal %s: %w", key, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return state.Meta{}, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	stored, exists, err := readMeta(ctx, tx, key)
	if err != nil {
		return state.Meta{}, err
	}
	if err := state.CheckPrecondition(stored, meta, exists); err != nil {
		return state.Meta{}, err
	}

	next := state.NextMeta(stored, meta)
	extra, err := encodeExtra(next.Extra)
	if err != nil {
		return state.Meta{}, fmt.Errorf("sqlite: marshal extra for %s: %w", key, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO entity_records(ref, kind, payload, etag, revision, updated_at, extra)
		VALUES(?,?,?,?,?,?,?)
		ON CONFLICT(ref) DO UPDATE SET payload=excluded.payload, etag=excluded.etag, revision=excluded.revision, updated_at=excluded.updated_at, extra=excluded.extra`,
		key, ref.Kind, payload, next.ETag, next.Revision, next.UpdatedAt.Format(time.RFC3339Nano), extra); err != nil {
		return state.Meta{}, fmt.Errorf("sqlite: upsert %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return state.Meta{}, fmt.Errorf("sqlite: commit: %w", err)
	}
	committed = true
	return next, nil
}

// Close releases the database handle when the store owns it.
func (s *Store[E]) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store[E]) DB() *sql.DB { return s.db }

type storedMeta struct {
	etag      string
	revision  int64
	updatedAt string
	extra     []byte
}

func (m storedMeta) meta(key string) (state.Meta, error) {
	out := state.Meta{ETag: m.etag, Revision: m.revision}
	if m.updatedAt != "" {
		at, err := time.Parse(time.RFC3339Nano, m.updatedAt)
		if err != nil {
			return state.Meta{}, fmt.Errorf("sqlite: parse updated_at for %s: %w", key, err)
		}
		out.UpdatedAt = at
	}
	if len(m.extra) > 0 {
		if err := json.Unmarshal(m.extra, &out.Extra); err != nil {
			return state.Meta{}, fmt.Errorf("sqlite: decode extra for %s: %w", key, err)
		}
	}
	return out, nil
}

func readMeta(ctx context.Context, tx *sql.Tx, key string) (state.Meta, bool, error) {
	row := tx.QueryRowContext(ctx, `SELECT etag, revision, updated_at, extra FROM entity_records WHERE ref = ?`, key)
	var stored storedMeta
	if err := row.Scan(&stored.etag, &stored.revision, &stored.updatedAt, &stored.extra); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return state.Meta{}, false, nil
		}
		return state.Meta{}, false, fmt.Errorf("sqlite: select meta %s: %w", key, err)
	}
	meta, err := stored.meta(key)
	if err != nil {
		return state.Meta{}, false, err
	}
	return meta, true, nil
}

func encodeExtra(extra map[string]string) ([]byte, error) {
	if len(extra) == 0 {
		return nil, nil
	}
	return json.Marshal(extra)
}
