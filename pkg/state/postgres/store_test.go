package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-draft/pkg/state"
)

type taskDoc struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func TestOpenPingsAndEnsuresTable(t *testing.T) {
	db, conn := newStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := Open[taskDoc]("")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	var sawDDL bool
	for _, stmt := range conn.execs {
		if strings.Contains(strings.ToUpper(stmt), "CREATE TABLE IF NOT EXISTS ENTITY_RECORDS") {
			sawDDL = true
			break
		}
	}
	assert.True(t, sawDDL, "expected the records DDL to be applied, got execs: %v", conn.execs)
}

func TestOpenReportsPingFailure(t *testing.T) {
	db, conn := newStubDB()
	conn.failPing = true
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	_, err := Open[taskDoc]("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping")
}

func TestSaveUpsertsAndLoadRoundTrips(t *testing.T) {
	ctx := context.Background()
	db, conn := newStubDB()
	store, err := NewWithDB[taskDoc](db)
	require.NoError(t, err)
	ref := state.Ref{Kind: "task_list", ID: "doc-1"}

	meta, err := store.Save(ctx, ref, taskDoc{ID: "doc-1", Title: "Write tests"}, state.Meta{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), meta.Revision)
	assert.NotEmpty(t, meta.ETag)

	var sawUpsert bool
	for _, stmt := range conn.execs {
		if strings.Contains(stmt, "ON CONFLICT(ref)") && strings.Contains(stmt, "$1") {
			sawUpsert = true
			break
		}
	}
	assert.True(t, sawUpsert, "expected a positional upsert, got execs: %v", conn.execs)

	rows := conn.tables["entity_records"]
	require.Len(t, rows, 1)
	assert.Equal(t, "task_list/doc-1", rows[0]["ref"])
	assert.Equal(t, "task_list", rows[0]["kind"])
	payload, _ := rows[0]["payload"].([]byte)
	assert.Contains(t, string(payload), `"title":"Write tests"`)

	got, loadedMeta, ok, err := store.Load(ctx, ref)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Write tests", got.Title)
	assert.Equal(t, meta.ETag, loadedMeta.ETag)
}

func TestSaveBumpsRevisionOnOverwrite(t *testing.T) {
	ctx := context.Background()
	db, _ := newStubDB()
	store, err := NewWithDB[taskDoc](db)
	require.NoError(t, err)
	ref := state.Ref{Kind: "task_list", ID: "doc-1"}

	first, err := store.Save(ctx, ref, taskDoc{ID: "doc-1", Title: "v1"}, state.Meta{})
	require.NoError(t, err)
	second, err := store.Save(ctx, ref, taskDoc{ID: "doc-1", Title: "v2"}, state.Meta{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Revision)
	assert.NotEqual(t, first.ETag, second.ETag, "each save should mint a fresh etag")
}

func TestSaveETagPrecondition(t *testing.T) {
	ctx := context.Background()
	db, _ := newStubDB()
	store, err := NewWithDB[taskDoc](db)
	require.NoError(t, err)
	ref := state.Ref{Kind: "task_list", ID: "doc-1"}

	first, err := store.Save(ctx, ref, taskDoc{ID: "doc-1", Title: "v1"}, state.Meta{})
	require.NoError(t, err)
	_, err = store.Save(ctx, ref, taskDoc{ID: "doc-1", Title: "v2"}, state.Meta{ETag: first.ETag})
	require.NoError(t, err, "a matching precondition should pass")
	_, err = store.Save(ctx, ref, taskDoc{ID: "doc-1", Title: "v3"}, state.Meta{ETag: first.ETag})
	require.ErrorIs(t, err, state.ErrETagMismatch)
}

func TestLoadMissingRecord(t *testing.T) {
	db, _ := newStubDB()
	store, err := NewWithDB[taskDoc](db)
	require.NoError(t, err)

	_, _, ok, err := store.Load(context.Background(), state.Ref{Kind: "task_list", ID: "missing"})
	require.NoError(t, err)
	assert.False(t, ok, "expected no record")
}

// stubConn records normalized statements and keeps upserted rows in memory so
// store tests run without a live server.
type stubConn struct {
	execs    []string
	tables   map[string][]map[string]any
	failPing bool
}

var stubSeq atomic.Int64

func newStubDB() (*sql.DB, *stubConn) {
	conn := &stubConn{tables: make(map[string][]map[string]any)}
	name := fmt.Sprintf("stubpg%d", stubSeq.Add(1))
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

type stubDriver struct {
	conn *stubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) {
	return d.conn, nil
}

// Prepare implements driver.Conn.
func (c *stubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }

// Close implements driver.Conn.
func (c *stubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *stubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *stubConn) Ping(_ context.Context) error {
	if c.failPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx.
func (c *stubConn) BeginTx(_ context.Context, _ driver.TxOptions) (driver.Tx, error) {
	return &stubTx{}, nil
}

// ExecContext implements driver.ExecerContext.
func (c *stubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.execs = append(c.execs, query)
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "INSERT INTO") {
		table, cols, err := parseInsert(query)
		if err != nil {
			return nil, err
		}
		if len(cols) != len(args) {
			return nil, fmt.Errorf("column/arg mismatch for %s", table)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = args[i].Value
		}
		if strings.Contains(strings.ToUpper(query), "ON CONFLICT") && len(cols) > 0 {
			primary := cols[0]
			var filtered []map[string]any
			for _, existing := range c.tables[table] {
				if existing[primary] == row[primary] {
					continue
				}
				filtered = append(filtered, existing)
			}
			c.tables[table] = filtered
		}
		c.tables[table] = append(c.tables[table], row)
		return driver.RowsAffected(1), nil
	}
	return driver.RowsAffected(0), nil
}

// QueryContext implements driver.QueryerContext.
func (c *stubConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	table, cols, err := parseSelect(query)
	if err != nil {
		return nil, err
	}
	match := func(map[string]any) bool { return true }
	if strings.Contains(strings.ToLower(query), " where ref = $1") && len(args) == 1 {
		want := args[0].Value
		match = func(row map[string]any) bool { return row["ref"] == want }
	}
	var values [][]driver.Value
	for _, row := range c.tables[table] {
		if !match(row) {
			continue
		}
		vals := make([]driver.Value, len(cols))
		for i, col := range cols {
			vals[i] = row[col]
		}
		values = append(values, vals)
	}
	return &stubRows{cols: cols, rows: values}, nil
}

type stubTx struct{}

func (t *stubTx) Commit() error   { return nil }
func (t *stubTx) Rollback() error { return nil }

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}

func parseInsert(query string) (string, []string, error) {
	up := strings.ToUpper(query)
	intoIdx := strings.Index(up, "INTO ")
	if intoIdx == -1 {
		return "", nil, fmt.Errorf("cannot parse insert: %s", query)
	}
	rest := strings.TrimSpace(query[intoIdx+len("INTO "):])
	open := strings.Index(rest, "(")
	closeIdx := strings.Index(rest, ")")
	if open == -1 || closeIdx == -1 || closeIdx <= open {
		return "", nil, fmt.Errorf("cannot parse insert: %s", query)
	}
	table := strings.ToLower(strings.TrimSpace(rest[:open]))
	cols := splitColumns(rest[open+1 : closeIdx])
	return table, cols, nil
}

func parseSelect(query string) (string, []string, error) {
	lower := strings.ToLower(query)
	selectPrefix := "select "
	fromToken := " from "
	if !strings.HasPrefix(lower, selectPrefix) {
		return "", nil, fmt.Errorf("cannot parse select: %s", query)
	}
	fromIdx := strings.Index(lower, fromToken)
	if fromIdx == -1 {
		return "", nil, fmt.Errorf("cannot parse select: %s", query)
	}
	cols := query[len(selectPrefix):fromIdx]
	table := strings.TrimSpace(query[fromIdx+len(fromToken):])
	if table == "" {
		return "", nil, fmt.Errorf("cannot parse select: %s", query)
	}
	table = strings.Fields(table)[0]
	return strings.ToLower(table), splitColumns(cols), nil
}

func splitColumns(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		out = append(out, strings.ToLower(strings.TrimSpace(part)))
	}
	return out
}
