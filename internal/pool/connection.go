// Gambit - Chess Statistics over an Embedded Read-Mostly Dataset
// Copyright 2026 Gambit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gambit-analytics/gambit

package pool

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/google/uuid"
)

// Handle is a single underlying database session. Implementations own row
// scanning so callers (and test fakes) never touch *sql.Rows.
type Handle interface {
	// Query runs a statement and returns all rows as column-name keyed maps.
	Query(ctx context.Context, query string, args ...interface{}) ([]map[string]interface{}, error)

	// Ping verifies the session is still usable.
	Ping(ctx context.Context) error

	// Close releases the session.
	Close() error
}

// Factory opens a new Handle. The pool calls it during pre-warm and whenever
// demand exceeds the idle set while under the max connection cap.
type Factory func(ctx context.Context) (Handle, error)

// Conn is a pooled connection checked out by exactly one caller at a time.
// Callers must return it with Pool.Release and must not use it afterwards.
type Conn struct {
	id        string
	handle    Handle
	createdAt time.Time

	// lastUsed is the release timestamp the reaper ages against.
	// Guarded by the owning pool's mutex.
	lastUsed time.Time

	// useCount is the number of times this connection has been checked out.
	// Guarded by the owning pool's mutex.
	useCount int64
}

// ID returns the connection's unique identifier, used in logs and events.
func (c *Conn) ID() string { return c.id }

// CreatedAt returns when the underlying session was opened.
func (c *Conn) CreatedAt() time.Time { return c.createdAt }

// Query runs a statement on the underlying session.
func (c *Conn) Query(ctx context.Context, query string, args ...interface{}) ([]map[string]interface{}, error) {
	return c.handle.Query(ctx, query, args...)
}

// Ping verifies the underlying session.
func (c *Conn) Ping(ctx context.Context) error {
	return c.handle.Ping(ctx)
}

// DuckDBConfig holds the per-session settings for DuckDB handles.
type DuckDBConfig struct {
	// Path is the database file. It must already exist; the pool serves a
	// pre-built dataset and never creates or migrates it.
	Path string

	// MaxMemory is the per-session memory cap, e.g. "2GB".
	MaxMemory string

	// Threads is the per-session thread count. 0 = NumCPU.
	Threads int
}

// NewDuckDBFactory returns a Factory opening read-only DuckDB sessions
// against the configured database file.
//
// Each Handle wraps its own *sql.DB pinned to a single underlying connection
// (SetMaxOpenConns(1)) so the pool, not database/sql, owns concurrency.
func NewDuckDBFactory(cfg DuckDBConfig) Factory {
	return func(ctx context.Context) (Handle, error) {
		if _, err := os.Stat(cfg.Path); err != nil {
			return nil, fmt.Errorf("%w: database file %s: %v", ErrDatabaseUnavailable, cfg.Path, err)
		}

		threads := cfg.Threads
		if threads <= 0 {
			threads = runtime.NumCPU()
		}

		connStr := fmt.Sprintf("%s?access_mode=read_only&threads=%d&max_memory=%s",
			cfg.Path, threads, cfg.MaxMemory)

		db, err := sql.Open("duckdb", connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)

		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: ping failed: %v", ErrDatabaseUnavailable, err)
		}

		return &duckDBHandle{db: db}, nil
	}
}

// duckDBHandle is the production Handle over one DuckDB session.
type duckDBHandle struct {
	db *sql.DB
}

func (h *duckDBHandle) Query(ctx context.Context, query string, args ...interface{}) ([]map[string]interface{}, error) {
	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanRows(rows)
}

func (h *duckDBHandle) Ping(ctx context.Context) error {
	return h.db.PingContext(ctx)
}

func (h *duckDBHandle) Close() error {
	return h.db.Close()
}

// scanRows materializes a result set into column-name keyed maps.
func scanRows(rows *sql.Rows) ([]map[string]interface{}, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var out []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]interface{}, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}
	return out, nil
}

// newConn wraps a Handle for pool bookkeeping.
func newConn(handle Handle, now time.Time) *Conn {
	return &Conn{
		id:        uuid.NewString(),
		handle:    handle,
		createdAt: now,
		lastUsed:  now,
	}
}
