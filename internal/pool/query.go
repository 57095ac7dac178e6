// Gambit - Chess Statistics over an Embedded Read-Mostly Dataset
// Copyright 2026 Gambit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gambit-analytics/gambit

package pool

import "context"

// Query acquires a connection, runs the statement, and releases the
// connection in a defer, so a failing query can never leak it.
func (p *Pool) Query(ctx context.Context, sql string, args ...interface{}) ([]map[string]interface{}, error) {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Release(conn)

	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		p.mu.Lock()
		p.queryErrors++
		p.mu.Unlock()
		return nil, err
	}
	return rows, nil
}

// Get runs the statement and returns the first row, or nil when the result
// set is empty. An empty result is not an error.
func (p *Pool) Get(ctx context.Context, sql string, args ...interface{}) (map[string]interface{}, error) {
	rows, err := p.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}
