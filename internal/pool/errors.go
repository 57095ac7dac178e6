// Gambit - Chess Statistics over an Embedded Read-Mostly Dataset
// Copyright 2026 Gambit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gambit-analytics/gambit

package pool

import "errors"

var (
	// ErrDatabaseUnavailable is returned when the backing database file is
	// missing or unreadable at open time. Distinct from per-query failures so
	// the host can enter degraded mode instead of crashing.
	ErrDatabaseUnavailable = errors.New("pool: database unavailable")

	// ErrAcquireTimeout is returned when a caller waited the full acquire
	// timeout without a connection becoming available.
	ErrAcquireTimeout = errors.New("pool: timed out waiting for a connection")

	// ErrQueueFull is returned when the acquire wait queue has reached its
	// configured depth and the pool sheds the request immediately.
	ErrQueueFull = errors.New("pool: wait queue is full")

	// ErrPoolClosed is returned for any acquire after Close has begun.
	ErrPoolClosed = errors.New("pool: closed")
)
