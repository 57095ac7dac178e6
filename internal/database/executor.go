// Gambit - Chess Statistics over an Embedded Read-Mostly Dataset
// Copyright 2026 Gambit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gambit-analytics/gambit

// Package database ties the connection pool, the query cache, and the
// circuit breaker into one execution path for the statistics layer.
package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/gambit-analytics/gambit/internal/cache"
	"github.com/gambit-analytics/gambit/internal/logging"
	"github.com/gambit-analytics/gambit/internal/metrics"
	"github.com/gambit-analytics/gambit/internal/pool"
)

// Row is one result row keyed by column name.
type Row = map[string]interface{}

// ErrDatabaseUnavailable is returned when the circuit breaker is open and
// queries are being rejected without touching the pool.
var ErrDatabaseUnavailable = errors.New("database: unavailable")

// BreakerConfig tunes the circuit breaker around query execution.
type BreakerConfig struct {
	Enabled             bool
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
	HalfOpenRequests    uint32
}

// Executor runs statistics queries through a cache-first, breaker-guarded
// pipeline:
//
//  1. Cacheable queries (SELECT/WITH with a positive TTL) check the cache.
//  2. Misses acquire a pooled connection and execute through the breaker.
//  3. Successful results are stored with the caller's TTL.
//
// Concurrent misses for the same key each execute the query; the dataset is
// read-only so duplicated work is wasted effort, never inconsistency, and a
// de-duplication layer has not been worth its complexity.
type Executor struct {
	pool  *pool.Pool
	cache *cache.QueryCache
	cb    *gobreaker.CircuitBreaker[[]Row]
}

// NewExecutor wires an executor over an existing pool and cache. A nil cache
// disables caching; BreakerConfig.Enabled=false disables the breaker.
func NewExecutor(p *pool.Pool, qc *cache.QueryCache, cfg BreakerConfig) *Executor {
	e := &Executor{pool: p, cache: qc}

	if cfg.Enabled {
		const cbName = "duckdb-query"
		metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

		e.cb = gobreaker.NewCircuitBreaker[[]Row](gobreaker.Settings{
			Name:        cbName,
			MaxRequests: cfg.HalfOpenRequests,
			Timeout:     cfg.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
			},
			// Load shedding is not database ill health: timeouts waiting
			// for a connection and caller cancellations must not trip the
			// breaker.
			IsSuccessful: func(err error) bool {
				if err == nil {
					return true
				}
				return errors.Is(err, pool.ErrAcquireTimeout) ||
					errors.Is(err, pool.ErrQueueFull) ||
					errors.Is(err, context.Canceled) ||
					errors.Is(err, context.DeadlineExceeded)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				fromStr := stateToString(from)
				toStr := stateToString(to)
				logging.Warn().
					Str("breaker", name).
					Str("from", fromStr).
					Str("to", toStr).
					Msg("Circuit breaker state change")
				metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
				metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
			},
		})
	}

	return e
}

// Query executes a statement cache-first. The returned bool reports whether
// the result came from the cache. A non-positive ttl, a non-read statement,
// or a nil cache bypasses caching entirely.
//
// Cache hits return a fresh slice, but the row maps inside it are shared with
// the cache entry and must be treated as read-only.
func (e *Executor) Query(ctx context.Context, sql string, args []interface{}, ttl time.Duration) ([]Row, bool, error) {
	useCache := e.cache != nil && ttl > 0 && isCacheable(sql)

	var key string
	if useCache {
		key = cache.Key(sql, args)
		if hit, ok := e.cache.Get(key); ok {
			rows, ok := hit.([]Row)
			if ok {
				// Copy the slice so callers appending to or reordering the
				// result cannot corrupt the cached entry.
				out := make([]Row, len(rows))
				copy(out, rows)
				return out, true, nil
			}
			// A foreign type under our key means the entry is unusable;
			// fall through and recompute.
		}
	}

	rows, err := e.execute(ctx, sql, args)
	if err != nil {
		return nil, false, err
	}

	if useCache {
		e.cache.Set(key, sql, rows, ttl)
	}
	return rows, false, nil
}

// Get runs a query cache-first and returns the first row, or nil when the
// result set is empty. The bool reports a cache hit, as in Query.
func (e *Executor) Get(ctx context.Context, sql string, args []interface{}, ttl time.Duration) (Row, bool, error) {
	rows, cached, err := e.Query(ctx, sql, args, ttl)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, cached, nil
	}
	return rows[0], cached, nil
}

// QueryUncached executes a statement straight through the pool and breaker.
func (e *Executor) QueryUncached(ctx context.Context, sql string, args ...interface{}) ([]Row, error) {
	return e.execute(ctx, sql, args)
}

// execute runs the query on a pooled connection, inside the breaker when one
// is configured.
func (e *Executor) execute(ctx context.Context, sql string, args []interface{}) ([]Row, error) {
	if e.cb == nil {
		return e.queryDirect(ctx, sql, args)
	}

	rows, err := e.cb.Execute(func() ([]Row, error) {
		return e.queryDirect(ctx, sql, args)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit breaker open", ErrDatabaseUnavailable)
		}
		return nil, err
	}
	return rows, nil
}

// queryDirect runs the statement through the pool's acquire/execute/release
// round trip.
func (e *Executor) queryDirect(ctx context.Context, sql string, args []interface{}) ([]Row, error) {
	start := time.Now()
	rows, err := e.pool.Query(ctx, sql, args...)
	metrics.RecordDBQuery(operationOf(sql), time.Since(start), err)
	if err != nil {
		// Saturation and shutdown are pool conditions, not query failures.
		if IsSaturation(err) || errors.Is(err, pool.ErrPoolClosed) {
			return nil, err
		}
		logging.Error().
			Err(err).
			Str("operation", operationOf(sql)).
			Msg("Query failed")
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return rows, nil
}

// Pool exposes the underlying pool for stats reporting.
func (e *Executor) Pool() *pool.Pool { return e.pool }

// Cache exposes the query cache for stats and invalidation endpoints. May be
// nil when caching is disabled.
func (e *Executor) Cache() *cache.QueryCache { return e.cache }

// BreakerState reports the breaker state as a string, or "disabled".
func (e *Executor) BreakerState() string {
	if e.cb == nil {
		return "disabled"
	}
	return stateToString(e.cb.State())
}

// IsSaturation reports whether an error means the pool was too busy to serve
// the query, as opposed to the database being unhealthy.
func IsSaturation(err error) bool {
	return errors.Is(err, pool.ErrAcquireTimeout) || errors.Is(err, pool.ErrQueueFull)
}

// isCacheable reports whether a statement is a read that may be cached.
func isCacheable(sql string) bool {
	head := strings.ToUpper(strings.TrimSpace(sql))
	return strings.HasPrefix(head, "SELECT") || strings.HasPrefix(head, "WITH")
}

// operationOf extracts the leading SQL verb for metric labels.
func operationOf(sql string) string {
	fields := strings.Fields(strings.TrimSpace(sql))
	if len(fields) == 0 {
		return "unknown"
	}
	return strings.ToLower(fields[0])
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
