// Gambit - Chess Statistics over an Embedded Read-Mostly Dataset
// Copyright 2026 Gambit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gambit-analytics/gambit

// Package pool implements the bounded connection pool in front of the
// embedded DuckDB dataset.
//
// The pool keeps between MinConnections and MaxConnections sessions open.
// When every session is checked out, callers queue in FIFO order; a released
// connection is handed directly to the oldest waiter without ever entering
// the idle set, so the idle reaper can only close connections that are
// genuinely idle. Waiting is bounded by AcquireTimeout and, optionally, by
// MaxQueueDepth for explicit load shedding.
package pool

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gambit-analytics/gambit/internal/logging"
	"github.com/gambit-analytics/gambit/internal/metrics"
)

// Config bounds the pool's behavior. Values arrive pre-validated from the
// configuration layer.
type Config struct {
	MinConnections int
	MaxConnections int
	AcquireTimeout time.Duration
	IdleTimeout    time.Duration
	MaxQueueDepth  int
	ShutdownGrace  time.Duration
}

// Stats is a point-in-time snapshot of pool state and counters.
type Stats struct {
	Open            int   `json:"open"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	Waiting         int   `json:"waiting"`
	MinConnections  int   `json:"min_connections"`
	MaxConnections  int   `json:"max_connections"`
	Created         int64 `json:"created"`
	Closed          int64 `json:"closed"`
	Reaped          int64 `json:"reaped"`
	Acquires        int64 `json:"acquires"`
	Releases        int64 `json:"releases"`
	Handoffs        int64 `json:"handoffs"`
	AcquireTimeouts int64 `json:"acquire_timeouts"`
	QueueRejections int64 `json:"queue_rejections"`
	QueryErrors     int64 `json:"query_errors"`

	// AvgUseCount is the mean number of checkouts per currently open
	// connection. A low value with high Created suggests churn.
	AvgUseCount float64 `json:"avg_use_count"`
}

// waiter is a suspended Acquire call. ch is buffered so delivery under the
// pool lock never blocks; elem is nilled at delivery time, which is how an
// abandoning waiter tells a pending hand-off from a still-queued entry.
type waiter struct {
	ch         chan *Conn
	elem       *list.Element
	enqueuedAt time.Time
}

// Pool is a thread-safe bounded connection pool.
type Pool struct {
	cfg     Config
	factory Factory
	obs     Observer
	now     func() time.Time

	mu      sync.Mutex
	idle    []*Conn // most recently released at the end
	inUse   map[*Conn]struct{}
	waiters *list.List // of *waiter, oldest at front
	opening int        // sessions being opened, counted against the cap
	closed  bool

	drainOnce sync.Once
	drained   chan struct{}

	created     int64
	closedConns int64
	reaped      int64
	acquires    int64
	releases    int64
	handoffs    int64
	timeouts    int64
	rejections  int64
	queryErrors int64
}

// Option customizes pool construction.
type Option func(*Pool)

// WithObserver attaches an observer for pool lifecycle events.
func WithObserver(obs Observer) Option {
	return func(p *Pool) { p.obs = obs }
}

// WithClock overrides the pool's time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) { p.now = now }
}

// New creates a pool and eagerly opens MinConnections sessions. If any
// pre-warm open fails the pool is unusable: everything already opened is
// closed and the error is returned, leaving degraded-mode handling to the
// caller.
func New(ctx context.Context, cfg Config, factory Factory, opts ...Option) (*Pool, error) {
	p := &Pool{
		cfg:     cfg,
		factory: factory,
		obs:     NopObserver{},
		now:     time.Now,
		inUse:   make(map[*Conn]struct{}),
		waiters: list.New(),
		drained: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	for i := 0; i < cfg.MinConnections; i++ {
		handle, err := factory(ctx)
		if err != nil {
			remaining := len(p.idle)
			for _, c := range p.idle {
				_ = c.handle.Close()
				remaining--
				p.closedConns++
				p.obs.ConnectionClosed(c.id, CloseReasonInitFailure, remaining)
			}
			return nil, fmt.Errorf("pool: pre-warm connection %d/%d: %w", i+1, cfg.MinConnections, err)
		}
		c := newConn(handle, p.now())
		p.idle = append(p.idle, c)
		p.created++
		p.obs.ConnectionCreated(c.id, len(p.idle))
	}

	p.obs.StatsUpdated(p.snapshot())

	logging.Info().
		Str("component", "pool").
		Int("min_connections", cfg.MinConnections).
		Int("max_connections", cfg.MaxConnections).
		Msg("Connection pool ready")

	return p, nil
}

// Acquire checks out a connection, opening a new session when the idle set
// is empty and the pool is below its cap, and otherwise queueing until one
// is released. It fails with ErrAcquireTimeout after the configured wait,
// ErrQueueFull when the wait queue is saturated, ErrPoolClosed after Close,
// or ctx.Err() when the caller's context ends first.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	start := p.now()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}

	if n := len(p.idle); n > 0 {
		c := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.inUse[c] = struct{}{}
		c.useCount++
		p.acquires++
		stats := p.statsLocked()
		p.mu.Unlock()

		p.obs.ConnectionAcquired(c.id, p.now().Sub(start))
		p.obs.StatsUpdated(stats)
		return c, nil
	}

	if p.openCountLocked() < p.cfg.MaxConnections {
		p.opening++
		p.mu.Unlock()
		return p.acquireNew(ctx, start)
	}

	if p.cfg.MaxQueueDepth > 0 && p.waiters.Len() >= p.cfg.MaxQueueDepth {
		p.rejections++
		p.mu.Unlock()
		metrics.PoolQueueRejections.Inc()
		return nil, ErrQueueFull
	}

	w := &waiter{ch: make(chan *Conn, 1), enqueuedAt: start}
	w.elem = p.waiters.PushBack(w)
	stats := p.statsLocked()
	p.mu.Unlock()
	p.obs.StatsUpdated(stats)

	timer := time.NewTimer(p.cfg.AcquireTimeout)
	defer timer.Stop()

	select {
	case c := <-w.ch:
		if c == nil {
			return nil, ErrPoolClosed
		}
		p.obs.ConnectionAcquired(c.id, p.now().Sub(start))
		return c, nil
	case <-timer.C:
		return nil, p.abandonWaiter(w, ErrAcquireTimeout)
	case <-ctx.Done():
		return nil, p.abandonWaiter(w, ctx.Err())
	}
}

// acquireNew opens a session outside the lock; the opening counter holds its
// slot against the cap in the meantime.
func (p *Pool) acquireNew(ctx context.Context, start time.Time) (*Conn, error) {
	handle, err := p.factory(ctx)

	p.mu.Lock()
	p.opening--
	if err != nil {
		p.checkDrainedLocked()
		p.mu.Unlock()
		return nil, fmt.Errorf("pool: failed to open connection: %w", err)
	}
	if p.closed {
		p.checkDrainedLocked()
		p.mu.Unlock()
		_ = handle.Close()
		return nil, ErrPoolClosed
	}

	c := newConn(handle, p.now())
	p.inUse[c] = struct{}{}
	c.useCount++
	p.created++
	p.acquires++
	open := p.openCountLocked()
	stats := p.statsLocked()
	p.mu.Unlock()

	p.obs.ConnectionCreated(c.id, open)
	p.obs.ConnectionAcquired(c.id, p.now().Sub(start))
	p.obs.StatsUpdated(stats)
	return c, nil
}

// Release returns a checked-out connection. With waiters queued the
// connection is handed straight to the oldest one and never touches the
// idle set.
func (p *Pool) Release(c *Conn) {
	if c == nil {
		return
	}

	p.mu.Lock()
	if _, ok := p.inUse[c]; !ok {
		p.mu.Unlock()
		logging.Warn().
			Str("component", "pool").
			Str("connection_id", c.id).
			Msg("Release of a connection that is not checked out")
		return
	}
	c.lastUsed = p.now()

	if p.closed {
		delete(p.inUse, c)
		p.releases++
		p.closedConns++
		p.checkDrainedLocked()
		stats := p.statsLocked()
		p.mu.Unlock()

		_ = c.handle.Close()
		p.obs.ConnectionClosed(c.id, CloseReasonShutdown, stats.Open)
		p.obs.StatsUpdated(stats)
		return
	}

	if front := p.waiters.Front(); front != nil {
		w := front.Value.(*waiter)
		p.waiters.Remove(front)
		w.elem = nil
		c.useCount++
		p.releases++
		p.handoffs++
		p.acquires++
		w.ch <- c // buffered; connection stays in inUse
		stats := p.statsLocked()
		p.mu.Unlock()

		p.obs.ConnectionReleased(c.id)
		p.obs.StatsUpdated(stats)
		return
	}

	delete(p.inUse, c)
	p.idle = append(p.idle, c)
	p.releases++
	stats := p.statsLocked()
	p.mu.Unlock()

	p.obs.ConnectionReleased(c.id)
	p.obs.StatsUpdated(stats)
}

// abandonWaiter removes w from the queue after a timeout or cancellation.
// If delivery already happened (elem is nil, set under the pool lock before
// the buffered send), the connection is pulled back out of the buffer and
// released so it is not leaked.
func (p *Pool) abandonWaiter(w *waiter, cause error) error {
	p.mu.Lock()
	stillQueued := w.elem != nil
	if stillQueued {
		p.waiters.Remove(w.elem)
		w.elem = nil
	}
	if errors.Is(cause, ErrAcquireTimeout) {
		p.timeouts++
	}
	stats := p.statsLocked()
	p.mu.Unlock()

	if errors.Is(cause, ErrAcquireTimeout) {
		metrics.PoolAcquireTimeouts.Inc()
	}
	p.obs.StatsUpdated(stats)

	if !stillQueued {
		select {
		case c := <-w.ch:
			if c != nil {
				p.Release(c)
			}
		default:
		}
	}
	return cause
}

// Stats returns a snapshot of the pool's state.
func (p *Pool) Stats() Stats {
	return p.snapshot()
}

// Close stops the pool: pending waiters fail with ErrPoolClosed, idle
// connections close immediately, and in-use connections get the shutdown
// grace period (bounded also by ctx) to drain before being force-closed.
// Returns an error only when connections had to be force-closed.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true

	for elem := p.waiters.Front(); elem != nil; elem = elem.Next() {
		w := elem.Value.(*waiter)
		w.elem = nil
		w.ch <- nil
	}
	p.waiters.Init()

	victims := p.idle
	p.idle = nil
	p.closedConns += int64(len(victims))
	p.checkDrainedLocked()
	stats := p.statsLocked()
	p.mu.Unlock()

	for _, c := range victims {
		_ = c.handle.Close()
		p.obs.ConnectionClosed(c.id, CloseReasonShutdown, stats.Open)
	}
	p.obs.StatsUpdated(stats)

	var timerC <-chan time.Time
	if p.cfg.ShutdownGrace > 0 {
		timer := time.NewTimer(p.cfg.ShutdownGrace)
		defer timer.Stop()
		timerC = timer.C
	}

	select {
	case <-p.drained:
		return nil
	case <-ctx.Done():
	case <-timerC:
	}

	p.mu.Lock()
	remaining := make([]*Conn, 0, len(p.inUse))
	for c := range p.inUse {
		remaining = append(remaining, c)
		delete(p.inUse, c)
	}
	p.closedConns += int64(len(remaining))
	p.checkDrainedLocked()
	stats = p.statsLocked()
	p.mu.Unlock()

	for _, c := range remaining {
		_ = c.handle.Close()
		p.obs.ConnectionClosed(c.id, CloseReasonForced, stats.Open)
	}
	p.obs.StatsUpdated(stats)

	if len(remaining) > 0 {
		logging.Warn().
			Str("component", "pool").
			Int("count", len(remaining)).
			Msg("Force-closed in-use connections at shutdown")
		return fmt.Errorf("pool: force-closed %d in-use connections", len(remaining))
	}
	return nil
}

// openCountLocked is every session the pool is responsible for, including
// ones still being opened.
func (p *Pool) openCountLocked() int {
	return len(p.idle) + len(p.inUse) + p.opening
}

func (p *Pool) statsLocked() Stats {
	var uses int64
	for _, c := range p.idle {
		uses += c.useCount
	}
	for c := range p.inUse {
		uses += c.useCount
	}
	var avg float64
	if open := len(p.idle) + len(p.inUse); open > 0 {
		avg = float64(uses) / float64(open)
	}

	return Stats{
		Open:            p.openCountLocked(),
		InUse:           len(p.inUse),
		Idle:            len(p.idle),
		Waiting:         p.waiters.Len(),
		MinConnections:  p.cfg.MinConnections,
		MaxConnections:  p.cfg.MaxConnections,
		Created:         p.created,
		Closed:          p.closedConns,
		Reaped:          p.reaped,
		Acquires:        p.acquires,
		Releases:        p.releases,
		Handoffs:        p.handoffs,
		AcquireTimeouts: p.timeouts,
		QueueRejections: p.rejections,
		QueryErrors:     p.queryErrors,
		AvgUseCount:     avg,
	}
}

func (p *Pool) snapshot() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statsLocked()
}

// checkDrainedLocked signals Close once nothing is checked out or opening.
func (p *Pool) checkDrainedLocked() {
	if p.closed && len(p.inUse) == 0 && p.opening == 0 {
		p.drainOnce.Do(func() { close(p.drained) })
	}
}
