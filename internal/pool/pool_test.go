// Gambit - Chess Statistics over an Embedded Read-Mostly Dataset
// Copyright 2026 Gambit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gambit-analytics/gambit

package pool

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gambit-analytics/gambit/internal/logging"
)

// fakeHandle is an in-memory Handle so pool behavior is testable without a
// database file.
type fakeHandle struct {
	closed   atomic.Bool
	rows     []map[string]interface{}
	queryErr error
}

func (h *fakeHandle) Query(_ context.Context, _ string, _ ...interface{}) ([]map[string]interface{}, error) {
	if h.closed.Load() {
		return nil, errors.New("handle closed")
	}
	if h.queryErr != nil {
		return nil, h.queryErr
	}
	return h.rows, nil
}

func (h *fakeHandle) Ping(context.Context) error {
	if h.closed.Load() {
		return errors.New("handle closed")
	}
	return nil
}

func (h *fakeHandle) Close() error {
	h.closed.Store(true)
	return nil
}

// fakeFactory counts opens and can be told to fail, immediately or after a
// number of successful opens.
type fakeFactory struct {
	mu        sync.Mutex
	opened    int
	handles   []*fakeHandle
	fail      bool
	failAfter int
}

func (f *fakeFactory) factory(context.Context) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail || (f.failAfter > 0 && f.opened >= f.failAfter) {
		return nil, errors.New("no such file or directory")
	}
	f.opened++
	h := &fakeHandle{rows: []map[string]interface{}{{"n": int64(1)}}}
	f.handles = append(f.handles, h)
	return h, nil
}

func (f *fakeFactory) openedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened
}

func (f *fakeFactory) closedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, h := range f.handles {
		if h.closed.Load() {
			n++
		}
	}
	return n
}

// recordObserver captures lifecycle events for assertions.
type recordObserver struct {
	mu      sync.Mutex
	created int
	closed  []string // close reasons in order
}

func (o *recordObserver) ConnectionCreated(string, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.created++
}

func (o *recordObserver) ConnectionClosed(_, reason string, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = append(o.closed, reason)
}

func (o *recordObserver) ConnectionAcquired(string, time.Duration) {}
func (o *recordObserver) ConnectionReleased(string)                {}
func (o *recordObserver) StatsUpdated(Stats)                       {}

func (o *recordObserver) closeReasons() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.closed...)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig() Config {
	return Config{
		MinConnections: 3,
		MaxConnections: 15,
		AcquireTimeout: time.Second,
		IdleTimeout:    5 * time.Minute,
		MaxQueueDepth:  0,
		ShutdownGrace:  time.Second,
	}
}

func newTestPool(t *testing.T, cfg Config) (*Pool, *fakeFactory, *testClock) {
	t.Helper()
	f := &fakeFactory{}
	clock := newTestClock()
	p, err := New(context.Background(), cfg, f.factory, WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p, f, clock
}

func TestNewPrewarmsMinConnections(t *testing.T) {
	p, f, _ := newTestPool(t, testConfig())

	assert.Equal(t, 3, f.openedCount())

	stats := p.Stats()
	assert.Equal(t, 3, stats.Open)
	assert.Equal(t, 3, stats.Idle)
	assert.Equal(t, 0, stats.InUse)
}

func TestNewFailsWhenFactoryFails(t *testing.T) {
	f := &fakeFactory{fail: true}

	_, err := New(context.Background(), testConfig(), f.factory)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pre-warm")
}

func TestNewClosesPartialPrewarmOnFailure(t *testing.T) {
	f := &fakeFactory{failAfter: 2}
	obs := &recordObserver{}

	_, err := New(context.Background(), testConfig(), f.factory, WithObserver(obs))
	require.Error(t, err)
	assert.Equal(t, 2, f.openedCount())
	assert.Equal(t, 2, f.closedCount(), "partially pre-warmed handles must be closed")

	// Every opened handle reports both a created and a closed event, so
	// observers see a balanced ledger even when startup fails.
	assert.Equal(t, 2, obs.created)
	assert.Equal(t, []string{CloseReasonInitFailure, CloseReasonInitFailure}, obs.closeReasons())
}

func TestNewLogsReadyOnce(t *testing.T) {
	var buf bytes.Buffer
	prev := logging.Logger()
	logging.SetLogger(logging.NewTestLogger(&buf))
	defer logging.SetLogger(prev)

	f := &fakeFactory{}
	p, err := New(context.Background(), testConfig(), f.factory)
	require.NoError(t, err)
	defer func() { _ = p.Close(context.Background()) }()

	assert.Equal(t, 1, strings.Count(buf.String(), "Connection pool ready"),
		"startup must announce the pool exactly once")
}

func TestAcquireReusesIdle(t *testing.T) {
	p, f, _ := newTestPool(t, testConfig())

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(c)

	c2, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer p.Release(c2)

	assert.Equal(t, 3, f.openedCount(), "idle connections should be reused, not reopened")
}

func TestAcquireOpensUpToMax(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConnections = 5
	p, f, _ := newTestPool(t, cfg)

	conns := make([]*Conn, 5)
	for i := range conns {
		c, err := p.Acquire(context.Background())
		require.NoError(t, err)
		conns[i] = c
	}

	assert.Equal(t, 5, f.openedCount())
	assert.Equal(t, 5, p.Stats().InUse)

	for _, c := range conns {
		p.Release(c)
	}
}

func TestAcquireTimesOutWhenSaturated(t *testing.T) {
	cfg := testConfig()
	cfg.MinConnections = 1
	cfg.MaxConnections = 1
	cfg.AcquireTimeout = 30 * time.Millisecond
	p, _, _ := newTestPool(t, cfg)

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer p.Release(c)

	start := time.Now()
	_, err = p.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrAcquireTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	assert.Equal(t, int64(1), p.Stats().AcquireTimeouts)
}

func TestAcquireQueueFull(t *testing.T) {
	cfg := testConfig()
	cfg.MinConnections = 1
	cfg.MaxConnections = 1
	cfg.MaxQueueDepth = 1
	cfg.AcquireTimeout = 500 * time.Millisecond
	p, _, _ := newTestPool(t, cfg)

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)

	// One waiter fills the queue.
	waiting := make(chan error, 1)
	go func() {
		w, err := p.Acquire(context.Background())
		if w != nil {
			p.Release(w)
		}
		waiting <- err
	}()

	require.Eventually(t, func() bool {
		return p.Stats().Waiting == 1
	}, time.Second, time.Millisecond)

	_, err = p.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, int64(1), p.Stats().QueueRejections)

	p.Release(c)
	assert.NoError(t, <-waiting)
}

func TestAcquireHonorsCallerContext(t *testing.T) {
	cfg := testConfig()
	cfg.MinConnections = 1
	cfg.MaxConnections = 1
	cfg.AcquireTimeout = time.Minute
	p, _, _ := newTestPool(t, cfg)

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer p.Release(c)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err = p.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, p.Stats().Waiting)
}

func TestReleaseHandsOffToOldestWaiter(t *testing.T) {
	cfg := testConfig()
	cfg.MinConnections = 1
	cfg.MaxConnections = 1
	p, _, _ := newTestPool(t, cfg)

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)

	type result struct {
		order int
		conn  *Conn
	}
	results := make(chan result, 2)

	// First waiter
	go func() {
		w, err := p.Acquire(context.Background())
		require.NoError(t, err)
		results <- result{order: 1, conn: w}
	}()
	require.Eventually(t, func() bool { return p.Stats().Waiting == 1 }, time.Second, time.Millisecond)

	// Second waiter
	go func() {
		w, err := p.Acquire(context.Background())
		require.NoError(t, err)
		results <- result{order: 2, conn: w}
	}()
	require.Eventually(t, func() bool { return p.Stats().Waiting == 2 }, time.Second, time.Millisecond)

	// Releasing hands the connection to the first waiter; the idle set
	// stays empty throughout.
	p.Release(c)
	first := <-results
	assert.Equal(t, 1, first.order)
	assert.Equal(t, 0, p.Stats().Idle)

	p.Release(first.conn)
	second := <-results
	assert.Equal(t, 2, second.order)
	p.Release(second.conn)

	assert.Equal(t, int64(2), p.Stats().Handoffs)
}

func TestTwentyCallersAgainstFifteenMax(t *testing.T) {
	p, f, _ := newTestPool(t, testConfig())

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := p.Acquire(context.Background())
			if err != nil {
				errs <- err
				return
			}
			if _, err := c.Query(context.Background(), "SELECT 1"); err != nil {
				errs <- err
			}
			time.Sleep(5 * time.Millisecond)
			p.Release(c)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("caller failed: %v", err)
	}

	assert.LessOrEqual(t, f.openedCount(), 15, "must never exceed max connections")

	stats := p.Stats()
	assert.Equal(t, int64(20), stats.Acquires)
	assert.Equal(t, 0, stats.InUse)
	assert.LessOrEqual(t, stats.Open, 15)
}

func TestQueryReleasesConnectionOnError(t *testing.T) {
	cfg := testConfig()
	cfg.MinConnections = 1
	cfg.MaxConnections = 1
	p, f, _ := newTestPool(t, cfg)

	f.handles[0].queryErr = errors.New("parser error")
	_, err := p.Query(context.Background(), "SELEC 1")
	require.Error(t, err)

	stats := p.Stats()
	assert.Equal(t, 0, stats.InUse, "failing query must still release")
	assert.Equal(t, int64(1), stats.QueryErrors)

	// The only connection must be usable again immediately.
	f.handles[0].queryErr = nil
	rows, err := p.Query(context.Background(), "SELECT 1")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestGetReturnsFirstRowOrNil(t *testing.T) {
	cfg := testConfig()
	cfg.MinConnections = 1
	cfg.MaxConnections = 1
	p, f, _ := newTestPool(t, cfg)

	row, err := p.Get(context.Background(), "SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), row["n"])

	f.handles[0].rows = nil
	row, err = p.Get(context.Background(), "SELECT 1 WHERE false")
	require.NoError(t, err)
	assert.Nil(t, row, "empty result is nil, not an error")
}

func TestStatsTracksUseCounts(t *testing.T) {
	cfg := testConfig()
	cfg.MinConnections = 1
	cfg.MaxConnections = 1
	p, _, _ := newTestPool(t, cfg)

	for i := 0; i < 4; i++ {
		c, err := p.Acquire(context.Background())
		require.NoError(t, err)
		p.Release(c)
	}

	stats := p.Stats()
	assert.Equal(t, int64(4), stats.Acquires)
	assert.Equal(t, int64(4), stats.Releases)
	assert.Equal(t, 4.0, stats.AvgUseCount)
}

func TestDuckDBFactoryMissingFile(t *testing.T) {
	factory := NewDuckDBFactory(DuckDBConfig{Path: "/nonexistent/gambit.duckdb", MaxMemory: "1GB"})
	_, err := factory(context.Background())
	assert.ErrorIs(t, err, ErrDatabaseUnavailable)
}

func TestReapIdleRespectsMinConnections(t *testing.T) {
	cfg := testConfig()
	cfg.MinConnections = 2
	cfg.MaxConnections = 10
	p, f, clock := newTestPool(t, cfg)

	// Open three extra connections beyond the pre-warmed two.
	conns := make([]*Conn, 5)
	for i := range conns {
		c, err := p.Acquire(context.Background())
		require.NoError(t, err)
		conns[i] = c
	}
	for _, c := range conns {
		p.Release(c)
	}
	require.Equal(t, 5, p.Stats().Idle)

	clock.Advance(cfg.IdleTimeout + time.Second)

	reaped := p.ReapIdle()
	assert.Equal(t, 3, reaped, "should reap down to min connections")

	stats := p.Stats()
	assert.Equal(t, 2, stats.Open)
	assert.Equal(t, int64(3), stats.Reaped)
	assert.Equal(t, 3, f.closedCount())
}

func TestReapIdleSkipsRecentlyUsed(t *testing.T) {
	cfg := testConfig()
	cfg.MinConnections = 0
	cfg.MaxConnections = 10
	p, _, clock := newTestPool(t, cfg)

	old, err := p.Acquire(context.Background())
	require.NoError(t, err)
	fresh, err := p.Acquire(context.Background())
	require.NoError(t, err)

	p.Release(old)
	clock.Advance(cfg.IdleTimeout + time.Second)
	p.Release(fresh)

	assert.Equal(t, 1, p.ReapIdle())
	assert.Equal(t, 1, p.Stats().Open)
}

func TestReapIdleNothingExpired(t *testing.T) {
	p, _, _ := newTestPool(t, testConfig())
	assert.Equal(t, 0, p.ReapIdle())
	assert.Equal(t, 3, p.Stats().Open)
}

func TestAcquireAfterClose(t *testing.T) {
	p, _, _ := newTestPool(t, testConfig())
	require.NoError(t, p.Close(context.Background()))

	_, err := p.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestCloseFailsWaiters(t *testing.T) {
	cfg := testConfig()
	cfg.MinConnections = 1
	cfg.MaxConnections = 1
	p, _, _ := newTestPool(t, cfg)

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)

	waiting := make(chan error, 1)
	go func() {
		_, err := p.Acquire(context.Background())
		waiting <- err
	}()
	require.Eventually(t, func() bool { return p.Stats().Waiting == 1 }, time.Second, time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- p.Close(context.Background()) }()

	assert.ErrorIs(t, <-waiting, ErrPoolClosed)

	p.Release(c)
	assert.NoError(t, <-done)
}

func TestCloseWaitsForInUse(t *testing.T) {
	p, f, _ := newTestPool(t, testConfig())

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		p.Release(c)
	}()

	require.NoError(t, p.Close(context.Background()))
	assert.Equal(t, f.openedCount(), f.closedCount())
}

func TestCloseForceClosesAfterGrace(t *testing.T) {
	cfg := testConfig()
	cfg.ShutdownGrace = 20 * time.Millisecond
	p, f, _ := newTestPool(t, cfg)

	// Never released.
	_, err := p.Acquire(context.Background())
	require.NoError(t, err)

	err = p.Close(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "force-closed")
	assert.Equal(t, f.openedCount(), f.closedCount())
}

func TestCloseIsIdempotent(t *testing.T) {
	p, _, _ := newTestPool(t, testConfig())
	require.NoError(t, p.Close(context.Background()))
	assert.NoError(t, p.Close(context.Background()))
}

func TestConcurrentAcquireReleaseStress(t *testing.T) {
	cfg := testConfig()
	cfg.MinConnections = 2
	cfg.MaxConnections = 8
	p, f, _ := newTestPool(t, cfg)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				c, err := p.Acquire(context.Background())
				if err != nil {
					t.Errorf("acquire: %v", err)
					return
				}
				p.Release(c)
			}
		}()
	}
	wg.Wait()

	stats := p.Stats()
	assert.Equal(t, 0, stats.InUse)
	assert.Equal(t, 0, stats.Waiting)
	assert.LessOrEqual(t, f.openedCount(), 8)
	assert.Equal(t, int64(16*50), stats.Acquires)
	assert.Equal(t, int64(16*50), stats.Releases)
}
