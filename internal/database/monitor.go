// Gambit - Chess Statistics over an Embedded Read-Mostly Dataset
// Copyright 2026 Gambit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gambit-analytics/gambit

package database

import (
	"time"

	"github.com/gambit-analytics/gambit/internal/cache"
	"github.com/gambit-analytics/gambit/internal/pool"
)

// Report aggregates pool, cache, and breaker state for the stats endpoint.
type Report struct {
	Pool          pool.Stats  `json:"pool"`
	Cache         cache.Stats `json:"cache"`
	Breaker       string      `json:"breaker"`
	UptimeSeconds float64     `json:"uptime_seconds"`
}

// Monitor produces point-in-time reports over a running executor.
type Monitor struct {
	executor *Executor
	started  time.Time
}

// NewMonitor creates a monitor; uptime counts from this call.
func NewMonitor(e *Executor) *Monitor {
	return &Monitor{executor: e, started: time.Now()}
}

// Report returns the current aggregate snapshot.
func (m *Monitor) Report() Report {
	r := Report{
		Pool:          m.executor.Pool().Stats(),
		Breaker:       m.executor.BreakerState(),
		UptimeSeconds: time.Since(m.started).Seconds(),
	}
	if qc := m.executor.Cache(); qc != nil {
		r.Cache = qc.GetStats()
	}
	return r
}
