// Gambit - Chess Statistics over an Embedded Read-Mostly Dataset
// Copyright 2026 Gambit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gambit-analytics/gambit

package pool

import (
	"time"

	"github.com/gambit-analytics/gambit/internal/logging"
	"github.com/gambit-analytics/gambit/internal/metrics"
)

// Observer receives pool lifecycle events. Callbacks run outside the pool
// lock but on hot paths, so implementations must be fast and must not call
// back into the pool.
type Observer interface {
	ConnectionCreated(id string, open int)
	ConnectionClosed(id, reason string, open int)
	ConnectionAcquired(id string, wait time.Duration)
	ConnectionReleased(id string)
	StatsUpdated(s Stats)
}

// Close reasons reported through ConnectionClosed.
const (
	CloseReasonReaped      = "reaped"
	CloseReasonShutdown    = "shutdown"
	CloseReasonForced      = "forced"
	CloseReasonInitFailure = "init_failure"
)

// NopObserver ignores all events.
type NopObserver struct{}

func (NopObserver) ConnectionCreated(string, int)           {}
func (NopObserver) ConnectionClosed(string, string, int)    {}
func (NopObserver) ConnectionAcquired(string, time.Duration) {}
func (NopObserver) ConnectionReleased(string)               {}
func (NopObserver) StatsUpdated(Stats)                      {}

// LogObserver emits structured log events for pool activity. Acquire and
// release events log at trace level to stay quiet under load.
type LogObserver struct{}

func (LogObserver) ConnectionCreated(id string, open int) {
	logging.Debug().
		Str("component", "pool").
		Str("connection_id", id).
		Int("open", open).
		Msg("Connection opened")
}

func (LogObserver) ConnectionClosed(id, reason string, open int) {
	logging.Debug().
		Str("component", "pool").
		Str("connection_id", id).
		Str("reason", reason).
		Int("open", open).
		Msg("Connection closed")
}

func (LogObserver) ConnectionAcquired(id string, wait time.Duration) {
	logging.Trace().
		Str("component", "pool").
		Str("connection_id", id).
		Dur("wait", wait).
		Msg("Connection acquired")
}

func (LogObserver) ConnectionReleased(id string) {
	logging.Trace().
		Str("component", "pool").
		Str("connection_id", id).
		Msg("Connection released")
}

func (LogObserver) StatsUpdated(Stats) {}

// MetricsObserver mirrors pool activity into Prometheus collectors.
type MetricsObserver struct{}

func (MetricsObserver) ConnectionCreated(string, int) {
	metrics.PoolConnectionsCreated.Inc()
}

func (MetricsObserver) ConnectionClosed(_, reason string, _ int) {
	if reason == CloseReasonReaped {
		metrics.PoolConnectionsReaped.Inc()
	}
}

func (MetricsObserver) ConnectionAcquired(_ string, wait time.Duration) {
	metrics.RecordAcquire(wait)
}

func (MetricsObserver) ConnectionReleased(string) {}

func (MetricsObserver) StatsUpdated(s Stats) {
	metrics.UpdatePoolGauges(s.Open, s.InUse, s.Idle, s.Waiting)
}

// MultiObserver fans events out to several observers in order.
type MultiObserver []Observer

func (m MultiObserver) ConnectionCreated(id string, open int) {
	for _, o := range m {
		o.ConnectionCreated(id, open)
	}
}

func (m MultiObserver) ConnectionClosed(id, reason string, open int) {
	for _, o := range m {
		o.ConnectionClosed(id, reason, open)
	}
}

func (m MultiObserver) ConnectionAcquired(id string, wait time.Duration) {
	for _, o := range m {
		o.ConnectionAcquired(id, wait)
	}
}

func (m MultiObserver) ConnectionReleased(id string) {
	for _, o := range m {
		o.ConnectionReleased(id)
	}
}

func (m MultiObserver) StatsUpdated(s Stats) {
	for _, o := range m {
		o.StatsUpdated(s)
	}
}
