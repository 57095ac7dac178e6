// Gambit - Chess Statistics over an Embedded Read-Mostly Dataset
// Copyright 2026 Gambit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gambit-analytics/gambit

package pool

import "github.com/gambit-analytics/gambit/internal/logging"

// ReapIdle closes idle connections whose last use is at least IdleTimeout
// ago, never shrinking the pool below MinConnections. Returns the number of
// connections closed.
//
// Only members of the idle set are candidates: connections handed directly
// to waiters never enter it, so a connection cannot be reaped between
// release and hand-off.
func (p *Pool) ReapIdle() int {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0
	}

	now := p.now()
	open := p.openCountLocked()
	var victims []*Conn
	kept := p.idle[:0]

	// Oldest releases sit at the front of the idle slice, so they are
	// considered first.
	for _, c := range p.idle {
		expired := now.Sub(c.lastUsed) >= p.cfg.IdleTimeout
		if expired && open-len(victims) > p.cfg.MinConnections {
			victims = append(victims, c)
		} else {
			kept = append(kept, c)
		}
	}

	if len(victims) == 0 {
		p.idle = kept
		p.mu.Unlock()
		return 0
	}

	p.idle = kept
	p.reaped += int64(len(victims))
	p.closedConns += int64(len(victims))
	stats := p.statsLocked()
	p.mu.Unlock()

	for _, c := range victims {
		if err := c.handle.Close(); err != nil {
			logging.Warn().
				Str("component", "pool").
				Str("connection_id", c.id).
				Err(err).
				Msg("Failed to close reaped connection")
		}
		p.obs.ConnectionClosed(c.id, CloseReasonReaped, stats.Open)
	}
	p.obs.StatsUpdated(stats)

	logging.Debug().
		Str("component", "pool").
		Int("reaped", len(victims)).
		Int("open", stats.Open).
		Msg("Idle connections reaped")

	return len(victims)
}
