// Gambit - Chess Statistics over an Embedded Read-Mostly Dataset
// Copyright 2026 Gambit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gambit-analytics/gambit

package services

import (
	"context"
	"time"

	"github.com/gambit-analytics/gambit/internal/logging"
)

// TickerService runs a maintenance function on a fixed interval under
// supervision. The pool's idle reaper and the cache's expiry sweeper both run
// as ticker services in the data layer.
type TickerService struct {
	name     string
	interval time.Duration
	tick     func(ctx context.Context)
}

// NewTickerService creates a ticker service. The function runs once per
// interval until the context is canceled; it must return promptly.
func NewTickerService(name string, interval time.Duration, tick func(ctx context.Context)) *TickerService {
	return &TickerService{
		name:     name,
		interval: interval,
		tick:     tick,
	}
}

// Serve implements suture.Service.
func (s *TickerService) Serve(ctx context.Context) error {
	logging.Debug().
		Str("service", s.name).
		Dur("interval", s.interval).
		Msg("Ticker service started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// String implements fmt.Stringer for suture's log messages.
func (s *TickerService) String() string {
	return s.name
}
