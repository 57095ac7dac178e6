// Gambit - Chess Statistics over an Embedded Read-Mostly Dataset
// Copyright 2026 Gambit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gambit-analytics/gambit

package api

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/gambit-analytics/gambit/internal/cache"
	"github.com/gambit-analytics/gambit/internal/config"
	"github.com/gambit-analytics/gambit/internal/database"
	"github.com/gambit-analytics/gambit/internal/middleware"
	"github.com/gambit-analytics/gambit/internal/pool"
)

// routedHandle answers canned rows matched by SQL substring.
type routedHandle struct {
	sets map[string][]map[string]interface{}
}

func (h *routedHandle) Query(_ context.Context, sql string, _ ...interface{}) ([]map[string]interface{}, error) {
	for marker, rows := range h.sets {
		if strings.Contains(sql, marker) {
			return rows, nil
		}
	}
	return nil, nil
}

func (h *routedHandle) Ping(context.Context) error { return nil }
func (h *routedHandle) Close() error               { return nil }

func testAPIConfig() config.APIConfig {
	return config.APIConfig{
		DefaultPageSize: 25,
		MaxPageSize:     100,
		RateLimitReqs:   1000,
		RateLimitWindow: time.Minute,
		CORSOrigins:     []string{"*"},
	}
}

// newTestHandler builds a handler over a real pool/cache/executor stack with
// the given canned rows.
func newTestHandler(t *testing.T, sets map[string][]map[string]interface{}) *Handler {
	t.Helper()

	p, err := pool.New(context.Background(), pool.Config{
		MinConnections: 1,
		MaxConnections: 4,
		AcquireTimeout: time.Second,
		IdleTimeout:    time.Minute,
		ShutdownGrace:  time.Second,
	}, func(context.Context) (pool.Handle, error) {
		return &routedHandle{sets: sets}, nil
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(context.Background()) })

	exec := database.NewExecutor(p, cache.New(64), database.BreakerConfig{})
	stats := database.NewStatsService(exec, database.TTLs{
		Overview: time.Minute,
		Openings: time.Minute,
		Results:  time.Minute,
		Games:    time.Minute,
	})
	perf := middleware.NewPerformanceMonitor(100, time.Second)

	return NewHandler(stats, exec, database.NewMonitor(exec), perf, testAPIConfig())
}

// newDegradedHandler builds a handler with no executor, as after a failed
// dataset open.
func newDegradedHandler() *Handler {
	return NewHandler(nil, nil, nil, nil, testAPIConfig())
}

// decodeResponse unmarshals the envelope from a recorder.
func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}
