// Gambit - Chess Statistics over an Embedded Read-Mostly Dataset
// Copyright 2026 Gambit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gambit-analytics/gambit

package api

import (
	"net/http"
	"time"

	"github.com/gambit-analytics/gambit/internal/config"
	"github.com/gambit-analytics/gambit/internal/database"
	"github.com/gambit-analytics/gambit/internal/middleware"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Handler serves the statistics API. A nil stats service means the server is
// running degraded (the dataset failed to open at startup): health endpoints
// still answer, data endpoints return 503.
type Handler struct {
	stats     *database.StatsService
	executor  *database.Executor
	monitor   *database.Monitor
	perf      *middleware.PerformanceMonitor
	startTime time.Time

	defaultPageSize int
	maxPageSize     int
}

// NewHandler wires the API handler. stats, executor, and monitor may all be
// nil for degraded startup.
func NewHandler(stats *database.StatsService, executor *database.Executor, monitor *database.Monitor, perf *middleware.PerformanceMonitor, apiCfg config.APIConfig) *Handler {
	return &Handler{
		stats:           stats,
		executor:        executor,
		monitor:         monitor,
		perf:            perf,
		startTime:       time.Now(),
		defaultPageSize: apiCfg.DefaultPageSize,
		maxPageSize:     apiCfg.MaxPageSize,
	}
}

// degraded writes the 503 answer for data endpoints when the dataset is not
// available, and reports whether it did so.
func (h *Handler) degraded(w http.ResponseWriter, r *http.Request) bool {
	if h.stats != nil {
		return false
	}
	NewResponseWriter(w, r).ServiceUnavailable("Dataset is not available; the server is running degraded")
	return true
}

// HealthStatus is the /health payload.
type HealthStatus struct {
	Status            string  `json:"status"`
	Version           string  `json:"version"`
	DatabaseConnected bool    `json:"database_connected"`
	Breaker           string  `json:"breaker"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

// Health reports overall service health. Always 200; the status field says
// whether the dataset is usable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	breaker := "disabled"
	dbConnected := h.executor != nil

	if h.executor != nil {
		breaker = h.executor.BreakerState()
		if breaker == "open" {
			status = "degraded"
		}
	} else {
		status = "degraded"
	}

	NewResponseWriter(w, r).Success(HealthStatus{
		Status:            status,
		Version:           Version,
		DatabaseConnected: dbConnected,
		Breaker:           breaker,
		UptimeSeconds:     time.Since(h.startTime).Seconds(),
	})
}

// HealthLive is the liveness probe: 200 whenever the process is up.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]interface{}{
		"alive":          true,
		"uptime_seconds": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady is the readiness probe: 200 only when the dataset is open and
// the breaker is not rejecting queries.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.executor == nil {
		rw.ServiceUnavailable("Dataset is not available")
		return
	}
	if h.executor.BreakerState() == "open" {
		rw.ServiceUnavailable("Circuit breaker is open")
		return
	}
	rw.Success(map[string]interface{}{"ready": true})
}
