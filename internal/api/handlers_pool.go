// Gambit - Chess Statistics over an Embedded Read-Mostly Dataset
// Copyright 2026 Gambit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gambit-analytics/gambit

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/gambit-analytics/gambit/internal/logging"
	"github.com/gambit-analytics/gambit/internal/validation"
)

// PoolStats handles GET /api/v1/pool/stats, returning the combined pool,
// cache, and breaker snapshot.
func (h *Handler) PoolStats(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.monitor == nil {
		rw.ServiceUnavailable("Dataset is not available; the server is running degraded")
		return
	}
	rw.Success(h.monitor.Report())
}

// CacheClear handles POST /api/v1/pool/cache/clear, dropping every cached
// query result.
func (h *Handler) CacheClear(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.executor == nil || h.executor.Cache() == nil {
		rw.ServiceUnavailable("Query cache is not available")
		return
	}

	removed := h.executor.Cache().Clear()
	logging.Info().Int("removed", removed).Msg("Query cache cleared")

	rw.Success(map[string]interface{}{"entries_cleared": removed})
}

// CacheInvalidate handles POST /api/v1/pool/cache/invalidate, dropping cached
// results whose SQL contains the given substring.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.executor == nil || h.executor.Cache() == nil {
		rw.ServiceUnavailable("Query cache is not available")
		return
	}

	var req InvalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("Invalid JSON body")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationError(verr.Error(), verr.ToAPIError().Details)
		return
	}

	removed := h.executor.Cache().Invalidate(req.Match)
	logging.Info().Str("match", req.Match).Int("removed", removed).Msg("Query cache invalidated")

	rw.Success(map[string]interface{}{"match": req.Match, "entries_invalidated": removed})
}

// PerformanceStats handles GET /api/v1/stats/performance, returning the
// sliding-window latency aggregates per endpoint.
func (h *Handler) PerformanceStats(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.perf == nil {
		rw.NotFound("Performance monitoring is not enabled")
		return
	}
	rw.Success(h.perf.GetStats())
}
