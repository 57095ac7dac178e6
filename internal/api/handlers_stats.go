// Gambit - Chess Statistics over an Embedded Read-Mostly Dataset
// Copyright 2026 Gambit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gambit-analytics/gambit

package api

import (
	"errors"
	"net/http"

	"github.com/gambit-analytics/gambit/internal/database"
)

// StatsOverview handles GET /api/v1/stats/overview.
func (h *Handler) StatsOverview(w http.ResponseWriter, r *http.Request) {
	if h.degraded(w, r) {
		return
	}
	rw := NewResponseWriter(w, r)

	overview, cached, err := h.stats.GetOverview(r.Context())
	if err != nil {
		h.respondQueryError(rw, err)
		return
	}
	rw.Cached(cached).Success(overview)
}

// StatsOpenings handles GET /api/v1/stats/openings.
func (h *Handler) StatsOpenings(w http.ResponseWriter, r *http.Request) {
	if h.degraded(w, r) {
		return
	}
	rw := NewResponseWriter(w, r)

	req, verr, err := h.parseOpeningsRequest(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if verr != nil {
		rw.ValidationError(verr.Error(), verr.ToAPIError().Details)
		return
	}

	openings, cached, err := h.stats.GetTopOpenings(r.Context(), req.toFilter())
	if err != nil {
		h.respondQueryError(rw, err)
		return
	}
	rw.Cached(cached).Success(openings)
}

// StatsResults handles GET /api/v1/stats/results.
func (h *Handler) StatsResults(w http.ResponseWriter, r *http.Request) {
	if h.degraded(w, r) {
		return
	}
	rw := NewResponseWriter(w, r)

	results, cached, err := h.stats.GetResultBreakdown(r.Context())
	if err != nil {
		h.respondQueryError(rw, err)
		return
	}
	rw.Cached(cached).Success(results)
}

// Games handles GET /api/v1/games.
func (h *Handler) Games(w http.ResponseWriter, r *http.Request) {
	if h.degraded(w, r) {
		return
	}
	rw := NewResponseWriter(w, r)

	req, verr, err := h.parseGamesRequest(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if verr != nil {
		rw.ValidationError(verr.Error(), verr.ToAPIError().Details)
		return
	}

	page, cached, err := h.stats.GetGames(r.Context(), req.toFilter())
	if err != nil {
		h.respondQueryError(rw, err)
		return
	}

	rw.Cached(cached).SuccessWithPagination(page.Games, &PaginationMeta{
		Total:   page.Total,
		Count:   len(page.Games),
		Offset:  req.Offset,
		Limit:   req.Limit,
		HasMore: int64(req.Offset+len(page.Games)) < page.Total,
	})
}

// respondQueryError maps executor errors to HTTP statuses: breaker-open and
// pool saturation become 503, everything else 500.
func (h *Handler) respondQueryError(rw *ResponseWriter, err error) {
	if errors.Is(err, database.ErrDatabaseUnavailable) {
		rw.ServiceUnavailable("Database is temporarily unavailable")
		return
	}
	if database.IsSaturation(err) {
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Server is at capacity, retry shortly")
		return
	}
	rw.DatabaseError(err)
}
