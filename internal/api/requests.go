// Gambit - Chess Statistics over an Embedded Read-Mostly Dataset
// Copyright 2026 Gambit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gambit-analytics/gambit

package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gambit-analytics/gambit/internal/database"
	"github.com/gambit-analytics/gambit/internal/validation"
)

// GamesRequest is the validated query surface of the games listing.
type GamesRequest struct {
	Player  string `validate:"omitempty,max=128"`
	White   string `validate:"omitempty,max=128"`
	Black   string `validate:"omitempty,max=128"`
	ECO     string `validate:"omitempty,len=3"`
	Opening string `validate:"omitempty,max=256"`
	Result  string `validate:"omitempty,oneof=1-0 0-1 1/2-1/2 *"`
	MinElo  int    `validate:"min=0,max=4000"`
	Limit   int    `validate:"min=1"`
	Offset  int    `validate:"min=0"`
}

// OpeningsRequest is the validated query surface of the openings leaderboard.
// ECO accepts a prefix: "B" covers a whole family, "B12" a single code.
type OpeningsRequest struct {
	ECO      string `validate:"omitempty,max=3,alphanum"`
	MinGames int    `validate:"min=0"`
	MinElo   int    `validate:"min=0,max=4000"`
	Limit    int    `validate:"min=1"`
}

// InvalidateRequest is the body of the cache invalidation endpoint.
type InvalidateRequest struct {
	Match string `json:"match" validate:"required,min=1,max=512"`
}

// parseGamesRequest reads and validates the games listing query parameters.
func (h *Handler) parseGamesRequest(r *http.Request) (*GamesRequest, *validation.RequestValidationError, error) {
	q := r.URL.Query()

	req := &GamesRequest{
		Player:  q.Get("player"),
		White:   q.Get("white"),
		Black:   q.Get("black"),
		ECO:     q.Get("eco"),
		Opening: q.Get("opening"),
		Result:  q.Get("result"),
		Limit:   h.defaultPageSize,
	}

	var err error
	if req.MinElo, err = intParam(q.Get("min_elo"), 0); err != nil {
		return nil, nil, fmt.Errorf("min_elo: %w", err)
	}
	if req.Limit, err = intParam(q.Get("limit"), h.defaultPageSize); err != nil {
		return nil, nil, fmt.Errorf("limit: %w", err)
	}
	if req.Offset, err = intParam(q.Get("offset"), 0); err != nil {
		return nil, nil, fmt.Errorf("offset: %w", err)
	}

	if req.Limit > h.maxPageSize {
		req.Limit = h.maxPageSize
	}

	if verr := validation.ValidateStruct(req); verr != nil {
		return nil, verr, nil
	}
	return req, nil, nil
}

// parseOpeningsRequest reads and validates the openings query parameters.
func (h *Handler) parseOpeningsRequest(r *http.Request) (*OpeningsRequest, *validation.RequestValidationError, error) {
	q := r.URL.Query()

	req := &OpeningsRequest{ECO: q.Get("eco")}

	var err error
	if req.MinGames, err = intParam(q.Get("min_games"), 0); err != nil {
		return nil, nil, fmt.Errorf("min_games: %w", err)
	}
	if req.MinElo, err = intParam(q.Get("min_elo"), 0); err != nil {
		return nil, nil, fmt.Errorf("min_elo: %w", err)
	}
	if req.Limit, err = intParam(q.Get("limit"), h.defaultPageSize); err != nil {
		return nil, nil, fmt.Errorf("limit: %w", err)
	}

	if req.Limit > h.maxPageSize {
		req.Limit = h.maxPageSize
	}

	if verr := validation.ValidateStruct(req); verr != nil {
		return nil, verr, nil
	}
	return req, nil, nil
}

// toFilter converts the validated request into the service-level filter.
func (req *GamesRequest) toFilter() database.GamesFilter {
	return database.GamesFilter{
		Player:  req.Player,
		White:   req.White,
		Black:   req.Black,
		ECO:     req.ECO,
		Opening: req.Opening,
		Result:  req.Result,
		MinElo:  req.MinElo,
		Limit:   req.Limit,
		Offset:  req.Offset,
	}
}

func (req *OpeningsRequest) toFilter() database.OpeningsFilter {
	return database.OpeningsFilter{
		ECOPrefix: req.ECO,
		MinGames:  req.MinGames,
		MinElo:    req.MinElo,
		Limit:     req.Limit,
	}
}

// intParam parses an optional integer query parameter.
func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("not an integer: %q", raw)
	}
	return v, nil
}
