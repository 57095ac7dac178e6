// Gambit - Chess Statistics over an Embedded Read-Mostly Dataset
// Copyright 2026 Gambit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gambit-analytics/gambit

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gambit-analytics/gambit/internal/config"
	"github.com/gambit-analytics/gambit/internal/middleware"
)

// Router assembles the HTTP routes around a handler.
type Router struct {
	handler *Handler
	perf    *middleware.PerformanceMonitor
	apiCfg  config.APIConfig
}

// NewRouter creates a router. perf may be nil to disable the latency window.
func NewRouter(handler *Handler, perf *middleware.PerformanceMonitor, apiCfg config.APIConfig) *Router {
	return &Router{handler: handler, perf: perf, apiCfg: apiCfg}
}

// Setup builds the full route tree.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global stack, applied to every route.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.apiCfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health endpoints: permissive rate limit so probes can poll freely.
	r.Route("/health", func(r chi.Router) {
		r.Use(httprate.LimitByIP(1000, rt.apiCfg.RateLimitWindow))
		r.Get("/", rt.handler.Health)
		r.Get("/live", rt.handler.HealthLive)
		r.Get("/ready", rt.handler.HealthReady)
	})

	// Data endpoints.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(rt.apiCfg.RateLimitReqs, rt.apiCfg.RateLimitWindow))
		r.Use(middleware.PrometheusMetrics)
		r.Use(middleware.Compression)
		if rt.perf != nil {
			r.Use(rt.perf.Middleware)
		}

		r.Route("/stats", func(r chi.Router) {
			r.Get("/overview", rt.handler.StatsOverview)
			r.Get("/openings", rt.handler.StatsOpenings)
			r.Get("/results", rt.handler.StatsResults)
			r.Get("/performance", rt.handler.PerformanceStats)
		})

		r.Get("/games", rt.handler.Games)

		r.Route("/pool", func(r chi.Router) {
			r.Get("/stats", rt.handler.PoolStats)
			r.Post("/cache/clear", rt.handler.CacheClear)
			r.Post("/cache/invalidate", rt.handler.CacheInvalidate)
		})
	})

	// Observability.
	r.Handle("/metrics", promhttp.Handler())

	return r
}
