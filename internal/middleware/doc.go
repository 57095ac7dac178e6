// Gambit - Chess Statistics over an Embedded Read-Mostly Dataset
// Copyright 2026 Gambit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gambit-analytics/gambit

/*
Package middleware provides the HTTP middleware stack for the API server.

Components:

  - RequestID: UUID request tracking threaded through the logging context
  - PrometheusMetrics: per-endpoint duration/status instrumentation, labeled
    by chi route pattern
  - Compression: gzip for clients that accept it
  - PerformanceMonitor: sliding-window latency percentiles with slow-request
    logging, served by the performance stats endpoint

CORS and rate limiting come from go-chi/cors and go-chi/httprate and are wired
directly in the router.
*/
package middleware
