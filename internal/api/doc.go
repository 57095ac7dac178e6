// Gambit - Chess Statistics over an Embedded Read-Mostly Dataset
// Copyright 2026 Gambit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gambit-analytics/gambit

/*
Package api serves the chess statistics HTTP API.

Routes:

	GET  /health                         overall health (always 200)
	GET  /health/live                    liveness probe
	GET  /health/ready                   readiness probe (503 when degraded)
	GET  /api/v1/stats/overview          dataset-wide aggregates
	GET  /api/v1/stats/openings          openings leaderboard
	GET  /api/v1/stats/results           result distribution
	GET  /api/v1/stats/performance       endpoint latency window
	GET  /api/v1/games                   filtered, paginated games listing
	GET  /api/v1/pool/stats              pool + cache + breaker snapshot
	POST /api/v1/pool/cache/clear        drop all cached results
	POST /api/v1/pool/cache/invalidate   drop cached results by SQL substring
	GET  /metrics                        Prometheus exposition

Every endpoint responds with the APIResponse envelope. When the dataset fails
to open at startup the server still runs: health endpoints answer normally
and data endpoints return 503 SERVICE_UNAVAILABLE.
*/
package api
