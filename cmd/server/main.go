// Gambit - Chess Statistics over an Embedded Read-Mostly Dataset
// Copyright 2026 Gambit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gambit-analytics/gambit

// Package main is the entry point for the Gambit server.
//
// Gambit serves aggregate chess statistics over an embedded, read-only DuckDB
// dataset of 9M+ games. The server owns a bounded connection pool over the
// database file, a TTL query cache in front of it, and a circuit breaker
// around query execution.
//
// # Startup order
//
//  1. Configuration: Koanf v2 layering defaults, config.yaml, and GAMBIT_*
//     environment variables
//  2. Logging: zerolog, configured from the logging section
//  3. Data path: DuckDB connection pool (pre-warmed to min_connections),
//     query cache, executor with circuit breaker
//  4. Supervision tree: suture root with a data layer (idle reaper, cache
//     sweeper) and an API layer (HTTP server)
//
// # Degraded mode
//
// If the dataset fails to open at startup the server still comes up: health
// endpoints answer normally and data endpoints return 503. This keeps
// orchestrators from crash-looping the process over a missing or corrupt
// dataset file.
//
// # Signal handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the HTTP server drains
// in-flight requests, then the pool waits up to shutdown_grace for in-use
// connections before force-closing them.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gambit-analytics/gambit/internal/api"
	"github.com/gambit-analytics/gambit/internal/cache"
	"github.com/gambit-analytics/gambit/internal/config"
	"github.com/gambit-analytics/gambit/internal/database"
	"github.com/gambit-analytics/gambit/internal/logging"
	"github.com/gambit-analytics/gambit/internal/metrics"
	"github.com/gambit-analytics/gambit/internal/middleware"
	"github.com/gambit-analytics/gambit/internal/pool"
	"github.com/gambit-analytics/gambit/internal/supervisor"
	"github.com/gambit-analytics/gambit/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("version", api.Version).
		Str("dataset", cfg.Database.Path).
		Int("port", cfg.Server.Port).
		Msg("Starting Gambit")

	metrics.AppInfo.WithLabelValues(api.Version, runtime.Version()).Set(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Data path. A failed open is not fatal: the server runs degraded and
	// health endpoints keep answering.
	dbPool, executor, statsSvc, monitor := buildDataPath(ctx, cfg)
	if dbPool != nil {
		defer func() {
			closeCtx, closeCancel := context.WithTimeout(context.Background(), cfg.Database.Pool.ShutdownGrace)
			defer closeCancel()
			if err := dbPool.Close(closeCtx); err != nil {
				logging.Error().Err(err).Msg("Error closing connection pool")
			}
		}()
	}

	perf := middleware.NewPerformanceMonitor(1000, time.Second)
	handler := api.NewHandler(statsSvc, executor, monitor, perf, cfg.API)
	router := api.NewRouter(handler, perf, cfg.API)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Supervision tree: data-layer tickers plus the HTTP server.
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	if dbPool != nil {
		tree.AddDataService(services.NewTickerService("idle-reaper", cfg.Database.Pool.ReapInterval, func(context.Context) {
			dbPool.ReapIdle()
		}))
	}
	if executor != nil && executor.Cache() != nil {
		tree.AddDataService(services.NewTickerService("cache-sweeper", cfg.Cache.SweepInterval, func(context.Context) {
			executor.Cache().Sweep()
		}))
	}
	tree.AddDataService(services.NewTickerService("uptime", 15*time.Second, uptimeTick()))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Gambit stopped gracefully")
}

// buildDataPath opens the pool, cache, executor, and stats service. On
// failure it logs and returns nils so the server starts degraded.
func buildDataPath(ctx context.Context, cfg *config.Config) (*pool.Pool, *database.Executor, *database.StatsService, *database.Monitor) {
	factory := pool.NewDuckDBFactory(pool.DuckDBConfig{
		Path:      cfg.Database.Path,
		MaxMemory: cfg.Database.MaxMemory,
		Threads:   cfg.Database.Threads,
	})

	dbPool, err := pool.New(ctx, pool.Config{
		MinConnections: cfg.Database.Pool.MinConnections,
		MaxConnections: cfg.Database.Pool.MaxConnections,
		AcquireTimeout: cfg.Database.Pool.AcquireTimeout,
		IdleTimeout:    cfg.Database.Pool.IdleTimeout,
		MaxQueueDepth:  cfg.Database.Pool.MaxQueueDepth,
		ShutdownGrace:  cfg.Database.Pool.ShutdownGrace,
	}, factory, pool.WithObserver(pool.MultiObserver{pool.LogObserver{}, pool.MetricsObserver{}}))
	if err != nil {
		logging.Error().Err(err).Str("dataset", cfg.Database.Path).
			Msg("Failed to open dataset, starting degraded")
		return nil, nil, nil, nil
	}

	qc := cache.New(cfg.Cache.Capacity)
	executor := database.NewExecutor(dbPool, qc, database.BreakerConfig{
		Enabled:             cfg.Breaker.Enabled,
		ConsecutiveFailures: cfg.Breaker.ConsecutiveFailures,
		OpenTimeout:         cfg.Breaker.OpenTimeout,
		HalfOpenRequests:    cfg.Breaker.HalfOpenRequests,
	})
	statsSvc := database.NewStatsService(executor, database.TTLs{
		Overview: cfg.Cache.TTL.Overview,
		Openings: cfg.Cache.TTL.Openings,
		Results:  cfg.Cache.TTL.Results,
		Games:    cfg.Cache.TTL.Games,
	})

	return dbPool, executor, statsSvc, database.NewMonitor(executor)
}

// uptimeTick keeps the uptime gauge current.
func uptimeTick() func(context.Context) {
	started := time.Now()
	return func(context.Context) {
		metrics.AppUptime.Set(time.Since(started).Seconds())
	}
}
