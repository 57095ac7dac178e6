// Gambit - Chess Statistics over an Embedded Read-Mostly Dataset
// Copyright 2026 Gambit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gambit-analytics/gambit

package config

import (
	"fmt"

	"github.com/gambit-analytics/gambit/internal/validation"
)

// Validate checks that the configuration is complete and internally
// consistent. Struct-tag rules run first, then cross-field checks the tags
// cannot express.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid configuration: %s", err.Error())
	}

	if err := c.validatePool(); err != nil {
		return err
	}

	if err := c.validateCache(); err != nil {
		return err
	}

	return c.validateAPI()
}

func (c *Config) validatePool() error {
	p := c.Database.Pool

	if p.MinConnections > p.MaxConnections {
		return fmt.Errorf("database.pool.min_connections (%d) must not exceed max_connections (%d)",
			p.MinConnections, p.MaxConnections)
	}
	if p.AcquireTimeout <= 0 {
		return fmt.Errorf("database.pool.acquire_timeout must be positive")
	}
	if p.IdleTimeout <= 0 {
		return fmt.Errorf("database.pool.idle_timeout must be positive")
	}
	if p.ReapInterval <= 0 {
		return fmt.Errorf("database.pool.reap_interval must be positive")
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.SweepInterval <= 0 {
		return fmt.Errorf("cache.sweep_interval must be positive")
	}

	ttls := map[string]int64{
		"cache.ttl.overview": int64(c.Cache.TTL.Overview),
		"cache.ttl.openings": int64(c.Cache.TTL.Openings),
		"cache.ttl.results":  int64(c.Cache.TTL.Results),
		"cache.ttl.games":    int64(c.Cache.TTL.Games),
	}
	for name, ttl := range ttls {
		if ttl <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.DefaultPageSize > c.API.MaxPageSize {
		return fmt.Errorf("api.default_page_size (%d) must not exceed max_page_size (%d)",
			c.API.DefaultPageSize, c.API.MaxPageSize)
	}
	if c.API.RateLimitWindow <= 0 {
		return fmt.Errorf("api.rate_limit_window must be positive")
	}
	return nil
}
