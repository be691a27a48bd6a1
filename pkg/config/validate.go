package config

import (
	"fmt"
	"time"

	"github.com/catalog-scraper/catalog-scraper/pkg/utils"
)

// Validate checks AppConfig fields and applies defaults.
// Returns collected warnings and a fatal error when the crawl cannot run.
// Modifies receiver in place.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// Concurrency
	if c.Concurrency <= 0 {
		warnings = append(warnings, fmt.Sprintf("concurrency should be > 0, defaulting to %d", DefaultConcurrency))
		c.Concurrency = DefaultConcurrency
	}

	// Scope
	if c.Scope == "" {
		c.Scope = DefaultScope
	}
	if _, err := utils.CompileScope(c.Scope); err != nil {
		return warnings, err
	}
	if _, err := utils.CompileRegexPatterns(c.DisallowedPatterns); err != nil {
		return warnings, err
	}

	if len(c.StartURLs) == 0 && !c.EffectiveUseSeedDatabase() {
		return warnings, fmt.Errorf("%w: no start_urls and seed database disabled", utils.ErrConfigValidation)
	}

	if c.MaxRequestsPerHost < 0 {
		warnings = append(warnings, "max_requests_per_host cannot be negative, setting to 0 (unlimited)")
		c.MaxRequestsPerHost = 0
	}
	if c.MaxDepth < 0 {
		warnings = append(warnings, "max_depth cannot be negative, setting to 0 (unlimited)")
		c.MaxDepth = 0
	}

	if c.StateDir == "" {
		warnings = append(warnings, "state_dir is empty, defaulting to './crawler_state'")
		c.StateDir = "./crawler_state"
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}

	// Pacing
	if c.RequestsPerSecond < 0 {
		warnings = append(warnings, "requests_per_second cannot be negative, disabling pacing")
		c.RequestsPerSecond = 0
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}

	// Retry settings
	if c.MaxRetries < 0 {
		warnings = append(warnings, "max_retries cannot be negative, setting to 0")
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.InitialRetryDelay <= 0 {
		c.InitialRetryDelay = 1 * time.Second
	}
	if c.MaxRetryDelay <= 0 {
		c.MaxRetryDelay = 30 * time.Second
	}
	if c.MaxRetryDelay < c.InitialRetryDelay {
		warnings = append(warnings, "max_retry_delay is below initial_retry_delay, raising it")
		c.MaxRetryDelay = c.InitialRetryDelay
	}

	if c.GlobalCrawlTimeout < 0 {
		warnings = append(warnings, "global_crawl_timeout cannot be negative, disabling timeout")
		c.GlobalCrawlTimeout = 0
	}
	if c.PerResourceTimeout < 0 {
		warnings = append(warnings, "per_resource_timeout cannot be negative, disabling timeout")
		c.PerResourceTimeout = 0
	}

	if c.SeedMaxConns <= 0 {
		c.SeedMaxConns = 2
	}
	if c.EffectiveUseSeedDatabase() && c.EffectiveSeedDatabaseURL() == "" {
		warnings = append(warnings, "seed database enabled but no seed_database_url or "+EnvSeedDatabaseURL+" set, seeds will be skipped")
	}

	c.validateHTTPClientSettings()

	return warnings, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 45 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 2
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}
