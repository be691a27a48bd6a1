package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalog-scraper/catalog-scraper/pkg/utils"
)

func TestAppConfig_Validate_Defaults(t *testing.T) {
	t.Setenv(EnvSeedDatabaseURL, "")
	cfg := AppConfig{}
	warnings, err := cfg.Validate()

	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Concurrency)
	assert.Equal(t, DefaultScope, cfg.Scope)
	assert.True(t, cfg.EffectiveUseSeedDatabase())
	assert.Equal(t, "./crawler_state", cfg.StateDir)
	assert.Equal(t, DefaultUserAgent, cfg.UserAgent)
	assert.Equal(t, 1, cfg.Burst)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 1*time.Second, cfg.InitialRetryDelay)
	assert.Equal(t, 30*time.Second, cfg.MaxRetryDelay)
	assert.Equal(t, int32(2), cfg.SeedMaxConns)

	assert.Equal(t, 45*time.Second, cfg.HTTPClientSettings.Timeout)
	assert.Equal(t, 100, cfg.HTTPClientSettings.MaxIdleConns)
	assert.Equal(t, 2, cfg.HTTPClientSettings.MaxIdleConnsPerHost)
	assert.Equal(t, 90*time.Second, cfg.HTTPClientSettings.IdleConnTimeout)
	assert.Equal(t, 10*time.Second, cfg.HTTPClientSettings.TLSHandshakeTimeout)
	assert.Equal(t, 1*time.Second, cfg.HTTPClientSettings.ExpectContinueTimeout)
	assert.Equal(t, 15*time.Second, cfg.HTTPClientSettings.DialerTimeout)
	assert.Equal(t, 30*time.Second, cfg.HTTPClientSettings.DialerKeepAlive)

	assert.True(t, containsWarning(warnings, "concurrency should be > 0"))
	assert.True(t, containsWarning(warnings, "state_dir is empty"))
	assert.True(t, containsWarning(warnings, "seeds will be skipped"))
}

func TestAppConfig_Validate_ValidConfig(t *testing.T) {
	cfg := AppConfig{
		StartURLs:          []string{"https://www.kiwoko.pt/"},
		Concurrency:        4,
		Scope:              `https://www\.kiwoko\.pt/.*`,
		UseSeedDatabase:    boolPtr(false),
		StateDir:           "/state",
		MaxRetries:         5,
		InitialRetryDelay:  2 * time.Second,
		MaxRetryDelay:      time.Minute,
		RequestsPerSecond:  1,
		Burst:              2,
		PerResourceTimeout: 30 * time.Second,
	}
	warnings, err := cfg.Validate()

	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 2, cfg.Burst)
	assert.Equal(t, time.Minute, cfg.MaxRetryDelay)
}

func TestAppConfig_Validate_NegativeValues(t *testing.T) {
	cfg := AppConfig{
		StartURLs:          []string{"https://www.kiwoko.pt/"},
		UseSeedDatabase:    boolPtr(false),
		StateDir:           "/state",
		MaxDepth:           -1,
		MaxRequestsPerHost: -3,
		MaxRetries:         -2,
		RequestsPerSecond:  -1,
		GlobalCrawlTimeout: -time.Second,
		PerResourceTimeout: -time.Second,
		InitialRetryDelay:  10 * time.Second,
		MaxRetryDelay:      time.Second,
	}
	warnings, err := cfg.Validate()

	require.NoError(t, err)
	assert.Equal(t, 0, cfg.MaxDepth)
	assert.Equal(t, 0, cfg.MaxRequestsPerHost)
	assert.Equal(t, 0, cfg.MaxRetries)
	assert.Zero(t, cfg.RequestsPerSecond)
	assert.Zero(t, cfg.GlobalCrawlTimeout)
	assert.Zero(t, cfg.PerResourceTimeout)
	assert.Equal(t, 10*time.Second, cfg.MaxRetryDelay)

	assert.True(t, containsWarning(warnings, "max_depth cannot be negative"))
	assert.True(t, containsWarning(warnings, "max_requests_per_host cannot be negative"))
	assert.True(t, containsWarning(warnings, "max_retries cannot be negative"))
	assert.True(t, containsWarning(warnings, "requests_per_second cannot be negative"))
	assert.True(t, containsWarning(warnings, "global_crawl_timeout cannot be negative"))
	assert.True(t, containsWarning(warnings, "per_resource_timeout cannot be negative"))
	assert.True(t, containsWarning(warnings, "max_retry_delay is below"))
}

func TestAppConfig_Validate_Fatal(t *testing.T) {
	tests := []struct {
		name string
		cfg  AppConfig
	}{
		{
			name: "scope does not compile",
			cfg:  AppConfig{StartURLs: []string{"https://www.kiwoko.pt/"}, Scope: "https://(unclosed"},
		},
		{
			name: "disallowed pattern does not compile",
			cfg:  AppConfig{StartURLs: []string{"https://www.kiwoko.pt/"}, DisallowedPatterns: []string{"[a-"}},
		},
		{
			name: "nothing to crawl",
			cfg:  AppConfig{UseSeedDatabase: boolPtr(false)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, utils.ErrConfigValidation)
		})
	}
}

func containsWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}
