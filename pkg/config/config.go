package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/catalog-scraper/catalog-scraper/pkg/utils"
)

const (
	DefaultScope       = `https://www.kiwoko.pt/.*`
	DefaultConcurrency = 1
	DefaultUserAgent   = "catalog-scraper/1.0 (+https://www.kiwoko.pt)"
	DefaultSeedTable   = "products"
)

// Environment variables consulted when the file leaves the seed settings empty
const (
	EnvSeedDatabaseURL = "SEED_DATABASE_URL"
	EnvSeedTable       = "SEED_TABLE"
	EnvSupabaseTable   = "SUPABASE_PRODUCT_TABLE"
)

// AppConfig holds the crawl configuration
type AppConfig struct {
	StartURLs          []string         `yaml:"start_urls"`
	Concurrency        int              `yaml:"concurrency"`
	Scope              string           `yaml:"scope"`                         // Regex every scheduled URL must match
	DisallowedPatterns []string         `yaml:"disallowed_patterns,omitempty"` // Regex patterns for URLs to exclude
	MaxDepth           int              `yaml:"max_depth,omitempty"`           // 0 = unlimited
	UseSeedDatabase    *bool            `yaml:"use_seed_database,omitempty"`   // nil = true
	SeedTable          string           `yaml:"seed_table,omitempty"`
	SeedDatabaseURL    string           `yaml:"seed_database_url,omitempty"`
	SeedMaxConns       int32            `yaml:"seed_max_conns,omitempty"`
	StateDir           string           `yaml:"state_dir"`
	OutputFile         string           `yaml:"output_file,omitempty"`  // JSONL record output, empty = badger only
	SummaryFile        string           `yaml:"summary_file,omitempty"` // YAML run summary
	UserAgent          string           `yaml:"user_agent,omitempty"`
	RequestsPerSecond  float64          `yaml:"requests_per_second,omitempty"`   // Per host
	MaxRequestsPerHost int              `yaml:"max_requests_per_host,omitempty"` // 0 = unlimited
	Burst              int              `yaml:"burst,omitempty"`
	MaxRetries         int              `yaml:"max_retries,omitempty"`
	InitialRetryDelay  time.Duration    `yaml:"initial_retry_delay,omitempty"`
	MaxRetryDelay      time.Duration    `yaml:"max_retry_delay,omitempty"`
	PerResourceTimeout time.Duration    `yaml:"per_resource_timeout,omitempty"` // 0 = no timeout
	GlobalCrawlTimeout time.Duration    `yaml:"global_crawl_timeout,omitempty"` // 0 = no timeout
	RespectRobots      *bool            `yaml:"respect_robots,omitempty"`       // nil = true
	DiscoverSitemaps   *bool            `yaml:"discover_sitemaps,omitempty"`    // nil = true; queue sitemaps listed in robots.txt
	HTTPClientSettings HTTPClientConfig `yaml:"http_client_settings,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"`
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"` // nil = transport default
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`
}

// LoadConfig reads and decodes a YAML config file. Validation is left to the caller.
func LoadConfig(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading config %s: %w", utils.ErrFilesystem, path, err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: decoding config %s: %w", utils.ErrConfigValidation, path, err)
	}
	return &cfg, nil
}

// EffectiveUseSeedDatabase reports whether seed rows should be merged into the start URLs
func (c *AppConfig) EffectiveUseSeedDatabase() bool {
	if c.UseSeedDatabase != nil {
		return *c.UseSeedDatabase
	}
	return true
}

// EffectiveRespectRobots reports whether robots.txt is honored
func (c *AppConfig) EffectiveRespectRobots() bool {
	if c.RespectRobots != nil {
		return *c.RespectRobots
	}
	return true
}

// EffectiveDiscoverSitemaps reports whether robots.txt sitemaps are queued at start
func (c *AppConfig) EffectiveDiscoverSitemaps() bool {
	if c.DiscoverSitemaps != nil {
		return *c.DiscoverSitemaps
	}
	return true
}

// EffectiveSeedDatabaseURL returns the configured DSN, falling back to the environment
func (c *AppConfig) EffectiveSeedDatabaseURL() string {
	if c.SeedDatabaseURL != "" {
		return c.SeedDatabaseURL
	}
	return os.Getenv(EnvSeedDatabaseURL)
}

// EffectiveSeedTable returns the seed table name.
// Config wins, then SUPABASE_PRODUCT_TABLE, then SEED_TABLE, then the default.
func (c *AppConfig) EffectiveSeedTable() string {
	if c.SeedTable != "" {
		return c.SeedTable
	}
	for _, key := range []string{EnvSupabaseTable, EnvSeedTable} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return DefaultSeedTable
}
