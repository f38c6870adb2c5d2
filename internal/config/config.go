// Package config provides configuration management for storm-assess.
// Precedence is environment > YAML file > defaults; YAML files are decoded
// strictly so typos fail fast.
package config

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/leosaffin/storm-assess/internal/timeutil"
	"github.com/leosaffin/storm-assess/internal/track"
)

// Config is the full runtime configuration.
type Config struct {
	// Track file discovery and parsing.
	DataDir      string            `yaml:"dataDir"`
	OutputDir    string            `yaml:"outputDir"`
	Globs        map[string]string `yaml:"globs"`    // track format -> glob pattern
	Calendar     string            `yaml:"calendar"` // "gregorian" or "360_day"
	ExtraColumns int               `yaml:"extraColumns"`

	// Catalogue and ingest.
	CatalogPath   string `yaml:"catalogPath"`
	Workers       int    `yaml:"workers"`
	IngestOnStart bool   `yaml:"ingestOnStart"`

	// Directory watching.
	WatchEnabled  bool          `yaml:"watch"`
	WatchDebounce time.Duration `yaml:"watchDebounce"`

	// HTTP server.
	ListenAddr      string        `yaml:"listen"`
	RateLimit       int           `yaml:"rateLimit"` // requests per window per client
	RateLimitWindow time.Duration `yaml:"rateLimitWindow"`

	// Caching.
	CacheBackend  string        `yaml:"cacheBackend"` // "memory" or "redis"
	RedisAddr     string        `yaml:"redisAddr"`
	RedisPassword string        `yaml:"redisPassword"`
	RedisDB       int           `yaml:"redisDB"`
	CacheTTL      time.Duration `yaml:"cacheTTL"`

	// Regions.
	RegionsFile string `yaml:"regionsFile"` // optional Europe outline override

	// Observability.
	LogLevel       string `yaml:"logLevel"`
	LogService     string `yaml:"logService"`
	TracingEnabled bool   `yaml:"tracing"`
	OTLPEndpoint   string `yaml:"otlpEndpoint"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DataDir:   "./data",
		OutputDir: "./out",
		Globs: map[string]string{
			"standard": "*.date",
		},
		Calendar:        "360_day",
		CatalogPath:     "./storm-assess.db",
		Workers:         4,
		WatchDebounce:   2 * time.Second,
		ListenAddr:      ":8080",
		RateLimit:       100,
		RateLimitWindow: time.Minute,
		CacheBackend:    "memory",
		RedisAddr:       "localhost:6379",
		CacheTTL:        time.Hour,
		LogLevel:        "info",
		LogService:      "storm-assess",
		OTLPEndpoint:    "localhost:4317",
	}
}

// Load builds the configuration: defaults, then the YAML file (when path is
// non-empty), then environment overrides, then validation.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.DataDir = ParseString("STORMASSESS_DATA_DIR", c.DataDir)
	c.OutputDir = ParseString("STORMASSESS_OUTPUT_DIR", c.OutputDir)
	globKeys := map[string]string{
		"standard": "STORMASSESS_GLOB_STANDARD",
		"hart":     "STORMASSESS_GLOB_HART",
		"hurdat2":  "STORMASSESS_GLOB_HURDAT2",
	}
	for format, key := range globKeys {
		if glob := ParseString(key, c.Globs[format]); glob != "" {
			if c.Globs == nil {
				c.Globs = map[string]string{}
			}
			c.Globs[format] = glob
		}
	}
	c.Calendar = ParseString("STORMASSESS_CALENDAR", c.Calendar)
	c.ExtraColumns = ParseInt("STORMASSESS_EXTRA_COLUMNS", c.ExtraColumns)

	c.CatalogPath = ParseString("STORMASSESS_CATALOG", c.CatalogPath)
	c.Workers = ParseInt("STORMASSESS_WORKERS", c.Workers)
	c.IngestOnStart = ParseBool("STORMASSESS_INGEST_ON_START", c.IngestOnStart)

	c.WatchEnabled = ParseBool("STORMASSESS_WATCH", c.WatchEnabled)
	c.WatchDebounce = ParseDuration("STORMASSESS_WATCH_DEBOUNCE", c.WatchDebounce)

	c.ListenAddr = ParseString("STORMASSESS_LISTEN", c.ListenAddr)
	c.RateLimit = ParseInt("STORMASSESS_RATE_LIMIT", c.RateLimit)
	c.RateLimitWindow = ParseDuration("STORMASSESS_RATE_LIMIT_WINDOW", c.RateLimitWindow)

	c.CacheBackend = ParseString("STORMASSESS_CACHE_BACKEND", c.CacheBackend)
	c.RedisAddr = ParseString("STORMASSESS_REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = ParseString("STORMASSESS_REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = ParseInt("STORMASSESS_REDIS_DB", c.RedisDB)
	c.CacheTTL = ParseDuration("STORMASSESS_CACHE_TTL", c.CacheTTL)

	c.RegionsFile = ParseString("STORMASSESS_REGIONS_FILE", c.RegionsFile)

	c.LogLevel = ParseString("STORMASSESS_LOG_LEVEL", c.LogLevel)
	c.LogService = ParseString("STORMASSESS_LOG_SERVICE", c.LogService)
	c.TracingEnabled = ParseBool("STORMASSESS_TRACING", c.TracingEnabled)
	c.OTLPEndpoint = ParseString("STORMASSESS_OTLP_ENDPOINT", c.OTLPEndpoint)
}

// Validate rejects configurations the daemon cannot run with.
func (c *Config) Validate() error {
	if _, err := timeutil.ParseCalendar(c.Calendar); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	for format := range c.Globs {
		if _, err := track.ParseFormat(format); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	if c.Workers < 1 {
		return fmt.Errorf("config: workers must be >= 1 (got %d)", c.Workers)
	}
	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return fmt.Errorf("config: invalid listen address %q: %w", c.ListenAddr, err)
	}
	if c.RateLimit < 1 {
		return fmt.Errorf("config: rate limit must be >= 1 (got %d)", c.RateLimit)
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("config: rate limit window must be positive (got %s)", c.RateLimitWindow)
	}
	switch c.CacheBackend {
	case "memory":
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("config: redis cache backend needs redisAddr")
		}
	default:
		return fmt.Errorf("config: unknown cache backend %q (want memory or redis)", c.CacheBackend)
	}
	if c.WatchEnabled && c.WatchDebounce <= 0 {
		return fmt.Errorf("config: watch debounce must be positive (got %s)", c.WatchDebounce)
	}
	if c.TracingEnabled && c.OTLPEndpoint == "" {
		return fmt.Errorf("config: tracing needs otlpEndpoint")
	}
	return nil
}

// TrackCalendar returns the parsed calendar. Call Validate first.
func (c *Config) TrackCalendar() timeutil.Calendar {
	cal, _ := timeutil.ParseCalendar(c.Calendar)
	return cal
}
