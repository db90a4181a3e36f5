package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Catalog   CatalogConfig   `json:"catalog"`
	Cache     CacheConfig     `json:"cache"`
	Security  SecurityConfig  `json:"security"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Tracing   TracingConfig   `json:"tracing"`
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port string `json:"port"`
	Host string `json:"host"`
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Path string `json:"path"`
}

// CatalogConfig holds catalog data source configuration. Empty URLs disable
// the remote link of the fallback chain, leaving cache and bundled data.
type CatalogConfig struct {
	CardsURL        string `json:"cards_url"`
	RulesURL        string `json:"rules_url"`
	OffersURL       string `json:"offers_url"`
	BundledDir      string `json:"bundled_dir"`
	RefreshCron     string `json:"refresh_cron"`
	CacheTTLSeconds int    `json:"cache_ttl_seconds"`
}

// CacheConfig holds cache configuration. With Redis disabled an in-memory
// cache is used instead.
type CacheConfig struct {
	RedisEnabled      bool   `json:"redis_enabled"`
	RedisAddr         string `json:"redis_addr"`
	RedisPassword     string `json:"redis_password"`
	RedisDB           int    `json:"redis_db"`
	ContextTTLSeconds int    `json:"context_ttl_seconds"`
}

// SecurityConfig holds security-related configuration.
type SecurityConfig struct {
	// Max request body size in bytes (default: 1MB)
	MaxRequestBodySize int64 `json:"max_request_body_size"`
	// Allowed CORS origins (comma-separated)
	AllowedOrigins string `json:"allowed_origins"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool `json:"enabled"`
	Rate    int  `json:"rate"`
	Window  int  `json:"window"` // in seconds
}

// TracingConfig holds tracing configuration.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	Endpoint    string `json:"endpoint"`
	ServiceName string `json:"service_name"`
	Environment string `json:"environment"`
}

// LoadConfig loads configuration from environment variables and/or config
// file. Environment variables take precedence over config file values.
func LoadConfig(configFile string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: "8080",
			Host: "",
		},
		Database: DatabaseConfig{
			Path: "./card_optimiser.db",
		},
		Catalog: CatalogConfig{
			BundledDir:      "./data",
			RefreshCron:     "0 */6 * * *",
			CacheTTLSeconds: 24 * 60 * 60,
		},
		Cache: CacheConfig{
			RedisEnabled:      false,
			RedisAddr:         "localhost:6379",
			ContextTTLSeconds: 15 * 60,
		},
		Security: SecurityConfig{
			MaxRequestBodySize: 1 << 20,
			AllowedOrigins:     "*",
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Rate:    100,
			Window:  60,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "card-optimiser",
			Environment: "development",
		},
	}

	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	overrideFromEnv(cfg)

	return cfg, nil
}

// loadFromFile loads configuration from a JSON file.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, cfg)
}

// overrideFromEnv overrides configuration with environment variables.
func overrideFromEnv(cfg *Config) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Server.Port = port
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if v := os.Getenv("CATALOG_CARDS_URL"); v != "" {
		cfg.Catalog.CardsURL = v
	}
	if v := os.Getenv("CATALOG_RULES_URL"); v != "" {
		cfg.Catalog.RulesURL = v
	}
	if v := os.Getenv("CATALOG_OFFERS_URL"); v != "" {
		cfg.Catalog.OffersURL = v
	}
	if v := os.Getenv("CATALOG_BUNDLED_DIR"); v != "" {
		cfg.Catalog.BundledDir = v
	}
	if v := os.Getenv("CATALOG_REFRESH_CRON"); v != "" {
		cfg.Catalog.RefreshCron = v
	}
	if v := os.Getenv("CATALOG_CACHE_TTL_SECONDS"); v != "" {
		if ttl, err := strconv.Atoi(v); err == nil {
			cfg.Catalog.CacheTTLSeconds = ttl
		}
	}
	if v := os.Getenv("REDIS_ENABLED"); v != "" {
		cfg.Cache.RedisEnabled = isTruthy(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Cache.RedisPassword = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.RedisDB = db
		}
	}
	if v := os.Getenv("CONTEXT_TTL_SECONDS"); v != "" {
		if ttl, err := strconv.Atoi(v); err == nil {
			cfg.Cache.ContextTTLSeconds = ttl
		}
	}
	if maxBodySize := os.Getenv("MAX_REQUEST_BODY_SIZE"); maxBodySize != "" {
		if size, err := strconv.ParseInt(maxBodySize, 10, 64); err == nil {
			cfg.Security.MaxRequestBodySize = size
		}
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.Security.AllowedOrigins = origins
	}
	if enabled := os.Getenv("RATE_LIMIT_ENABLED"); enabled != "" {
		cfg.RateLimit.Enabled = isTruthy(enabled)
	}
	if rate := os.Getenv("RATE_LIMIT_RATE"); rate != "" {
		if r, err := strconv.Atoi(rate); err == nil {
			cfg.RateLimit.Rate = r
		}
	}
	if window := os.Getenv("RATE_LIMIT_WINDOW"); window != "" {
		if w, err := strconv.Atoi(window); err == nil {
			cfg.RateLimit.Window = w
		}
	}
	if enabled := os.Getenv("TRACING_ENABLED"); enabled != "" {
		cfg.Tracing.Enabled = isTruthy(enabled)
	}
	if v := os.Getenv("TRACING_ENDPOINT"); v != "" {
		cfg.Tracing.Endpoint = v
	}
	if v := os.Getenv("TRACING_SERVICE_NAME"); v != "" {
		cfg.Tracing.ServiceName = v
	}
	if v := os.Getenv("TRACING_ENVIRONMENT"); v != "" {
		cfg.Tracing.Environment = v
	}
}

func isTruthy(v string) bool {
	return strings.ToLower(v) == "true" || v == "1"
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Catalog.BundledDir == "" {
		return fmt.Errorf("catalog bundled_dir is required")
	}
	if c.Catalog.CacheTTLSeconds < 0 {
		return fmt.Errorf("catalog cache_ttl_seconds must be non-negative")
	}
	if c.Cache.ContextTTLSeconds <= 0 {
		return fmt.Errorf("cache context_ttl_seconds must be positive")
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.Rate <= 0 {
			return fmt.Errorf("rate limit rate must be positive")
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit window must be positive")
		}
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing endpoint is required when tracing is enabled")
	}
	return nil
}
