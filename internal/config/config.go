// Package config loads service settings from defaults, an optional TOML file and
// TCGWISH_ environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "TCGWISH"

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	RapidAPI     RapidAPIConfig     `mapstructure:"rapidapi"`
	ExchangeRate ExchangeRateConfig `mapstructure:"exchange_rate"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Aggregation  AggregationConfig  `mapstructure:"aggregation"`
	Warmer       WarmerConfig       `mapstructure:"warmer"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Port               string   `mapstructure:"port"`
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
	FrontendDistPath   string   `mapstructure:"frontend_dist_path"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// RapidAPIConfig points at the Pokémon TCG card API
type RapidAPIConfig struct {
	Key               string        `mapstructure:"key"`
	Host              string        `mapstructure:"host"`
	BaseURL           string        `mapstructure:"base_url"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

type ExchangeRateConfig struct {
	BaseURL  string  `mapstructure:"base_url"`
	Fallback float64 `mapstructure:"fallback"`
}

// CacheConfig selects the key-value backend: memory, database or redis
type CacheConfig struct {
	Backend    string      `mapstructure:"backend"`
	MemorySize int         `mapstructure:"memory_size"`
	Redis      RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// AggregationConfig bounds upstream pages per query kind
type AggregationConfig struct {
	SearchMaxPages    int `mapstructure:"search_max_pages"`
	ExpansionMaxPages int `mapstructure:"expansion_max_pages"`
	CatalogMaxPages   int `mapstructure:"catalog_max_pages"`
	PageSize          int `mapstructure:"page_size"`
}

type WarmerConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
	Purge     bool          `mapstructure:"purge"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

const (
	BackendMemory   = "memory"
	BackendDatabase = "database"
	BackendRedis    = "redis"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.cors_allowed_origins", []string{"http://localhost:5173", "http://localhost:3000"})
	v.SetDefault("server.frontend_dist_path", "")

	v.SetDefault("database.path", "./tcg_wishlist.db")

	v.SetDefault("rapidapi.key", "")
	v.SetDefault("rapidapi.host", "pokemon-tcg-api.p.rapidapi.com")
	v.SetDefault("rapidapi.base_url", "https://pokemon-tcg-api.p.rapidapi.com")
	v.SetDefault("rapidapi.requests_per_second", 5.0)
	v.SetDefault("rapidapi.burst", 5)
	v.SetDefault("rapidapi.timeout", 15*time.Second)

	v.SetDefault("exchange_rate.base_url", "https://open.er-api.com/v6")
	v.SetDefault("exchange_rate.fallback", 1.09)

	v.SetDefault("cache.backend", BackendDatabase)
	v.SetDefault("cache.memory_size", 512)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.ttl", 8*24*time.Hour)

	v.SetDefault("aggregation.search_max_pages", 10)
	v.SetDefault("aggregation.expansion_max_pages", 20)
	v.SetDefault("aggregation.catalog_max_pages", 50)
	v.SetDefault("aggregation.page_size", 20)

	v.SetDefault("warmer.enabled", true)
	v.SetDefault("warmer.interval", 6*time.Hour)
	v.SetDefault("warmer.batch_size", 5)
	v.SetDefault("warmer.purge", true)

	v.SetDefault("rate_limit.requests_per_second", 5.0)
	v.SetDefault("rate_limit.burst", 10)
}

// Load reads configuration. The file named by TCGWISH_CONFIG is optional; when
// unset, ./config.toml is used if present. Env overrides use the TCGWISH_ prefix
// with dots replaced by underscores, e.g. TCGWISH_CACHE_REDIS_ADDR.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")
	if path := os.Getenv(envPrefix + "_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects settings the service cannot start with.
func (c Config) Validate() error {
	switch c.Cache.Backend {
	case BackendMemory, BackendDatabase, BackendRedis:
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Server.Port == "" {
		return errors.New("server port is required")
	}
	if c.ExchangeRate.Fallback <= 0 {
		return fmt.Errorf("exchange rate fallback must be positive, got %v", c.ExchangeRate.Fallback)
	}
	return nil
}
