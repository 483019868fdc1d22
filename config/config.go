// Package config holds harvester and ingestion configuration.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"

	"github.com/aluiziolira/go-catalog-harvest/models"
)

// Config holds every tunable for a harvesting or ingestion run.
type Config struct {
	ListingURL string `mapstructure:"listing_url"`
	ProductURL string `mapstructure:"product_url"`
	SellerURL  string `mapstructure:"seller_url"`

	UserAgents []string `mapstructure:"user_agents"`

	Workers                int           `mapstructure:"workers"`
	RateLimitPerSecond     int           `mapstructure:"rate_limit_per_second"`
	MaxProductsPerCategory int           `mapstructure:"max_products_per_category"`
	ProductsPerPage        int           `mapstructure:"products_per_page"`
	MaxRetries             int           `mapstructure:"max_retries"`
	RetryBackoff           time.Duration `mapstructure:"retry_backoff"`
	Timeout                time.Duration `mapstructure:"timeout"`
	JitterMin              time.Duration `mapstructure:"jitter_min"`
	JitterMax              time.Duration `mapstructure:"jitter_max"`

	SnapshotDir  string `mapstructure:"snapshot_dir"`
	DatabasePath string `mapstructure:"database_path"`
	MetricsAddr  string `mapstructure:"metrics_addr"`
	Verbose      bool   `mapstructure:"verbose"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		ListingURL: "https://tiki.vn/api/v2/products",
		ProductURL: "https://tiki.vn/api/v2/products",
		SellerURL:  "https://api.tiki.vn/social/openapi/interaction/following",
		UserAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		},
		Workers:                10,
		RateLimitPerSecond:     5,
		MaxProductsPerCategory: 250,
		ProductsPerPage:        48,
		MaxRetries:             3,
		RetryBackoff:           time.Second,
		Timeout:                30 * time.Second,
		JitterMin:              100 * time.Millisecond,
		JitterMax:              300 * time.Millisecond,
		SnapshotDir:            "data/raw",
		DatabasePath:           "data/database/catalog_history.db",
		MetricsAddr:            "",
		Verbose:                false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	for name, raw := range map[string]string{
		"listing URL": c.ListingURL,
		"product URL": c.ProductURL,
		"seller URL":  c.SellerURL,
	} {
		if raw == "" {
			return fmt.Errorf("%s cannot be empty", name)
		}
		parsed, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if parsed.Host == "" {
			return fmt.Errorf("%s must include a host", name)
		}
	}

	if len(c.UserAgents) == 0 {
		return fmt.Errorf("user agent pool cannot be empty")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if c.RateLimitPerSecond <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}
	if c.MaxProductsPerCategory <= 0 {
		return fmt.Errorf("max products per category must be positive")
	}
	if c.ProductsPerPage <= 0 {
		return fmt.Errorf("products per page must be positive")
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("max retries must be positive")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.JitterMin < 0 || c.JitterMax < 0 {
		return fmt.Errorf("jitter cannot be negative")
	}
	if c.JitterMax < c.JitterMin {
		return fmt.Errorf("jitter max (%s) cannot be below jitter min (%s)", c.JitterMax, c.JitterMin)
	}
	if c.SnapshotDir == "" {
		return fmt.Errorf("snapshot directory cannot be empty")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	return nil
}

// LoadFile reads a JSON configuration file over the defaults. Durations in
// the file use Go duration syntax ("30s", "200ms").
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// LoadCategories reads the category list file ({"categories": [{id, name}]}).
func LoadCategories(path string) ([]models.Category, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read categories file: %w", err)
	}

	var categories []models.Category
	if err := v.UnmarshalKey("categories", &categories); err != nil {
		return nil, fmt.Errorf("parse categories file: %w", err)
	}
	if len(categories) == 0 {
		return nil, fmt.Errorf("categories file %q lists no categories", path)
	}
	return categories, nil
}

// EnvInt reads an integer environment variable. The second return reports
// whether the variable was set.
func EnvInt(name string) (int, bool, error) {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s=%q is not an integer: %w", name, raw, err)
	}
	return value, true, nil
}

// EnvString reads a string environment variable.
func EnvString(name string) (string, bool) {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return "", false
	}
	return raw, true
}
