// Package config provides configuration structures and loading for the fuel price scraper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/andygrunwald/fuel-price-scraper/internal/api"
	"github.com/andygrunwald/fuel-price-scraper/internal/api/fuelwatch"
)

// Config holds all configuration for the fuel price scraper.
type Config struct {
	// Database DSN: postgres://, mysql:// or a SQLite file path
	DatabaseDSN string
	// Path of the YAML credentials file
	AuthFile string
	// Directory holding the OAuth token cache files
	TokenCacheDir string
	// Log level (debug, info, warn, error)
	LogLevel string
	// Log format (json, console)
	LogFormat string
	// Per request timeout for upstream calls
	HTTPTimeout time.Duration
	// Number of sources fetched at the same time
	Concurrency int
	// node_exporter textfile to write metrics to; empty disables metrics
	MetricsTextfile string
	// Retry settings for FuelWatch
	WARetries    int
	WARetryDelay time.Duration
	// Upstream credentials
	Credentials Credentials
}

// Credentials holds the secrets of the authenticated sources.
type Credentials struct {
	NSWClientID     string `yaml:"nsw_client_id"`
	NSWClientSecret string `yaml:"nsw_client_secret"`
	QLDToken        string `yaml:"qld_token"`
	SAToken         string `yaml:"sa_token"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		DatabaseDSN:   "fuel.db",
		AuthFile:      "auth.yaml",
		TokenCacheDir: ".",
		LogLevel:      "info",
		LogFormat:     "json",
		HTTPTimeout:   api.DefaultTimeout,
		Concurrency:   1,
		WARetries:     fuelwatch.DefaultRetryPolicy.Retries,
		WARetryDelay:  fuelwatch.DefaultRetryPolicy.Delay,
	}
}

// LoadDotEnv loads environment variables from a .env file. A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}

// LoadFromEnv loads configuration from environment variables.
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		c.DatabaseDSN = v
	}
	if v := os.Getenv("AUTH_FILE"); v != "" {
		c.AuthFile = v
	}
	if v := os.Getenv("TOKEN_CACHE_DIR"); v != "" {
		c.TokenCacheDir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv("HTTP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.HTTPTimeout = d
		}
	}
	if v := os.Getenv("CONCURRENCY"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			c.Concurrency = i
		}
	}
	if v := os.Getenv("METRICS_TEXTFILE"); v != "" {
		c.MetricsTextfile = v
	}
	if v := os.Getenv("WA_RETRIES"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i >= 0 {
			c.WARetries = i
		}
	}
	if v := os.Getenv("WA_RETRY_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			c.WARetryDelay = d
		}
	}
}

// LoadCredentials reads AuthFile and then applies environment overrides.
// A missing file leaves the credentials to the environment.
func (c *Config) LoadCredentials() error {
	creds, err := ReadCredentials(c.AuthFile)
	if err != nil {
		return err
	}
	creds.loadFromEnv()
	c.Credentials = creds
	return nil
}

// ReadCredentials parses a YAML credentials file. A missing file yields empty credentials.
func ReadCredentials(path string) (Credentials, error) {
	var creds Credentials
	if path == "" {
		return creds, nil
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, fs.ErrNotExist) {
		return creds, nil
	}
	if err != nil {
		return creds, fmt.Errorf("failed to read auth file: %w", err)
	}

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &creds); err != nil {
		return creds, fmt.Errorf("failed to parse auth file: %w", err)
	}
	return creds, nil
}

func (c *Credentials) loadFromEnv() {
	if v := os.Getenv("NSW_CLIENT_ID"); v != "" {
		c.NSWClientID = v
	}
	if v := os.Getenv("NSW_CLIENT_SECRET"); v != "" {
		c.NSWClientSecret = v
	}
	if v := os.Getenv("QLD_TOKEN"); v != "" {
		c.QLDToken = v
	}
	if v := os.Getenv("SA_TOKEN"); v != "" {
		c.SAToken = v
	}
}

// RetryPolicy returns the FuelWatch retry policy.
func (c *Config) RetryPolicy() api.RetryPolicy {
	return api.RetryPolicy{Retries: c.WARetries, Delay: c.WARetryDelay}
}

// TokenCachePath returns the cache file of the named OAuth source.
func (c *Config) TokenCachePath(name string) string {
	return filepath.Join(c.TokenCacheDir, name+"-token.json")
}
