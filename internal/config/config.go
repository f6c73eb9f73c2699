package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values
const (
	DefaultAddr              = ":8080"
	DefaultStorageRoot       = "./data"
	DefaultSweepInterval     = 30 * time.Minute
	DefaultDownloadRetention = 2 * time.Hour
	DefaultConvertRetention  = 2 * time.Hour
	DefaultCookieRetention   = 7 * 24 * time.Hour
	DefaultFetchTimeout      = 3 * time.Minute
	DefaultRequestsPerSecond = 1.0
	DefaultBurstSize         = 5
)

// Environment variable names
const (
	EnvAddr              = "DOWNTIFY_ADDR"
	EnvStorageRoot       = "STORAGE_ROOT"
	EnvClientID          = "CLIENT_ID"
	EnvClientSecret      = "CLIENT_SECRET"
	EnvProxyURL          = "PROXY_URL"
	EnvCookieContent     = "COOKIES_CONTENT"
	EnvSessionSecret     = "SESSION_SECRET"
	EnvSweepInterval     = "SWEEP_INTERVAL"
	EnvDownloadRetention = "DOWNLOAD_RETENTION"
	EnvCookieRetention   = "COOKIE_RETENTION"
	EnvFetchTimeout      = "FETCH_TIMEOUT"
	EnvConfigFile        = "DOWNTIFY_CONFIG"
)

// Subdirectories under the storage root
const (
	DownloadsSubdir       = "downloads"
	CookiesSubdir         = "cookies"
	ConverterUploadSubdir = "converter_uploads"
	ConverterOutputSubdir = "converter_output"
)

// Config holds the full service configuration. Values come from the
// environment, optionally overridden by a YAML file named via
// DOWNTIFY_CONFIG.
type Config struct {
	Addr        string `yaml:"addr"`
	StorageRoot string `yaml:"storage_root"`

	// Catalog search credential pair. Absence is a fatal configuration
	// error for any fetch request, not for process start.
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`

	ProxyURL      string `yaml:"proxy_url"`
	CookieContent string `yaml:"-"`
	SessionSecret string `yaml:"session_secret"`

	SweepInterval     time.Duration `yaml:"sweep_interval"`
	DownloadRetention time.Duration `yaml:"download_retention"`
	ConvertRetention  time.Duration `yaml:"convert_retention"`
	CookieRetention   time.Duration `yaml:"cookie_retention"`
	FetchTimeout      time.Duration `yaml:"fetch_timeout"`

	RequestsPerSecond float64 `yaml:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size"`
}

// Load builds a Config from the environment and the optional YAML override
// file. Missing values fall back to defaults; malformed durations are an
// error rather than a silent fallback.
func Load() (*Config, error) {
	cfg := &Config{
		Addr:              envOr(EnvAddr, DefaultAddr),
		StorageRoot:       envOr(EnvStorageRoot, DefaultStorageRoot),
		ClientID:          os.Getenv(EnvClientID),
		ClientSecret:      os.Getenv(EnvClientSecret),
		ProxyURL:          os.Getenv(EnvProxyURL),
		CookieContent:     os.Getenv(EnvCookieContent),
		SessionSecret:     envOr(EnvSessionSecret, "downtify-dev-secret"),
		SweepInterval:     DefaultSweepInterval,
		DownloadRetention: DefaultDownloadRetention,
		ConvertRetention:  DefaultConvertRetention,
		CookieRetention:   DefaultCookieRetention,
		FetchTimeout:      DefaultFetchTimeout,
		RequestsPerSecond: DefaultRequestsPerSecond,
		BurstSize:         DefaultBurstSize,
	}

	durations := []struct {
		env string
		dst *time.Duration
	}{
		{EnvSweepInterval, &cfg.SweepInterval},
		{EnvDownloadRetention, &cfg.DownloadRetention},
		{EnvCookieRetention, &cfg.CookieRetention},
		{EnvFetchTimeout, &cfg.FetchTimeout},
	}
	for _, d := range durations {
		if raw := os.Getenv(d.env); raw != "" {
			parsed, err := parseDuration(raw)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", d.env, err)
			}
			*d.dst = parsed
		}
	}

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// applyFile overlays non-zero values from a YAML file onto the config.
func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var file Config
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if file.Addr != "" {
		c.Addr = file.Addr
	}
	if file.StorageRoot != "" {
		c.StorageRoot = file.StorageRoot
	}
	if file.ClientID != "" {
		c.ClientID = file.ClientID
	}
	if file.ClientSecret != "" {
		c.ClientSecret = file.ClientSecret
	}
	if file.ProxyURL != "" {
		c.ProxyURL = file.ProxyURL
	}
	if file.SessionSecret != "" {
		c.SessionSecret = file.SessionSecret
	}
	if file.SweepInterval > 0 {
		c.SweepInterval = file.SweepInterval
	}
	if file.DownloadRetention > 0 {
		c.DownloadRetention = file.DownloadRetention
	}
	if file.ConvertRetention > 0 {
		c.ConvertRetention = file.ConvertRetention
	}
	if file.CookieRetention > 0 {
		c.CookieRetention = file.CookieRetention
	}
	if file.FetchTimeout > 0 {
		c.FetchTimeout = file.FetchTimeout
	}
	if file.RequestsPerSecond > 0 {
		c.RequestsPerSecond = file.RequestsPerSecond
	}
	if file.BurstSize > 0 {
		c.BurstSize = file.BurstSize
	}
	return nil
}

// HasCatalogCredentials reports whether the catalog search credential pair
// is configured.
func (c *Config) HasCatalogCredentials() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// DownloadsDir returns the root of the per-user download workspace tree.
func (c *Config) DownloadsDir() string {
	return filepath.Join(c.StorageRoot, DownloadsSubdir)
}

// CookiesDir returns the directory holding cookie bundle files.
func (c *Config) CookiesDir() string {
	return filepath.Join(c.StorageRoot, CookiesSubdir)
}

// ConverterUploadDir returns the directory holding uploaded files awaiting
// conversion.
func (c *Config) ConverterUploadDir() string {
	return filepath.Join(c.StorageRoot, ConverterUploadSubdir)
}

// ConverterOutputDir returns the directory holding converted output files.
func (c *Config) ConverterOutputDir() string {
	return filepath.Join(c.StorageRoot, ConverterOutputSubdir)
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// parseDuration accepts Go duration strings and bare second counts.
func parseDuration(raw string) (time.Duration, error) {
	if seconds, err := strconv.Atoi(raw); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	return time.ParseDuration(raw)
}
