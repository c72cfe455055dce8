package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"
)

// Config holds scraper configuration. It is built once and handed to the
// transport; nothing reads configuration from package state.
type Config struct {
	BaseURL         string            `mapstructure:"base_url"`
	UserAgent       string            `mapstructure:"user_agent"`
	Headers         map[string]string `mapstructure:"headers"`
	Payload         string            `mapstructure:"payload"`
	Timeout         time.Duration     `mapstructure:"timeout"`
	ConnectTimeout  time.Duration     `mapstructure:"connect_timeout"`
	MaxIdleConns    int               `mapstructure:"max_idle_conns"`
	MaxConnsPerHost int               `mapstructure:"max_conns_per_host"`
	IdleConnTimeout time.Duration     `mapstructure:"idle_conn_timeout"`
	Nameservers     []string          `mapstructure:"nameservers"`
	MaxConcurrency  int               `mapstructure:"max_concurrency"`
	CacheSize       int               `mapstructure:"cache_size"`
	MaxBodySize     int               `mapstructure:"max_body_size"` // bytes, 0 = unlimited
	OutputFile      string            `mapstructure:"output_file"`
	OutputFormat    string            `mapstructure:"output_format"` // df, csv, excel, or json
	MetricsAddr     string            `mapstructure:"metrics_addr"`
	Verbose         bool              `mapstructure:"verbose"`
}

// Supported export formats.
const (
	FormatDataFrame = "df"
	FormatCSV       = "csv"
	FormatExcel     = "excel"
	FormatJSON      = "json"
)

// DefaultConfig returns conservative defaults for the demo target.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:   "https://books.toscrape.com/catalogue/",
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		Headers: map[string]string{
			"Accept":          "text/html,application/xhtml+xml",
			"Accept-Language": "en-GB,en;q=0.9",
		},
		Timeout:         30 * time.Second,
		ConnectTimeout:  10 * time.Second,
		MaxIdleConns:    100,
		MaxConnsPerHost: 0,
		IdleConnTimeout: 90 * time.Second,
		MaxConcurrency:  0,
		CacheSize:       0,
		MaxBodySize:     0,
		OutputFile:      "output/books.csv",
		OutputFormat:    FormatDataFrame,
		Verbose:         false,
	}
}

// Validate checks the settings the transport depends on. Export settings are
// checked where they are used, by pipeline.ValidateFormat.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.ConnectTimeout < 0 {
		return fmt.Errorf("connect timeout cannot be negative")
	}
	if c.MaxIdleConns < 0 {
		return fmt.Errorf("max idle conns cannot be negative")
	}
	if c.MaxConnsPerHost < 0 {
		return fmt.Errorf("max conns per host cannot be negative")
	}
	if c.IdleConnTimeout < 0 {
		return fmt.Errorf("idle conn timeout cannot be negative")
	}
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max concurrency cannot be negative")
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache size cannot be negative")
	}
	if c.MaxBodySize < 0 {
		return fmt.Errorf("max body size cannot be negative")
	}
	for _, ns := range c.Nameservers {
		if _, _, err := net.SplitHostPort(ns); err != nil {
			return fmt.Errorf("nameserver %q must be host:port: %w", ns, err)
		}
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}

// NormalizedBaseURL returns BaseURL with exactly one trailing slash so that
// site-relative paths can be appended directly.
func (c *Config) NormalizedBaseURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/"
}

// EnvString looks up a non-empty environment variable.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return value, true
}
