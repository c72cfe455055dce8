package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. BOOKSDATA_BASE_URL.
const EnvPrefix = "BOOKSDATA"

// Load builds a Config from defaults, an optional YAML file and the environment.
// A nil v gets a fresh NewViper; callers pass their own to layer bound flags
// on top.
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = NewViper()
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return FromViper(v)
}

// NewViper returns a viper instance carrying the defaults and env bindings.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// FromViper decodes and validates a Config from v.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("base_url", d.BaseURL)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("headers", d.Headers)
	v.SetDefault("payload", d.Payload)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("connect_timeout", d.ConnectTimeout)
	v.SetDefault("max_idle_conns", d.MaxIdleConns)
	v.SetDefault("max_conns_per_host", d.MaxConnsPerHost)
	v.SetDefault("idle_conn_timeout", d.IdleConnTimeout)
	v.SetDefault("nameservers", d.Nameservers)
	v.SetDefault("max_concurrency", d.MaxConcurrency)
	v.SetDefault("cache_size", d.CacheSize)
	v.SetDefault("max_body_size", d.MaxBodySize)
	v.SetDefault("output_file", d.OutputFile)
	v.SetDefault("output_format", d.OutputFormat)
	v.SetDefault("metrics_addr", d.MetricsAddr)
	v.SetDefault("verbose", d.Verbose)
}
