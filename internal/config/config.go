// Package config loads the sodafetch configuration file and resolves the
// date range the fetch run covers.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the config file looked up when no path is given.
const DefaultConfigFile = "sodafetch.yaml"

// Config represents the contents of sodafetch.yaml.
type Config struct {
	Source  SourceConfig  `yaml:"source"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Output  OutputConfig  `yaml:"output"`
	Redis   RedisConfig   `yaml:"redis"`
	Logging LoggingConfig `yaml:"logging"`
}

// SourceConfig identifies the Socrata resource.
type SourceConfig struct {
	BaseURL   string `yaml:"base_url"`
	DatasetID string `yaml:"dataset_id"`
	AppToken  string `yaml:"app_token,omitempty"`
}

// FetchConfig tunes the pagination loop.
type FetchConfig struct {
	PageLimit int      `yaml:"page_limit"`
	Delay     Duration `yaml:"delay"`
	Timeout   Duration `yaml:"timeout"`
}

// OutputConfig controls where the CSV files land.
type OutputConfig struct {
	Dir      string `yaml:"dir"`
	Basename string `yaml:"basename"`
}

// RedisConfig enables the optional page cache.
type RedisConfig struct {
	Addr     string   `yaml:"addr,omitempty"`
	CacheTTL Duration `yaml:"cache_ttl"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// defaultConfig returns the configuration for the NYC property sales
// dataset with no cache and info-level JSON logs.
func defaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			BaseURL:   "https://data.cityofnewyork.us",
			DatasetID: "usep-8jbt",
		},
		Fetch: FetchConfig{
			PageLimit: 50000,
			Delay:     Duration(500 * time.Millisecond),
			Timeout:   Duration(30 * time.Second),
		},
		Output: OutputConfig{
			Dir:      "data/raw",
			Basename: "nyc_property_sales",
		},
		Redis: RedisConfig{
			CacheTTL: Duration(1 * time.Hour),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the config from path, falling back to defaults when the file
// doesn't exist. Environment variables SODA_APP_TOKEN, SODA_REDIS_ADDR, and
// SODA_LOG_LEVEL override the file.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFile
	}

	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv overlays environment variables onto cfg.
func applyEnv(cfg *Config) {
	if token := os.Getenv("SODA_APP_TOKEN"); token != "" {
		cfg.Source.AppToken = token
	}
	if addr := os.Getenv("SODA_REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if level := os.Getenv("SODA_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}

// validate rejects configurations the client would refuse anyway, with
// friendlier messages.
func (c *Config) validate() error {
	if c.Source.BaseURL == "" {
		return fmt.Errorf("source.base_url must not be empty")
	}
	if c.Source.DatasetID == "" {
		return fmt.Errorf("source.dataset_id must not be empty")
	}
	if c.Fetch.PageLimit < 0 {
		return fmt.Errorf("fetch.page_limit must not be negative (got %d)", c.Fetch.PageLimit)
	}
	return nil
}
