package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "sodafetch.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Source.BaseURL != "https://data.cityofnewyork.us" {
		t.Errorf("BaseURL = %q", cfg.Source.BaseURL)
	}
	if cfg.Source.DatasetID != "usep-8jbt" {
		t.Errorf("DatasetID = %q", cfg.Source.DatasetID)
	}
	if cfg.Fetch.PageLimit != 50000 {
		t.Errorf("PageLimit = %d, want 50000", cfg.Fetch.PageLimit)
	}
	if cfg.Fetch.Delay.Std() != 500*time.Millisecond {
		t.Errorf("Delay = %v, want 500ms", cfg.Fetch.Delay.Std())
	}
	if cfg.Fetch.Timeout.Std() != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Fetch.Timeout.Std())
	}
	if cfg.Output.Dir != "data/raw" || cfg.Output.Basename != "nyc_property_sales" {
		t.Errorf("Output = %+v", cfg.Output)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
source:
  base_url: https://data.example.gov
  dataset_id: abcd-1234
  app_token: file-token
fetch:
  page_limit: 1000
  delay: 250ms
  timeout: 10s
output:
  dir: /tmp/out
  basename: sales
redis:
  addr: localhost:6379
  cache_ttl: 2h
logging:
  level: debug
  pretty: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Source.BaseURL != "https://data.example.gov" {
		t.Errorf("BaseURL = %q", cfg.Source.BaseURL)
	}
	if cfg.Source.AppToken != "file-token" {
		t.Errorf("AppToken = %q", cfg.Source.AppToken)
	}
	if cfg.Fetch.PageLimit != 1000 {
		t.Errorf("PageLimit = %d", cfg.Fetch.PageLimit)
	}
	if cfg.Fetch.Delay.Std() != 250*time.Millisecond {
		t.Errorf("Delay = %v", cfg.Fetch.Delay.Std())
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Redis.Addr = %q", cfg.Redis.Addr)
	}
	if cfg.Redis.CacheTTL.Std() != 2*time.Hour {
		t.Errorf("CacheTTL = %v", cfg.Redis.CacheTTL.Std())
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Pretty {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SODA_APP_TOKEN", "env-token")
	t.Setenv("SODA_REDIS_ADDR", "redis.internal:6379")
	t.Setenv("SODA_LOG_LEVEL", "warn")

	path := writeConfig(t, `
source:
  app_token: file-token
logging:
  level: info
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Source.AppToken != "env-token" {
		t.Errorf("AppToken = %q, env must win", cfg.Source.AppToken)
	}
	if cfg.Redis.Addr != "redis.internal:6379" {
		t.Errorf("Redis.Addr = %q", cfg.Redis.Addr)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "bad yaml", content: "source: ["},
		{name: "bad duration", content: "fetch:\n  delay: soon"},
		{name: "empty base url", content: "source:\n  base_url: \"\""},
		{name: "negative page limit", content: "fetch:\n  page_limit: -1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if _, err := Load(path); err == nil {
				t.Error("Load() error = nil, want error")
			}
		})
	}
}
