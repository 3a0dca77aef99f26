package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.BaseURL != defaultBaseURL {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if got := cfg.Polling.BadgeInterval(); got != 30*time.Second {
		t.Errorf("BadgeInterval = %v", got)
	}
	if got := cfg.Polling.ListInterval(); got != 10*time.Second {
		t.Errorf("ListInterval = %v", got)
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`api:
  base_url: http://school.test/api/v1/
  timeout_sec: 4
polling:
  list_interval_sec: 5
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SCHOOLPORTAL_POLLING_BADGE_INTERVAL_SEC", "45")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.BaseURL != "http://school.test/api/v1" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", cfg.API.BaseURL)
	}
	if got := cfg.API.Timeout(); got != 4*time.Second {
		t.Errorf("Timeout = %v", got)
	}
	if got := cfg.Polling.ListInterval(); got != 5*time.Second {
		t.Errorf("ListInterval = %v", got)
	}
	if got := cfg.Polling.BadgeInterval(); got != 45*time.Second {
		t.Errorf("BadgeInterval = %v, want env override", got)
	}
	if cfg.API.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want default", cfg.API.MaxRetries)
	}
}

func TestLoadConfig_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("api: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}

func TestPollingIntervalsFallBack(t *testing.T) {
	var c PollingConfig
	if c.BadgeInterval() != 30*time.Second || c.ListInterval() != 10*time.Second {
		t.Errorf("zero config should fall back to defaults, got %v / %v", c.BadgeInterval(), c.ListInterval())
	}
}

func TestOrigin(t *testing.T) {
	tests := map[string]string{
		"http://127.0.0.1:8000/api/v1":  "http://127.0.0.1:8000",
		"https://school.test":           "https://school.test",
		"school.test/api":               "school.test/api",
		"http://user@host:9000/a/b?q=1": "http://host:9000",
		"https://school.test/":          "https://school.test",
	}
	for base, want := range tests {
		if got := (APIConfig{BaseURL: base}).Origin(); got != want {
			t.Errorf("Origin(%q) = %q, want %q", base, got, want)
		}
	}
}
