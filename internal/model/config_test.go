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
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Sync.Interval != 60*time.Second {
		t.Errorf("expected default interval 60s, got %s", cfg.Sync.Interval)
	}
	if cfg.Sync.RetryDelay != 5*time.Second {
		t.Errorf("expected default retry delay 5s, got %s", cfg.Sync.RetryDelay)
	}
	if cfg.Sync.MaxRetries != 3 {
		t.Errorf("expected default max retries 3, got %d", cfg.Sync.MaxRetries)
	}
	if cfg.Sync.ApplyPartial {
		t.Error("expected apply_partial to default to false")
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("expected sqlite backend, got %s", cfg.Storage.Backend)
	}
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
server:
  base_url: https://ward.example.org
sync:
  interval: 30s
  max_retries: 5
  backoff: exponential
display:
  theme: light
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.BaseURL != "https://ward.example.org" {
		t.Errorf("unexpected base url %s", cfg.Server.BaseURL)
	}
	if cfg.Sync.Interval != 30*time.Second {
		t.Errorf("expected 30s interval, got %s", cfg.Sync.Interval)
	}
	if cfg.Sync.MaxRetries != 5 {
		t.Errorf("expected 5 retries, got %d", cfg.Sync.MaxRetries)
	}
	if cfg.Sync.Backoff != "exponential" {
		t.Errorf("expected exponential backoff, got %s", cfg.Sync.Backoff)
	}
	if cfg.Sync.RetryDelay != 5*time.Second {
		t.Errorf("expected default retry delay to survive, got %s", cfg.Sync.RetryDelay)
	}
	if cfg.Display.Theme != "light" {
		t.Errorf("expected light theme, got %s", cfg.Display.Theme)
	}
	if got := cfg.SocketEndpoint(); got != "wss://ward.example.org/ws" {
		t.Errorf("unexpected socket endpoint %s", got)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("WARDBOARD_SERVER_BASE_URL", "http://10.0.0.5:9000")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.BaseURL != "http://10.0.0.5:9000" {
		t.Errorf("expected env base url, got %s", cfg.Server.BaseURL)
	}
	if got := cfg.SocketEndpoint(); got != "ws://10.0.0.5:9000/ws" {
		t.Errorf("unexpected socket endpoint %s", got)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() AppConfig {
		return AppConfig{
			Server:  ServerConfig{BaseURL: "http://localhost"},
			Sync:    SyncConfig{Interval: time.Minute, Backoff: "fixed"},
			Storage: StorageConfig{Backend: "sqlite"},
			Auth:    AuthConfig{TokenBackend: "keyring"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr bool
	}{
		{"valid", func(*AppConfig) {}, false},
		{"missing base url", func(c *AppConfig) { c.Server.BaseURL = " " }, true},
		{"zero interval", func(c *AppConfig) { c.Sync.Interval = 0 }, true},
		{"negative retries", func(c *AppConfig) { c.Sync.MaxRetries = -1 }, true},
		{"unknown backoff", func(c *AppConfig) { c.Sync.Backoff = "linear" }, true},
		{"unknown storage", func(c *AppConfig) { c.Storage.Backend = "indexeddb" }, true},
		{"unknown token backend", func(c *AppConfig) { c.Auth.TokenBackend = "cookie" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("loading defaults: %v", err)
	}
	cfg.Server.BaseURL = "http://saved.example"
	cfg.Display.Theme = "light"

	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("saving config: %v", err)
	}

	reloaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("reloading config: %v", err)
	}
	if reloaded.Server.BaseURL != "http://saved.example" {
		t.Errorf("expected saved base url, got %s", reloaded.Server.BaseURL)
	}
	if reloaded.Display.Theme != "light" {
		t.Errorf("expected saved theme, got %s", reloaded.Display.Theme)
	}
}
