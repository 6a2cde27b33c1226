package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig locates the hospital back-end.
type ServerConfig struct {
	// BaseURL is the root of the REST API (requests go to BaseURL + /api/...).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// SocketURL is the push-channel endpoint. Derived from BaseURL when empty.
	SocketURL string `mapstructure:"socket_url" yaml:"socket_url"`

	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// SyncConfig tunes the synchronizer.
type SyncConfig struct {
	Interval      time.Duration `mapstructure:"interval" yaml:"interval"`
	RetryDelay    time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	MaxRetries    int           `mapstructure:"max_retries" yaml:"max_retries"`
	Backoff       string        `mapstructure:"backoff" yaml:"backoff"` // "fixed" or "exponential"
	Jitter        time.Duration `mapstructure:"jitter" yaml:"jitter"`
	ApplyPartial  bool          `mapstructure:"apply_partial" yaml:"apply_partial"`
	ProbeInterval time.Duration `mapstructure:"probe_interval" yaml:"probe_interval"`
}

// ChannelConfig tunes the push channel.
type ChannelConfig struct {
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay" yaml:"reconnect_delay"`
	SendBuffer     int           `mapstructure:"send_buffer" yaml:"send_buffer"`
	Heartbeat      bool          `mapstructure:"heartbeat" yaml:"heartbeat"`
}

// StorageConfig selects the local persistent store.
type StorageConfig struct {
	Backend  string `mapstructure:"backend" yaml:"backend"` // "sqlite" or "redis"
	Path     string `mapstructure:"path" yaml:"path"`
	RedisURL string `mapstructure:"redis_url" yaml:"redis_url"`
	// Namespace prefixes redis keys so several kiosks can share one server.
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
}

// AuthConfig selects where the session token lives.
type AuthConfig struct {
	TokenBackend string `mapstructure:"token_backend" yaml:"token_backend"` // "keyring" or "store"
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme                string        `mapstructure:"theme" yaml:"theme"`
	NotificationDuration time.Duration `mapstructure:"notification_duration" yaml:"notification_duration"`
}

// LogConfig controls zerolog output.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // "console" or "json"
	File   string `mapstructure:"file" yaml:"file"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Sync    SyncConfig    `mapstructure:"sync" yaml:"sync"`
	Channel ChannelConfig `mapstructure:"channel" yaml:"channel"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Auth    AuthConfig    `mapstructure:"auth" yaml:"auth"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// ConfigDir returns ~/.config/wardboard, or the working directory when the
// home directory cannot be resolved.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "wardboard")
}

// DefaultConfigPath returns the default path for the configuration file.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// setDefaults registers every key's default so missing keys resolve to
// sensible values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.base_url", "http://localhost:8000")
	v.SetDefault("server.socket_url", "")
	v.SetDefault("server.request_timeout", 30*time.Second)

	v.SetDefault("sync.interval", 60*time.Second)
	v.SetDefault("sync.retry_delay", 5*time.Second)
	v.SetDefault("sync.max_retries", 3)
	v.SetDefault("sync.backoff", "fixed")
	v.SetDefault("sync.jitter", time.Duration(0))
	v.SetDefault("sync.apply_partial", false)
	v.SetDefault("sync.probe_interval", 15*time.Second)

	v.SetDefault("channel.reconnect_delay", 2*time.Second)
	v.SetDefault("channel.send_buffer", 64)
	v.SetDefault("channel.heartbeat", true)

	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.path", filepath.Join(ConfigDir(), "wardboard.db"))
	v.SetDefault("storage.redis_url", "redis://127.0.0.1:6379/0")
	v.SetDefault("storage.namespace", "wardboard")

	v.SetDefault("auth.token_backend", "keyring")

	v.SetDefault("display.theme", "dark")
	v.SetDefault("display.notification_duration", 6*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", filepath.Join(ConfigDir(), "wardboard.log"))
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// WARDBOARD_* environment variables override file values (for example
// WARDBOARD_SERVER_BASE_URL). A missing file yields the defaults.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("wardboard")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate rejects settings the synchronizer and stores cannot run with.
func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.Server.BaseURL) == "" {
		return fmt.Errorf("server.base_url is required")
	}
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("sync.interval must be positive, got %s", c.Sync.Interval)
	}
	if c.Sync.MaxRetries < 0 {
		return fmt.Errorf("sync.max_retries must not be negative, got %d", c.Sync.MaxRetries)
	}
	switch c.Sync.Backoff {
	case "fixed", "exponential":
	default:
		return fmt.Errorf("sync.backoff must be fixed or exponential, got %q", c.Sync.Backoff)
	}
	switch c.Storage.Backend {
	case "sqlite", "redis":
	default:
		return fmt.Errorf("storage.backend must be sqlite or redis, got %q", c.Storage.Backend)
	}
	switch c.Auth.TokenBackend {
	case "keyring", "store":
	default:
		return fmt.Errorf("auth.token_backend must be keyring or store, got %q", c.Auth.TokenBackend)
	}
	return nil
}

// SocketEndpoint returns the push-channel URL, deriving ws(s)://host/ws
// from the REST base URL when none is configured.
func (c *AppConfig) SocketEndpoint() string {
	if c.Server.SocketURL != "" {
		return c.Server.SocketURL
	}
	base := strings.TrimRight(c.Server.BaseURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/ws"
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("server", cfg.Server)
	v.Set("sync", cfg.Sync)
	v.Set("channel", cfg.Channel)
	v.Set("storage", cfg.Storage)
	v.Set("auth", cfg.Auth)
	v.Set("display", cfg.Display)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
