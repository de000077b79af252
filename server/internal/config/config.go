package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// AlertsConfig holds alerting rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines one threshold-based alert condition.
type AlertRule struct {
	// Name is the human-readable alert identifier, used as the deduplication key.
	Name string `yaml:"name"`

	// Condition is a simple expression: "score < 60", "retention_rate < 50",
	// "label == needs_attention", "direction == down".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	// Defaults to 15 minutes if zero.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one notification target.
type WebhookConfig struct {
	// Type is one of: teams | slack | pagerduty | http | email.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	// Unused for email targets.
	URLEnv string `yaml:"url_env"`

	// APIKeyEnv names the environment variable holding the Resend API key
	// for email targets.
	APIKeyEnv string `yaml:"api_key_env"`

	// From and To address email targets.
	From string   `yaml:"from"`
	To   []string `yaml:"to"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// APIKey returns the email API key resolved from the environment.
func (w WebhookConfig) APIKey() string {
	if w.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(w.APIKeyEnv)
}

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Storage backends.
const (
	StorageSQLite = "sqlite"
	StorageNone   = "none"
)

// Default values for the server configuration.
const (
	DefaultGRPCPort          = 50051
	DefaultHTTPPort          = 8080
	DefaultSnapshotTTL       = 24 * time.Hour
	DefaultBroadcastInterval = 5 * time.Second
	DefaultRateLimitRPS      = 20
	DefaultRateLimitBurst    = 40
	DefaultCacheTTL          = time.Hour
	DefaultCacheMaxEntries   = 1024
	DefaultStoragePath       = "stewardlens.db"
	DefaultStorageRetention  = 90 * 24 * time.Hour
)

// Config holds the server-side configuration parsed from the `server:` section
// of config.yaml. The `agent:` key in the same file is ignored.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// GRPCPort is the port the gRPC receiver listens on (default 50051).
	GRPCPort int `yaml:"grpc_port"`

	// HTTPPort is the port the REST API and WebSocket hub listen on (default 8080).
	HTTPPort int `yaml:"http_port"`

	// Auth configures how the server authenticates incoming gRPC and REST clients.
	Auth AuthConfig `yaml:"auth"`

	// Snapshot controls in-memory snapshot retention.
	Snapshot SnapshotConfig `yaml:"snapshot"`

	// BroadcastInterval is how often the WebSocket hub pushes the full
	// snapshot to connected clients (default 5s).
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Cache     CacheConfig     `yaml:"cache"`
	Storage   StorageConfig   `yaml:"storage"`

	// Alerts holds rule definitions and webhook delivery targets.
	Alerts AlertsConfig `yaml:"alerts"`
}

// AuthConfig controls client authentication on the server side.
type AuthConfig struct {
	// Mode is one of: apikey | mtls | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	// Used when Mode == "apikey".
	KeyEnv string `yaml:"key_env"`

	// Header is the gRPC metadata key (and HTTP header name) to read the key from.
	// Defaults to "x-api-key" if empty.
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// SnapshotConfig controls in-memory snapshot retention.
type SnapshotConfig struct {
	// TTL is how long a congregation's snapshot remains in the store after its
	// last update. Default: 24h.
	TTL time.Duration `yaml:"ttl"`
}

// RateLimitConfig bounds REST API request rates. RPS 0 disables limiting.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// CacheConfig selects the assessment cache backend.
type CacheConfig struct {
	// Backend is one of: memory | redis | none.
	Backend     string        `yaml:"backend"`
	Addr        string        `yaml:"addr"`
	PasswordEnv string        `yaml:"password_env"`
	DB          int           `yaml:"db"`
	TTL         time.Duration `yaml:"ttl"`
	MaxEntries  int           `yaml:"max_entries"`
}

// Password returns the Redis password resolved from the environment.
func (c CacheConfig) Password() string {
	if c.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(c.PasswordEnv)
}

// StorageConfig controls persistence of assessment history.
type StorageConfig struct {
	// Backend is one of: sqlite | none.
	Backend string `yaml:"backend"`

	// Path is the SQLite database file.
	Path string `yaml:"path"`

	// Retention is how long history rows are kept (default 90 days).
	Retention time.Duration `yaml:"retention"`
}

// Load reads and parses the config file at path, returning the server configuration.
// Missing fields are filled with sensible defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			GRPCPort: DefaultGRPCPort,
			HTTPPort: DefaultHTTPPort,
			Snapshot: SnapshotConfig{
				TTL: DefaultSnapshotTTL,
			},
			BroadcastInterval: DefaultBroadcastInterval,
			RateLimit: RateLimitConfig{
				RPS:   DefaultRateLimitRPS,
				Burst: DefaultRateLimitBurst,
			},
			Cache: CacheConfig{
				Backend:    CacheMemory,
				TTL:        DefaultCacheTTL,
				MaxEntries: DefaultCacheMaxEntries,
			},
			Storage: StorageConfig{
				Backend:   StorageSQLite,
				Path:      DefaultStoragePath,
				Retention: DefaultStorageRetention,
			},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := &cfg.Server
	if s.GRPCPort <= 0 || s.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port %d is out of range [1, 65535]", s.GRPCPort)
	}
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	switch s.Auth.Mode {
	case "apikey", "mtls", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|mtls|none", s.Auth.Mode)
	}
	if s.Snapshot.TTL < 0 {
		return fmt.Errorf("server.snapshot.ttl must not be negative")
	}
	if s.BroadcastInterval <= 0 {
		return fmt.Errorf("server.broadcast_interval must be positive")
	}
	if s.RateLimit.RPS < 0 {
		return fmt.Errorf("server.rate_limit.rps must not be negative")
	}
	if s.RateLimit.RPS > 0 && s.RateLimit.Burst < 1 {
		return fmt.Errorf("server.rate_limit.burst must be at least 1 when rps is set")
	}

	switch s.Cache.Backend {
	case CacheMemory, CacheNone:
	case CacheRedis:
		if s.Cache.Addr == "" {
			return fmt.Errorf("server.cache.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("server.cache.backend %q unknown: want memory|redis|none", s.Cache.Backend)
	}
	if s.Cache.TTL < 0 {
		return fmt.Errorf("server.cache.ttl must not be negative")
	}

	switch s.Storage.Backend {
	case StorageNone:
	case StorageSQLite:
		if s.Storage.Path == "" {
			return fmt.Errorf("server.storage.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("server.storage.backend %q unknown: want sqlite|none", s.Storage.Backend)
	}
	if s.Storage.Retention < 0 {
		return fmt.Errorf("server.storage.retention must not be negative")
	}

	seen := make(map[string]bool, len(s.Alerts.Rules))
	for i, r := range s.Alerts.Rules {
		if r.Name == "" {
			return fmt.Errorf("server.alerts.rules[%d]: name is required", i)
		}
		if seen[r.Name] {
			return fmt.Errorf("server.alerts.rules[%d]: duplicate name %q", i, r.Name)
		}
		seen[r.Name] = true
		if r.Condition == "" {
			return fmt.Errorf("server.alerts.rules[%d] %q: condition is required", i, r.Name)
		}
	}
	for i, wh := range s.Alerts.Webhooks {
		switch wh.Type {
		case "slack", "teams", "pagerduty", "http":
		case "email":
			if wh.From == "" || len(wh.To) == 0 {
				return fmt.Errorf("server.alerts.webhooks[%d]: email needs from and to", i)
			}
		default:
			return fmt.Errorf("server.alerts.webhooks[%d]: type %q unknown: want slack|teams|pagerduty|http|email", i, wh.Type)
		}
	}
	return nil
}
