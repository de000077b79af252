package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultScrapeInterval  = 5 * time.Minute
	DefaultBufferSize      = 1000
	DefaultStableBandPct   = 1.0
	DefaultConcurrency     = 4
	DefaultAPIKeyHeader    = "x-api-key"
	DefaultComparisonLabel = "vs last period"
)

// Source types understood by the scraper factory.
const (
	SourcePrometheus = "prometheus"
	SourceJSON       = "json"
)

// Config is the top-level agent configuration. Fields map 1:1 to
// agent.example.yaml.
type Config struct {
	Agent AgentConfig `yaml:"agent"`
}

// AgentConfig holds all agent-side settings.
type AgentConfig struct {
	// ServerEndpoint is the gRPC address of stewardlens-server (host:port).
	ServerEndpoint string `yaml:"server_endpoint"`

	// ScrapeInterval controls how often each source is polled. Giving data
	// moves slowly, so minutes rather than seconds.
	ScrapeInterval time.Duration `yaml:"scrape_interval"`

	// BufferSize is the maximum number of snapshots held in memory when
	// the server is unreachable.
	BufferSize int `yaml:"buffer_size"`

	// StableBandPct is the absolute giving change (in percent) below which
	// the trend is reported as stable rather than up or down.
	StableBandPct float64 `yaml:"stable_band_pct"`

	// Concurrency bounds how many sources are scraped at once.
	Concurrency int `yaml:"concurrency"`

	// Sources is the list of congregations (campuses) to monitor.
	Sources []Source `yaml:"sources"`

	// ServerAuth configures how the agent authenticates to stewardlens-server.
	// Supports mtls | apikey | none.
	ServerAuth AuthConfig `yaml:"server_auth"`
}

// Source describes one congregation's giving-data endpoint.
type Source struct {
	// ID is a unique, human-readable identifier, e.g. "north-campus".
	ID string `yaml:"id"`

	// Name is the display name shown on dashboards.
	Name string `yaml:"name"`

	// Type is the endpoint format: prometheus | json.
	Type string `yaml:"type"`

	// Endpoint is the full URL of the exporter or giving-summary endpoint.
	Endpoint string `yaml:"endpoint"`

	// ComparisonLabel is the free text attached to the giving trend,
	// such as "vs last month".
	ComparisonLabel string `yaml:"comparison_label"`

	// Auth configures how the agent authenticates to this source.
	Auth AuthConfig `yaml:"auth"`

	// TLS holds optional TLS dial options.
	TLS TLSConfig `yaml:"tls"`
}

// DisplayName returns Name, falling back to ID.
func (s Source) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// AuthConfig specifies the authentication mode for a source or the server.
type AuthConfig struct {
	// Mode is one of: mtls | apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// mTLS fields, used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// Header is the HTTP header (or gRPC metadata key) carrying the API key.
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv is the name of the environment variable that holds the bearer token.
	TokenEnv string `yaml:"token_env"`

	// Username is the literal basic-auth username.
	Username string `yaml:"username"`
	// PasswordEnv is the name of the environment variable that holds the password.
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string {
	if a.TokenEnv == "" {
		return ""
	}
	return os.Getenv(a.TokenEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string {
	if a.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(a.PasswordEnv)
}

// TLSConfig holds per-source TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	// Only use this for internal CAs in development environments.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	applySourceDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			ScrapeInterval: DefaultScrapeInterval,
			BufferSize:     DefaultBufferSize,
			StableBandPct:  DefaultStableBandPct,
			Concurrency:    DefaultConcurrency,
		},
	}
}

// applySourceDefaults fills per-item defaults that cannot be preset before
// unmarshalling a list.
func applySourceDefaults(cfg *Config) {
	if cfg.Agent.ServerAuth.Mode == "apikey" && cfg.Agent.ServerAuth.Header == "" {
		cfg.Agent.ServerAuth.Header = DefaultAPIKeyHeader
	}
	for i := range cfg.Agent.Sources {
		src := &cfg.Agent.Sources[i]
		if src.ComparisonLabel == "" {
			src.ComparisonLabel = DefaultComparisonLabel
		}
		if src.Auth.Mode == "apikey" && src.Auth.Header == "" {
			src.Auth.Header = DefaultAPIKeyHeader
		}
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	a := cfg.Agent
	if a.ServerEndpoint == "" {
		return fmt.Errorf("agent.server_endpoint is required")
	}
	if a.ScrapeInterval <= 0 {
		return fmt.Errorf("agent.scrape_interval must be positive")
	}
	if a.BufferSize <= 0 {
		return fmt.Errorf("agent.buffer_size must be positive")
	}
	if a.StableBandPct < 0 {
		return fmt.Errorf("agent.stable_band_pct must not be negative")
	}
	if a.Concurrency <= 0 {
		return fmt.Errorf("agent.concurrency must be positive")
	}
	switch a.ServerAuth.Mode {
	case "mtls", "apikey", "none", "":
	default:
		return fmt.Errorf("agent.server_auth: unknown mode %q", a.ServerAuth.Mode)
	}

	seen := make(map[string]bool, len(a.Sources))
	for i, src := range a.Sources {
		if src.ID == "" {
			return fmt.Errorf("sources[%d]: id is required", i)
		}
		if seen[src.ID] {
			return fmt.Errorf("sources[%d]: duplicate id %q", i, src.ID)
		}
		seen[src.ID] = true
		if src.Endpoint == "" {
			return fmt.Errorf("sources[%d] %q: endpoint is required", i, src.ID)
		}
		switch src.Type {
		case SourcePrometheus, SourceJSON:
		default:
			return fmt.Errorf("sources[%d] %q: unknown type %q", i, src.ID, src.Type)
		}
		switch src.Auth.Mode {
		case "mtls", "apikey", "bearer", "basic", "none", "":
		default:
			return fmt.Errorf("sources[%d] %q: unknown auth mode %q", i, src.ID, src.Auth.Mode)
		}
	}
	return nil
}
