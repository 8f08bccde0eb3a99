package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// Default values for the configuration.
const (
	DefaultGRPCPort        = 50051
	DefaultHTTPPort        = 8080
	DefaultRoot            = "pipeline"
	DefaultPollInterval    = 30 * time.Second
	DefaultBuildLimit      = 120
	DefaultDeployLimit     = 50
	DefaultLedgerRetention = 15 * time.Minute
	DefaultSnapshotTTL     = 5 * time.Minute
	DefaultStreamInterval  = 5 * time.Second
	DefaultProviderTimeout = 15 * time.Second
	DefaultProviderRetries = 3
	DefaultNotifyTimeout   = 10 * time.Second
	DefaultSQLitePath      = "pipewatch.db"
)

// Config is the full pipewatch configuration.
type Config struct {
	LogLevel      string             `yaml:"log_level" env:"PIPEWATCH_LOG_LEVEL, overwrite"`
	Poller        PollerConfig       `yaml:"poller" env:",prefix=PIPEWATCH_POLL_"`
	Provider      ProviderConfig     `yaml:"provider" env:",prefix=PIPEWATCH_PROVIDER_"`
	Projects      []string           `yaml:"projects" env:"PIPEWATCH_PROJECTS, overwrite"`
	Server        ServerConfig       `yaml:"server" env:",prefix=PIPEWATCH_"`
	Subscriptions SubscriptionConfig `yaml:"subscriptions" env:",prefix=PIPEWATCH_SUBSCRIPTIONS_"`
}

// PollerConfig controls the per-project poll loop.
type PollerConfig struct {
	Interval    time.Duration `yaml:"interval" env:"INTERVAL, overwrite"`
	BuildLimit  int           `yaml:"build_limit" env:"BUILD_LIMIT, overwrite"`
	DeployLimit int           `yaml:"deploy_limit" env:"DEPLOY_LIMIT, overwrite"`

	// Timezone is an IANA name used to compute the start of the day. "Local"
	// or empty means the process timezone.
	Timezone string `yaml:"timezone" env:"TIMEZONE, overwrite"`

	// LedgerRetention is how long a notified record key is remembered.
	// It is raised to the engine's notify window if smaller.
	LedgerRetention time.Duration `yaml:"ledger_retention" env:"LEDGER_RETENTION, overwrite"`
}

// Location resolves Timezone.
func (p PollerConfig) Location() (*time.Location, error) {
	if p.Timezone == "" || strings.EqualFold(p.Timezone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(p.Timezone)
}

// ProviderConfig selects and configures the CI/CD backend.
type ProviderConfig struct {
	// Type is one of: azure.
	Type       string `yaml:"type" env:"TYPE, overwrite"`
	URL        string `yaml:"url" env:"URL, overwrite"`
	ReleaseURL string `yaml:"release_url" env:"RELEASE_URL, overwrite"`

	// TokenEnv is the name of the environment variable that holds the access token.
	TokenEnv string `yaml:"token_env" env:"TOKEN_ENV, overwrite"`

	IncludeDefinitions []int         `yaml:"include_definitions" env:"INCLUDE_DEFINITIONS, overwrite"`
	Timeout            time.Duration `yaml:"timeout" env:"TIMEOUT, overwrite"`
	Retries            uint          `yaml:"retries" env:"RETRIES, overwrite"`
}

// Token returns the access token resolved from the environment.
func (p ProviderConfig) Token() string {
	if p.TokenEnv == "" {
		return ""
	}
	return os.Getenv(p.TokenEnv)
}

// ServerConfig holds the listener settings.
type ServerConfig struct {
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT, overwrite"`
	GRPCPort int `yaml:"grpc_port" env:"GRPC_PORT, overwrite"`

	// Root is the first path segment of the REST API.
	Root string `yaml:"root" env:"ROOT, overwrite"`

	// StreamInterval is how often the WebSocket hub pushes the status snapshot.
	StreamInterval time.Duration `yaml:"stream_interval" env:"STREAM_INTERVAL, overwrite"`

	Auth     AuthConfig     `yaml:"auth" env:",prefix=AUTH_"`
	Snapshot SnapshotConfig `yaml:"snapshot" env:",prefix=SNAPSHOT_"`
}

// AuthConfig controls client authentication on the server side.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode" env:"MODE, overwrite"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	KeyEnv string `yaml:"key_env" env:"KEY_ENV, overwrite"`

	// Header is the gRPC metadata key (and HTTP header name) to read the key from.
	Header string `yaml:"header" env:"HEADER, overwrite"`
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

// SnapshotConfig controls in-memory status retention.
type SnapshotConfig struct {
	// TTL is how long a project's last cycle stays visible without a newer one.
	TTL time.Duration `yaml:"ttl" env:"TTL, overwrite"`
}

// SubscriptionConfig selects the subscriber registry backend.
type SubscriptionConfig struct {
	// Backend is one of: memory | sqlite.
	Backend string `yaml:"backend" env:"BACKEND, overwrite"`
	Path    string `yaml:"path" env:"PATH, overwrite"`

	// Timeout bounds each webhook delivery.
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT, overwrite"`
}

// Load reads and parses the config file at path. Defaults are applied before
// unmarshalling, PIPEWATCH_* environment variables override the file, and the
// result is validated.
func Load(ctx context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := envconfig.Process(ctx, cfg); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Level parses LogLevel, defaulting to info.
func (c *Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func defaults() *Config {
	return &Config{
		LogLevel: "info",
		Poller: PollerConfig{
			Interval:        DefaultPollInterval,
			BuildLimit:      DefaultBuildLimit,
			DeployLimit:     DefaultDeployLimit,
			Timezone:        "Local",
			LedgerRetention: DefaultLedgerRetention,
		},
		Provider: ProviderConfig{
			Type:    "azure",
			Timeout: DefaultProviderTimeout,
			Retries: DefaultProviderRetries,
		},
		Server: ServerConfig{
			HTTPPort:       DefaultHTTPPort,
			GRPCPort:       DefaultGRPCPort,
			Root:           DefaultRoot,
			StreamInterval: DefaultStreamInterval,
			Auth:           AuthConfig{Mode: "none"},
			Snapshot:       SnapshotConfig{TTL: DefaultSnapshotTTL},
		},
		Subscriptions: SubscriptionConfig{
			Backend: "memory",
			Path:    DefaultSQLitePath,
			Timeout: DefaultNotifyTimeout,
		},
	}
}

func validate(cfg *Config) error {
	if cfg.Poller.Interval <= 0 {
		return fmt.Errorf("poller.interval must be positive")
	}
	if cfg.Poller.BuildLimit <= 0 || cfg.Poller.DeployLimit <= 0 {
		return fmt.Errorf("poller.build_limit and poller.deploy_limit must be positive")
	}
	if cfg.Poller.LedgerRetention < 0 {
		return fmt.Errorf("poller.ledger_retention must not be negative")
	}
	if _, err := cfg.Poller.Location(); err != nil {
		return fmt.Errorf("poller.timezone: %w", err)
	}

	switch cfg.Provider.Type {
	case "azure":
	default:
		return fmt.Errorf("provider.type %q unknown: want azure", cfg.Provider.Type)
	}
	if cfg.Provider.URL == "" {
		return fmt.Errorf("provider.url is required")
	}

	if len(cfg.Projects) == 0 {
		return fmt.Errorf("at least one project is required")
	}
	seen := make(map[string]bool, len(cfg.Projects))
	for _, p := range cfg.Projects {
		if p == "" {
			return fmt.Errorf("projects: empty project name")
		}
		if seen[p] {
			return fmt.Errorf("projects: %q listed twice", p)
		}
		seen[p] = true
	}

	if cfg.Server.GRPCPort <= 0 || cfg.Server.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port %d is out of range [1, 65535]", cfg.Server.GRPCPort)
	}
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	cfg.Server.Root = strings.Trim(cfg.Server.Root, "/")
	if cfg.Server.Root == "" {
		return fmt.Errorf("server.root must not be empty")
	}
	if cfg.Server.StreamInterval <= 0 {
		return fmt.Errorf("server.stream_interval must be positive")
	}
	switch cfg.Server.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", cfg.Server.Auth.Mode)
	}
	if cfg.Server.Snapshot.TTL <= 0 {
		return fmt.Errorf("server.snapshot.ttl must be positive")
	}

	switch cfg.Subscriptions.Backend {
	case "memory":
	case "sqlite":
		if cfg.Subscriptions.Path == "" {
			return fmt.Errorf("subscriptions.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("subscriptions.backend %q unknown: want memory|sqlite", cfg.Subscriptions.Backend)
	}
	return nil
}
