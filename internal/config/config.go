package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ardanlabs/conf"
	"github.com/pkg/errors"
)

const (
	ServiceName     = "wallet2fa"
	ConfigExtension = ".toml"
	ConfigPathEnv   = "WALLET2FA_CONFIG_PATH"
)

// Storage backends
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendBolt     = "bolt"
	BackendPostgres = "postgres"
)

type Config struct {
	conf.Version
	Server  ServerConfig  `toml:"server"`
	Auth    AuthConfig    `toml:"auth"`
	Storage StorageConfig `toml:"storage"`
	Events  EventsConfig  `toml:"events"`
	Log     LogConfig     `toml:"log"`
}

// ServerConfig represents configurable properties for the HTTP server
type ServerConfig struct {
	APIHost         string        `toml:"api_host" conf:"default:0.0.0.0:9000"`
	ReadTimeout     time.Duration `toml:"read_timeout" conf:"default:5s"`
	WriteTimeout    time.Duration `toml:"write_timeout" conf:"default:5s"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" conf:"default:5s"`
	// comma separated, "*" allows any origin
	CORSOrigins string `toml:"cors_origins" conf:"default:*"`
	// comma separated proxy IPs or CIDRs whose forwarding headers are honoured,
	// empty uses the socket address
	TrustedProxies string `toml:"trusted_proxies"`
	Domain         string `toml:"domain"`
	EnableMetrics  bool   `toml:"enable_metrics" conf:"default:true"`
}

// AuthConfig holds the protocol parameters
type AuthConfig struct {
	NonceTTL       time.Duration `toml:"nonce_ttl" conf:"default:5m"`
	SweepInterval  time.Duration `toml:"sweep_interval" conf:"default:1m"`
	SessionTTL     time.Duration `toml:"session_ttl" conf:"default:24h"`
	Issuer         string        `toml:"issuer" conf:"default:wallet2fa"`
	SigningKeyPath string        `toml:"signing_key_path"`
	ServiceID      string        `toml:"service_id" conf:"default:wallet2fa"`
	HistoryLimit   int           `toml:"history_limit" conf:"default:10"`
	// requests per minute per client IP on /auth, 0 disables
	RateLimit int `toml:"rate_limit" conf:"default:30"`
}

type StorageConfig struct {
	NonceStore  string `toml:"nonce_store" conf:"default:memory"`
	Ledger      string `toml:"ledger" conf:"default:memory"`
	RedisURL    string `toml:"redis_url" conf:"default:redis://localhost:6379/0"`
	PostgresURL string `toml:"postgres_url" conf:"mask"`
	BoltPath    string `toml:"bolt_path" conf:"default:wallet2fa.db"`
}

type EventsConfig struct {
	Enabled bool   `toml:"enabled" conf:"default:false"`
	Topic   string `toml:"topic" conf:"default:wallet2fa.authenticated"`
}

type LogConfig struct {
	Level  string `toml:"level" conf:"default:info"`
	Format string `toml:"format" conf:"default:json"`
}

// Load applies defaults, environment variables and args, then overlays the TOML
// file at path when one is given.
func Load(path string, args []string) (*Config, error) {
	if path != "" && filepath.Ext(path) != ConfigExtension {
		return nil, fmt.Errorf("path<%s> did not match the expected TOML format", path)
	}

	var cfg Config
	if err := conf.Parse(args, strings.ToUpper(ServiceName), &cfg); err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			usage, uerr := conf.Usage(strings.ToUpper(ServiceName), &cfg)
			if uerr != nil {
				return nil, errors.Wrap(uerr, "generating config usage")
			}
			fmt.Println(usage)
		}
		return nil, errors.Wrap(err, "parsing config")
	}

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, errors.Wrapf(err, "could not load config: %s", path)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks backend selections and their required settings
func (c *Config) Validate() error {
	switch c.Storage.NonceStore {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("unsupported nonce store<%s>", c.Storage.NonceStore)
	}

	switch c.Storage.Ledger {
	case BackendMemory, BackendBolt:
	case BackendPostgres:
		if c.Storage.PostgresURL == "" {
			return errors.New("postgres ledger requires storage.postgres_url")
		}
	default:
		return fmt.Errorf("unsupported ledger<%s>", c.Storage.Ledger)
	}

	if c.NeedsRedis() && c.Storage.RedisURL == "" {
		return errors.New("redis url is required by the selected nonce store or events")
	}

	if c.Auth.HistoryLimit <= 0 {
		return errors.New("auth.history_limit must be positive")
	}

	for name, d := range map[string]time.Duration{
		"auth.nonce_ttl":      c.Auth.NonceTTL,
		"auth.sweep_interval": c.Auth.SweepInterval,
		"auth.session_ttl":    c.Auth.SessionTTL,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	return nil
}

// NeedsRedis reports whether a required component talks to Redis.
// The rate limiter uses Redis opportunistically and is not counted.
func (c *Config) NeedsRedis() bool {
	return c.Storage.NonceStore == BackendRedis || c.Events.Enabled
}

// Origins splits the configured CORS origins
func (s ServerConfig) Origins() []string {
	return splitList(s.CORSOrigins)
}

// Proxies splits the configured trusted proxies
func (s ServerConfig) Proxies() []string {
	return splitList(s.TrustedProxies)
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// String renders the config with secrets masked
func (c *Config) String() string {
	out, err := conf.String(c)
	if err != nil {
		return err.Error()
	}
	return out
}
