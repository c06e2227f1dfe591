package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Identity backends
const (
	BackendClerk    = "clerk"
	BackendPostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `envconfig:"SERVER"`
	Identity  IdentityConfig  `envconfig:"IDENTITY"`
	Clerk     ClerkConfig     `envconfig:"CLERK"`
	Database  DatabaseConfig  `envconfig:"DB"`
	Redis     RedisConfig     `envconfig:"REDIS"`
	Session   SessionConfig   `envconfig:"SESSION"`
	SMTP      SMTPConfig      `envconfig:"SMTP"`
	Webhook   WebhookConfig   `envconfig:"WEBHOOK"`
	Log       LogConfig       `envconfig:"LOG"`
	Telemetry TelemetryConfig `envconfig:"OTEL"`
	RateLimit RateLimitConfig `envconfig:"RATELIMIT"`
	Policy    PolicyConfig    `envconfig:"POLICY"`
	Bootstrap BootstrapConfig `envconfig:"BOOTSTRAP"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string        `split_words:"true" default:"0.0.0.0"`
	Port           string        `split_words:"true" default:"8080"`
	ReadTimeout    time.Duration `split_words:"true" default:"15s"`
	WriteTimeout   time.Duration `split_words:"true" default:"15s"`
	IdleTimeout    time.Duration `split_words:"true" default:"60s"`
	RequestTimeout time.Duration `split_words:"true" default:"30s"`
	AllowedOrigins []string      `split_words:"true"`
	AdminDir       string        `split_words:"true" default:"./web/admin/dist"`
}

// Addr returns host:port for the listener.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// IdentityConfig selects where users and invitations live.
type IdentityConfig struct {
	Backend string `split_words:"true" default:"postgres"`
}

// ClerkConfig holds the hosted identity provider client settings
type ClerkConfig struct {
	BaseURL   string        `split_words:"true" default:"https://api.clerk.com"`
	SecretKey string        `split_words:"true"`
	Timeout   time.Duration `split_words:"true" default:"10s"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `split_words:"true" default:"localhost"`
	Port            string        `split_words:"true" default:"5432"`
	User            string        `split_words:"true" default:"lexguard"`
	Password        string        `split_words:"true"`
	Name            string        `split_words:"true" default:"lexguard"`
	SSLMode         string        `split_words:"true" default:"disable"`
	MaxConns        int           `split_words:"true" default:"10"`
	MinConns        int           `split_words:"true" default:"1"`
	ConnMaxLifetime time.Duration `split_words:"true" default:"5m"`
}

// RedisConfig holds the webhook dedup cache settings
type RedisConfig struct {
	Addr     string `split_words:"true" default:"127.0.0.1:6379"`
	Password string `split_words:"true"`
	DB       int    `split_words:"true" default:"0"`
}

// SessionConfig describes how identity-provider session tokens are verified.
type SessionConfig struct {
	CookieName   string        `split_words:"true" default:"__session"`
	JWTSecret    string        `split_words:"true"`
	JWTPublicKey string        `split_words:"true"` // PEM, RS256
	Issuer       string        `split_words:"true"`
	Leeway       time.Duration `split_words:"true" default:"5s"`
}

// SMTPConfig holds invitation mail delivery settings. An empty host logs mail instead.
type SMTPConfig struct {
	Host     string `split_words:"true"`
	Port     int    `split_words:"true" default:"587"`
	Username string `split_words:"true"`
	Password string `split_words:"true"`
	From     string `split_words:"true" default:"no-reply@lexguard.local"`
	SiteURL  string `split_words:"true" default:"http://localhost:3000"`
}

// WebhookConfig holds identity-provider webhook settings
type WebhookConfig struct {
	Secret    string        `split_words:"true"`
	Tolerance time.Duration `split_words:"true" default:"5m"`
	DedupTTL  time.Duration `split_words:"true" default:"24h"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `split_words:"true" default:"info"`
	Format string `split_words:"true" default:"json"`
}

// TelemetryConfig holds tracing and metrics configuration
type TelemetryConfig struct {
	Enabled        bool    `split_words:"true" default:"false"`
	ServiceName    string  `split_words:"true" default:"lexguard"`
	ServiceVersion string  `split_words:"true" default:"0.1.0"`
	Endpoint       string  `split_words:"true"`
	SamplingRate   float64 `split_words:"true" default:"1"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64 `split_words:"true" default:"10"`
	Burst             int     `split_words:"true" default:"20"`
}

// PolicyConfig holds authorization policy switches
type PolicyConfig struct {
	ProtectLastSuperadmin  bool          `split_words:"true" default:"false"`
	InvitationPollInterval time.Duration `split_words:"true" default:"1m"`
}

// BootstrapConfig names the account promoted to superadmin on first start.
type BootstrapConfig struct {
	SuperadminEmail string `split_words:"true"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []error

	switch c.Identity.Backend {
	case BackendClerk:
		if c.Clerk.SecretKey == "" {
			errs = append(errs, errors.New("CLERK_SECRET_KEY is required for the clerk backend"))
		}
	case BackendPostgres:
		if c.Database.Password == "" {
			errs = append(errs, errors.New("DB_PASSWORD is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("IDENTITY_BACKEND must be %q or %q, got %q", BackendClerk, BackendPostgres, c.Identity.Backend))
	}

	if c.Session.JWTSecret == "" && c.Session.JWTPublicKey == "" {
		errs = append(errs, errors.New("one of SESSION_JWT_SECRET or SESSION_JWT_PUBLIC_KEY is required"))
	}
	if c.Session.JWTPublicKey != "" && !strings.Contains(c.Session.JWTPublicKey, "BEGIN") {
		errs = append(errs, errors.New("SESSION_JWT_PUBLIC_KEY must be PEM encoded"))
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("RATELIMIT_REQUESTS_PER_SECOND and RATELIMIT_BURST must be positive"))
	}
	if c.Policy.InvitationPollInterval < time.Second {
		errs = append(errs, errors.New("POLICY_INVITATION_POLL_INTERVAL must be at least 1s"))
	}

	return errors.Join(errs...)
}

// WebhooksEnabled reports whether identity webhooks are accepted.
func (c *Config) WebhooksEnabled() bool {
	return c.Webhook.Secret != ""
}
