package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                 = "LIVEPOLL"
	defaultHTTPAddress        = "0.0.0.0:8080"
	defaultDatabaseDriver     = "sqlite"
	defaultDatabaseDSN        = "livepoll.db"
	defaultLogLevel           = "info"
	defaultTokenTTL           = 24 * time.Hour
	defaultBcryptCost         = 10
	defaultRequestsPerSecond  = 5.0
	defaultRateLimitBurst     = 10
	developmentSigningSecret  = "livepoll-development-signing-secret"
	signingSecretEnvAlias     = "JWT_SECRET"
	adminPasswordHashEnvAlias = "ADMIN_PASSWORD_HASH"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress       string
	DatabaseDriver    string
	DatabaseDSN       string
	LogLevel          string
	SigningSecret     string
	AdminPasswordHash string
	DevelopmentMode   bool
	TokenTTL          time.Duration
	BcryptCost        int
	RateLimit         RateLimitConfig
}

// RateLimitConfig governs the per-client limiter on participant endpoints.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
}

// UsesDevelopmentSigningSecret reports whether the fixed development secret is in effect.
func (c AppConfig) UsesDevelopmentSigningSecret() bool {
	return c.SigningSecret == developmentSigningSecret
}

// OverridesTokenTTL reports whether admin credentials deviate from the standard 24h lifetime.
func (c AppConfig) OverridesTokenTTL() bool {
	return c.TokenTTL != defaultTokenTTL
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	// Unprefixed names used by existing deployments.
	_ = configViper.BindEnv("auth.signing_secret", envPrefix+"_AUTH_SIGNING_SECRET", signingSecretEnvAlias)
	_ = configViper.BindEnv("auth.admin_password_hash", envPrefix+"_AUTH_ADMIN_PASSWORD_HASH", adminPasswordHashEnvAlias)

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.dsn", defaultDatabaseDSN)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("auth.development_mode", false)
	configViper.SetDefault("auth.token_ttl", defaultTokenTTL)
	configViper.SetDefault("auth.bcrypt_cost", defaultBcryptCost)
	configViper.SetDefault("ratelimit.enabled", false)
	configViper.SetDefault("ratelimit.requests_per_second", defaultRequestsPerSecond)
	configViper.SetDefault("ratelimit.burst", defaultRateLimitBurst)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:       configViper.GetString("http.address"),
		DatabaseDriver:    strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabaseDSN:       configViper.GetString("database.dsn"),
		LogLevel:          configViper.GetString("log.level"),
		SigningSecret:     strings.TrimSpace(configViper.GetString("auth.signing_secret")),
		AdminPasswordHash: strings.TrimSpace(configViper.GetString("auth.admin_password_hash")),
		DevelopmentMode:   configViper.GetBool("auth.development_mode"),
		TokenTTL:          configViper.GetDuration("auth.token_ttl"),
		BcryptCost:        configViper.GetInt("auth.bcrypt_cost"),
		RateLimit: RateLimitConfig{
			Enabled:           configViper.GetBool("ratelimit.enabled"),
			RequestsPerSecond: configViper.GetFloat64("ratelimit.requests_per_second"),
			Burst:             configViper.GetInt("ratelimit.burst"),
		},
	}

	if cfg.DevelopmentMode && cfg.SigningSecret == "" {
		cfg.SigningSecret = developmentSigningSecret
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	switch c.DatabaseDriver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("database.driver must be sqlite or mysql, got %q", c.DatabaseDriver)
	}
	if strings.TrimSpace(c.DatabaseDSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.SigningSecret == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if c.AdminPasswordHash == "" && !c.DevelopmentMode {
		return fmt.Errorf("auth.admin_password_hash is required outside development mode")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("ratelimit.requests_per_second and ratelimit.burst must be positive when rate limiting is enabled")
	}
	return nil
}
