package app

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/authsession/pkg/authsdk"
	"github.com/caarlos0/env/v11"
)

// Storage drivers.
const (
	DriverMemory     = "memory"
	DriverKeyring    = "keyring"
	DriverSQLite     = "sqlite"
	DriverRedis      = "redis"
	DriverKubeSecret = "kubesecret"
)

type Config struct {
	BaseURL             string        `env:"AUTH_BASE_URL,required"`
	RefreshMode         string        `env:"AUTH_REFRESH_MODE"          envDefault:"cookie"`
	RedirectScheme      string        `env:"AUTH_REDIRECT_SCHEME"`
	EphemeralWebSession bool          `env:"AUTH_EPHEMERAL_WEB_SESSION" envDefault:"true"`
	HTTPTimeout         time.Duration `env:"AUTH_HTTP_TIMEOUT"          envDefault:"10s"`
	RateLimitRPS        float64       `env:"AUTH_RATE_LIMIT_RPS"        envDefault:"5"`
	RateLimitBurst      int           `env:"AUTH_RATE_LIMIT_BURST"      envDefault:"5"`

	Providers ProvidersConfig `envPrefix:"AUTH_PROVIDER_"`
	Storage   StorageConfig   `envPrefix:"AUTH_STORAGE_"`
	Social    SocialConfig    `envPrefix:"AUTH_SOCIAL_"`

	Env       string `env:"ENV"        envDefault:"dev"`
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// ProvidersConfig turns provider sign-in on or off.
type ProvidersConfig struct {
	Microsoft bool `env:"MICROSOFT_ENABLED" envDefault:"true"`
	Google    bool `env:"GOOGLE_ENABLED"`
	Facebook  bool `env:"FACEBOOK_ENABLED"`
}

// Enabled returns the providers map the session manager expects.
func (p ProvidersConfig) Enabled() map[authsdk.Provider]bool {
	return map[authsdk.Provider]bool{
		authsdk.ProviderMicrosoft: p.Microsoft,
		authsdk.ProviderGoogle:    p.Google,
		authsdk.ProviderFacebook:  p.Facebook,
	}
}

type StorageConfig struct {
	Driver  string `env:"DRIVER"  envDefault:"keyring"`
	Service string `env:"SERVICE" envDefault:"authsession"`
	Account string `env:"ACCOUNT" envDefault:"default"`

	// SealKey is base64url key material; when set records are encrypted
	// before they reach the backend. Generate one with "authsession seal-key".
	SealKey string `env:"SEAL_KEY"`

	SQLitePath string `env:"SQLITE_PATH" envDefault:"authsession.db"`

	RedisAddr     string `env:"REDIS_ADDR"     envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"`
	RedisPrefix   string `env:"REDIS_PREFIX"   envDefault:"authsession"`

	KubeNamespace string `env:"KUBE_NAMESPACE"`
	KubeConfig    string `env:"KUBE_CONFIG"`
}

// SealKeyMaterial decodes SealKey. It returns nil when sealing is off.
func (s StorageConfig) SealKeyMaterial() ([]byte, error) {
	if s.SealKey == "" {
		return nil, nil
	}
	key, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s.SealKey, "="))
	if err != nil {
		return nil, fmt.Errorf("AUTH_STORAGE_SEAL_KEY is not base64url: %w", err)
	}
	if len(key) < 16 {
		return nil, fmt.Errorf("AUTH_STORAGE_SEAL_KEY must carry at least 16 bytes, got %d", len(key))
	}
	return key, nil
}

// SocialProviderConfig is the app registration for native provider sign-in.
type SocialProviderConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"`
}

// Configured reports whether native sign-in is set up.
func (s SocialProviderConfig) Configured() bool {
	return s.ClientID != "" && s.RedirectURL != ""
}

type SocialConfig struct {
	Microsoft       SocialProviderConfig `envPrefix:"MICROSOFT_"`
	MicrosoftTenant string               `env:"MICROSOFT_TENANT" envDefault:"common"`
	Google          SocialProviderConfig `envPrefix:"GOOGLE_"`
	Facebook        SocialProviderConfig `envPrefix:"FACEBOOK_"`
}

// LoadConfig reads the process environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// LoadConfigFrom reads environ instead of the process environment.
func LoadConfigFrom(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects values the libraries would only fail on later.
func (c Config) Validate() error {
	if _, err := authsdk.ParseRefreshMode(c.RefreshMode); err != nil {
		return err
	}

	switch c.Storage.Driver {
	case DriverMemory, DriverKeyring, DriverSQLite, DriverRedis, DriverKubeSecret:
	default:
		return fmt.Errorf("%w: unknown storage driver %q", authsdk.ErrInvalidConfiguration, c.Storage.Driver)
	}

	if c.Storage.Service == "" || c.Storage.Account == "" {
		return fmt.Errorf("%w: storage service and account must not be empty", authsdk.ErrInvalidConfiguration)
	}

	if _, err := c.Storage.SealKeyMaterial(); err != nil {
		return fmt.Errorf("%w: %v", authsdk.ErrInvalidConfiguration, err)
	}

	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("%w: rate limit must not be negative", authsdk.ErrInvalidConfiguration)
	}

	return nil
}
