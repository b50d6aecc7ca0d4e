package app

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/authsession/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFrom(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFrom(map[string]string{"AUTH_BASE_URL": "https://auth.example.com"})
		require.NoError(t, err)

		require.Equal(t, "cookie", cfg.RefreshMode)
		require.True(t, cfg.EphemeralWebSession)
		require.Equal(t, 10*time.Second, cfg.HTTPTimeout)
		require.InDelta(t, 5.0, cfg.RateLimitRPS, 0)
		require.Equal(t, 5, cfg.RateLimitBurst)

		require.Equal(t, DriverKeyring, cfg.Storage.Driver)
		require.Equal(t, "authsession", cfg.Storage.Service)
		require.Equal(t, "default", cfg.Storage.Account)
		require.Equal(t, "localhost:6379", cfg.Storage.RedisAddr)

		require.Equal(t, map[authsdk.Provider]bool{
			authsdk.ProviderMicrosoft: true,
			authsdk.ProviderGoogle:    false,
			authsdk.ProviderFacebook:  false,
		}, cfg.Providers.Enabled())

		require.Equal(t, "common", cfg.Social.MicrosoftTenant)
		require.False(t, cfg.Social.Google.Configured())
		require.Equal(t, "dev", cfg.Env)
	})

	t.Run("nested prefixes", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFrom(map[string]string{
			"AUTH_BASE_URL":                   "https://auth.example.com",
			"AUTH_REFRESH_MODE":               "body",
			"AUTH_PROVIDER_GOOGLE_ENABLED":    "true",
			"AUTH_STORAGE_DRIVER":             "redis",
			"AUTH_STORAGE_REDIS_DB":           "3",
			"AUTH_SOCIAL_GOOGLE_CLIENT_ID":    "gid",
			"AUTH_SOCIAL_GOOGLE_REDIRECT_URL": "http://127.0.0.1:8085/callback",
			"AUTH_SOCIAL_MICROSOFT_TENANT":    "contoso",
			"AUTH_HTTP_TIMEOUT":               "3s",
		})
		require.NoError(t, err)

		require.Equal(t, "body", cfg.RefreshMode)
		require.True(t, cfg.Providers.Google)
		require.Equal(t, DriverRedis, cfg.Storage.Driver)
		require.Equal(t, 3, cfg.Storage.RedisDB)
		require.True(t, cfg.Social.Google.Configured())
		require.Equal(t, "contoso", cfg.Social.MicrosoftTenant)
		require.Equal(t, 3*time.Second, cfg.HTTPTimeout)
	})

	t.Run("base URL is required", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFrom(map[string]string{})
		require.Error(t, err)
		require.Contains(t, err.Error(), "AUTH_BASE_URL")
	})
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	valid := func() Config {
		cfg, err := LoadConfigFrom(map[string]string{"AUTH_BASE_URL": "https://auth.example.com"})
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown refresh mode", func(c *Config) { c.RefreshMode = "header" }},
		{"unknown storage driver", func(c *Config) { c.Storage.Driver = "etcd" }},
		{"empty account", func(c *Config) { c.Storage.Account = "" }},
		{"seal key not base64url", func(c *Config) { c.Storage.SealKey = "not base64!" }},
		{"seal key too short", func(c *Config) { c.Storage.SealKey = "c2hvcnQ" }},
		{"negative rate limit", func(c *Config) { c.RateLimitRPS = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid()
			tt.mutate(&cfg)
			require.ErrorIs(t, cfg.Validate(), authsdk.ErrInvalidConfiguration)
		})
	}

	t.Run("generated seal key is accepted", func(t *testing.T) {
		t.Parallel()

		cfg := valid()
		cfg.Storage.SealKey = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFG"
		require.NoError(t, cfg.Validate())

		key, err := cfg.Storage.SealKeyMaterial()
		require.NoError(t, err)
		require.Len(t, key, 32)
	})
}
