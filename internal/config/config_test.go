package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "0123456789abcdefghijklmnopqrstuv")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL())
	assert.Equal(t, "/login", cfg.Auth.LoginPath)
	assert.Equal(t, []string{"http://localhost:4200"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTH_JWT_SECRET")
}

func TestLoadParsesOriginList(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "0123456789abcdefghijklmnopqrstuv")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com ,")
	t.Setenv("AUTH_TOKEN_TTL_SECONDS", "120")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 2*time.Minute, cfg.Auth.TokenTTL())
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Auth: AuthConfig{JWTSecret: "secret", TokenTTLSeconds: 60, LoginPath: "/login"},
			CORS: CORSConfig{AllowedOrigins: []string{"http://localhost:4200"}},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"wildcard origin", func(c *Config) { c.CORS.AllowedOrigins = []string{"*"} }, "explicit origins"},
		{"origin without scheme", func(c *Config) { c.CORS.AllowedOrigins = []string{"localhost:4200"} }, "http or https scheme"},
		{"zero ttl", func(c *Config) { c.Auth.TokenTTLSeconds = 0 }, "AUTH_TOKEN_TTL_SECONDS"},
		{"relative login path", func(c *Config) { c.Auth.LoginPath = "login" }, "AUTH_LOGIN_PATH"},
		{"half bootstrap", func(c *Config) { c.Auth.BootstrapAdminUsername = "admin" }, "must be set together"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	cfg := base()
	require.NoError(t, cfg.Validate())
}
