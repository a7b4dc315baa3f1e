package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"JWT_SECRET":           "test-secret",
		"PORT":                 "",
		"PRICING_TAX_RATE_BPS": "",
		"SESSION_TOKEN_TTL":    "",
	})
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, 800, cfg.TaxRateBPS)
	require.Equal(t, 12*time.Hour, cfg.SessionTokenTTL)
	require.Equal(t, "USD", cfg.CurrencyCode)
}

func TestLoadRequiresSecret(t *testing.T) {
	_, err := LoadForTests(map[string]string{"JWT_SECRET": ""})
	require.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"JWT_SECRET":           "test-secret",
		"PORT":                 "9090",
		"PRICING_TAX_RATE_BPS": "1000",
		"CORS_ALLOWED_ORIGINS": "http://a.local, http://b.local",
	})
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, 1000, cfg.TaxRateBPS)
	require.Equal(t, []string{"http://a.local", "http://b.local"}, cfg.CORSAllowedOrigins)
}
