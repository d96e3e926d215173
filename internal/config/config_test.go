package config

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/storefront")
	t.Setenv("JWT_ACCESS_SECRET", "access-secret")
	t.Setenv("JWT_REFRESH_SECRET", "refresh-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "3000", cfg.ServerPort)
	require.Equal(t, 15*time.Minute, cfg.JWTAccessTTL)
	require.Equal(t, 7*24*time.Hour, cfg.JWTRefreshTTL)
	require.Equal(t, 10, cfg.BcryptCost)
	require.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
	require.Equal(t, 4, cfg.MaxProductImages)
	require.False(t, cfg.GoogleEnabled())
	require.Empty(t, cfg.TrustedProxies)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("JWT_ACCESS_TTL", "5m")
	t.Setenv("CORS_ORIGINS", "https://shop.example.com, https://admin.example.com")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("GOOGLE_CLIENT_ID", "id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "secret")
	t.Setenv("GOOGLE_CALLBACK_URL", "http://localhost:3000/api/v1/auth/google/callback")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 5*time.Minute, cfg.JWTAccessTTL)
	require.Equal(t, []string{"https://shop.example.com", "https://admin.example.com"}, cfg.CORSOrigins)
	require.False(t, cfg.MetricsEnabled)
	require.True(t, cfg.GoogleEnabled())
}

func TestValidateRejectsSharedSecrets(t *testing.T) {
	setRequired(t)
	t.Setenv("JWT_REFRESH_SECRET", "access-secret")

	_, err := Load()
	require.ErrorContains(t, err, "must differ")
}

func TestValidateRequiresSecrets(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/storefront")
	t.Setenv("JWT_ACCESS_SECRET", "")
	t.Setenv("JWT_REFRESH_SECRET", "refresh-secret")

	_, err := Load()
	require.ErrorContains(t, err, "JWT_ACCESS_SECRET is required")
}

func TestValidateRejectsInvertedTTLs(t *testing.T) {
	setRequired(t)
	t.Setenv("JWT_ACCESS_TTL", "200h")

	_, err := Load()
	require.ErrorContains(t, err, "shorter than")
}

func TestLoadTrustedProxies(t *testing.T) {
	setRequired(t)
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.7")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("192.168.1.7/32"),
	}, cfg.TrustedProxies)

	t.Setenv("TRUSTED_PROXIES", "not-an-ip")
	_, err = Load()
	require.ErrorContains(t, err, "TRUSTED_PROXIES")
}
