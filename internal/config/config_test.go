package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/checkout-pricing/internal/tax"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"APP_ENV":                       "",
		"PORT":                          "",
		"PRICING_TAX_CALCULATION":       "",
		"PRICING_STRICT_RECONCILIATION": "",
		"PRICE_CACHE_TTL":               "",
		"RATE_LIMIT_PER_MINUTE":         "",
		"DEFAULT_CURRENCY_ID":           "eur",
	})
	require.NoError(t, err)

	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, tax.MethodHorizontal, cfg.Pricing.TaxCalculation)
	require.True(t, cfg.Pricing.StrictReconciliation)
	require.Equal(t, 5*time.Minute, cfg.PriceCacheTTL)
	require.Equal(t, int64(120), cfg.RateLimitPerMinute)
	require.Equal(t, "eur", cfg.Defaults.CurrencyID)
	require.False(t, cfg.IsProduction())
}

func TestLoadProductionClampsByDefault(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"APP_ENV":                       "production",
		"PORT":                          ":9090",
		"PRICING_TAX_CALCULATION":       "vertical",
		"PRICING_STRICT_RECONCILIATION": "",
		"PRICE_CACHE_TTL":               "90s",
		"CORS_ALLOWED_ORIGINS":          "https://shop.example, ,https://admin.example",
	})
	require.NoError(t, err)

	require.True(t, cfg.IsProduction())
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, tax.MethodVertical, cfg.Pricing.TaxCalculation)
	require.False(t, cfg.Pricing.StrictReconciliation)
	require.Equal(t, 90*time.Second, cfg.PriceCacheTTL)
	require.Equal(t, []string{"https://shop.example", "https://admin.example"}, cfg.CORSAllowedOrigins)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	_, err := LoadForTests(map[string]string{"PRICING_TAX_CALCULATION": "diagonal"})
	require.Error(t, err)

	_, err = LoadForTests(map[string]string{"RATE_LIMIT_PER_MINUTE": "-1"})
	require.Error(t, err)
}

func TestLoadPprofCredentials(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"SECURE_PPROF_BASIC_AUTH_USER":     "ops",
		"SECURE_PPROF_BASIC_AUTH_PASSWORD": " s3cret ",
	})
	require.NoError(t, err)
	require.Equal(t, "ops", cfg.Security.PprofUser)
	require.Equal(t, "s3cret", cfg.Security.PprofPassword)

	_, err = LoadForTests(map[string]string{
		"SECURE_PPROF_BASIC_AUTH_USER":     "ops",
		"SECURE_PPROF_BASIC_AUTH_PASSWORD": "",
	})
	require.Error(t, err)

	cfg, err = LoadForTests(map[string]string{
		"SECURE_PPROF_BASIC_AUTH_USER":     "",
		"SECURE_PPROF_BASIC_AUTH_PASSWORD": "",
	})
	require.NoError(t, err)
	require.Empty(t, cfg.Security.PprofUser)
}

func TestParseHelpersFallBack(t *testing.T) {
	require.Equal(t, 5*time.Minute, parseDuration("soon", "5m"))
	require.True(t, parseBool("maybe", true))
	require.False(t, parseBool("off", true))
	require.Equal(t, int64(7), parseInt("x", 7))
	require.InDelta(t, 0.5, parseFloat("0.5", 1), 1e-9)
}
