package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/noah-isme/checkout-pricing/internal/checkout"
	"github.com/noah-isme/checkout-pricing/internal/tax"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	DirectoryFile      string
	CORSAllowedOrigins []string
	ShutdownTimeout    time.Duration

	Defaults checkout.Defaults
	Pricing  Pricing
	Obs      Obs

	PriceCacheTTL      time.Duration
	RateLimitPerMinute int64
	Security           Security
}

// Security toggles the response hardening middleware.
type Security struct {
	Headers      bool
	HSTS         bool
	MaxBodyBytes int64
	// PprofUser enables /debug/pprof behind basic auth when set.
	PprofUser     string
	PprofPassword string
}

// Pricing tunes the pricing core.
type Pricing struct {
	// TaxCalculation is applied to sales channels that do not name a method.
	TaxCalculation tax.Method
	// StrictReconciliation rejects carts whose totals do not balance instead of clamping them.
	StrictReconciliation bool
	// CatalogFile seeds a static price lookup when no database is configured.
	CatalogFile string
}

// Obs groups logging, metrics and tracing settings.
type Obs struct {
	LogFormat         string
	LogLevel          string
	MetricsEnabled    bool
	MetricsNamespace  string
	MetricsBucketsMS  string
	TracingEnabled    bool
	TracingExporter   string
	OTLPEndpoint      string
	TracingSampling   float64
	ReadyDBTimeout    time.Duration
	ReadyRedisTimeout time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	method, err := tax.ParseMethod(valueOrDefault(k.String("PRICING_TAX_CALCULATION"), string(tax.MethodHorizontal)))
	if err != nil {
		return nil, fmt.Errorf("PRICING_TAX_CALCULATION: %w", err)
	}

	appEnv := valueOrDefault(k.String("APP_ENV"), "development")
	cfg := &Config{
		AppEnv:             appEnv,
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        strings.TrimSpace(k.String("DATABASE_URL")),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		DirectoryFile:      valueOrDefault(k.String("DIRECTORY_FILE"), "directory.yaml"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		ShutdownTimeout:    parseDuration(k.String("SHUTDOWN_TIMEOUT"), "15s"),
		Defaults: checkout.Defaults{
			SalesChannelID:   strings.TrimSpace(k.String("DEFAULT_SALES_CHANNEL_ID")),
			CurrencyID:       strings.TrimSpace(k.String("DEFAULT_CURRENCY_ID")),
			CustomerGroupID:  strings.TrimSpace(k.String("DEFAULT_CUSTOMER_GROUP_ID")),
			CountryID:        strings.TrimSpace(k.String("DEFAULT_COUNTRY_ID")),
			LanguageID:       strings.TrimSpace(k.String("DEFAULT_LANGUAGE_ID")),
			PaymentMethodID:  strings.TrimSpace(k.String("DEFAULT_PAYMENT_METHOD_ID")),
			ShippingMethodID: strings.TrimSpace(k.String("DEFAULT_SHIPPING_METHOD_ID")),
		},
		Pricing: Pricing{
			TaxCalculation:       method,
			StrictReconciliation: parseBool(k.String("PRICING_STRICT_RECONCILIATION"), appEnv != "production"),
			CatalogFile:          strings.TrimSpace(k.String("PRICING_CATALOG_FILE")),
		},
		Obs: Obs{
			LogFormat:         valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:          valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsEnabled:    parseBool(k.String("OBS_ENABLE_PROMETHEUS"), true),
			MetricsNamespace:  valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "checkout"),
			MetricsBucketsMS:  strings.TrimSpace(k.String("OBS_METRICS_BUCKETS_MS")),
			TracingEnabled:    parseBool(k.String("OBS_ENABLE_TRACING"), false),
			TracingExporter:   valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
			OTLPEndpoint:      strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
			TracingSampling:   parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0),
			ReadyDBTimeout:    parseDuration(k.String("HEALTH_READY_DB_TIMEOUT"), "500ms"),
			ReadyRedisTimeout: parseDuration(k.String("HEALTH_READY_REDIS_TIMEOUT"), "300ms"),
		},
		PriceCacheTTL:      parseDuration(k.String("PRICE_CACHE_TTL"), "5m"),
		RateLimitPerMinute: parseInt(k.String("RATE_LIMIT_PER_MINUTE"), 120),
		Security: Security{
			Headers:       parseBool(k.String("SECURITY_HEADERS"), true),
			HSTS:          parseBool(k.String("SECURITY_HSTS"), false),
			MaxBodyBytes:  parseInt(k.String("MAX_BODY_BYTES"), 1<<20),
			PprofUser:     strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_USER")),
			PprofPassword: strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_PASSWORD")),
		},
	}

	if cfg.DirectoryFile == "" {
		return nil, fmt.Errorf("DIRECTORY_FILE is required")
	}
	if cfg.Security.PprofUser != "" && cfg.Security.PprofPassword == "" {
		return nil, fmt.Errorf("SECURE_PPROF_BASIC_AUTH_PASSWORD is required with SECURE_PPROF_BASIC_AUTH_USER")
	}
	if cfg.RateLimitPerMinute < 0 {
		return nil, fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// IsProduction reports whether the service runs with production semantics.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(value string, fallback int64) int64 {
	parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseFloat(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
