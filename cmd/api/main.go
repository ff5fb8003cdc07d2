package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/checkout-pricing/internal/cart"
	"github.com/noah-isme/checkout-pricing/internal/catalog"
	"github.com/noah-isme/checkout-pricing/internal/checkout"
	"github.com/noah-isme/checkout-pricing/internal/config"
	"github.com/noah-isme/checkout-pricing/internal/health"
	"github.com/noah-isme/checkout-pricing/internal/obs"
	"github.com/noah-isme/checkout-pricing/internal/ratelimit"
	"github.com/noah-isme/checkout-pricing/internal/resilience"
	"github.com/noah-isme/checkout-pricing/internal/security"
)

const serviceName = "checkout-pricing"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(serviceName, cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracingEnabled := cfg.Obs.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   serviceName,
			Endpoint:      cfg.Obs.OTLPEndpoint,
			Exporter:      cfg.Obs.TracingExporter,
			SamplingRatio: cfg.Obs.TracingSampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	var pricingMetrics *obs.PricingMetrics
	var httpMetrics *obs.HTTPMetrics
	if cfg.Obs.MetricsEnabled {
		pricingMetrics = obs.NewPricingMetrics(cfg.Obs.MetricsNamespace, prometheus.DefaultRegisterer)
		httpMetrics = obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, obs.ParseBucketsCSV(cfg.Obs.MetricsBucketsMS), prometheus.DefaultRegisterer)
	}

	snapshot, err := checkout.ReadSnapshot(cfg.DirectoryFile)
	if err != nil {
		logger.Fatal().Err(err).Str("file", cfg.DirectoryFile).Msg("load checkout directory")
	}
	directory := checkout.NewMemoryDirectory(snapshot.WithTaxCalculation(cfg.Pricing.TaxCalculation))

	redisClient := openRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
	}

	pool := openDatabase(ctx, cfg, pricingMetrics, logger)
	if pool != nil {
		defer pool.Close()
	}

	var breakerMetrics *resilience.Metrics
	if cfg.Obs.MetricsEnabled {
		breakerMetrics = resilience.NewMetrics(cfg.Obs.MetricsNamespace, prometheus.DefaultRegisterer)
	}
	lookup, err := priceLookup(cfg, pool, redisClient, pricingMetrics, breakerMetrics, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise price lookup")
	}

	pricer := cart.NewPricer(logger, pricingMetrics, cfg.Pricing.StrictReconciliation)
	cartHandler := &cart.Handler{
		Pricer:    pricer,
		Directory: directory,
		Defaults:  cfg.Defaults,
		Lookup:    lookup,
		Validate:  validator.New(validator.WithRequiredStructEnabled()),
	}

	limiterStore, err := ratelimit.NewStore(redisClient, ratelimit.DefaultPrefix)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}
	rateLimit := ratelimit.Handler{
		Limiter: ratelimit.PerMinute(limiterStore, cfg.RateLimitPerMinute),
		Key:     ratelimit.ByClientIP,
		OnError: func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") },
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: cfg.Security.Headers, EnableHSTS: cfg.Security.HSTS}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:         300,
	}))

	if cfg.Obs.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if cfg.Security.PprofUser != "" {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), cfg.Security.PprofUser, cfg.Security.PprofPassword))
	}

	healthHandler := health.Handler{Probes: readinessProbes(cfg, pool, redisClient)}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/v1", func(v chi.Router) {
		v.Use(rateLimit.Middleware)
		v.Use(security.BodyLimit{Max: cfg.Security.MaxBodyBytes}.Middleware)
		cartHandler.Routes(v)
	})

	var handler http.Handler = r
	if tracingEnabled {
		handler = otelhttp.NewHandler(r, "http.server", otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
			return req.Method + " " + req.URL.Path
		}))
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown server")
		}
	}()

	logger.Info().
		Str("addr", srv.Addr).
		Bool("strict_reconciliation", cfg.Pricing.StrictReconciliation).
		Str("tax_calculation", string(cfg.Pricing.TaxCalculation)).
		Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

func openRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	if cfg.RedisURL == "" {
		return nil
	}
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if cfg.Obs.MetricsEnabled {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return client
}

func openDatabase(ctx context.Context, cfg *config.Config, metrics *obs.PricingMetrics, logger zerolog.Logger) *pgxpool.Pool {
	if cfg.DatabaseURL == "" {
		return nil
	}
	if err := catalog.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("migrate catalog schema")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{Metrics: metrics}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = serviceName

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(connectCtx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool
}

// priceLookup picks the catalog backend: Postgres behind the Redis cache when a database is
// configured, otherwise the static price list.
func priceLookup(cfg *config.Config, pool *pgxpool.Pool, rdb *redis.Client, metrics *obs.PricingMetrics, breakerMetrics *resilience.Metrics, logger zerolog.Logger) (catalog.PriceLookup, error) {
	if pool == nil {
		if cfg.Pricing.CatalogFile == "" {
			return nil, errors.New("either DATABASE_URL or PRICING_CATALOG_FILE is required")
		}
		logger.Warn().Str("file", cfg.Pricing.CatalogFile).Msg("no database configured, serving static prices")
		return catalog.LoadStaticFile(cfg.Pricing.CatalogFile)
	}
	breaker := resilience.NewBreaker(5, 0.5, 15*time.Second).
		WithTarget("catalog_postgres").
		WithLogger(logger).
		WithMetrics(breakerMetrics)
	store := catalog.GuardedLookup{Next: catalog.NewPostgresStore(pool), Breaker: breaker}
	if rdb == nil {
		return store, nil
	}
	return &catalog.CachedLookup{
		Next:    store,
		Cache:   catalog.NewCache(rdb, cfg.PriceCacheTTL),
		Metrics: metrics,
		Logger:  logger.With().Str("component", "price_cache").Logger(),
	}, nil
}

func readinessProbes(cfg *config.Config, pool *pgxpool.Pool, rdb *redis.Client) []health.Probe {
	var probes []health.Probe
	if pool != nil {
		probes = append(probes, health.Probe{Name: "db", Checker: health.CheckerFunc(pool.Ping), Timeout: cfg.Obs.ReadyDBTimeout})
	}
	if rdb != nil {
		probes = append(probes, health.Probe{
			Name:    "redis",
			Checker: health.CheckerFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
			Timeout: cfg.Obs.ReadyRedisTimeout,
		})
	}
	return probes
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	pass = strings.TrimSpace(pass)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
