// Command seeder migrates the catalog schema and loads a YAML price list into Postgres.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/checkout-pricing/internal/catalog"
	"github.com/noah-isme/checkout-pricing/internal/obs"
)

func main() {
	_ = godotenv.Load()

	file := flag.String("prices", "prices.yaml", "YAML price list to load")
	migrateOnly := flag.Bool("migrate-only", false, "apply the schema without loading prices")
	flag.Parse()

	logger := obs.NewLogger("checkout-pricing-seeder", "console", "info")

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}
	if err := catalog.Migrate(dbURL); err != nil {
		logger.Fatal().Err(err).Msg("migrate catalog schema")
	}
	logger.Info().Msg("catalog schema up to date")
	if *migrateOnly {
		return
	}

	prices, err := catalog.ReadFile(*file)
	if err != nil {
		logger.Fatal().Err(err).Str("file", *file).Msg("read price list")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if err := catalog.NewPostgresStore(pool).Upsert(ctx, prices...); err != nil {
		logger.Fatal().Err(err).Msg("upsert prices")
	}
	logger.Info().Int("count", len(prices)).Msg("prices loaded")

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		invalidate(ctx, redisURL, prices, logger)
	}
}

// invalidate drops cached entries for the seeded products so the API reads fresh rows.
func invalidate(ctx context.Context, redisURL string, prices []catalog.ProductPrice, logger zerolog.Logger) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("parse redis url, cache left untouched")
		return
	}
	client := redis.NewClient(opts)
	defer func() { _ = client.Close() }()

	ids := make([]string, 0, len(prices))
	for _, p := range prices {
		ids = append(ids, p.ProductID)
	}
	cached := &catalog.CachedLookup{Cache: catalog.NewCache(client, 0), Logger: logger}
	if err := cached.Invalidate(ctx, ids...); err != nil {
		logger.Warn().Err(err).Msg("invalidate price cache")
		return
	}
	logger.Info().Int("count", len(ids)).Msg("price cache invalidated")
}
