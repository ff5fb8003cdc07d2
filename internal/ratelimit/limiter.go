package ratelimit

import (
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limitermemory "github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// DefaultPrefix namespaces limiter keys in the shared store.
const DefaultPrefix = "pricing:ratelimit"

// NewStore returns a Redis-backed store shared across replicas, or a process-local memory
// store when client is nil.
func NewStore(client *redis.Client, prefix string) (limiter.Store, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	opts := limiter.StoreOptions{Prefix: prefix, CleanUpInterval: time.Minute}
	if client == nil {
		return limitermemory.NewStoreWithOptions(opts), nil
	}
	store, err := limiterredis.NewStoreWithOptions(client, opts)
	if err != nil {
		return nil, fmt.Errorf("redis limiter store: %w", err)
	}
	return store, nil
}

// PerMinute builds a limiter allowing limit requests per key and minute.
func PerMinute(store limiter.Store, limit int64) *limiter.Limiter {
	return limiter.New(store, limiter.Rate{Period: time.Minute, Limit: limit})
}
