package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/checkout-pricing/internal/obs"
)

const priceKeyPrefix = "pricing:price:v1:"

// Cache stores product prices in Redis as JSON, one key per product.
type Cache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewCache constructs a cache helper. A nil client disables caching.
func NewCache(client redis.UniversalClient, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) enabled() bool { return c != nil && c.client != nil }

// getPrices reads every cached price of ids in one round trip. Entries that do not decode
// count as misses.
func (c *Cache) getPrices(ctx context.Context, ids []string) (map[string]ProductPrice, error) {
	out := make(map[string]ProductPrice, len(ids))
	if !c.enabled() || len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = priceKey(id)
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var p ProductPrice
		if err := decodeJSON(raw, &p); err != nil {
			continue
		}
		out[ids[i]] = p
	}
	return out, nil
}

// setPrices stores prices in one pipeline.
func (c *Cache) setPrices(ctx context.Context, prices map[string]ProductPrice) error {
	if !c.enabled() || len(prices) == 0 {
		return nil
	}
	_, err := c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for id, p := range prices {
			if err := c.setJSON(ctx, pipe, priceKey(id), p); err != nil {
				return err
			}
		}
		return nil
	})
	return err
}

// setJSON serialises v and queues it on cmd with the configured TTL.
func (c *Cache) setJSON(ctx context.Context, cmd redis.Cmdable, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return cmd.Set(ctx, key, data, c.ttl).Err()
}

func decodeJSON(raw string, dst any) error {
	return json.Unmarshal([]byte(raw), dst)
}

func priceKey(id string) string { return priceKeyPrefix + id }

// invalidate drops the cached prices of ids.
func (c *Cache) invalidate(ctx context.Context, ids ...string) error {
	if !c.enabled() || len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = priceKey(id)
	}
	return c.client.Del(ctx, keys...).Err()
}

// CachedLookup serves prices from Redis and asks Next for the rest. Cache failures degrade
// to Next; they never fail a batch.
type CachedLookup struct {
	Next    PriceLookup
	Cache   *Cache
	Metrics *obs.PricingMetrics
	Logger  zerolog.Logger
}

// Prices implements PriceLookup.
func (l *CachedLookup) Prices(ctx context.Context, productIDs []string) (map[string]ProductPrice, error) {
	if l.Next == nil {
		return nil, errors.New("cached lookup has no backing lookup")
	}
	ids := uniqueIDs(productIDs)
	out, err := l.Cache.getPrices(ctx, ids)
	if err != nil {
		l.Logger.Warn().Err(err).Msg("price cache read failed")
		l.Metrics.CacheLookup("error", len(ids))
		out = make(map[string]ProductPrice, len(ids))
	} else {
		l.Metrics.CacheLookup("hit", len(out))
	}

	missing := make([]string, 0, len(ids)-len(out))
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}
	if err == nil {
		l.Metrics.CacheLookup("miss", len(missing))
	}

	fetched, err := l.Next.Prices(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("price lookup: %w", err)
	}
	if err := checkComplete(missing, fetched); err != nil {
		return nil, err
	}
	if err := l.Cache.setPrices(ctx, fetched); err != nil {
		l.Logger.Warn().Err(err).Int("count", len(fetched)).Msg("price cache write failed")
	}
	for id, p := range fetched {
		out[id] = p
	}
	return out, nil
}

// Invalidate drops cached prices, e.g. after the catalog changed them.
func (l *CachedLookup) Invalidate(ctx context.Context, productIDs ...string) error {
	return l.Cache.invalidate(ctx, productIDs...)
}
