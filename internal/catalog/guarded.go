package catalog

import (
	"context"
	"errors"

	"github.com/noah-isme/checkout-pricing/internal/resilience"
)

// GuardedLookup fails fast with resilience.ErrOpenCircuit while the backing store keeps
// failing. Incomplete batches are answers, not outages, and never trip the breaker.
type GuardedLookup struct {
	Next    PriceLookup
	Breaker *resilience.Breaker
}

// Prices implements PriceLookup.
func (l GuardedLookup) Prices(ctx context.Context, productIDs []string) (map[string]ProductPrice, error) {
	if l.Breaker == nil {
		return l.Next.Prices(ctx, productIDs)
	}
	var out map[string]ProductPrice
	err := l.Breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = l.Next.Prices(ctx, productIDs)
		return err
	}, isOutage)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func isOutage(err error) bool {
	return !errors.Is(err, ErrIncompleteBatch) && !errors.Is(err, context.Canceled)
}
