// Package catalog supplies product prices to the pricing core.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/checkout-pricing/internal/price"
)

// ErrIncompleteBatch is returned when a lookup cannot answer every requested id.
var ErrIncompleteBatch = errors.New("price lookup returned an incomplete batch")

// ProductPrice is the reference-currency price of one product.
type ProductPrice struct {
	ProductID string          `json:"productId" yaml:"productId"`
	Net       decimal.Decimal `json:"net" yaml:"net"`
	Gross     decimal.Decimal `json:"gross" yaml:"gross"`
	TaxID     string          `json:"taxId" yaml:"taxId"`
	// Weight of one unit, read by weight-based shipping.
	Weight decimal.Decimal `json:"weight" yaml:"weight"`
}

// Definition returns the quantity definition for qty units displayed in state.
// Gross carts start from the gross price, all others from the net price.
func (p ProductPrice) Definition(qty int, state price.TaxState) price.QuantityDefinition {
	unit := p.Net
	if state == price.StateGross {
		unit = p.Gross
	}
	return price.QuantityDefinition{Price: unit, Quantity: qty, TaxID: p.TaxID}
}

// PriceLookup answers a batch of product ids with one price each. A lookup either answers
// every id or fails the whole batch.
type PriceLookup interface {
	Prices(ctx context.Context, productIDs []string) (map[string]ProductPrice, error)
}

// checkComplete verifies that got answers every id in want.
func checkComplete(want []string, got map[string]ProductPrice) error {
	var missing []string
	for _, id := range want {
		if _, ok := got[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %v", ErrIncompleteBatch, missing)
	}
	return nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
