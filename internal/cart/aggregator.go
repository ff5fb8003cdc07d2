package cart

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/checkout-pricing/internal/checkout"
	"github.com/noah-isme/checkout-pricing/internal/obs"
	"github.com/noah-isme/checkout-pricing/internal/price"
	"github.com/noah-isme/checkout-pricing/internal/tax"
)

// ErrReconciliationMismatch is returned in strict mode when the cart taxes disagree with the
// tax implied by the position bases beyond the rounding tolerance.
var ErrReconciliationMismatch = errors.New("cart tax reconciliation mismatch")

// Aggregator folds position and delivery prices into a CartPrice.
type Aggregator struct {
	// Strict turns reconciliation mismatches into errors instead of clamping them.
	Strict  bool
	Logger  zerolog.Logger
	Metrics *obs.PricingMetrics
}

// Aggregate builds the cart price. positions are the line item prices, deliveries the shipping
// costs; diags are carried over into the result.
func (a Aggregator) Aggregate(cctx *checkout.Context, positions, deliveries price.Collection, diags []price.Diagnostic) (price.CartPrice, error) {
	state := cctx.TaxState()
	all := make(price.Collection, 0, len(positions)+len(deliveries))
	all = append(all, positions...)
	all = append(all, deliveries...)

	out := price.CartPrice{
		PositionPrice: positions.Total(),
		TaxState:      state,
		Taxes:         tax.CalculatedTaxCollection{},
		Diagnostics:   append([]price.Diagnostic(nil), diags...),
	}
	total := all.Total()
	if state == price.StateFree {
		out.NetTotal, out.GrossTotal = total, total
		out.NeedsReview = len(out.Diagnostics) > 0
		return out, nil
	}

	rounding := cctx.Rounding()
	calc := tax.NewCalculator(rounding)
	// Each position was taxed with the channel's method already; the cart only merges by rate.
	merged := all.Taxes()
	taxes := merged.Clone()

	implied := impliedTax(calc, merged, state)
	tolerance := int64(max(1, entries(all)))
	if diff := implied.Sub(taxes.Amount()); !rounding.Within(implied, taxes.Amount(), tolerance) {
		if a.Strict {
			a.Metrics.ReconciliationMismatch("rejected")
			return price.CartPrice{}, fmt.Errorf("%w: taxes %s, implied %s", ErrReconciliationMismatch, taxes.Amount(), implied)
		}
		a.Logger.Error().
			Str("taxes", taxes.Amount().String()).
			Str("implied", implied.String()).
			Str("clamped", diff.String()).
			Msg("cart tax reconciliation mismatch")
		a.Metrics.ReconciliationMismatch("clamped")
		taxes = taxes.Adjust(diff)
		out.Diagnostics = append(out.Diagnostics, price.Diagnostic{
			Code:    price.DiagnosticReconciliation,
			Message: fmt.Sprintf("tax total clamped by %s to %s", diff, implied),
		})
	}

	if taxes == nil {
		taxes = tax.CalculatedTaxCollection{}
	}
	out.Taxes = taxes
	out.Rules = tax.PercentageRules(taxes, total)
	if state == price.StateGross {
		out.GrossTotal = total
		out.NetTotal = total.Sub(taxes.Amount())
	} else {
		out.NetTotal = total
		out.GrossTotal = total.Add(taxes.Amount())
	}
	out.NeedsReview = len(out.Diagnostics) > 0
	return out, nil
}

// impliedTax recomputes the tax owed on every merged basis at its rate.
func impliedTax(calc tax.Calculator, merged tax.CalculatedTaxCollection, state price.TaxState) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range merged {
		rules := tax.RuleCollection{tax.NewRule(t.Rate)}
		if state == price.StateGross {
			sum = sum.Add(calc.GrossTaxes(t.Price, rules).Amount())
		} else {
			sum = sum.Add(calc.NetTaxes(t.Price, rules).Amount())
		}
	}
	return sum
}

// entries counts the tax entries across all positions; each was rounded once.
func entries(c price.Collection) int {
	n := 0
	for _, p := range c {
		n += len(p.Taxes)
	}
	return n
}
