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

// ErrUnknownTaxRate marks a tax reference the checkout does not know. The resolver recovers
// from it by pricing at 0%; it is only ever reported as a diagnostic.
var ErrUnknownTaxRate = errors.New("unknown tax rate")

// Resolver turns line item price definitions into calculated prices.
type Resolver struct {
	Logger  zerolog.Logger
	Metrics *obs.PricingMetrics
}

// Resolve prices item under cctx. A price already present on item is returned unchanged.
// Unknown tax references are priced at 0% and reported through the returned diagnostics.
func (r Resolver) Resolve(cctx *checkout.Context, item LineItem) (price.CalculatedPrice, []price.Diagnostic, error) {
	if err := item.validate(); err != nil {
		return price.CalculatedPrice{}, nil, err
	}
	if item.Price != nil {
		return item.Price.Clone(), nil, nil
	}

	def := *item.Definition
	def.Quantity = item.Quantity
	rules, diags := r.rules(cctx, item.ID, def)
	calc := price.NewQuantityCalculator(cctx.Rounding(), cctx.SalesChannel().TaxCalculation)
	return calc.Calculate(def, rules, cctx.TaxState(), cctx.CurrencyFactor()), diags, nil
}

// rules resolves the tax rules of def. Explicit rules win over the tax id; a definition
// with neither is untaxed.
func (r Resolver) rules(cctx *checkout.Context, itemID string, def price.QuantityDefinition) (tax.RuleCollection, []price.Diagnostic) {
	var diags []price.Diagnostic
	if len(def.Rules) > 0 {
		rules := def.Rules.Clone()
		for i, rule := range rules {
			if cctx.HasRate(rule.Rate) {
				continue
			}
			diags = append(diags, r.unknown(itemID, fmt.Sprintf("rate %s", rule.Rate.String())))
			rules[i].Rate = decimal.Zero
		}
		return rules, diags
	}
	if def.TaxID == "" {
		return nil, nil
	}
	t, ok := cctx.TaxByID(def.TaxID)
	if !ok {
		diags = append(diags, r.unknown(itemID, fmt.Sprintf("tax %s", def.TaxID)))
		return tax.RuleCollection{tax.NewRule(decimal.Zero)}, diags
	}
	return tax.RuleCollection{tax.NewRule(t.Rate)}, nil
}

func (r Resolver) unknown(itemID, reference string) price.Diagnostic {
	r.Logger.Warn().
		Str("line_item", itemID).
		Str("reference", reference).
		Msg("unknown tax reference priced at 0%")
	r.Metrics.UnknownTaxRate()
	return price.Diagnostic{
		Code:    price.DiagnosticUnknownTaxRate,
		Message: fmt.Sprintf("%s: %s priced at 0%%", ErrUnknownTaxRate, reference),
		Subject: itemID,
	}
}
