package tax

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/checkout-pricing/internal/money"
)

// Calculator computes the tax contained in (gross) or owed on top of (net) a price, one rule at a time.
// Every rule produces an entry, so a 0% rule yields a zero amount instead of disappearing.
type Calculator struct {
	Rounding money.Rounding
}

// NewCalculator returns a calculator for the given currency rounding.
func NewCalculator(r money.Rounding) Calculator {
	return Calculator{Rounding: r}
}

// GrossTaxes extracts the tax contained in a gross total.
func (c Calculator) GrossTaxes(total decimal.Decimal, rules RuleCollection) CalculatedTaxCollection {
	out := CalculatedTaxCollection{}
	for _, rule := range rules {
		basis := money.Percent(total, rule.Percentage)
		out = out.Add(CalculatedTax{
			Rate:  rule.Rate,
			Tax:   c.Rounding.Round(grossTax(basis, rule.Rate)),
			Price: c.Rounding.Round(basis),
		})
	}
	return out
}

// NetTaxes computes the tax owed on top of a net total.
func (c Calculator) NetTaxes(total decimal.Decimal, rules RuleCollection) CalculatedTaxCollection {
	out := CalculatedTaxCollection{}
	for _, rule := range rules {
		basis := money.Percent(total, rule.Percentage)
		out = out.Add(CalculatedTax{
			Rate:  rule.Rate,
			Tax:   c.Rounding.Round(netTax(basis, rule.Rate)),
			Price: c.Rounding.Round(basis),
		})
	}
	return out
}

// ZeroTaxes keeps one zero-amount entry per rule, used when no tax is owed.
func (c Calculator) ZeroTaxes(total decimal.Decimal, rules RuleCollection) CalculatedTaxCollection {
	out := CalculatedTaxCollection{}
	for _, rule := range rules {
		out = out.Add(CalculatedTax{
			Rate:  rule.Rate,
			Tax:   decimal.Zero,
			Price: c.Rounding.Round(money.Percent(total, rule.Percentage)),
		})
	}
	return out
}

func grossTax(basis, rate decimal.Decimal) decimal.Decimal {
	return basis.Mul(rate).Div(money.Hundred.Add(rate))
}

func netTax(basis, rate decimal.Decimal) decimal.Decimal {
	return basis.Mul(rate).Div(money.Hundred)
}
