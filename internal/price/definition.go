package price

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/checkout-pricing/internal/money"
	"github.com/noah-isme/checkout-pricing/internal/tax"
)

// QuantityDefinition describes how to price a position before any calculation ran.
// Price is expressed the way the cart displays it: gross in a gross cart, net otherwise.
type QuantityDefinition struct {
	Price    decimal.Decimal    `json:"price"`
	Quantity int                `json:"quantity"`
	TaxID    string             `json:"taxId,omitempty"`
	Rules    tax.RuleCollection `json:"taxRules,omitempty"`
	// Total overrides unit price times quantity, e.g. for bundles.
	Total *decimal.Decimal `json:"total,omitempty"`
	// IsCalculated marks Price and Total as already converted to the active currency and rounded.
	IsCalculated bool `json:"isCalculated,omitempty"`
}

// QuantityCalculator turns a definition into a CalculatedPrice.
type QuantityCalculator struct {
	Taxes tax.Calculator
	// Method splits the tax of a multi-rule position; empty means horizontal.
	Method tax.Method
}

// NewQuantityCalculator returns a calculator for the given currency rounding and tax method.
func NewQuantityCalculator(r money.Rounding, method tax.Method) QuantityCalculator {
	return QuantityCalculator{Taxes: tax.NewCalculator(r), Method: method}
}

// Calculate prices def under state. factor converts reference-currency amounts into the
// active currency and is applied before any tax is computed.
func (q QuantityCalculator) Calculate(def QuantityDefinition, rules tax.RuleCollection, state TaxState, factor decimal.Decimal) CalculatedPrice {
	r := q.Taxes.Rounding
	qty := def.Quantity
	if qty < 1 {
		qty = 1
	}
	convert := func(v decimal.Decimal) decimal.Decimal {
		if def.IsCalculated {
			return r.Round(v)
		}
		return r.Round(v.Mul(factor))
	}

	unit := convert(def.Price)
	total := r.Round(unit.Mul(decimal.NewFromInt(int64(qty))))
	if def.Total != nil {
		total = convert(*def.Total)
		unit = r.Round(total.Div(decimal.NewFromInt(int64(qty))))
	}

	amounts := tax.AmountCalculator{Calculator: q.Taxes, Method: q.Method}
	var taxes tax.CalculatedTaxCollection
	switch state {
	case StateGross, StateNet:
		taxes = amounts.Calculate(total, rules, state == StateGross)
	default:
		taxes = q.Taxes.ZeroTaxes(total, rules)
	}
	return NewCalculatedPrice(unit, total, taxes, rules, qty)
}
