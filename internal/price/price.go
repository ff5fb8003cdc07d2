// Package price holds the calculated price value objects and the quantity price calculator.
package price

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/checkout-pricing/internal/tax"
)

// TaxState governs how the totals of a price relate to its taxes.
type TaxState string

const (
	// StateGross means totals include tax.
	StateGross TaxState = "gross"
	// StateNet means tax is added on top of the totals.
	StateNet TaxState = "net"
	// StateFree means no tax is owed.
	StateFree TaxState = "tax-free"
)

// CalculatedPrice is the priced form of one position.
type CalculatedPrice struct {
	UnitPrice  decimal.Decimal             `json:"unitPrice"`
	TotalPrice decimal.Decimal             `json:"totalPrice"`
	Quantity   int                         `json:"quantity"`
	Taxes      tax.CalculatedTaxCollection `json:"calculatedTaxes"`
	Rules      tax.RuleCollection          `json:"taxRules"`
}

// NewCalculatedPrice builds a price. A quantity below one is stored as one.
func NewCalculatedPrice(unit, total decimal.Decimal, taxes tax.CalculatedTaxCollection, rules tax.RuleCollection, quantity int) CalculatedPrice {
	if quantity < 1 {
		quantity = 1
	}
	if taxes == nil {
		taxes = tax.CalculatedTaxCollection{}
	}
	return CalculatedPrice{
		UnitPrice:  unit,
		TotalPrice: total,
		Quantity:   quantity,
		Taxes:      taxes.Clone(),
		Rules:      rules.Clone(),
	}
}

// Net returns the total without tax under state.
func (p CalculatedPrice) Net(state TaxState) decimal.Decimal {
	if state == StateGross {
		return p.TotalPrice.Sub(p.Taxes.Amount())
	}
	return p.TotalPrice
}

// Gross returns the total including tax under state.
func (p CalculatedPrice) Gross(state TaxState) decimal.Decimal {
	if state == StateNet {
		return p.TotalPrice.Add(p.Taxes.Amount())
	}
	return p.TotalPrice
}

// Clone returns a deep copy.
func (p CalculatedPrice) Clone() CalculatedPrice {
	p.Taxes = p.Taxes.Clone()
	p.Rules = p.Rules.Clone()
	return p
}

// Collection is a list of calculated prices.
type Collection []CalculatedPrice

// Total sums the total prices.
func (c Collection) Total() decimal.Decimal {
	total := decimal.Zero
	for _, p := range c {
		total = total.Add(p.TotalPrice)
	}
	return total
}

// Taxes merges the tax breakdowns by rate.
func (c Collection) Taxes() tax.CalculatedTaxCollection {
	out := tax.CalculatedTaxCollection{}
	for _, p := range c {
		out = out.Merge(p.Taxes)
	}
	return out
}

// Sum folds the collection into one price with quantity one.
func (c Collection) Sum() CalculatedPrice {
	unit := decimal.Zero
	var rules tax.RuleCollection
	for _, p := range c {
		unit = unit.Add(p.UnitPrice)
		rules = append(rules, p.Rules...)
	}
	return NewCalculatedPrice(unit, c.Total(), c.Taxes(), rules, 1)
}

// Net sums the net totals under state.
func (c Collection) Net(state TaxState) decimal.Decimal {
	total := decimal.Zero
	for _, p := range c {
		total = total.Add(p.Net(state))
	}
	return total
}

// Gross sums the gross totals under state.
func (c Collection) Gross(state TaxState) decimal.Decimal {
	total := decimal.Zero
	for _, p := range c {
		total = total.Add(p.Gross(state))
	}
	return total
}

// Diagnostic flags a calculation anomaly that was recovered locally.
type Diagnostic struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Subject string `json:"subject,omitempty"`
}

const (
	// DiagnosticUnknownTaxRate marks a position whose tax reference was not found and was priced at 0%.
	DiagnosticUnknownTaxRate = "unknown_tax_rate"
	// DiagnosticReconciliation marks a cart whose tax total was clamped to gross minus net.
	DiagnosticReconciliation = "reconciliation_mismatch"
)

// CartPrice is the aggregated price of a cart including delivery.
type CartPrice struct {
	NetTotal      decimal.Decimal             `json:"netPrice"`
	GrossTotal    decimal.Decimal             `json:"totalPrice"`
	PositionPrice decimal.Decimal             `json:"positionPrice"`
	Taxes         tax.CalculatedTaxCollection `json:"calculatedTaxes"`
	Rules         tax.RuleCollection          `json:"taxRules"`
	TaxState      TaxState                    `json:"taxStatus"`
	NeedsReview   bool                        `json:"needsReview"`
	Diagnostics   []Diagnostic                `json:"diagnostics,omitempty"`
}

// TaxAmount returns the summed tax of the cart.
func (p CartPrice) TaxAmount() decimal.Decimal {
	return p.Taxes.Amount()
}
