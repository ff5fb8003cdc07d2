// Package tax models tax rules, calculated tax breakdowns and the calculators
// that derive them from a price.
package tax

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/checkout-pricing/internal/money"
)

// Rule describes which share of a price is taxed at a rate.
type Rule struct {
	Rate       decimal.Decimal `json:"taxRate"`
	Percentage decimal.Decimal `json:"percentage"`
}

// NewRule returns a rule applying rate to the whole price.
func NewRule(rate decimal.Decimal) Rule {
	return Rule{Rate: rate, Percentage: money.Hundred}
}

// RuleCollection is the set of rules applied to one price.
type RuleCollection []Rule

// Rates lists the distinct rates in ascending order.
func (c RuleCollection) Rates() []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(c))
	for _, r := range c {
		if !containsRate(out, r.Rate) {
			out = append(out, r.Rate)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LessThan(out[j]) })
	return out
}

// Clone returns a copy safe to hand to another owner.
func (c RuleCollection) Clone() RuleCollection {
	if c == nil {
		return nil
	}
	out := make(RuleCollection, len(c))
	copy(out, c)
	return out
}

// CalculatedTax is the tax owed at one rate together with the price basis it was taken from.
type CalculatedTax struct {
	Rate  decimal.Decimal `json:"taxRate"`
	Tax   decimal.Decimal `json:"tax"`
	Price decimal.Decimal `json:"price"`
}

// CalculatedTaxCollection holds at most one entry per rate, ordered by ascending rate.
// Methods never modify the receiver.
type CalculatedTaxCollection []CalculatedTax

// Add merges t into the collection, summing amounts when the rate is already present.
func (c CalculatedTaxCollection) Add(t CalculatedTax) CalculatedTaxCollection {
	out := c.Clone()
	for i := range out {
		if out[i].Rate.Equal(t.Rate) {
			out[i].Tax = out[i].Tax.Add(t.Tax)
			out[i].Price = out[i].Price.Add(t.Price)
			return out
		}
	}
	out = append(out, t)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rate.LessThan(out[j].Rate) })
	return out
}

// Merge combines two collections rate by rate.
func (c CalculatedTaxCollection) Merge(other CalculatedTaxCollection) CalculatedTaxCollection {
	out := c.Clone()
	if out == nil {
		out = CalculatedTaxCollection{}
	}
	for _, t := range other {
		out = out.Add(t)
	}
	return out
}

// Amount returns the summed tax.
func (c CalculatedTaxCollection) Amount() decimal.Decimal {
	total := decimal.Zero
	for _, t := range c {
		total = total.Add(t.Tax)
	}
	return total
}

// Get returns the entry for rate.
func (c CalculatedTaxCollection) Get(rate decimal.Decimal) (CalculatedTax, bool) {
	for _, t := range c {
		if t.Rate.Equal(rate) {
			return t, true
		}
	}
	return CalculatedTax{}, false
}

// Rates lists the rates present in ascending order.
func (c CalculatedTaxCollection) Rates() []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(c))
	for _, t := range c {
		out = append(out, t.Rate)
	}
	return out
}

// Adjust shifts delta onto the entry carrying the largest amount, keeping all other entries untouched.
func (c CalculatedTaxCollection) Adjust(delta decimal.Decimal) CalculatedTaxCollection {
	out := c.Clone()
	if len(out) == 0 || delta.IsZero() {
		return out
	}
	idx := 0
	for i := range out {
		if out[i].Tax.Abs().GreaterThan(out[idx].Tax.Abs()) {
			idx = i
		}
	}
	out[idx].Tax = out[idx].Tax.Add(delta)
	return out
}

// Clone returns a copy of the collection.
func (c CalculatedTaxCollection) Clone() CalculatedTaxCollection {
	if c == nil {
		return nil
	}
	out := make(CalculatedTaxCollection, len(c))
	copy(out, c)
	return out
}

// PercentageRules derives rules from an existing breakdown: each rate gets the share of total
// its basis represents. A zero total yields no rules.
func PercentageRules(taxes CalculatedTaxCollection, total decimal.Decimal) RuleCollection {
	if total.IsZero() || len(taxes) == 0 {
		return nil
	}
	rules := make(RuleCollection, 0, len(taxes))
	for _, t := range taxes {
		rules = append(rules, Rule{
			Rate:       t.Rate,
			Percentage: t.Price.Mul(money.Hundred).Div(total),
		})
	}
	return rules
}

func containsRate(rates []decimal.Decimal, rate decimal.Decimal) bool {
	for _, r := range rates {
		if r.Equal(rate) {
			return true
		}
	}
	return false
}
