package tax

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/checkout-pricing/internal/money"
)

// Method selects how the tax of one price is split across its rules.
type Method string

const (
	// MethodHorizontal computes and rounds every rule on its own basis.
	MethodHorizontal Method = "horizontal"
	// MethodVertical computes the tax once with the blended rate of all rules and distributes it.
	MethodVertical Method = "vertical"
)

// ErrUnknownMethod is returned when a calculation method name cannot be parsed.
var ErrUnknownMethod = errors.New("unknown tax calculation method")

// ParseMethod parses a method name. An empty name selects the horizontal default.
func ParseMethod(value string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(value))) {
	case "", MethodHorizontal:
		return MethodHorizontal, nil
	case MethodVertical:
		return MethodVertical, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMethod, value)
	}
}

// AmountCalculator taxes one price total under a calculation method.
type AmountCalculator struct {
	Calculator Calculator
	Method     Method
}

// Calculate returns the breakdown of total under rules. useGross tells whether total includes tax.
// With a single rule both methods yield the same amount.
func (a AmountCalculator) Calculate(total decimal.Decimal, rules RuleCollection, useGross bool) CalculatedTaxCollection {
	if a.Method == MethodVertical && len(rules) > 1 {
		return a.vertical(total, rules, useGross)
	}
	if useGross {
		return a.Calculator.GrossTaxes(total, rules)
	}
	return a.Calculator.NetTaxes(total, rules)
}

func (a AmountCalculator) vertical(total decimal.Decimal, rules RuleCollection, useGross bool) CalculatedTaxCollection {
	r := a.Calculator.Rounding

	type share struct {
		tax       CalculatedTax
		remainder decimal.Decimal
	}
	shares := make([]share, 0, len(rules))
	raw := decimal.Zero
	allocated := decimal.Zero
	for _, rule := range rules {
		basis := money.Percent(total, rule.Percentage)
		amount := netTax(basis, rule.Rate)
		if useGross {
			amount = grossTax(basis, rule.Rate)
		}
		floor := r.Floor(amount)
		raw = raw.Add(amount)
		allocated = allocated.Add(floor)
		shares = append(shares, share{
			tax:       CalculatedTax{Rate: rule.Rate, Tax: floor, Price: r.Round(basis)},
			remainder: amount.Sub(floor),
		})
	}

	// The blended amount is rounded once; the units it has over the floored shares go to the
	// rules with the largest remainders.
	target := r.Round(raw)
	units := target.Sub(allocated).Div(r.Unit()).IntPart()
	if units > int64(len(shares)) {
		units = int64(len(shares))
	}
	order := make([]int, len(shares))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return shares[order[i]].remainder.GreaterThan(shares[order[j]].remainder)
	})
	for k := int64(0); k < units; k++ {
		idx := order[k]
		shares[idx].tax.Tax = shares[idx].tax.Tax.Add(r.Unit())
	}

	out := CalculatedTaxCollection{}
	for _, s := range shares {
		out = out.Add(s.tax)
	}
	return out
}
