// Package money holds the decimal helpers shared by the pricing packages.
// Amounts are shopspring decimals; floats never carry money.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// DefaultDecimals is the currency precision used when nothing else is configured.
const DefaultDecimals int32 = 2

// Hundred is the percentage base.
var Hundred = decimal.NewFromInt(100)

// Rounding rounds monetary amounts to a fixed number of decimals, half away from zero.
type Rounding struct {
	Decimals int32
}

// DefaultRounding returns two-decimal currency rounding.
func DefaultRounding() Rounding {
	return Rounding{Decimals: DefaultDecimals}
}

// Round rounds v to the configured precision.
func (r Rounding) Round(v decimal.Decimal) decimal.Decimal {
	return v.Round(r.Decimals)
}

// Floor rounds v towards negative infinity at the configured precision.
func (r Rounding) Floor(v decimal.Decimal) decimal.Decimal {
	return v.RoundFloor(r.Decimals)
}

// Unit returns the smallest representable amount, e.g. 0.01.
func (r Rounding) Unit() decimal.Decimal {
	return decimal.New(1, -r.Decimals)
}

// Within reports whether a and b differ by at most units rounding units.
func (r Rounding) Within(a, b decimal.Decimal, units int64) bool {
	if units < 0 {
		units = 0
	}
	limit := r.Unit().Mul(decimal.NewFromInt(units))
	return a.Sub(b).Abs().LessThanOrEqual(limit)
}

// Percent returns pct percent of base without rounding.
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return base.Mul(pct).Div(Hundred)
}

// Sum adds all values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// DecimalsForISO returns the standard minor-unit precision of an ISO 4217 currency code.
func DecimalsForISO(code string) (int32, error) {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return 0, fmt.Errorf("parse currency %q: %w", code, err)
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale), nil
}
