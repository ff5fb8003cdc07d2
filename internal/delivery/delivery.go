// Package delivery prices the shipment of a cart with the shipping method of the checkout.
package delivery

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/checkout-pricing/internal/checkout"
	"github.com/noah-isme/checkout-pricing/internal/price"
	"github.com/noah-isme/checkout-pricing/internal/tax"
)

// Position is what the calculator reads from a priced line item.
type Position struct {
	Quantity int
	Good     bool
	// Weight is the weight of one unit.
	Weight decimal.Decimal
	Price  price.CalculatedPrice
}

// Delivery is the priced shipment of a cart.
type Delivery struct {
	ShippingMethodID string                    `json:"shippingMethodId"`
	Location         checkout.ShippingLocation `json:"location"`
	Price            price.CalculatedPrice     `json:"shippingCosts"`
	MinDeliveryDays  int                       `json:"minDeliveryDays"`
	MaxDeliveryDays  int                       `json:"maxDeliveryDays"`
}

// Calculator selects the shipping bracket and taxes the shipping costs like the goods they ship.
type Calculator struct {
	Logger zerolog.Logger
}

// Calculate prices the delivery of positions. It returns nil when nothing physical is shipped.
func (c Calculator) Calculate(cctx *checkout.Context, positions []Position) *Delivery {
	goods := make(price.Collection, 0, len(positions))
	for _, p := range positions {
		if p.Good {
			goods = append(goods, p.Price)
		}
	}
	if len(goods) == 0 {
		return nil
	}

	method := cctx.ShippingMethod()
	factor := cctx.CurrencyFactor()
	bracket := selectBracket(method, value(method.Calculation, positions), factor)

	state := cctx.TaxState()
	var rules tax.RuleCollection
	if state != price.StateFree && !cctx.Policy().IsNetDelivery() {
		rules = tax.PercentageRules(goods.Taxes(), goods.Total())
	}

	def := price.QuantityDefinition{Price: bracket.Price, Quantity: 1}
	cost := price.NewQuantityCalculator(cctx.Rounding(), cctx.SalesChannel().TaxCalculation).Calculate(def, rules, state, factor)

	c.Logger.Debug().
		Str("shipping_method", method.ID).
		Str("calculation", string(method.Calculation)).
		Str("cost", cost.TotalPrice.String()).
		Msg("delivery priced")

	return &Delivery{
		ShippingMethodID: method.ID,
		Location:         cctx.Location(),
		Price:            cost,
		MinDeliveryDays:  method.MinDeliveryDays,
		MaxDeliveryDays:  method.MaxDeliveryDays,
	}
}

// value is the quantity the brackets of calc are keyed on. Prices are in the active currency.
func value(calc checkout.Calculation, positions []Position) decimal.Decimal {
	total := decimal.Zero
	for _, p := range positions {
		if !p.Good {
			continue
		}
		qty := decimal.NewFromInt(int64(p.Quantity))
		switch calc {
		case checkout.CalculationByPrice:
			total = total.Add(p.Price.TotalPrice)
		case checkout.CalculationByWeight:
			total = total.Add(p.Weight.Mul(qty))
		case checkout.CalculationByLineItemCount:
			total = total.Add(qty)
		}
	}
	return total
}

// selectBracket returns the bracket with the greatest lower bound not above v. Values below
// the first bound use the first bracket. Price bounds are converted with factor first.
func selectBracket(method checkout.ShippingMethod, v, factor decimal.Decimal) checkout.ShippingPrice {
	selected := method.Prices[0]
	if method.Calculation == checkout.CalculationFlat {
		return selected
	}
	for _, p := range method.Prices[1:] {
		from := p.From
		if method.Calculation == checkout.CalculationByPrice {
			from = from.Mul(factor)
		}
		if from.GreaterThan(v) {
			break
		}
		selected = p
	}
	return selected
}
