// Package cart prices carts: it resolves line item prices, adds the delivery and
// aggregates everything into a reconciled cart price.
package cart

import (
	"github.com/noah-isme/checkout-pricing/internal/delivery"
	"github.com/noah-isme/checkout-pricing/internal/price"
)

// Cart is a priced or unpriced cart.
type Cart struct {
	Name       string              `json:"name"`
	Token      string              `json:"token"`
	LineItems  []LineItem          `json:"lineItems"`
	Deliveries []delivery.Delivery `json:"deliveries"`
	Price      price.CartPrice     `json:"price"`
}

// Get returns the line item with id.
func (c Cart) Get(id string) (LineItem, bool) {
	for _, l := range c.LineItems {
		if l.ID == id {
			return l, true
		}
	}
	return LineItem{}, false
}

// prices returns the calculated prices of the line items. Unpriced items are skipped.
func (c Cart) prices() price.Collection {
	out := make(price.Collection, 0, len(c.LineItems))
	for _, l := range c.LineItems {
		if l.Price != nil {
			out = append(out, *l.Price)
		}
	}
	return out
}
