package cart

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/checkout-pricing/internal/price"
)

// Line item types the pricing core knows about. Other types are passed through untouched.
const (
	TypeProduct  = "product"
	TypeDiscount = "discount"
	TypeService  = "service"
)

var (
	// ErrInvalidQuantity is returned for line items with a quantity below one.
	ErrInvalidQuantity = errors.New("line item quantity must be at least 1")
	// ErrMissingPrice is returned for line items with neither a price nor a price definition.
	ErrMissingPrice = errors.New("line item has no price definition")
	// ErrDuplicateLineItem is returned when two line items share an id.
	ErrDuplicateLineItem = errors.New("duplicate line item id")
)

// LineItem is one entry of a cart.
type LineItem struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Label    string `json:"label,omitempty"`
	Quantity int    `json:"quantity"`
	// Good marks physical items; only goods are shipped and count towards delivery costs.
	Good bool `json:"good"`
	// Weight of one unit.
	Weight    decimal.Decimal `json:"weight"`
	ProductID string          `json:"productId,omitempty"`
	// Definition is resolved into Price during a pricing pass.
	Definition *price.QuantityDefinition `json:"priceDefinition,omitempty"`
	// Price, when set before a pass, is kept as is.
	Price *price.CalculatedPrice `json:"price,omitempty"`
}

// NewLineItem returns a good line item without a price.
func NewLineItem(id, typ string, quantity int) LineItem {
	return LineItem{ID: id, Type: typ, Quantity: quantity, Good: true}
}

// WithDefinition returns a copy of l priced from def.
func (l LineItem) WithDefinition(def price.QuantityDefinition) LineItem {
	def.Quantity = l.Quantity
	l.Definition = &def
	return l
}

// WithPrice returns a copy of l carrying a fixed calculated price.
func (l LineItem) WithPrice(p price.CalculatedPrice) LineItem {
	l.Price = &p
	return l
}

func (l LineItem) validate() error {
	if l.Quantity < 1 {
		return fmt.Errorf("%w: %s has %d", ErrInvalidQuantity, l.ID, l.Quantity)
	}
	if l.Price == nil && l.Definition == nil {
		return fmt.Errorf("%w: %s", ErrMissingPrice, l.ID)
	}
	return nil
}

// clone deep-copies the pointers so a priced cart never aliases its input.
func (l LineItem) clone() LineItem {
	if l.Definition != nil {
		def := *l.Definition
		def.Rules = def.Rules.Clone()
		l.Definition = &def
	}
	if l.Price != nil {
		p := l.Price.Clone()
		l.Price = &p
	}
	return l
}
