// Package checkout builds the immutable checkout context every pricing pass reads.
package checkout

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/checkout-pricing/internal/money"
	"github.com/noah-isme/checkout-pricing/internal/price"
	"github.com/noah-isme/checkout-pricing/internal/tax"
)

// Parts are the resolved pieces a Context is assembled from.
type Parts struct {
	Token                 string
	SalesChannel          SalesChannel
	Currency              Currency
	CustomerGroup         CustomerGroup
	FallbackCustomerGroup CustomerGroup
	Taxes                 []Tax
	Location              ShippingLocation
	Language              Language
	FallbackLanguage      Language
	PaymentMethod         PaymentMethod
	ShippingMethod        ShippingMethod
	Customer              *Customer
	// Policy overrides the policy derived from the customer group and sales channel.
	Policy tax.Policy
}

// Context is the read-only configuration snapshot of one checkout. It is never modified
// after NewContext returns; the With* methods return new contexts.
type Context struct {
	parts    Parts
	policy   tax.Policy
	taxState price.TaxState
}

// NewContext validates parts and derives the policy and tax state.
func NewContext(p Parts) (*Context, error) {
	if p.SalesChannel.ID == "" {
		return nil, fmt.Errorf("%w: sales channel", ErrConfigurationMissing)
	}
	if p.Currency.ID == "" {
		return nil, fmt.Errorf("%w: currency", ErrConfigurationMissing)
	}
	if p.CustomerGroup.ID == "" {
		return nil, fmt.Errorf("%w: customer group", ErrConfigurationMissing)
	}
	if p.Location.Country.ID == "" {
		return nil, fmt.Errorf("%w: shipping country", ErrConfigurationMissing)
	}
	if p.ShippingMethod.ID == "" {
		return nil, fmt.Errorf("%w: shipping method", ErrConfigurationMissing)
	}
	if !p.Currency.Factor.IsPositive() {
		return nil, fmt.Errorf("%w: currency %s factor must be positive", ErrInvalidConfiguration, p.Currency.ID)
	}
	if p.Currency.Decimals < 0 {
		return nil, fmt.Errorf("%w: currency %s decimals must not be negative", ErrInvalidConfiguration, p.Currency.ID)
	}
	currency, err := p.Currency.withPrecision()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	p.Currency = currency
	if p.SalesChannel.TaxCalculation == "" {
		p.SalesChannel.TaxCalculation = tax.MethodHorizontal
	}
	if _, err := tax.ParseMethod(string(p.SalesChannel.TaxCalculation)); err != nil {
		return nil, fmt.Errorf("%w: sales channel %s: %v", ErrInvalidConfiguration, p.SalesChannel.ID, err)
	}
	if !p.ShippingMethod.Calculation.Valid() {
		return nil, fmt.Errorf("%w: shipping method %s has unknown calculation %q", ErrInvalidConfiguration, p.ShippingMethod.ID, p.ShippingMethod.Calculation)
	}
	if len(p.ShippingMethod.Prices) == 0 {
		return nil, fmt.Errorf("%w: shipping method %s has no prices", ErrConfigurationMissing, p.ShippingMethod.ID)
	}
	if p.FallbackCustomerGroup.ID == "" {
		p.FallbackCustomerGroup = p.CustomerGroup
	}
	if p.FallbackLanguage.ID == "" {
		p.FallbackLanguage = p.Language
	}

	p.ShippingMethod = p.ShippingMethod.sorted()
	p.Taxes = cloneTaxes(p.Taxes)
	if p.Customer != nil {
		c := *p.Customer
		p.Customer = &c
	}
	if p.Location.State != nil {
		s := *p.Location.State
		p.Location.State = &s
	}

	policy := p.Policy
	if policy == nil {
		policy = DetectTaxPolicy(p.CustomerGroup, p.SalesChannel)
	}
	return &Context{parts: p, policy: policy, taxState: resolveTaxState(policy, p.Location.Country)}, nil
}

// DetectTaxPolicy derives the display policy: the customer group decides gross or net display,
// the sales channel decides whether delivery is taxed.
func DetectTaxPolicy(group CustomerGroup, channel SalesChannel) tax.Detector {
	return tax.NewDetector(group.DisplayGross, channel.NetDelivery)
}

// A tax-free delivery country overrides the policy.
func resolveTaxState(policy tax.Policy, country Country) price.TaxState {
	switch {
	case country.TaxFree:
		return price.StateFree
	case policy.UseGross():
		return price.StateGross
	default:
		return price.StateNet
	}
}

// Token identifies the checkout session.
func (c *Context) Token() string { return c.parts.Token }

// SalesChannel returns the active sales channel.
func (c *Context) SalesChannel() SalesChannel { return c.parts.SalesChannel }

// Currency returns the active currency.
func (c *Context) Currency() Currency { return c.parts.Currency }

// CurrencyFactor returns the conversion factor from the reference currency.
func (c *Context) CurrencyFactor() decimal.Decimal { return c.parts.Currency.Factor }

// Rounding returns the active currency's rounding rule.
func (c *Context) Rounding() money.Rounding { return c.parts.Currency.Rounding() }

// CustomerGroup returns the current customer group.
func (c *Context) CustomerGroup() CustomerGroup { return c.parts.CustomerGroup }

// FallbackCustomerGroup returns the group used when the current one lacks data.
func (c *Context) FallbackCustomerGroup() CustomerGroup { return c.parts.FallbackCustomerGroup }

// Taxes returns a copy of the known tax rates.
func (c *Context) Taxes() []Tax { return cloneTaxes(c.parts.Taxes) }

// TaxByID looks a tax up by id.
func (c *Context) TaxByID(id string) (Tax, bool) {
	for _, t := range c.parts.Taxes {
		if t.ID == id {
			return t, true
		}
	}
	return Tax{}, false
}

// HasRate reports whether rate belongs to one of the known taxes.
func (c *Context) HasRate(rate decimal.Decimal) bool {
	for _, t := range c.parts.Taxes {
		if t.Rate.Equal(rate) {
			return true
		}
	}
	return false
}

// Location returns the shipping location.
func (c *Context) Location() ShippingLocation {
	loc := c.parts.Location
	if loc.State != nil {
		s := *loc.State
		loc.State = &s
	}
	return loc
}

// Language returns the current language.
func (c *Context) Language() Language { return c.parts.Language }

// FallbackLanguage returns the fallback language.
func (c *Context) FallbackLanguage() Language { return c.parts.FallbackLanguage }

// PaymentMethod returns the selected payment method.
func (c *Context) PaymentMethod() PaymentMethod { return c.parts.PaymentMethod }

// ShippingMethod returns the selected shipping method with its brackets sorted ascending.
func (c *Context) ShippingMethod() ShippingMethod {
	m := c.parts.ShippingMethod
	prices := make([]ShippingPrice, len(m.Prices))
	copy(prices, m.Prices)
	m.Prices = prices
	return m
}

// Customer returns the buyer, when known.
func (c *Context) Customer() (Customer, bool) {
	if c.parts.Customer == nil {
		return Customer{}, false
	}
	return *c.parts.Customer, true
}

// Policy returns the tax display policy.
func (c *Context) Policy() tax.Policy { return c.policy }

// TaxState returns the tax state every price of this checkout is calculated in.
func (c *Context) TaxState() price.TaxState { return c.taxState }

// WithCurrency returns a copy of the context using currency.
func (c *Context) WithCurrency(currency Currency) (*Context, error) {
	p := c.parts
	p.Currency = currency
	return NewContext(p)
}

// WithPolicy returns a copy of the context using policy.
func (c *Context) WithPolicy(policy tax.Policy) (*Context, error) {
	p := c.parts
	p.Policy = policy
	return NewContext(p)
}

func cloneTaxes(in []Tax) []Tax {
	if in == nil {
		return nil
	}
	out := make([]Tax, len(in))
	copy(out, in)
	return out
}
