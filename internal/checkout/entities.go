package checkout

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"

	"github.com/noah-isme/checkout-pricing/internal/money"
	"github.com/noah-isme/checkout-pricing/internal/tax"
)

// SalesChannel carries the channel-level pricing policy.
type SalesChannel struct {
	ID             string     `yaml:"id" json:"id"`
	Name           string     `yaml:"name" json:"name"`
	TaxCalculation tax.Method `yaml:"taxCalculation" json:"taxCalculation"`
	// NetDelivery charges shipping without tax.
	NetDelivery bool `yaml:"netDelivery" json:"netDelivery"`
}

// Currency converts reference-currency amounts with Factor.
type Currency struct {
	ID       string          `yaml:"id" json:"id"`
	ISOCode  string          `yaml:"isoCode" json:"isoCode"`
	Factor   decimal.Decimal `yaml:"factor" json:"factor"`
	Decimals int32           `yaml:"decimals" json:"decimals"`
}

// Rounding returns the currency's rounding rule.
func (c Currency) Rounding() money.Rounding {
	return money.Rounding{Decimals: c.Decimals}
}

// withPrecision fills in unset decimals from the ISO code, or two decimals without one.
func (c Currency) withPrecision() (Currency, error) {
	if c.Decimals != 0 {
		return c, nil
	}
	if strings.TrimSpace(c.ISOCode) == "" {
		c.Decimals = money.DefaultDecimals
		return c, nil
	}
	decimals, err := money.DecimalsForISO(c.ISOCode)
	if err != nil {
		return c, fmt.Errorf("currency %s: %w", c.ID, err)
	}
	c.Decimals = decimals
	return c, nil
}

// CustomerGroup decides whether its members see gross prices.
type CustomerGroup struct {
	ID           string `yaml:"id" json:"id"`
	Name         string `yaml:"name" json:"name"`
	DisplayGross bool   `yaml:"displayGross" json:"displayGross"`
}

// Tax is a named rate known to the shop.
type Tax struct {
	ID   string          `yaml:"id" json:"id"`
	Name string          `yaml:"name" json:"name"`
	Rate decimal.Decimal `yaml:"rate" json:"rate"`
}

// Country is a delivery country.
type Country struct {
	ID      string `yaml:"id" json:"id"`
	ISO     string `yaml:"iso" json:"iso"`
	Name    string `yaml:"name" json:"name"`
	TaxFree bool   `yaml:"taxFree" json:"taxFree"`
}

// CountryState is a region inside a country.
type CountryState struct {
	ID        string `yaml:"id" json:"id"`
	CountryID string `yaml:"countryId" json:"countryId"`
	Name      string `yaml:"name" json:"name"`
}

// Address is the part of a customer address the pricing core reads.
type Address struct {
	ID        string `yaml:"id" json:"id"`
	CountryID string `yaml:"countryId" json:"countryId"`
	StateID   string `yaml:"stateId" json:"stateId"`
}

// ShippingLocation is where the cart is delivered to.
type ShippingLocation struct {
	Country   Country       `json:"country"`
	State     *CountryState `json:"state,omitempty"`
	AddressID string        `json:"addressId,omitempty"`
}

// LocationFromAddress derives the shipping location of an address.
func LocationFromAddress(addr Address, country Country, state *CountryState) ShippingLocation {
	return ShippingLocation{Country: country, State: state, AddressID: addr.ID}
}

// Language is used for locale-dependent formatting only.
type Language struct {
	ID     string       `yaml:"id" json:"id"`
	Name   string       `yaml:"name" json:"name"`
	Locale language.Tag `yaml:"locale" json:"locale"`
}

// PaymentMethod selected for the checkout.
type PaymentMethod struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// Calculation selects how a shipping method derives its cost.
type Calculation string

const (
	// CalculationFlat charges the first price regardless of the cart.
	CalculationFlat Calculation = "flat"
	// CalculationByLineItemCount keys the brackets on the number of goods.
	CalculationByLineItemCount Calculation = "by_line_item_count"
	// CalculationByPrice keys the brackets on the goods' value.
	CalculationByPrice Calculation = "by_price"
	// CalculationByWeight keys the brackets on the goods' weight.
	CalculationByWeight Calculation = "by_weight"
)

// Valid reports whether c is a known calculation.
func (c Calculation) Valid() bool {
	switch c {
	case CalculationFlat, CalculationByLineItemCount, CalculationByPrice, CalculationByWeight:
		return true
	}
	return false
}

// ShippingPrice is a bracket: Price applies from the lower bound From upwards.
// Both are expressed in the reference currency.
type ShippingPrice struct {
	From  decimal.Decimal `yaml:"from" json:"from"`
	Price decimal.Decimal `yaml:"price" json:"price"`
}

// ShippingMethod carries its own cost strategy and delivery time bounds.
type ShippingMethod struct {
	ID              string          `yaml:"id" json:"id"`
	Name            string          `yaml:"name" json:"name"`
	Calculation     Calculation     `yaml:"calculation" json:"calculation"`
	Prices          []ShippingPrice `yaml:"prices" json:"prices"`
	MinDeliveryDays int             `yaml:"minDeliveryDays" json:"minDeliveryDays"`
	MaxDeliveryDays int             `yaml:"maxDeliveryDays" json:"maxDeliveryDays"`
}

func (m ShippingMethod) sorted() ShippingMethod {
	prices := make([]ShippingPrice, len(m.Prices))
	copy(prices, m.Prices)
	sort.SliceStable(prices, func(i, j int) bool { return prices[i].From.LessThan(prices[j].From) })
	m.Prices = prices
	return m
}

// Customer is the buyer, when known.
type Customer struct {
	ID      string `yaml:"id" json:"id"`
	GroupID string `yaml:"groupId" json:"groupId"`
}
