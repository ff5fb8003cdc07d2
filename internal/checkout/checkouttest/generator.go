// Package checkouttest builds fully populated checkout contexts and carts for tests,
// so pricing can be exercised without a directory backend.
package checkouttest

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"

	"github.com/noah-isme/checkout-pricing/internal/cart"
	"github.com/noah-isme/checkout-pricing/internal/catalog"
	"github.com/noah-isme/checkout-pricing/internal/checkout"
	"github.com/noah-isme/checkout-pricing/internal/price"
	"github.com/noah-isme/checkout-pricing/internal/tax"
)

// Fixture ids.
const (
	SalesChannelID          = "ffa32a50e2d04cf38389a53f8d6cd594"
	CurrencyID              = "4c8eba11-bd35-46d7-86af-bed481a6e665"
	FallbackCustomerGroupID = "cfbd5018d38d41d8adca10d94fc8bdd6"
	TaxID                   = "49260353-68e3-4d9f-a695-e017d7a231b9"
	CountryID               = "5cff02b1-0297-41a4-891c-430bcd9e3603"
	CountryStateID          = "bd5e2dcf-547e-4df6-bb1f-f58a554bc69e"
	LanguageID              = "2fbb5fe2e29a4d70aa5854ce7ce3e20b"
	FallbackLanguageID      = "a4f5b6c7d8e94f0a9b1c2d3e4f5a6b7c"
	PaymentMethodID         = "19d144ff-e15f-4772-860d-59fca7f207c1"
	ShippingMethodID        = "8beeb66e9dda46b18891a059257a590e"
	AddressID               = "0f4a1b2c3d4e4f5a8b9c0d1e2f3a4b5c"
)

// Option replaces one part of the generated context.
type Option func(*checkout.Parts)

// WithSalesChannel replaces the sales channel.
func WithSalesChannel(c checkout.SalesChannel) Option {
	return func(p *checkout.Parts) { p.SalesChannel = c }
}

// WithCurrency replaces the currency.
func WithCurrency(c checkout.Currency) Option {
	return func(p *checkout.Parts) { p.Currency = c }
}

// WithCustomerGroup replaces the current customer group.
func WithCustomerGroup(g checkout.CustomerGroup) Option {
	return func(p *checkout.Parts) {
		p.CustomerGroup = g
		if p.Customer != nil {
			p.Customer.GroupID = g.ID
		}
	}
}

// WithFallbackCustomerGroup replaces the fallback customer group.
func WithFallbackCustomerGroup(g checkout.CustomerGroup) Option {
	return func(p *checkout.Parts) { p.FallbackCustomerGroup = g }
}

// WithTaxes replaces the known taxes.
func WithTaxes(taxes ...checkout.Tax) Option {
	return func(p *checkout.Parts) { p.Taxes = taxes }
}

// WithCountry replaces the shipping country and drops a state that does not belong to it.
func WithCountry(c checkout.Country) Option {
	return func(p *checkout.Parts) {
		p.Location.Country = c
		if p.Location.State != nil && p.Location.State.CountryID != c.ID {
			p.Location.State = nil
		}
	}
}

// WithState replaces the shipping state.
func WithState(s checkout.CountryState) Option {
	return func(p *checkout.Parts) { p.Location.State = &s }
}

// WithShippingMethod replaces the shipping method.
func WithShippingMethod(m checkout.ShippingMethod) Option {
	return func(p *checkout.Parts) { p.ShippingMethod = m }
}

// WithLanguage replaces the current language.
func WithLanguage(l checkout.Language) Option {
	return func(p *checkout.Parts) { p.Language = l }
}

// WithFallbackLanguage replaces the fallback language.
func WithFallbackLanguage(l checkout.Language) Option {
	return func(p *checkout.Parts) { p.FallbackLanguage = l }
}

// WithPaymentMethod replaces the payment method.
func WithPaymentMethod(m checkout.PaymentMethod) Option {
	return func(p *checkout.Parts) { p.PaymentMethod = m }
}

// WithPolicy injects a tax policy instead of deriving it from the customer group.
func WithPolicy(policy tax.Policy) Option {
	return func(p *checkout.Parts) { p.Policy = policy }
}

// Parts returns the default fixture parts with opts applied.
func Parts(opts ...Option) checkout.Parts {
	country := Germany()
	state := checkout.CountryState{ID: CountryStateID, CountryID: country.ID, Name: "Berlin"}
	group := checkout.CustomerGroup{ID: FallbackCustomerGroupID, Name: "Standard customer group", DisplayGross: true}
	customer := checkout.Customer{ID: uuid.NewString(), GroupID: group.ID}

	p := checkout.Parts{
		Token:                 uuid.NewString(),
		SalesChannel:          checkout.SalesChannel{ID: SalesChannelID, Name: "Storefront", TaxCalculation: tax.MethodHorizontal},
		Currency:              Euro(),
		CustomerGroup:         group,
		FallbackCustomerGroup: group,
		Taxes:                 []checkout.Tax{StandardTax()},
		Location:              checkout.LocationFromAddress(checkout.Address{ID: AddressID, CountryID: country.ID, StateID: state.ID}, country, &state),
		Language:              checkout.Language{ID: LanguageID, Name: "Language 1", Locale: language.BritishEnglish},
		FallbackLanguage:      checkout.Language{ID: FallbackLanguageID, Name: "Fallback Language 1", Locale: language.BritishEnglish},
		PaymentMethod:         checkout.PaymentMethod{ID: PaymentMethodID, Name: "Invoice"},
		ShippingMethod:        StandardShipping(),
		Customer:              &customer,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// Context builds a checkout context from the fixture parts. It panics on invalid options.
func Context(opts ...Option) *checkout.Context {
	ctx, err := checkout.NewContext(Parts(opts...))
	if err != nil {
		panic(err)
	}
	return ctx
}

// Euro is the reference currency with factor one.
func Euro() checkout.Currency {
	return checkout.Currency{ID: CurrencyID, ISOCode: "EUR", Factor: decimal.NewFromInt(1), Decimals: 2}
}

// StandardTax is the 19% rate.
func StandardTax() checkout.Tax {
	return checkout.Tax{ID: TaxID, Name: "test", Rate: decimal.NewFromInt(19)}
}

// Germany is the taxable default country.
func Germany() checkout.Country {
	return checkout.Country{ID: CountryID, ISO: "DE", Name: "Germany"}
}

// StandardShipping charges 5.00 by price from zero upwards and delivers in one to two days.
func StandardShipping() checkout.ShippingMethod {
	return checkout.ShippingMethod{
		ID:              ShippingMethodID,
		Name:            "Standard",
		Calculation:     checkout.CalculationByPrice,
		Prices:          []checkout.ShippingPrice{{From: decimal.Zero, Price: decimal.NewFromInt(5)}},
		MinDeliveryDays: 1,
		MaxDeliveryDays: 2,
	}
}

// GrossDetector shows gross prices with taxed delivery.
func GrossDetector() tax.Policy { return tax.GrossDetector() }

// NetDetector shows net prices with taxed delivery.
func NetDetector() tax.Policy { return tax.NetDetector() }

// NetDeliveryDetector shows net prices with untaxed delivery.
func NetDeliveryDetector() tax.Policy { return tax.NetDeliveryDetector() }

// PriceLookup answers every batch with the given prices, indexed by product id.
func PriceLookup(prices map[string]catalog.ProductPrice) catalog.PriceLookup {
	return catalog.NewStaticLookup(prices)
}

// Snapshot is a directory snapshot holding the fixture entities.
func Snapshot() checkout.Snapshot {
	p := Parts()
	return checkout.Snapshot{
		SalesChannels:   []checkout.SalesChannel{p.SalesChannel},
		Currencies:      []checkout.Currency{p.Currency},
		CustomerGroups:  []checkout.CustomerGroup{p.CustomerGroup},
		Taxes:           p.Taxes,
		Countries:       []checkout.Country{p.Location.Country},
		CountryStates:   []checkout.CountryState{*p.Location.State},
		Addresses:       []checkout.Address{{ID: AddressID, CountryID: CountryID, StateID: CountryStateID}},
		Languages:       []checkout.Language{p.Language, p.FallbackLanguage},
		PaymentMethods:  []checkout.PaymentMethod{p.PaymentMethod},
		ShippingMethods: []checkout.ShippingMethod{p.ShippingMethod},
	}
}

// Defaults points every default at the fixture entities.
func Defaults() checkout.Defaults {
	return checkout.Defaults{
		SalesChannelID:   SalesChannelID,
		CurrencyID:       CurrencyID,
		CustomerGroupID:  FallbackCustomerGroupID,
		LanguageID:       LanguageID,
		CountryID:        CountryID,
		PaymentMethodID:  PaymentMethodID,
		ShippingMethodID: ShippingMethodID,
	}
}

// Cart is the reference cart: 27 units of a product at 10.00 without taxes and a non-good
// line of 5 units at zero price, both already priced.
func Cart() cart.Cart {
	product := cart.NewLineItem("A", cart.TypeProduct, 27).
		WithPrice(price.NewCalculatedPrice(decimal.NewFromInt(10), decimal.NewFromInt(270), nil, nil, 27))
	product.Label = "First product"

	extra := cart.NewLineItem("B", "test", 5).
		WithPrice(price.NewCalculatedPrice(decimal.Zero, decimal.Zero, nil, nil, 5))
	extra.Label = "Second line item"
	extra.Good = false

	return cart.Cart{Name: "test", Token: "test", LineItems: []cart.LineItem{product, extra}}
}

// ExpectedCartPrice is the price of Cart's line items plus the 5.00 standard shipping.
func ExpectedCartPrice() price.CartPrice {
	return price.CartPrice{
		NetTotal:      decimal.NewFromInt(275),
		GrossTotal:    decimal.NewFromInt(275),
		PositionPrice: decimal.NewFromInt(270),
		Taxes:         tax.CalculatedTaxCollection{},
		TaxState:      price.StateGross,
	}
}
