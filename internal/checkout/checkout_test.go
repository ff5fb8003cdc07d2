package checkout_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/noah-isme/checkout-pricing/internal/checkout"
	"github.com/noah-isme/checkout-pricing/internal/checkout/checkouttest"
	"github.com/noah-isme/checkout-pricing/internal/price"
	"github.com/noah-isme/checkout-pricing/internal/tax"
)

func testDefaults() checkout.Defaults {
	return checkout.Defaults{
		SalesChannelID:   "storefront",
		CurrencyID:       "eur",
		CustomerGroupID:  "retail",
		LanguageID:       "en",
		CountryID:        "de",
		PaymentMethodID:  "invoice",
		ShippingMethodID: "standard",
	}
}

func loadTestDirectory(t *testing.T) *checkout.MemoryDirectory {
	t.Helper()
	dir, err := checkout.LoadDirectory("testdata/directory.yaml")
	require.NoError(t, err)
	return dir
}

func TestBuildAppliesDefaults(t *testing.T) {
	t.Parallel()
	dir := loadTestDirectory(t)

	c, err := checkout.Build(context.Background(), dir, checkout.Config{}, testDefaults())
	require.NoError(t, err)

	require.NotEmpty(t, c.Token())
	require.Equal(t, "storefront", c.SalesChannel().ID)
	require.Equal(t, "eur", c.Currency().ID)
	require.Equal(t, int32(2), c.Currency().Decimals)
	require.Equal(t, "retail", c.CustomerGroup().ID)
	require.Equal(t, "retail", c.FallbackCustomerGroup().ID)
	require.Equal(t, "en", c.FallbackLanguage().ID)
	require.Equal(t, language.BritishEnglish, c.Language().Locale)
	require.Equal(t, "de", c.Location().Country.ID)
	require.Nil(t, c.Location().State)
	require.Equal(t, price.StateGross, c.TaxState())
	require.Len(t, c.Taxes(), 2)

	_, ok := c.Customer()
	require.False(t, ok)

	prices := c.ShippingMethod().Prices
	require.Len(t, prices, 2)
	require.True(t, prices[0].From.IsZero(), "brackets are sorted ascending")
}

func TestBuildCustomerGroupFromCustomer(t *testing.T) {
	t.Parallel()
	dir := loadTestDirectory(t)

	c, err := checkout.Build(context.Background(), dir, checkout.Config{CustomerID: "alice"}, testDefaults())
	require.NoError(t, err)

	require.Equal(t, "trade", c.CustomerGroup().ID)
	require.Equal(t, "retail", c.FallbackCustomerGroup().ID)
	require.Equal(t, price.StateNet, c.TaxState())
	customer, ok := c.Customer()
	require.True(t, ok)
	require.Equal(t, "alice", customer.ID)
}

func TestBuildExplicitIDsWin(t *testing.T) {
	t.Parallel()
	dir := loadTestDirectory(t)

	c, err := checkout.Build(context.Background(), dir, checkout.Config{
		SalesChannelID:     "b2b",
		CustomerGroupID:    "trade",
		FallbackLanguageID: "de",
		CountryStateID:     "de-be",
	}, testDefaults())
	require.NoError(t, err)

	require.Equal(t, tax.MethodVertical, c.SalesChannel().TaxCalculation)
	require.True(t, c.Policy().IsNetDelivery())
	require.False(t, c.Policy().UseGross())
	require.Equal(t, "de", c.FallbackLanguage().ID)
	require.NotNil(t, c.Location().State)
	require.Equal(t, "de-be", c.Location().State.ID)
}

func TestBuildLocationFromAddress(t *testing.T) {
	t.Parallel()
	dir := loadTestDirectory(t)

	home, err := checkout.Build(context.Background(), dir, checkout.Config{AddressID: "home"}, testDefaults())
	require.NoError(t, err)
	require.Equal(t, "home", home.Location().AddressID)
	require.Equal(t, "de-be", home.Location().State.ID)

	zurich, err := checkout.Build(context.Background(), dir, checkout.Config{AddressID: "zurich"}, testDefaults())
	require.NoError(t, err)
	require.Equal(t, "ch", zurich.Location().Country.ID)
	require.Equal(t, price.StateFree, zurich.TaxState())
}

func TestBuildMissingRequiredField(t *testing.T) {
	t.Parallel()
	dir := loadTestDirectory(t)
	defaults := testDefaults()
	defaults.CurrencyID = ""

	_, err := checkout.Build(context.Background(), dir, checkout.Config{}, defaults)
	require.ErrorIs(t, err, checkout.ErrConfigurationMissing)
	require.Contains(t, err.Error(), "currencyId")
}

func TestBuildUnknownID(t *testing.T) {
	t.Parallel()
	dir := loadTestDirectory(t)

	_, err := checkout.Build(context.Background(), dir, checkout.Config{CurrencyID: "usd"}, testDefaults())
	require.ErrorIs(t, err, checkout.ErrNotFound)
}

func TestBuildRejectsStateOfOtherCountry(t *testing.T) {
	t.Parallel()
	dir := loadTestDirectory(t)

	_, err := checkout.Build(context.Background(), dir, checkout.Config{CountryID: "ch", CountryStateID: "de-be"}, testDefaults())
	require.ErrorIs(t, err, checkout.ErrInvalidConfiguration)
}

func TestTaxFreeCountryOverridesGrossPolicy(t *testing.T) {
	t.Parallel()

	c := checkouttest.Context(
		checkouttest.WithPolicy(checkouttest.GrossDetector()),
		checkouttest.WithCountry(checkout.Country{ID: "ch", ISO: "CH", Name: "Switzerland", TaxFree: true}),
	)
	require.Equal(t, price.StateFree, c.TaxState())
	require.Nil(t, c.Location().State)
}

func TestDetectTaxPolicy(t *testing.T) {
	t.Parallel()

	p := checkout.DetectTaxPolicy(checkout.CustomerGroup{DisplayGross: false}, checkout.SalesChannel{NetDelivery: true})
	require.Equal(t, tax.NetDeliveryDetector(), p)

	p = checkout.DetectTaxPolicy(checkout.CustomerGroup{DisplayGross: true}, checkout.SalesChannel{})
	require.Equal(t, tax.GrossDetector(), p)
}

func TestWithCurrencyLeavesOriginalUntouched(t *testing.T) {
	t.Parallel()
	c := checkouttest.Context()

	converted, err := c.WithCurrency(checkout.Currency{ID: "usd", ISOCode: "USD", Factor: decimal.RequireFromString("1.5"), Decimals: 2})
	require.NoError(t, err)

	require.True(t, converted.CurrencyFactor().Equal(decimal.RequireFromString("1.5")))
	require.True(t, c.CurrencyFactor().Equal(decimal.NewFromInt(1)))
	require.Equal(t, c.Token(), converted.Token())
}

func TestCurrencyPrecisionDefaults(t *testing.T) {
	t.Parallel()
	one := decimal.NewFromInt(1)

	cases := []struct {
		name     string
		currency checkout.Currency
		want     int32
	}{
		{name: "no iso code", currency: checkout.Currency{ID: "points", Factor: one}, want: 2},
		{name: "iso code", currency: checkout.Currency{ID: "eur", ISOCode: "EUR", Factor: one}, want: 2},
		{name: "zero decimal iso", currency: checkout.Currency{ID: "jpy", ISOCode: "JPY", Factor: one}, want: 0},
		{name: "explicit", currency: checkout.Currency{ID: "btc", ISOCode: "EUR", Factor: one, Decimals: 4}, want: 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := checkout.NewContext(checkouttest.Parts(checkouttest.WithCurrency(tc.currency)))
			require.NoError(t, err)
			require.Equal(t, tc.want, c.Rounding().Decimals)

			converted, err := checkouttest.Context().WithCurrency(tc.currency)
			require.NoError(t, err)
			require.Equal(t, tc.want, converted.Currency().Decimals)
		})
	}

	_, err := checkout.NewContext(checkouttest.Parts(checkouttest.WithCurrency(checkout.Currency{ID: "x", ISOCode: "NOPE", Factor: one})))
	require.ErrorIs(t, err, checkout.ErrInvalidConfiguration)
}

func TestNewContextValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		opt  checkouttest.Option
		err  error
	}{
		{
			name: "zero factor",
			opt:  checkouttest.WithCurrency(checkout.Currency{ID: "x", Factor: decimal.Zero}),
			err:  checkout.ErrInvalidConfiguration,
		},
		{
			name: "unknown calculation",
			opt: checkouttest.WithShippingMethod(checkout.ShippingMethod{
				ID: "x", Calculation: "by_mood", Prices: []checkout.ShippingPrice{{Price: decimal.NewFromInt(1)}},
			}),
			err: checkout.ErrInvalidConfiguration,
		},
		{
			name: "no brackets",
			opt:  checkouttest.WithShippingMethod(checkout.ShippingMethod{ID: "x", Calculation: checkout.CalculationFlat}),
			err:  checkout.ErrConfigurationMissing,
		},
		{
			name: "unknown tax calculation",
			opt:  checkouttest.WithSalesChannel(checkout.SalesChannel{ID: "x", TaxCalculation: "diagonal"}),
			err:  checkout.ErrInvalidConfiguration,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := checkout.NewContext(checkouttest.Parts(tc.opt))
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestAccessorsReturnCopies(t *testing.T) {
	t.Parallel()
	c := checkouttest.Context()

	method := c.ShippingMethod()
	method.Prices[0].Price = decimal.NewFromInt(99)
	taxes := c.Taxes()
	taxes[0].Rate = decimal.NewFromInt(99)
	loc := c.Location()
	loc.State.Name = "changed"

	require.True(t, c.ShippingMethod().Prices[0].Price.Equal(decimal.NewFromInt(5)))
	require.True(t, c.Taxes()[0].Rate.Equal(decimal.NewFromInt(19)))
	require.Equal(t, "Berlin", c.Location().State.Name)
	require.True(t, c.HasRate(decimal.RequireFromString("19.00")))
}

func TestSnapshotWithTaxCalculationFillsOnlyMissingMethods(t *testing.T) {
	t.Parallel()
	s, err := checkout.ReadSnapshot("testdata/directory.yaml")
	require.NoError(t, err)
	s.SalesChannels = append(s.SalesChannels, checkout.SalesChannel{ID: "kiosk", Name: "Kiosk"})

	filled := s.WithTaxCalculation(tax.MethodVertical)
	require.Equal(t, tax.MethodHorizontal, filled.SalesChannels[0].TaxCalculation)
	require.Equal(t, tax.MethodVertical, filled.SalesChannels[1].TaxCalculation)
	require.Equal(t, tax.MethodVertical, filled.SalesChannels[2].TaxCalculation)
	require.Empty(t, s.SalesChannels[2].TaxCalculation)
}
