package delivery_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/checkout-pricing/internal/checkout"
	"github.com/noah-isme/checkout-pricing/internal/checkout/checkouttest"
	"github.com/noah-isme/checkout-pricing/internal/delivery"
	"github.com/noah-isme/checkout-pricing/internal/price"
	"github.com/noah-isme/checkout-pricing/internal/tax"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func requireAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, d(want).Equal(got), "expected %s, got %s", want, got)
}

func method(calc checkout.Calculation, brackets ...string) checkout.ShippingMethod {
	m := checkout.ShippingMethod{ID: "m", Name: "test", Calculation: calc, MinDeliveryDays: 2, MaxDeliveryDays: 4}
	for i := 0; i+1 < len(brackets); i += 2 {
		m.Prices = append(m.Prices, checkout.ShippingPrice{From: d(brackets[i]), Price: d(brackets[i+1])})
	}
	return m
}

func good(total string, qty int, taxes ...tax.CalculatedTax) delivery.Position {
	return delivery.Position{
		Quantity: qty,
		Good:     true,
		Price:    price.NewCalculatedPrice(d(total), d(total), taxes, nil, qty),
	}
}

func TestNoGoodsNoDelivery(t *testing.T) {
	cctx := checkouttest.Context()
	service := delivery.Position{Quantity: 1, Price: price.NewCalculatedPrice(d("10"), d("10"), nil, nil, 1)}

	require.Nil(t, delivery.Calculator{}.Calculate(cctx, nil))
	require.Nil(t, delivery.Calculator{}.Calculate(cctx, []delivery.Position{service}))
}

func TestByPriceBracketBoundary(t *testing.T) {
	cctx := checkouttest.Context(checkouttest.WithShippingMethod(method(checkout.CalculationByPrice, "50", "0", "0", "5")))

	below := delivery.Calculator{}.Calculate(cctx, []delivery.Position{good("49.99", 1)})
	require.NotNil(t, below)
	requireAmount(t, "5", below.Price.TotalPrice)

	at := delivery.Calculator{}.Calculate(cctx, []delivery.Position{good("50", 1)})
	requireAmount(t, "0", at.Price.TotalPrice)
	require.Equal(t, "m", at.ShippingMethodID)
	require.Equal(t, 2, at.MinDeliveryDays)
	require.Equal(t, 4, at.MaxDeliveryDays)
	require.Equal(t, checkouttest.CountryID, at.Location.Country.ID)
}

func TestByPriceScalesBracketsWithCurrencyFactor(t *testing.T) {
	usd := checkout.Currency{ID: "usd", ISOCode: "USD", Factor: d("2"), Decimals: 2}
	cctx := checkouttest.Context(
		checkouttest.WithCurrency(usd),
		checkouttest.WithShippingMethod(method(checkout.CalculationByPrice, "0", "5", "50", "0")),
	)

	below := delivery.Calculator{}.Calculate(cctx, []delivery.Position{good("99.99", 1)})
	requireAmount(t, "10", below.Price.TotalPrice)

	at := delivery.Calculator{}.Calculate(cctx, []delivery.Position{good("100", 1)})
	requireAmount(t, "0", at.Price.TotalPrice)
}

func TestByWeight(t *testing.T) {
	cctx := checkouttest.Context(checkouttest.WithShippingMethod(method(checkout.CalculationByWeight, "0", "4.90", "10", "9.90")))

	light := good("20", 4)
	light.Weight = d("2.4")
	heavy := good("20", 4)
	heavy.Weight = d("2.5")

	requireAmount(t, "4.90", delivery.Calculator{}.Calculate(cctx, []delivery.Position{light}).Price.TotalPrice)
	requireAmount(t, "9.90", delivery.Calculator{}.Calculate(cctx, []delivery.Position{heavy}).Price.TotalPrice)
}

func TestByLineItemCountIgnoresNonGoods(t *testing.T) {
	cctx := checkouttest.Context(checkouttest.WithShippingMethod(method(checkout.CalculationByLineItemCount, "1", "3", "5", "1")))
	service := delivery.Position{Quantity: 10, Price: price.NewCalculatedPrice(d("1"), d("10"), nil, nil, 10)}

	got := delivery.Calculator{}.Calculate(cctx, []delivery.Position{good("10", 3), service})
	requireAmount(t, "3", got.Price.TotalPrice)

	got = delivery.Calculator{}.Calculate(cctx, []delivery.Position{good("10", 3), good("10", 2)})
	requireAmount(t, "1", got.Price.TotalPrice)
}

func TestFlatUsesFirstBracket(t *testing.T) {
	cctx := checkouttest.Context(checkouttest.WithShippingMethod(method(checkout.CalculationFlat, "0", "6.50", "100", "0")))

	got := delivery.Calculator{}.Calculate(cctx, []delivery.Position{good("500", 1)})
	requireAmount(t, "6.50", got.Price.TotalPrice)
}

func TestDeliveryTaxedLikeGoods(t *testing.T) {
	cctx := checkouttest.Context(checkouttest.WithPolicy(checkouttest.GrossDetector()))
	positions := []delivery.Position{
		good("119", 1, tax.CalculatedTax{Rate: d("19"), Tax: d("19"), Price: d("119")}),
		good("107", 1, tax.CalculatedTax{Rate: d("7"), Tax: d("7"), Price: d("107")}),
	}

	got := delivery.Calculator{}.Calculate(cctx, positions)
	requireAmount(t, "5", got.Price.TotalPrice)
	require.Len(t, got.Price.Taxes, 2)

	reduced, ok := got.Price.Taxes.Get(d("7"))
	require.True(t, ok)
	requireAmount(t, "0.15", reduced.Tax)
	standard, ok := got.Price.Taxes.Get(d("19"))
	require.True(t, ok)
	requireAmount(t, "0.42", standard.Tax)
}

func TestNetDeliveryIsUntaxed(t *testing.T) {
	cctx := checkouttest.Context(checkouttest.WithPolicy(checkouttest.NetDeliveryDetector()))
	positions := []delivery.Position{
		good("100", 1, tax.CalculatedTax{Rate: d("19"), Tax: d("19"), Price: d("100")}),
	}

	got := delivery.Calculator{}.Calculate(cctx, positions)
	requireAmount(t, "5", got.Price.TotalPrice)
	require.Empty(t, got.Price.Taxes)
}

func TestTaxFreeDeliveryIsUntaxed(t *testing.T) {
	cctx := checkouttest.Context(checkouttest.WithCountry(checkout.Country{ID: "ch", ISO: "CH", TaxFree: true}))
	positions := []delivery.Position{
		good("100", 1, tax.CalculatedTax{Rate: d("19"), Tax: d("0"), Price: d("100")}),
	}

	got := delivery.Calculator{}.Calculate(cctx, positions)
	require.Empty(t, got.Price.Taxes)
}
