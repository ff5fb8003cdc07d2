package cart_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/checkout-pricing/internal/cart"
	"github.com/noah-isme/checkout-pricing/internal/catalog"
	"github.com/noah-isme/checkout-pricing/internal/checkout"
	"github.com/noah-isme/checkout-pricing/internal/checkout/checkouttest"
	"github.com/noah-isme/checkout-pricing/internal/common"
	"github.com/noah-isme/checkout-pricing/internal/resilience"
)

func newTestRouter(defaults checkout.Defaults) http.Handler {
	h := &cart.Handler{
		Pricer:    cart.NewPricer(zerolog.Nop(), nil, true),
		Directory: checkout.NewMemoryDirectory(checkouttest.Snapshot()),
		Defaults:  defaults,
		Lookup: catalog.NewStaticLookup(map[string]catalog.ProductPrice{
			"sku-1": {Net: d("8.40"), Gross: d("10.00"), TaxID: checkouttest.TaxID},
		}),
		Validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	r := chi.NewRouter()
	r.Route("/v1", h.Routes)
	return r
}

func postPrice(t *testing.T, router http.Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/cart/price", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error common.ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body.Error.Code
}

func TestPriceEndpoint(t *testing.T) {
	t.Parallel()
	router := newTestRouter(checkouttest.Defaults())

	rr := postPrice(t, router, map[string]any{
		"items": []map[string]any{
			{"id": "line-1", "productId": "sku-1", "quantity": 27},
			{"id": "gift-wrap", "type": "service", "good": false, "quantity": 1, "priceDefinition": map[string]any{"price": "2.50"}},
		},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body struct {
		Data struct {
			LineItems []struct {
				ID string `json:"id"`
			} `json:"lineItems"`
			Price     struct {
				TotalPrice string `json:"totalPrice"`
				TaxStatus  string `json:"taxStatus"`
			} `json:"price"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Data.LineItems, 2)
	require.Equal(t, "line-1", body.Data.LineItems[0].ID)
	require.Equal(t, "277.5", body.Data.Price.TotalPrice)
	require.Equal(t, "gross", body.Data.Price.TaxStatus)
}

func TestPriceEndpointErrors(t *testing.T) {
	t.Parallel()
	item := map[string]any{"id": "line-1", "productId": "sku-1", "quantity": 1}

	cases := []struct {
		name     string
		defaults checkout.Defaults
		body     any
		status   int
		code     string
	}{
		{
			name:     "validation",
			defaults: checkouttest.Defaults(),
			body:     map[string]any{"items": []map[string]any{{"id": "line-1", "productId": "sku-1", "quantity": 0}}},
			status:   http.StatusBadRequest,
			code:     common.CodeValidation,
		},
		{
			name:     "no items",
			defaults: checkouttest.Defaults(),
			body:     map[string]any{"items": []any{}},
			status:   http.StatusBadRequest,
			code:     common.CodeValidation,
		},
		{
			name:     "configuration missing",
			defaults: checkout.Defaults{},
			body:     map[string]any{"items": []any{item}},
			status:   http.StatusUnprocessableEntity,
			code:     common.CodeConfigurationMissing,
		},
		{
			name:     "unknown currency",
			defaults: checkouttest.Defaults(),
			body:     map[string]any{"context": map[string]any{"currencyId": "nope"}, "items": []any{item}},
			status:   http.StatusNotFound,
			code:     common.CodeNotFound,
		},
		{
			name:     "unknown product",
			defaults: checkouttest.Defaults(),
			body:     map[string]any{"items": []map[string]any{{"id": "line-1", "productId": "sku-404", "quantity": 1}}},
			status:   http.StatusBadGateway,
			code:     common.CodeIncompleteBatch,
		},
		{
			name:     "unknown field",
			defaults: checkouttest.Defaults(),
			body:     map[string]any{"cart": "x", "items": []any{item}},
			status:   http.StatusBadRequest,
			code:     common.CodeBadRequest,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rr := postPrice(t, newTestRouter(tc.defaults), tc.body)
			require.Equal(t, tc.status, rr.Code, rr.Body.String())
			require.Equal(t, tc.code, errorCode(t, rr))
		})
	}
}

type failingLookup struct{ err error }

func (f failingLookup) Prices(context.Context, []string) (map[string]catalog.ProductPrice, error) {
	return nil, f.err
}

func TestPriceEndpointCatalogUnavailable(t *testing.T) {
	t.Parallel()
	h := &cart.Handler{
		Pricer:    cart.NewPricer(zerolog.Nop(), nil, true),
		Directory: checkout.NewMemoryDirectory(checkouttest.Snapshot()),
		Defaults:  checkouttest.Defaults(),
		Lookup:    failingLookup{err: resilience.ErrOpenCircuit},
	}
	r := chi.NewRouter()
	r.Route("/v1", h.Routes)

	rr := postPrice(t, r, map[string]any{"items": []map[string]any{{"id": "line-1", "productId": "sku-1", "quantity": 1}}})
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Equal(t, common.CodeUnavailable, errorCode(t, rr))
}
