package cart

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/checkout-pricing/internal/catalog"
	"github.com/noah-isme/checkout-pricing/internal/checkout"
	"github.com/noah-isme/checkout-pricing/internal/common"
	"github.com/noah-isme/checkout-pricing/internal/price"
	"github.com/noah-isme/checkout-pricing/internal/resilience"
)

const maxBodyBytes = 1 << 20

// Handler exposes cart pricing over HTTP.
type Handler struct {
	Pricer    *Pricer
	Directory checkout.Directory
	Defaults  checkout.Defaults
	Lookup    catalog.PriceLookup
	Validate  *validator.Validate
}

// PriceRequest is the body of POST /cart/price.
type PriceRequest struct {
	Context checkout.Config    `json:"context"`
	Items   []PriceRequestItem `json:"items" validate:"required,min=1,max=500,dive"`
}

// PriceRequestItem is one requested line item. Product items are priced from the catalog;
// custom items bring their own definition.
type PriceRequestItem struct {
	ID         string                    `json:"id" validate:"required,max=64"`
	Type       string                    `json:"type" validate:"omitempty,max=32"`
	Label      string                    `json:"label" validate:"max=255"`
	Quantity   int                       `json:"quantity" validate:"required,min=1,max=100000"`
	Good       *bool                     `json:"good"`
	ProductID  string                    `json:"productId" validate:"required_without=Definition,max=64"`
	Definition *price.QuantityDefinition `json:"priceDefinition"`
}

// Routes registers the cart routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/cart/price", h.Price)
}

// Price prices the requested cart under the requested checkout context.
func (h *Handler) Price(w http.ResponseWriter, r *http.Request) {
	if h.Pricer == nil || h.Directory == nil || h.Lookup == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "cart pricing not configured", nil)
		return
	}
	var req PriceRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid payload", nil)
		return
	}
	if err := h.validator().Struct(req); err != nil {
		common.WriteError(w, validationError(err))
		return
	}

	ctx := r.Context()
	cctx, err := checkout.Build(ctx, h.Directory, req.Context, h.Defaults)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	priced, err := h.Pricer.PriceWithLookup(ctx, cctx, h.Lookup, req.lineItems())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": priced})
}

func (h *Handler) validator() *validator.Validate {
	if h.Validate != nil {
		return h.Validate
	}
	return validator.New(validator.WithRequiredStructEnabled())
}

func (req PriceRequest) lineItems() []LineItem {
	items := make([]LineItem, 0, len(req.Items))
	for _, it := range req.Items {
		typ := it.Type
		if typ == "" {
			typ = TypeProduct
		}
		item := NewLineItem(it.ID, typ, it.Quantity)
		item.Label = it.Label
		item.ProductID = it.ProductID
		if it.Good != nil {
			item.Good = *it.Good
		}
		if it.Definition != nil {
			item = item.WithDefinition(*it.Definition)
		}
		items = append(items, item)
	}
	return items
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := toAppError(err)
	evt := zerolog.Ctx(r.Context()).Warn()
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		evt = zerolog.Ctx(r.Context()).Error()
	}
	evt.Err(err).Str("code", appErr.Code).Msg("cart pricing failed")
	common.WriteError(w, appErr)
}

// toAppError maps domain errors onto HTTP errors.
func toAppError(err error) *common.AppError {
	switch {
	case common.IsAppError(err):
		return common.AsAppError(err)
	case errors.Is(err, checkout.ErrConfigurationMissing):
		return common.NewAppError(common.CodeConfigurationMissing, err.Error(), http.StatusUnprocessableEntity, err)
	case errors.Is(err, checkout.ErrInvalidConfiguration):
		return common.NewAppError(common.CodeInvalidConfiguration, err.Error(), http.StatusUnprocessableEntity, err)
	case errors.Is(err, checkout.ErrNotFound):
		return common.NewAppError(common.CodeNotFound, err.Error(), http.StatusNotFound, err)
	case errors.Is(err, resilience.ErrOpenCircuit):
		return common.NewAppError(common.CodeUnavailable, "product prices temporarily unavailable", http.StatusServiceUnavailable, err)
	case errors.Is(err, catalog.ErrIncompleteBatch):
		return common.NewAppError(common.CodeIncompleteBatch, "product prices unavailable", http.StatusBadGateway, err)
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrMissingPrice), errors.Is(err, ErrDuplicateLineItem):
		return common.NewAppError(common.CodeValidation, err.Error(), http.StatusBadRequest, err)
	case errors.Is(err, ErrReconciliationMismatch):
		return common.NewAppError(common.CodeReconciliation, "cart totals do not reconcile", http.StatusInternalServerError, err)
	default:
		return common.AsAppError(err)
	}
}

type fieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

func validationError(err error) *common.AppError {
	appErr := common.NewAppError(common.CodeValidation, "request validation failed", http.StatusBadRequest, err)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return appErr
	}
	details := make([]fieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, fieldError{Field: fe.Namespace(), Rule: fe.Tag()})
	}
	return appErr.WithDetails(details)
}
