package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/checkout-pricing/internal/catalog"
	"github.com/noah-isme/checkout-pricing/internal/checkout"
	"github.com/noah-isme/checkout-pricing/internal/delivery"
	"github.com/noah-isme/checkout-pricing/internal/obs"
	"github.com/noah-isme/checkout-pricing/internal/price"
)

// Pricer runs one pricing pass: resolve line items, price the delivery once, aggregate.
// A pass only reads its inputs, so one Pricer may serve concurrent carts.
type Pricer struct {
	Resolver   Resolver
	Delivery   delivery.Calculator
	Aggregator Aggregator
	Logger     zerolog.Logger
	Metrics    *obs.PricingMetrics
}

// NewPricer wires the pass components with a shared logger and metrics.
func NewPricer(logger zerolog.Logger, metrics *obs.PricingMetrics, strict bool) *Pricer {
	return &Pricer{
		Resolver:   Resolver{Logger: logger, Metrics: metrics},
		Delivery:   delivery.Calculator{Logger: logger},
		Aggregator: Aggregator{Strict: strict, Logger: logger, Metrics: metrics},
		Logger:     logger,
		Metrics:    metrics,
	}
}

// PriceCart prices items under cctx and returns the priced cart.
func (p *Pricer) PriceCart(ctx context.Context, cctx *checkout.Context, items []LineItem) (Cart, error) {
	return p.Calculate(ctx, cctx, Cart{LineItems: items})
}

// Calculate prices c under cctx. The input cart is not modified.
func (p *Pricer) Calculate(ctx context.Context, cctx *checkout.Context, c Cart) (Cart, error) {
	if cctx == nil {
		return Cart{}, fmt.Errorf("%w: nil checkout context", checkout.ErrConfigurationMissing)
	}
	_, span := otel.Tracer("cart.pricer").Start(ctx, "cart.price")
	defer span.End()
	start := time.Now()

	out, err := p.calculate(cctx, c)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Cart{}, err
	}

	state := string(out.Price.TaxState)
	method := string(cctx.SalesChannel().TaxCalculation)
	span.SetAttributes(
		attribute.String("cart.tax_state", state),
		attribute.String("cart.tax_method", method),
		attribute.Int("cart.line_items", len(out.LineItems)),
		attribute.Bool("cart.needs_review", out.Price.NeedsReview),
	)
	p.Metrics.CartPriced(state, method, time.Since(start))
	p.Logger.Debug().
		Str("token", out.Token).
		Str("tax_state", state).
		Str("gross", out.Price.GrossTotal.String()).
		Str("net", out.Price.NetTotal.String()).
		Bool("needs_review", out.Price.NeedsReview).
		Msg("cart priced")
	return out, nil
}

func (p *Pricer) calculate(cctx *checkout.Context, c Cart) (Cart, error) {
	out := Cart{Name: c.Name, Token: c.Token, LineItems: make([]LineItem, 0, len(c.LineItems))}
	if out.Token == "" {
		out.Token = cctx.Token()
	}

	seen := make(map[string]struct{}, len(c.LineItems))
	positions := make([]delivery.Position, 0, len(c.LineItems))
	var diags []price.Diagnostic
	for _, item := range c.LineItems {
		if _, dup := seen[item.ID]; dup {
			return Cart{}, fmt.Errorf("%w: %s", ErrDuplicateLineItem, item.ID)
		}
		seen[item.ID] = struct{}{}

		calculated, itemDiags, err := p.Resolver.Resolve(cctx, item)
		if err != nil {
			return Cart{}, err
		}
		diags = append(diags, itemDiags...)

		priced := item.clone()
		priced.Price = &calculated
		out.LineItems = append(out.LineItems, priced)
		positions = append(positions, delivery.Position{
			Quantity: item.Quantity,
			Good:     item.Good,
			Weight:   item.Weight,
			Price:    calculated,
		})
	}

	var shipping price.Collection
	if d := p.Delivery.Calculate(cctx, positions); d != nil {
		out.Deliveries = []delivery.Delivery{*d}
		shipping = price.Collection{d.Price}
	}

	cartPrice, err := p.Aggregator.Aggregate(cctx, out.prices(), shipping, diags)
	if err != nil {
		return Cart{}, err
	}
	out.Price = cartPrice
	return out, nil
}

// PriceWithLookup fills the price definitions of product line items from lookup in one batch,
// then prices the cart. Items that already carry a price or definition are left alone.
func (p *Pricer) PriceWithLookup(ctx context.Context, cctx *checkout.Context, lookup catalog.PriceLookup, items []LineItem) (Cart, error) {
	var ids []string
	for _, item := range items {
		if item.Price == nil && item.Definition == nil && item.ProductID != "" {
			ids = append(ids, item.ProductID)
		}
	}
	if len(ids) == 0 {
		return p.PriceCart(ctx, cctx, items)
	}

	prices, err := lookup.Prices(ctx, ids)
	if err != nil {
		return Cart{}, err
	}
	resolved := make([]LineItem, len(items))
	for i, item := range items {
		resolved[i] = item
		if item.Price != nil || item.Definition != nil || item.ProductID == "" {
			continue
		}
		pp, ok := prices[item.ProductID]
		if !ok {
			return Cart{}, fmt.Errorf("%w: missing %s", catalog.ErrIncompleteBatch, item.ProductID)
		}
		resolved[i] = item.WithDefinition(pp.Definition(item.Quantity, cctx.TaxState()))
		if resolved[i].Weight.IsZero() {
			resolved[i].Weight = pp.Weight
		}
	}
	return p.PriceCart(ctx, cctx, resolved)
}
