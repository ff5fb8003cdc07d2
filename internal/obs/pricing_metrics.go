package obs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PricingMetrics groups the collectors of the pricing core. A nil *PricingMetrics records nothing.
type PricingMetrics struct {
	CartsPriced              *prometheus.CounterVec
	CalculationDuration      *prometheus.HistogramVec
	ReconciliationMismatches *prometheus.CounterVec
	UnknownTaxRates          prometheus.Counter
	PriceCacheLookups        *prometheus.CounterVec
	CatalogQueryDuration     *prometheus.HistogramVec
}

// NewPricingMetrics registers the pricing collectors on reg (the default registerer when nil).
func NewPricingMetrics(namespace string, reg prometheus.Registerer) *PricingMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &PricingMetrics{
		CartsPriced: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "carts_priced_total",
			Help:      "Count of priced carts by tax state and calculation method.",
		}, []string{"tax_state", "method"})),
		CalculationDuration: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cart_calculation_duration_ms",
			Help:      "Latency of one cart pricing pass in milliseconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50},
		}, []string{"tax_state"})),
		ReconciliationMismatches: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tax_reconciliation_mismatch_total",
			Help:      "Count of carts whose tax total disagreed with gross minus net beyond tolerance.",
		}, []string{"outcome"})),
		UnknownTaxRates: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unknown_tax_rate_total",
			Help:      "Count of positions priced at 0% because their tax reference was unknown.",
		})),
		PriceCacheLookups: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_cache_lookups_total",
			Help:      "Count of product price cache lookups by result.",
		}, []string{"result"})),
		CatalogQueryDuration: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "catalog_query_duration_ms",
			Help:      "Latency of catalog database queries in milliseconds.",
			Buckets:   []float64{1, 2.5, 5, 10, 25, 50, 100, 250},
		}, []string{"operation"})),
	}
}

// CartPriced records one completed pricing pass.
func (m *PricingMetrics) CartPriced(state, method string, took time.Duration) {
	if m == nil {
		return
	}
	m.CartsPriced.WithLabelValues(state, method).Inc()
	m.CalculationDuration.WithLabelValues(state).Observe(DurationMillis(took))
}

// ReconciliationMismatch records a mismatch with its outcome, "clamped" or "rejected".
func (m *PricingMetrics) ReconciliationMismatch(outcome string) {
	if m == nil {
		return
	}
	m.ReconciliationMismatches.WithLabelValues(outcome).Inc()
}

// UnknownTaxRate records a position priced without its tax.
func (m *PricingMetrics) UnknownTaxRate() {
	if m == nil {
		return
	}
	m.UnknownTaxRates.Inc()
}

// CacheLookup records a price cache result: "hit", "miss" or "error".
func (m *PricingMetrics) CacheLookup(result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.PriceCacheLookups.WithLabelValues(result).Add(float64(n))
}

// CatalogQuery records the latency of a catalog query.
func (m *PricingMetrics) CatalogQuery(operation string, took time.Duration) {
	if m == nil {
		return
	}
	m.CatalogQueryDuration.WithLabelValues(operation).Observe(DurationMillis(took))
}
