package obs_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/checkout-pricing/internal/obs"
)

func TestPricingMetricsRecord(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := obs.NewPricingMetrics("pricing", registry)

	m.CartPriced("gross", "horizontal", 2*time.Millisecond)
	m.CartPriced("gross", "horizontal", time.Millisecond)
	m.ReconciliationMismatch("clamped")
	m.UnknownTaxRate()
	m.CacheLookup("hit", 3)
	m.CacheLookup("miss", 0)
	m.CatalogQuery("SELECT", time.Millisecond)

	require.Equal(t, float64(2), testutil.ToFloat64(m.CartsPriced.WithLabelValues("gross", "horizontal")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.ReconciliationMismatches.WithLabelValues("clamped")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.UnknownTaxRates))
	require.Equal(t, float64(3), testutil.ToFloat64(m.PriceCacheLookups.WithLabelValues("hit")))
	require.Equal(t, 1, testutil.CollectAndCount(m.PriceCacheLookups))
	require.Equal(t, 1, testutil.CollectAndCount(m.CatalogQueryDuration))
}

func TestNilPricingMetricsIsSafe(t *testing.T) {
	var m *obs.PricingMetrics
	require.NotPanics(t, func() {
		m.CartPriced("net", "vertical", time.Millisecond)
		m.ReconciliationMismatch("rejected")
		m.UnknownTaxRate()
		m.CacheLookup("error", 1)
		m.CatalogQuery("SELECT", time.Millisecond)
	})
}
