package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(minRequests int, ratio float64, openFor time.Duration) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	b := NewBreaker(minRequests, ratio, openFor)
	b.now = clock.now
	return b, clock
}

func TestBreakerTransitions(t *testing.T) {
	breaker, clock := newTestBreaker(2, 0.5, time.Minute)
	ctx := context.Background()

	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)
	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)

	require.Equal(t, Open, breaker.State())
	require.False(t, breaker.Allow(ctx), "breaker should refuse while open")

	clock.advance(time.Minute)
	require.True(t, breaker.Allow(ctx), "breaker should let one probe through after cool off")
	require.Equal(t, HalfOpen, breaker.State())
	require.False(t, breaker.Allow(ctx), "only one probe at a time")

	breaker.Report(ctx, true)
	require.Equal(t, Closed, breaker.State())
	require.True(t, breaker.Allow(ctx))
}

func TestBreakerReopensOnFailedProbe(t *testing.T) {
	breaker, clock := newTestBreaker(1, 0.5, time.Second)
	ctx := context.Background()

	breaker.Report(ctx, false)
	clock.advance(time.Second)
	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)

	require.Equal(t, Open, breaker.State())
	require.False(t, breaker.Allow(ctx))
}

func TestBreakerDoClassifiesErrors(t *testing.T) {
	breaker, _ := newTestBreaker(1, 0.5, time.Minute)
	ctx := context.Background()
	notFound := errors.New("not found")
	ignoreNotFound := func(err error) bool { return !errors.Is(err, notFound) }

	err := breaker.Do(ctx, func(context.Context) error { return notFound }, ignoreNotFound)
	require.ErrorIs(t, err, notFound)
	require.Equal(t, Closed, breaker.State())

	err = breaker.Do(ctx, func(context.Context) error { return errors.New("connection refused") }, ignoreNotFound)
	require.Error(t, err)
	require.Equal(t, Open, breaker.State())

	called := false
	err = breaker.Do(ctx, func(context.Context) error { called = true; return nil }, nil)
	require.ErrorIs(t, err, ErrOpenCircuit)
	require.False(t, called)
}

func TestBreakerMetricsTransitions(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics("test", reg)
	breaker, clock := newTestBreaker(1, 0.5, 20*time.Millisecond)
	breaker.WithTarget("catalog").WithMetrics(metrics)
	ctx := context.Background()

	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.State.WithLabelValues("catalog")))

	clock.advance(20 * time.Millisecond)
	require.True(t, breaker.Allow(ctx))
	require.Equal(t, 2.0, testutil.ToFloat64(metrics.State.WithLabelValues("catalog")))

	breaker.Report(ctx, true)
	require.Equal(t, 0.0, testutil.ToFloat64(metrics.State.WithLabelValues("catalog")))

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Opened.WithLabelValues("catalog")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Transitions.WithLabelValues("catalog", "closed", "open")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Transitions.WithLabelValues("catalog", "open", "half_open")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Transitions.WithLabelValues("catalog", "half_open", "closed")))

	again := NewMetrics("test", reg)
	require.Same(t, metrics.State, again.State)
}
