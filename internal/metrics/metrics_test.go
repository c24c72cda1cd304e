package metrics_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/dealer/internal/metrics"
	"github.com/atmx/dealer/internal/model"
)

type statsFunc func(ctx context.Context) (*model.Stats, error)

func (f statsFunc) GetStats(ctx context.Context) (*model.Stats, error) { return f(ctx) }

func TestStatsCollector(t *testing.T) {
	c := metrics.NewStatsCollector(statsFunc(func(context.Context) (*model.Stats, error) {
		return &model.Stats{
			OrdersTotal:            5,
			OrdersSucceeded:        3,
			InternalTransfersTotal: 2,
			ExternalTransfersTotal: 1,
			InFlightPending:        1,
			TradingFeesBTC:         decimal.RequireFromString("0.0002"),
			FundingFeesBTC:         decimal.RequireFromString("0.0001"),
			WithdrawalFeesBTC:      decimal.RequireFromString("0.0005"),
		}, nil
	}))

	expected := `
# HELP dealer_audit_orders Hedge orders recorded in the audit store
# TYPE dealer_audit_orders gauge
dealer_audit_orders{result="failed"} 2
dealer_audit_orders{result="succeeded"} 3
# HELP dealer_in_flight_pending On-chain transfers awaiting exchange confirmation
# TYPE dealer_in_flight_pending gauge
dealer_in_flight_pending 1
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"dealer_audit_orders", "dealer_in_flight_pending"))
	assert.Equal(t, 8, testutil.CollectAndCount(c))
}

func TestStatsCollector_SourceError(t *testing.T) {
	c := metrics.NewStatsCollector(statsFunc(func(context.Context) (*model.Stats, error) {
		return nil, errors.New("db down")
	}))
	assert.Equal(t, 0, testutil.CollectAndCount(c))
}

func TestObserveExchangeCall(t *testing.T) {
	before := testutil.CollectAndCount(metrics.ExchangeCallDuration)
	metrics.ObserveExchangeCall("fetch_ticker_test", 10*time.Millisecond, nil)
	metrics.ObserveExchangeCall("fetch_ticker_test", 10*time.Millisecond, errors.New("boom"))
	assert.Equal(t, before+2, testutil.CollectAndCount(metrics.ExchangeCallDuration))
}

func TestSetDecimal(t *testing.T) {
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_gauge"})
	metrics.SetDecimal(g, decimal.RequireFromString("1.25"))
	assert.Equal(t, 1.25, testutil.ToFloat64(g))
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(metrics.Middleware)
	r.Get("/orders/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/42", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(
		metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/orders/{id}", "418")))
}
