// Package metrics provides Prometheus instrumentation for the dealer.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

var (
	// LiabilityUSD is the last USD liability read from the wallet.
	LiabilityUSD = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dealer_liability_usd",
		Help: "USD liability being hedged",
	})

	// ExposureUSD is the short notional of the hedge position.
	ExposureUSD = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dealer_exposure_usd",
		Help: "Short USD exposure on the exchange",
	})

	// CollateralUSD tracks total and used collateral.
	CollateralUSD = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dealer_collateral_usd",
		Help: "Trading account collateral in USD",
	}, []string{"kind"})

	// Ratio tracks exposure, leverage and margin ratios of the last cycle.
	Ratio = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dealer_ratio",
		Help: "Risk ratios computed on the last cycle",
	}, []string{"ratio"})

	// PriceUSD is the BTC price used by the last cycle.
	PriceUSD = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dealer_price_usd",
		Help: "BTC/USD price used for decisions",
	})

	// OrdersTotal counts hedge orders by side and final status.
	OrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealer_orders_total",
		Help: "Hedge orders placed",
	}, []string{"side", "status"})

	// TransfersTotal counts collateral transfers by direction and outcome.
	TransfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealer_transfers_total",
		Help: "Collateral transfers initiated",
	}, []string{"direction", "outcome"})

	// CycleErrors counts failed dealer cycles by step.
	CycleErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealer_cycle_errors_total",
		Help: "Dealer cycle steps that returned an error",
	}, []string{"step"})

	// CycleDuration tracks the wall time of one dealer cycle.
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dealer_cycle_duration_seconds",
		Help:    "Dealer cycle duration in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	// SkippedTicks counts scheduler ticks skipped because a cycle was
	// still running or the lease was held elsewhere.
	SkippedTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealer_skipped_ticks_total",
		Help: "Scheduler ticks skipped",
	}, []string{"reason"})

	// ExchangeCallDuration tracks exchange adapter calls by operation.
	ExchangeCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dealer_exchange_call_duration_seconds",
		Help:    "Exchange call latency in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"op", "result"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dealer_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealer_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dealer_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// ObserveExchangeCall matches exchange.Observer.
func ObserveExchangeCall(op string, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	ExchangeCallDuration.WithLabelValues(op, result).Observe(elapsed.Seconds())
}

// SetDecimal sets g from a decimal value.
func SetDecimal(g prometheus.Gauge, v decimal.Decimal) {
	f, _ := v.Float64()
	g.Set(f)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Route pattern keeps the path label bounded.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets WebSocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
