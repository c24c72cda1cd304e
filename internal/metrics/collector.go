package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/atmx/dealer/internal/model"
)

// StatsSource is the part of store.Store the collector reads.
type StatsSource interface {
	GetStats(ctx context.Context) (*model.Stats, error)
}

// StatsCollector exports the audit aggregates at scrape time.
type StatsCollector struct {
	source  StatsSource
	timeout time.Duration

	orders    *prometheus.Desc
	transfers *prometheus.Desc
	inFlight  *prometheus.Desc
	fees      *prometheus.Desc
}

// NewStatsCollector creates a collector; register it with
// prometheus.MustRegister.
func NewStatsCollector(source StatsSource) *StatsCollector {
	return &StatsCollector{
		source:  source,
		timeout: 5 * time.Second,
		orders: prometheus.NewDesc("dealer_audit_orders",
			"Hedge orders recorded in the audit store", []string{"result"}, nil),
		transfers: prometheus.NewDesc("dealer_audit_transfers",
			"Transfers recorded in the audit store", []string{"kind"}, nil),
		inFlight: prometheus.NewDesc("dealer_in_flight_pending",
			"On-chain transfers awaiting exchange confirmation", nil, nil),
		fees: prometheus.NewDesc("dealer_fees_btc",
			"Fees paid in BTC", []string{"kind"}, nil),
	}
}

func (c *StatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.orders
	ch <- c.transfers
	ch <- c.inFlight
	ch <- c.fees
}

func (c *StatsCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	st, err := c.source.GetStats(ctx)
	if err != nil {
		slog.Warn("stats collection failed", "err", err)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.orders, prometheus.GaugeValue, float64(st.OrdersSucceeded), "succeeded")
	ch <- prometheus.MustNewConstMetric(c.orders, prometheus.GaugeValue, float64(st.OrdersTotal-st.OrdersSucceeded), "failed")
	ch <- prometheus.MustNewConstMetric(c.transfers, prometheus.GaugeValue, float64(st.InternalTransfersTotal), "internal")
	ch <- prometheus.MustNewConstMetric(c.transfers, prometheus.GaugeValue, float64(st.ExternalTransfersTotal), "external")
	ch <- prometheus.MustNewConstMetric(c.inFlight, prometheus.GaugeValue, float64(st.InFlightPending))
	ch <- prometheus.MustNewConstMetric(c.fees, prometheus.CounterValue, toFloat(st.TradingFeesBTC), "trading")
	ch <- prometheus.MustNewConstMetric(c.fees, prometheus.CounterValue, toFloat(st.FundingFeesBTC), "funding")
	ch <- prometheus.MustNewConstMetric(c.fees, prometheus.CounterValue, toFloat(st.WithdrawalFeesBTC), "withdrawal")
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
