// Package dealer runs one hedging cycle: it reads the wallet liability and
// the BTC price, then asks the strategy engine to fix the position and the
// collateral, and finally reconciles in-flight transfers and the ledger.
package dealer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/dealer/internal/metrics"
	"github.com/atmx/dealer/internal/price"
	"github.com/atmx/dealer/internal/strategy"
	"github.com/atmx/dealer/internal/wallet"
)

// Event types published by the dealer. They match the api package.
const (
	EventCycleCompleted    = "cycle_completed"
	EventOrderPlaced       = "order_placed"
	EventTransferInitiated = "transfer_initiated"
)

// Publisher receives cycle events. *api.Hub satisfies it.
type Publisher interface {
	Publish(eventType string, data any)
}

// Status is the outcome of the last cycle.
type Status struct {
	StartedAt          time.Time                `json:"started_at"`
	FinishedAt         time.Time                `json:"finished_at"`
	LiabilityInUSD     decimal.Decimal          `json:"liability_usd"`
	PriceInUSD         decimal.Decimal          `json:"price_usd"`
	PriceSource        string                   `json:"price_source"`
	Position           *strategy.PositionResult `json:"position,omitempty"`
	Leverage           *strategy.LeverageResult `json:"leverage,omitempty"`
	CompletedTransfers int                      `json:"completed_transfers"`
	SyncedTransactions int                      `json:"synced_transactions"`
	Simulation         bool                     `json:"simulation"`
	Errors             []string                 `json:"errors,omitempty"`
}

// Dealer wires the wallet and the price sources to the engine.
type Dealer struct {
	engine       *strategy.Engine
	wallet       wallet.Wallet
	prices       *price.Cache
	ticker       price.TickerSource
	instrumentID string
	events       Publisher

	mu   sync.RWMutex
	last *Status
}

// New creates a dealer. prices may be nil, in which case every cycle reads
// the live ticker; events may be nil.
func New(engine *strategy.Engine, w wallet.Wallet, prices *price.Cache, ticker price.TickerSource, instrumentID string, events Publisher) *Dealer {
	return &Dealer{
		engine:       engine,
		wallet:       w,
		prices:       prices,
		ticker:       ticker,
		instrumentID: instrumentID,
		events:       events,
	}
}

// Status returns the last cycle outcome, or nil before the first one.
func (d *Dealer) Status() *Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.last
}

// Tick runs one cycle. Position and leverage are updated independently:
// a failed hedge does not prevent the collateral from being rebalanced.
// All step errors are joined into the returned error.
func (d *Dealer) Tick(ctx context.Context) error {
	st := &Status{StartedAt: time.Now().UTC(), Simulation: d.engine.Simulation()}
	var errs []error
	fail := func(step string, err error) {
		metrics.CycleErrors.WithLabelValues(step).Inc()
		errs = append(errs, fmt.Errorf("%s: %w", step, err))
		st.Errors = append(st.Errors, fmt.Sprintf("%s: %v", step, err))
	}
	defer func() {
		st.FinishedAt = time.Now().UTC()
		d.mu.Lock()
		d.last = st
		d.mu.Unlock()
		d.publish(EventCycleCompleted, st)
	}()

	liability, err := d.wallet.GetLiabilityInUSD(ctx)
	if err != nil {
		fail("liability", err)
		return errors.Join(errs...)
	}
	st.LiabilityInUSD = liability
	metrics.SetDecimal(metrics.LiabilityUSD, liability)

	px, source, err := d.price(ctx)
	if err != nil {
		fail("price", err)
		return errors.Join(errs...)
	}
	st.PriceInUSD, st.PriceSource = px, source
	metrics.SetDecimal(metrics.PriceUSD, px)

	pos, err := d.engine.UpdatePosition(ctx, liability, px)
	st.Position = &pos
	d.recordPosition(pos)
	if err != nil {
		fail("position", err)
	}

	lev, err := d.updateLeverage(ctx, liability, px)
	st.Leverage = lev
	d.recordLeverage(lev, err)
	if err != nil {
		fail("leverage", err)
	}

	if n, err := d.engine.CheckInFlightTransfers(ctx); err != nil {
		fail("in_flight", err)
	} else {
		st.CompletedTransfers = n
	}

	n, err := d.engine.SyncTransactions(ctx)
	st.SyncedTransactions = n
	if err != nil {
		fail("transactions", err)
	}

	slog.Info("cycle completed",
		"liability_usd", liability.StringFixed(2),
		"price_usd", px.StringFixed(2),
		"price_source", source,
		"hedge_side", pos.Decision.TradeSide,
		"errors", len(errs),
	)
	return errors.Join(errs...)
}

// price prefers the fresh cached mid and falls back to the live ticker.
func (d *Dealer) price(ctx context.Context) (decimal.Decimal, string, error) {
	if d.prices != nil {
		if mid, err := d.prices.Mid(); err == nil {
			return mid, "cache", nil
		}
	}
	t, err := d.ticker.FetchTicker(ctx, d.instrumentID)
	if err != nil {
		return decimal.Zero, "", err
	}
	px := t.Last
	if t.Bid.IsPositive() && t.Ask.IsPositive() {
		px = t.Bid.Add(t.Ask).Div(decimal.NewFromInt(2))
	}
	if !px.IsPositive() {
		return decimal.Zero, "", fmt.Errorf("%w: ticker price %s", strategy.ErrInvalidPrice, px)
	}
	if d.prices != nil {
		d.prices.Set(price.Quote{
			InstrumentID: t.InstrumentID,
			Bid:          t.Bid,
			Ask:          t.Ask,
			Last:         t.Last,
			UpdatedAt:    t.Timestamp,
		})
	}
	return px, "ticker", nil
}

func (d *Dealer) updateLeverage(ctx context.Context, liability, px decimal.Decimal) (*strategy.LeverageResult, error) {
	res, err := d.engine.UpdateLeverage(ctx, liability, px, d.withdrawAddress, d.withdrawBookkeeping, d.depositOnExchange)
	return &res, err
}

// withdrawAddress is the operator wallet address withdrawals are sent to.
func (d *Dealer) withdrawAddress(ctx context.Context) (string, error) {
	address, err := d.wallet.GetOnChainDepositAddress(ctx)
	if err != nil {
		return "", fmt.Errorf("withdraw address: %w", err)
	}
	return address, nil
}

// withdrawBookkeeping records a withdrawal that left the exchange for the
// operator wallet.
func (d *Dealer) withdrawBookkeeping(_ context.Context, sizeInBTC decimal.Decimal) error {
	slog.Info("withdrawal sent to wallet", "size_btc", sizeInBTC.String())
	d.publish(EventTransferInitiated, map[string]string{
		"direction": "withdraw",
		"size_btc":  sizeInBTC.String(),
	})
	return nil
}

// depositOnExchange pays an exchange deposit address from the wallet.
func (d *Dealer) depositOnExchange(ctx context.Context, address string, sizeInSats int64, memo string) error {
	if err := d.wallet.PayOnChain(ctx, address, sizeInSats, memo); err != nil {
		return err
	}
	slog.Info("on-chain deposit sent", "address", address, "sats", sizeInSats)
	d.publish(EventTransferInitiated, map[string]any{
		"direction": "deposit",
		"address":   address,
		"sats":      sizeInSats,
	})
	return nil
}

func (d *Dealer) recordPosition(res strategy.PositionResult) {
	snap := res.Snapshot
	metrics.SetDecimal(metrics.ExposureUSD, snap.ExposureInUSD)
	metrics.SetDecimal(metrics.CollateralUSD.WithLabelValues("total"), snap.TotalCollateralInUSD)
	metrics.SetDecimal(metrics.CollateralUSD.WithLabelValues("used"), snap.UsedCollateralInUSD)
	metrics.SetDecimal(metrics.Ratio.WithLabelValues("exposure"), res.Decision.ExposureRatio)

	if res.Order == nil {
		return
	}
	o := res.Order.Order
	metrics.OrdersTotal.WithLabelValues(o.Side, o.StatusCode).Inc()
	d.publish(EventOrderPlaced, o)
}

func (d *Dealer) recordLeverage(res *strategy.LeverageResult, err error) {
	if res == nil {
		return
	}
	dec := res.Decision
	metrics.SetDecimal(metrics.Ratio.WithLabelValues("leverage"), dec.LeverageRatio)
	metrics.SetDecimal(metrics.Ratio.WithLabelValues("liability"), dec.LiabilityRatio)
	metrics.SetDecimal(metrics.Ratio.WithLabelValues("margin"), dec.MarginRatio)

	if res.Simulated || !dec.IsTransfer() {
		return
	}
	outcome := "on_chain"
	switch {
	case err != nil:
		outcome = "failed"
	case dec.TransferSide == strategy.TransferDeposit && res.DepositAddress == "":
		outcome = "internal"
	}
	metrics.TransfersTotal.WithLabelValues(string(dec.TransferSide), outcome).Inc()
}

func (d *Dealer) publish(eventType string, data any) {
	if d.events != nil {
		d.events.Publish(eventType, data)
	}
}
