package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atmx/dealer/internal/exchange"
	"github.com/atmx/dealer/internal/model"
)

// Order audit status codes.
const (
	OrderSubmitted = "submitted"
	OrderPolling   = "polling"
	OrderClosed    = "closed"
	OrderCanceled  = "canceled"
	OrderTimedOut  = "timed_out"
	OrderRejected  = "rejected"
	OrderAborted   = "aborted"
)

// PlacedOrder is the outcome of PlaceHedgingOrder.
type PlacedOrder struct {
	Order model.Order         `json:"order"`
	State exchange.OrderState `json:"state"`
	Polls int                 `json:"polls"`
}

// PlaceHedgingOrder submits the market order of a trade decision and polls
// it until it is closed, canceled, or the poll budget is spent.
//
// The instrument face value and minimum size are checked again first. An
// Order audit row is written before submission and updated with the
// exchange id as soon as it is known, then with the final state. A failed
// order is never retried here.
func (e *Engine) PlaceHedgingOrder(ctx context.Context, d HedgingOrderDecision) (*PlacedOrder, error) {
	if !d.IsTrade() {
		return nil, fmt.Errorf("place order: decision is %s", d.TradeSide)
	}
	if d.OrderSizeInContract < e.bounds.MinimumOrderSizeInContract {
		return nil, fmt.Errorf("place order: %w: %d contracts", ErrBelowMinimumSize, d.OrderSizeInContract)
	}

	inst, err := e.exchange.FetchInstrument(ctx, e.opts.InstrumentID)
	if err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}
	if !inst.ContractValue.Equal(e.bounds.ContractFaceValue) {
		return nil, fmt.Errorf("place order: %w: face value %s, configured %s",
			ErrInstrumentMismatch, inst.ContractValue, e.bounds.ContractFaceValue)
	}
	size := decimal.NewFromInt(d.OrderSizeInContract)
	if size.LessThan(inst.MinSize) {
		return nil, fmt.Errorf("place order: %w: %s contracts, exchange minimum %s",
			ErrBelowMinimumSize, size, inst.MinSize)
	}

	side := exchange.SideBuy
	if d.TradeSide == TradeSell {
		side = exchange.SideSell
	}

	now := e.now()
	order := model.Order{
		ID:           uuid.New().String(),
		InstrumentID: e.opts.InstrumentID,
		OrderType:    "market",
		Side:         string(side),
		Quantity:     size,
		TradeMode:    e.opts.TradeMode,
		StatusCode:   OrderSubmitted,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.store.InsertOrder(ctx, &order); err != nil {
		return nil, fmt.Errorf("place order: audit: %w", err)
	}

	res, err := e.exchange.CreateMarketOrder(ctx, exchange.OrderArgs{
		InstrumentID:  order.InstrumentID,
		Side:          side,
		Quantity:      size,
		TradeMode:     order.TradeMode,
		ClientOrderID: strings.ReplaceAll(order.ID, "-", ""),
	})
	if err != nil {
		e.finishOrder(ctx, &order, OrderRejected, err.Error(), false)
		return &PlacedOrder{Order: order}, fmt.Errorf("place order: %w", err)
	}

	order.ExchangeOrderID = res.ID
	e.finishOrder(ctx, &order, OrderPolling, "", false)

	slog.Info("hedge order submitted",
		"order_id", order.ID,
		"exchange_order_id", res.ID,
		"side", side,
		"contracts", d.OrderSizeInContract,
		"size_usd", d.OrderSizeInUSD.StringFixed(2),
	)

	placed := &PlacedOrder{Order: order}
	for placed.Polls < e.opts.MaxPolls {
		if err := sleep(ctx, e.opts.PollInterval); err != nil {
			e.finishOrder(ctx, &placed.Order, OrderAborted, err.Error(), false)
			return placed, fmt.Errorf("place order %s: %w", res.ID, err)
		}
		placed.Polls++

		state, err := e.exchange.FetchOrder(ctx, order.InstrumentID, res.ID)
		if err != nil {
			if exchange.IsValidation(err) {
				e.finishOrder(ctx, &placed.Order, OrderAborted, err.Error(), false)
				return placed, fmt.Errorf("place order %s: %w", res.ID, err)
			}
			slog.Warn("order poll failed",
				"exchange_order_id", res.ID,
				"poll", placed.Polls,
				"error", err,
			)
			continue
		}
		placed.State = state

		switch state.Status {
		case exchange.OrderStatusClosed:
			e.finishOrder(ctx, &placed.Order, OrderClosed, "", true)
			slog.Info("hedge order closed",
				"exchange_order_id", res.ID,
				"polls", placed.Polls,
				"filled", state.Filled.String(),
				"avg_price", state.AveragePrice.String(),
			)
			return placed, nil
		case exchange.OrderStatusCanceled:
			e.finishOrder(ctx, &placed.Order, OrderCanceled, "", false)
			return placed, fmt.Errorf("place order %s: %w", res.ID, ErrOrderCanceled)
		}
	}

	e.finishOrder(ctx, &placed.Order, OrderTimedOut,
		fmt.Sprintf("still open after %d polls", placed.Polls), false)
	return placed, fmt.Errorf("place order %s: %w", res.ID, ErrOrderTimedOut)
}

// finishOrder updates the audit row. A failed update is logged and the
// order flow continues: the row already exists for reconciliation.
func (e *Engine) finishOrder(ctx context.Context, o *model.Order, status, message string, success bool) {
	o.StatusCode = status
	o.StatusMessage = message
	o.Success = success
	o.UpdatedAt = e.now()
	if err := e.store.UpdateOrder(context.WithoutCancel(ctx), o); err != nil {
		slog.Error("order audit update failed",
			"order_id", o.ID,
			"status", status,
			"error", err,
		)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
