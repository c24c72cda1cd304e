package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/atmx/dealer/internal/exchange"
)

// RiskSnapshot is the account state a decision is computed from. It is
// rebuilt on every cycle and never persisted.
type RiskSnapshot struct {
	LastPriceInUSD         decimal.Decimal    `json:"last_price_usd"`
	ExposureInUSD          decimal.Decimal    `json:"exposure_usd"`
	UsedCollateralInUSD    decimal.Decimal    `json:"used_collateral_usd"`
	TotalCollateralInUSD   decimal.Decimal    `json:"total_collateral_usd"`
	TotalAccountValueInUSD decimal.Decimal    `json:"total_account_value_usd"`
	Position               *exchange.Position `json:"position,omitempty"`
	Balance                *exchange.Balance  `json:"balance,omitempty"`
}

// Snapshot reads the position and the trading balance and prices them in
// USD. A missing or unreadable position counts as zero exposure. The last
// trade price of the position is preferred over price when available.
func (e *Engine) Snapshot(ctx context.Context, price decimal.Decimal) (RiskSnapshot, error) {
	if !price.IsPositive() {
		return RiskSnapshot{}, fmt.Errorf("snapshot: %w: %s", ErrInvalidPrice, price)
	}
	snap := RiskSnapshot{
		LastPriceInUSD:      price,
		ExposureInUSD:       decimal.Zero,
		UsedCollateralInUSD: decimal.Zero,
	}

	pos, err := e.exchange.FetchPosition(ctx, e.opts.InstrumentID)
	switch {
	case err == nil:
		snap.Position = &pos
		if pos.LastPriceUSD.IsPositive() {
			snap.LastPriceInUSD = pos.LastPriceUSD
		}
		snap.ExposureInUSD = shortExposure(pos)
		snap.UsedCollateralInUSD = pos.MarginBTC.Mul(snap.LastPriceInUSD)
	case errors.Is(err, exchange.ErrEmptyAPIResponse), errors.Is(err, exchange.ErrUnsupportedAPIResponse):
		slog.Info("no readable position, assuming zero exposure",
			"instrument", e.opts.InstrumentID,
			"reason", err,
		)
	default:
		return RiskSnapshot{}, fmt.Errorf("snapshot: %w", err)
	}

	bal, err := e.exchange.FetchBalance(ctx, e.opts.Currency)
	if err != nil {
		return RiskSnapshot{}, fmt.Errorf("snapshot: %w", err)
	}
	snap.Balance = &bal
	snap.TotalCollateralInUSD = bal.Total.Mul(snap.LastPriceInUSD)
	snap.TotalAccountValueInUSD = bal.TotalEquityUSD

	return snap, nil
}

// shortExposure is the USD notional of a short position. A long position
// yields a negative exposure so that the hedge decision sells it off.
func shortExposure(pos exchange.Position) decimal.Decimal {
	if pos.Quantity.IsPositive() {
		return pos.NotionalUSD.Abs().Neg()
	}
	return pos.NotionalUSD.Abs()
}
