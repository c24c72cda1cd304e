package strategy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
)

// PositionResult reports one UpdatePosition call.
type PositionResult struct {
	Snapshot     RiskSnapshot          `json:"snapshot"`
	Decision     HedgingOrderDecision  `json:"decision"`
	Order        *PlacedOrder          `json:"order,omitempty"`
	Confirmation *HedgingOrderDecision `json:"confirmation,omitempty"`
	Simulated    bool                  `json:"simulated"`
}

// UpdatePosition brings the short exposure back inside the ratio brackets.
// After a filled order the decision is recomputed from a fresh snapshot;
// if it still demands a trade the call fails with ErrHedgeNotConverged.
func (e *Engine) UpdatePosition(ctx context.Context, liabilityInUSD, priceInUSD decimal.Decimal) (PositionResult, error) {
	var res PositionResult
	if liabilityInUSD.IsNegative() {
		return res, fmt.Errorf("update position: %w: %s", ErrNegativeLiability, liabilityInUSD)
	}

	snap, err := e.Snapshot(ctx, priceInUSD)
	if err != nil {
		return res, fmt.Errorf("update position: %w", err)
	}
	res.Snapshot = snap
	res.Decision = GetHedgingOrderIfNeeded(liabilityInUSD, snap.ExposureInUSD, snap.LastPriceInUSD, e.bounds)

	log := slog.With(
		"liability_usd", liabilityInUSD.StringFixed(2),
		"exposure_usd", snap.ExposureInUSD.StringFixed(2),
		"exposure_ratio", res.Decision.ExposureRatio.StringFixed(4),
		"side", res.Decision.TradeSide,
		"contracts", res.Decision.OrderSizeInContract,
	)

	if !res.Decision.IsTrade() {
		log.Debug("position within brackets")
		return res, nil
	}
	if e.opts.Simulation {
		res.Simulated = true
		log.Info("simulation: hedge order not placed",
			"size_usd", res.Decision.OrderSizeInUSD.StringFixed(2),
			"size_btc", res.Decision.OrderSizeInBTC.String(),
		)
		return res, nil
	}

	placed, err := e.PlaceHedgingOrder(ctx, res.Decision)
	res.Order = placed
	if err != nil {
		log.Error("hedge order failed", "error", err)
		return res, fmt.Errorf("update position: %w", err)
	}

	confirm, err := e.Snapshot(ctx, priceInUSD)
	if err != nil {
		return res, fmt.Errorf("update position: confirmation: %w", err)
	}
	decision := GetHedgingOrderIfNeeded(liabilityInUSD, confirm.ExposureInUSD, confirm.LastPriceInUSD, e.bounds)
	res.Confirmation = &decision
	if decision.IsTrade() {
		log.Error("hedge did not converge after filled order",
			"exchange_order_id", placed.Order.ExchangeOrderID,
			"confirm_exposure_usd", confirm.ExposureInUSD.StringFixed(2),
			"confirm_side", decision.TradeSide,
			"confirm_contracts", decision.OrderSizeInContract,
		)
		return res, fmt.Errorf("update position: %w", ErrHedgeNotConverged)
	}

	log.Info("position updated",
		"exchange_order_id", placed.Order.ExchangeOrderID,
		"new_exposure_usd", confirm.ExposureInUSD.StringFixed(2),
	)
	return res, nil
}
