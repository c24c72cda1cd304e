// Package strategy is the decision core of the dealer: it builds a risk
// snapshot from the exchange, decides hedge orders and collateral
// transfers against configured brackets, and drives their execution.
//
// All monetary values use shopspring/decimal — never float64 for money.
package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Bounds are the brackets of the hedging and rebalancing decisions.
//
// Ratio bounds bracket exposure / liability. Leverage bounds bracket
// exposure (or liability) / total collateral; LowBoundLeverage also serves
// as the floor of total / used collateral.
type Bounds struct {
	LowBoundRatioShorting      decimal.Decimal `yaml:"low_bound_ratio_shorting" json:"low_bound_ratio_shorting"`
	LowSafeboundRatioShorting  decimal.Decimal `yaml:"low_safebound_ratio_shorting" json:"low_safebound_ratio_shorting"`
	HighSafeboundRatioShorting decimal.Decimal `yaml:"high_safebound_ratio_shorting" json:"high_safebound_ratio_shorting"`
	HighBoundRatioShorting     decimal.Decimal `yaml:"high_bound_ratio_shorting" json:"high_bound_ratio_shorting"`

	LowBoundLeverage      decimal.Decimal `yaml:"low_bound_leverage" json:"low_bound_leverage"`
	LowSafeboundLeverage  decimal.Decimal `yaml:"low_safebound_leverage" json:"low_safebound_leverage"`
	HighSafeboundLeverage decimal.Decimal `yaml:"high_safebound_leverage" json:"high_safebound_leverage"`
	HighBoundLeverage     decimal.Decimal `yaml:"high_bound_leverage" json:"high_bound_leverage"`

	MinimumTransferAmountUSD   decimal.Decimal `yaml:"minimum_transfer_amount_usd" json:"minimum_transfer_amount_usd"`
	ContractFaceValue          decimal.Decimal `yaml:"contract_face_value" json:"contract_face_value"`
	MinimumOrderSizeInContract int64           `yaml:"minimum_order_size_in_contract" json:"minimum_order_size_in_contract"`
}

// DefaultBounds returns the production brackets for the BTC-USD swap.
func DefaultBounds() Bounds {
	return Bounds{
		LowBoundRatioShorting:      decimal.RequireFromString("0.95"),
		LowSafeboundRatioShorting:  decimal.RequireFromString("0.98"),
		HighSafeboundRatioShorting: decimal.RequireFromString("1.00"),
		HighBoundRatioShorting:     decimal.RequireFromString("1.03"),

		LowBoundLeverage:      decimal.RequireFromString("1.2"),
		LowSafeboundLeverage:  decimal.RequireFromString("1.8"),
		HighSafeboundLeverage: decimal.RequireFromString("2.25"),
		HighBoundLeverage:     decimal.RequireFromString("3"),

		MinimumTransferAmountUSD:   decimal.RequireFromString("100"),
		ContractFaceValue:          decimal.RequireFromString("100"),
		MinimumOrderSizeInContract: 1,
	}
}

// Validate checks that every bound is positive and that both brackets are
// ordered low ≤ low-safe ≤ high-safe ≤ high.
func (b Bounds) Validate() error {
	positive := map[string]decimal.Decimal{
		"low_bound_ratio_shorting":      b.LowBoundRatioShorting,
		"low_safebound_ratio_shorting":  b.LowSafeboundRatioShorting,
		"high_safebound_ratio_shorting": b.HighSafeboundRatioShorting,
		"high_bound_ratio_shorting":     b.HighBoundRatioShorting,
		"low_bound_leverage":            b.LowBoundLeverage,
		"low_safebound_leverage":        b.LowSafeboundLeverage,
		"high_safebound_leverage":       b.HighSafeboundLeverage,
		"high_bound_leverage":           b.HighBoundLeverage,
		"minimum_transfer_amount_usd":   b.MinimumTransferAmountUSD,
		"contract_face_value":           b.ContractFaceValue,
	}
	for name, v := range positive {
		if !v.IsPositive() {
			return fmt.Errorf("bounds: %s must be positive, got %s", name, v)
		}
	}
	if b.MinimumOrderSizeInContract < 1 {
		return fmt.Errorf("bounds: minimum_order_size_in_contract must be at least 1, got %d", b.MinimumOrderSizeInContract)
	}
	if err := ordered("ratio_shorting", b.LowBoundRatioShorting, b.LowSafeboundRatioShorting,
		b.HighSafeboundRatioShorting, b.HighBoundRatioShorting); err != nil {
		return err
	}
	return ordered("leverage", b.LowBoundLeverage, b.LowSafeboundLeverage,
		b.HighSafeboundLeverage, b.HighBoundLeverage)
}

func ordered(name string, low, lowSafe, highSafe, high decimal.Decimal) error {
	if low.GreaterThan(lowSafe) || lowSafe.GreaterThan(highSafe) || highSafe.GreaterThan(high) {
		return fmt.Errorf("bounds: %s brackets out of order: %s ≤ %s ≤ %s ≤ %s does not hold",
			name, low, lowSafe, highSafe, high)
	}
	return nil
}
