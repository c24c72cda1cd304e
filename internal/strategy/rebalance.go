package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/atmx/dealer/internal/units"
)

// TransferSide is the outcome of the rebalance decision.
type TransferSide string

const (
	TransferDeposit    TransferSide = "deposit"
	TransferWithdraw   TransferSide = "withdraw"
	TransferNoTransfer TransferSide = "no_transfer"
)

// Decision table rows. BranchNone is the fall-through.
const (
	BranchNone = iota
	BranchFundEmptyAccount
	BranchDrainIdleCollateral
	BranchLiabilityOverLeveraged
	BranchExposureUnderLeveraged
	BranchExposureOverLeveraged
	BranchMarginBelowFloor
)

// RebalanceDecision is a pure function of the snapshot and the bounds.
// Ratios whose denominator is zero are reported as zero.
type RebalanceDecision struct {
	LiabilityRatio decimal.Decimal `json:"liability_ratio"`
	LeverageRatio  decimal.Decimal `json:"leverage_ratio"`
	MarginRatio    decimal.Decimal `json:"margin_ratio"`
	LowBracket     decimal.Decimal `json:"low_bracket"`
	HighBracket    decimal.Decimal `json:"high_bracket"`

	TransferSide      TransferSide    `json:"transfer_side"`
	TransferSizeInUSD decimal.Decimal `json:"transfer_size_usd"`
	TransferSizeInBTC decimal.Decimal `json:"transfer_size_btc"`
	NewLiabilityRatio decimal.Decimal `json:"new_liability_ratio"`
	NewLeverageRatio  decimal.Decimal `json:"new_leverage_ratio"`
	NewMarginRatio    decimal.Decimal `json:"new_margin_ratio"`

	Branch int `json:"branch"`
}

// IsTransfer reports whether the decision moves a non-zero amount.
func (d RebalanceDecision) IsTransfer() bool {
	return d.TransferSide != TransferNoTransfer && d.TransferSizeInBTC.IsPositive()
}

// GetRebalanceTransferIfNeeded evaluates the collateral decision table;
// the first matching row wins:
//
//  1. no exposure, no collateral, liability over half a contract: deposit to liability / high-safe leverage
//  2. no exposure, some collateral, liability under the minimum transfer: withdraw everything
//  3. liability over collateral × high leverage: deposit to liability / high-safe leverage
//  4. exposure under collateral × low leverage: withdraw to exposure / low-safe leverage
//  5. exposure over collateral × high leverage: deposit to exposure / high-safe leverage
//  6. collateral under used collateral × low leverage: deposit to used × low-safe leverage
//
// Conditions are compared multiplicatively so a zero collateral never
// divides; it falls into row 1 or 3 whenever there is a liability to
// back. Withdrawals floor to the satoshi, deposits round to nearest.
func GetRebalanceTransferIfNeeded(liability, exposure, usedCollateral, totalCollateral, price decimal.Decimal, b Bounds) RebalanceDecision {
	d := RebalanceDecision{
		LiabilityRatio:    ratio(liability, totalCollateral),
		LeverageRatio:     ratio(exposure, totalCollateral),
		MarginRatio:       ratio(totalCollateral, usedCollateral),
		LowBracket:        b.LowBoundLeverage,
		HighBracket:       b.HighBoundLeverage,
		TransferSide:      TransferNoTransfer,
		TransferSizeInUSD: decimal.Zero,
		TransferSizeInBTC: decimal.Zero,
	}

	halfContract := b.ContractFaceValue.Div(decimal.NewFromInt(2))
	var target decimal.Decimal

	switch {
	case exposure.IsZero() && totalCollateral.IsZero() && liability.GreaterThan(halfContract):
		d.Branch = BranchFundEmptyAccount
		d.TransferSide = TransferDeposit
		target = liability.Div(b.HighSafeboundLeverage)
	case exposure.IsZero() && totalCollateral.IsPositive() &&
		!liability.IsNegative() && liability.LessThan(b.MinimumTransferAmountUSD):
		d.Branch = BranchDrainIdleCollateral
		d.TransferSide = TransferWithdraw
		target = decimal.Zero
	case liability.GreaterThan(totalCollateral.Mul(b.HighBoundLeverage)):
		d.Branch = BranchLiabilityOverLeveraged
		d.TransferSide = TransferDeposit
		target = liability.Div(b.HighSafeboundLeverage)
	case exposure.LessThan(totalCollateral.Mul(b.LowBoundLeverage)):
		d.Branch = BranchExposureUnderLeveraged
		d.TransferSide = TransferWithdraw
		target = exposure.Div(b.LowSafeboundLeverage)
	case exposure.GreaterThan(totalCollateral.Mul(b.HighBoundLeverage)):
		d.Branch = BranchExposureOverLeveraged
		d.TransferSide = TransferDeposit
		target = exposure.Div(b.HighSafeboundLeverage)
	case totalCollateral.LessThan(usedCollateral.Mul(b.LowBoundLeverage)):
		d.Branch = BranchMarginBelowFloor
		d.TransferSide = TransferDeposit
		target = usedCollateral.Mul(b.LowSafeboundLeverage)
	default:
		d.Branch = BranchNone
	}

	newCollateral := totalCollateral
	switch d.TransferSide {
	case TransferDeposit:
		d.TransferSizeInUSD = target.Sub(totalCollateral)
		if price.IsPositive() {
			d.TransferSizeInBTC = units.RoundBTC(d.TransferSizeInUSD.Div(price))
		}
		newCollateral = target
	case TransferWithdraw:
		d.TransferSizeInUSD = totalCollateral.Sub(target)
		if price.IsPositive() {
			d.TransferSizeInBTC = units.FloorBTC(d.TransferSizeInUSD.Div(price))
		}
		newCollateral = target
	}

	d.NewLiabilityRatio = ratio(liability, newCollateral)
	d.NewLeverageRatio = ratio(exposure, newCollateral)
	d.NewMarginRatio = ratio(newCollateral, usedCollateral)
	return d
}

func ratio(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Div(den)
}
