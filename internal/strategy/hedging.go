package strategy

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/atmx/dealer/internal/units"
)

// TradeSide is the outcome of the hedge decision.
type TradeSide string

const (
	TradeBuy     TradeSide = "buy"
	TradeSell    TradeSide = "sell"
	TradeNoTrade TradeSide = "no_trade"
)

// HedgingOrderDecision is a pure function of the snapshot and the bounds.
type HedgingOrderDecision struct {
	LiabilityInUSD decimal.Decimal `json:"liability_usd"`
	ExposureRatio  decimal.Decimal `json:"exposure_ratio"`
	LowBracket     decimal.Decimal `json:"low_bracket"`
	HighBracket    decimal.Decimal `json:"high_bracket"`

	TradeSide           TradeSide       `json:"trade_side"`
	OrderSizeInUSD      decimal.Decimal `json:"order_size_usd"`
	OrderSizeInContract int64           `json:"order_size_contract"`
	OrderSizeInBTC      decimal.Decimal `json:"order_size_btc"`
	PriceInUSD          decimal.Decimal `json:"price_usd"`
}

// IsTrade reports whether the decision requires an order.
func (d HedgingOrderDecision) IsTrade() bool {
	return d.TradeSide != TradeNoTrade
}

// GetHedgingOrderIfNeeded decides the hedge order that brings the short
// exposure back inside the ratio brackets.
//
// Below half a contract of liability the position is fully unwound.
// Otherwise exposure/liability under the low bound sells up to the low
// safebound, over the high bound buys down to the high safebound. Sizes
// round to whole contracts; anything under the minimum contract count is
// downgraded to no trade. A negative liability or a non-positive price
// never trades.
func GetHedgingOrderIfNeeded(liabilityInUSD, exposureInUSD, priceInUSD decimal.Decimal, b Bounds) HedgingOrderDecision {
	d := HedgingOrderDecision{
		LiabilityInUSD: liabilityInUSD,
		ExposureRatio:  decimal.Zero,
		LowBracket:     b.LowBoundRatioShorting,
		HighBracket:    b.HighBoundRatioShorting,
		TradeSide:      TradeNoTrade,
		OrderSizeInUSD: decimal.Zero,
		OrderSizeInBTC: decimal.Zero,
		PriceInUSD:     priceInUSD,
	}
	if liabilityInUSD.IsNegative() || !priceInUSD.IsPositive() {
		return d
	}

	halfContract := b.ContractFaceValue.Div(decimal.NewFromInt(2))
	if liabilityInUSD.LessThan(halfContract) {
		switch {
		case exposureInUSD.IsPositive():
			d.TradeSide = TradeBuy
			d.OrderSizeInUSD = exposureInUSD
		case exposureInUSD.IsNegative():
			d.TradeSide = TradeSell
			d.OrderSizeInUSD = exposureInUSD.Neg()
		}
	} else {
		d.ExposureRatio = exposureInUSD.Div(liabilityInUSD)
		switch {
		case d.ExposureRatio.LessThan(b.LowBoundRatioShorting):
			d.TradeSide = TradeSell
			d.OrderSizeInUSD = liabilityInUSD.Mul(b.LowSafeboundRatioShorting).Sub(exposureInUSD)
		case d.ExposureRatio.GreaterThan(b.HighBoundRatioShorting):
			d.TradeSide = TradeBuy
			d.OrderSizeInUSD = exposureInUSD.Sub(liabilityInUSD.Mul(b.HighSafeboundRatioShorting))
		}
	}
	if !d.IsTrade() {
		return d
	}

	contracts := d.OrderSizeInUSD.Div(b.ContractFaceValue).Round(0).IntPart()
	if contracts < b.MinimumOrderSizeInContract {
		slog.Warn("hedge order below minimum size, not trading",
			"side", d.TradeSide,
			"size_usd", d.OrderSizeInUSD.StringFixed(2),
			"contracts", contracts,
			"minimum", b.MinimumOrderSizeInContract,
		)
		d.TradeSide = TradeNoTrade
		d.OrderSizeInUSD = decimal.Zero
		return d
	}

	d.OrderSizeInContract = contracts
	d.OrderSizeInBTC = units.RoundBTC(d.OrderSizeInUSD.Div(priceInUSD))
	return d
}
