// Package units converts between satoshis, bitcoin, cents and dollars.
package units

import "github.com/shopspring/decimal"

// SatsPerBTC is the number of satoshis in one bitcoin.
const SatsPerBTC = 100_000_000

// BTCPrecision is the number of decimal places of a satoshi-precise amount.
const BTCPrecision int32 = 8

// SatToBTC converts satoshis to bitcoin.
func SatToBTC(sats int64) decimal.Decimal {
	return decimal.New(sats, -BTCPrecision)
}

// BTCToSat converts bitcoin to satoshis, rounding to the nearest satoshi.
func BTCToSat(btc decimal.Decimal) int64 {
	return btc.Shift(BTCPrecision).Round(0).IntPart()
}

// CentsToUSD converts cents to dollars.
func CentsToUSD(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// USDToCents converts dollars to cents, rounding to the nearest cent.
func USDToCents(usd decimal.Decimal) int64 {
	return usd.Shift(2).Round(0).IntPart()
}

// RoundBTC rounds to the nearest satoshi.
func RoundBTC(btc decimal.Decimal) decimal.Decimal {
	return btc.Round(BTCPrecision)
}

// FloorBTC rounds down to a whole satoshi.
func FloorBTC(btc decimal.Decimal) decimal.Decimal {
	return btc.RoundFloor(BTCPrecision)
}
