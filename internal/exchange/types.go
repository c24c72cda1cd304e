// Package exchange defines the exchange-agnostic contracts of the dealer:
// the raw Client, the per-exchange Configuration that validates inputs and
// normalizes responses, and the Adapter that glues both together.
//
// All monetary values use shopspring/decimal — never float64 for money.
package exchange

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderStatus is the normalized lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusOpen     OrderStatus = "open"
	OrderStatusClosed   OrderStatus = "closed"
	OrderStatusCanceled OrderStatus = "canceled"
)

// Account identifies an exchange sub-account.
type Account string

const (
	AccountTrading Account = "trading"
	AccountFunding Account = "funding"
)

// DepositAddress is an on-chain address credited to the funding account.
type DepositAddress struct {
	Currency string `json:"currency"`
	Address  string `json:"address"`
	Chain    string `json:"chain"`
}

// WithdrawArgs describes an on-chain withdrawal from the funding account.
type WithdrawArgs struct {
	Currency string
	Quantity decimal.Decimal // BTC received by the destination
	Address  string
	Fee      decimal.Decimal // BTC
}

// WithdrawResult is the exchange acknowledgement of a withdrawal.
type WithdrawResult struct {
	ID       string          `json:"id"`
	Currency string          `json:"currency"`
	Quantity decimal.Decimal `json:"quantity"`
	Chain    string          `json:"chain"`
}

// TransferArgs describes a move between sub-accounts.
type TransferArgs struct {
	Currency string
	Quantity decimal.Decimal // BTC
	From     Account
	To       Account
}

// TransferResult is the exchange acknowledgement of a sub-account transfer.
type TransferResult struct {
	ID       string          `json:"id"`
	Quantity decimal.Decimal `json:"quantity"`
}

// OrderArgs describes a market order on the hedging instrument.
type OrderArgs struct {
	InstrumentID  string
	Side          Side
	Quantity      decimal.Decimal // contracts
	TradeMode     string
	ClientOrderID string
}

// OrderResult is the exchange acknowledgement of an order submission.
type OrderResult struct {
	ID            string `json:"id"`
	ClientOrderID string `json:"client_order_id"`
}

// OrderState is the normalized state of a previously submitted order.
type OrderState struct {
	ID           string          `json:"id"`
	InstrumentID string          `json:"instrument_id"`
	Status       OrderStatus     `json:"status"`
	Side         Side            `json:"side"`
	Quantity     decimal.Decimal `json:"quantity"`
	Filled       decimal.Decimal `json:"filled"`
	AveragePrice decimal.Decimal `json:"average_price"`
}

// Balance is the collateral held in the trading account.
type Balance struct {
	Currency       string          `json:"currency"`
	Total          decimal.Decimal `json:"total"` // BTC equity
	Free           decimal.Decimal `json:"free"`  // BTC
	Used           decimal.Decimal `json:"used"`  // BTC
	TotalEquityUSD decimal.Decimal `json:"total_equity_usd"`
}

// Position is the derivative position on the hedging instrument.
// Quantity is signed: negative contracts are a short.
type Position struct {
	InstrumentID        string          `json:"instrument_id"`
	Quantity            decimal.Decimal `json:"quantity"`
	NotionalUSD         decimal.Decimal `json:"notional_usd"`
	MarginBTC           decimal.Decimal `json:"margin_btc"`
	LastPriceUSD        decimal.Decimal `json:"last_price_usd"`
	LiquidationPriceUSD decimal.Decimal `json:"liquidation_price_usd"`
	Leverage            decimal.Decimal `json:"leverage"`
}

// Ticker is the top of book of the hedging instrument.
type Ticker struct {
	InstrumentID string          `json:"instrument_id"`
	Last         decimal.Decimal `json:"last"`
	Bid          decimal.Decimal `json:"bid"`
	Ask          decimal.Decimal `json:"ask"`
	Timestamp    time.Time       `json:"timestamp"`
}

// Instrument holds the contract specification of the hedging instrument.
type Instrument struct {
	ID                    string          `json:"id"`
	ContractValue         decimal.Decimal `json:"contract_value"`
	ContractValueCurrency string          `json:"contract_value_currency"`
	MinSize               decimal.Decimal `json:"min_size"`
	LotSize               decimal.Decimal `json:"lot_size"`
	SettleCurrency        string          `json:"settle_currency"`
	State                 string          `json:"state"`
}

// TransferRecord is one entry of the deposit or withdrawal history.
type TransferRecord struct {
	ID        string          `json:"id"`
	Currency  string          `json:"currency"`
	Chain     string          `json:"chain"`
	Address   string          `json:"address"`
	TxID      string          `json:"tx_id"`
	Amount    decimal.Decimal `json:"amount"`
	Fee       decimal.Decimal `json:"fee"`
	State     string          `json:"state"`
	Completed bool            `json:"completed"`
	Timestamp time.Time       `json:"timestamp"`
}

// Page is one page of a paginated endpoint. Next is the continuation
// cursor; empty when the exchange signals no further page.
type Page[T any] struct {
	Items []T
	Next  string
}
