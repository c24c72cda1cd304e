// Package model defines the audit records shared across the dealer.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is the audit record of one hedge order attempt. It is inserted
// before the exchange call so that failed submissions are still recorded,
// then updated once the exchange order id and final state are known.
type Order struct {
	ID              string          `json:"id" db:"id"`
	InstrumentID    string          `json:"instrument_id" db:"instrument_id"`
	OrderType       string          `json:"order_type" db:"order_type"` // "market"
	Side            string          `json:"side" db:"side"`             // "buy" or "sell"
	Quantity        decimal.Decimal `json:"quantity" db:"quantity"`     // contracts
	TradeMode       string          `json:"trade_mode" db:"trade_mode"` // "cross"
	ExchangeOrderID string          `json:"exchange_order_id,omitempty" db:"exchange_order_id"`
	StatusCode      string          `json:"status_code" db:"status_code"`
	StatusMessage   string          `json:"status_message" db:"status_message"`
	Success         bool            `json:"success" db:"success"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// InternalTransfer records a move between the exchange trading and funding
// sub-accounts. One row per attempt.
type InternalTransfer struct {
	ID           string          `json:"id" db:"id"`
	Currency     string          `json:"currency" db:"currency"`
	Quantity     decimal.Decimal `json:"quantity" db:"quantity"` // BTC
	FromAccount  string          `json:"from_account" db:"from_account"`
	ToAccount    string          `json:"to_account" db:"to_account"`
	InstrumentID string          `json:"instrument_id" db:"instrument_id"`
	TransferID   string          `json:"transfer_id,omitempty" db:"transfer_id"`
	Success      bool            `json:"success" db:"success"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// ExternalTransfer records an on-chain withdrawal from the funding account.
type ExternalTransfer struct {
	ID              string          `json:"id" db:"id"`
	Currency        string          `json:"currency" db:"currency"`
	Quantity        decimal.Decimal `json:"quantity" db:"quantity"` // BTC
	DestinationType string          `json:"destination_type" db:"destination_type"`
	ToAddress       string          `json:"to_address" db:"to_address"`
	Chain           string          `json:"chain" db:"chain"`
	Fee             decimal.Decimal `json:"fee" db:"fee"` // BTC
	TransferID      string          `json:"transfer_id,omitempty" db:"transfer_id"`
	Success         bool            `json:"success" db:"success"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// Transfer directions, seen from the exchange.
const (
	DirectionDeposit  = "deposit"
	DirectionWithdraw = "withdraw"
)

// InFlightTransfer tracks an on-chain movement whose exchange-side
// confirmation is asynchronous. IsCompleted flips once the transfer is
// found in the exchange deposit or withdrawal history.
type InFlightTransfer struct {
	ID          string    `json:"id" db:"id"`
	Direction   string    `json:"direction" db:"direction"`
	Address     string    `json:"address" db:"address"`
	SizeInSats  int64     `json:"size_in_sats" db:"size_in_sats"`
	Memo        string    `json:"memo" db:"memo"`
	IsCompleted bool      `json:"is_completed" db:"is_completed"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Transaction is one exchange ledger entry (bill). Bills are immutable on
// the exchange side and unique by BillID.
type Transaction struct {
	BillID        string          `json:"bill_id" db:"bill_id"`
	Currency      string          `json:"currency" db:"currency"`
	InstrumentID  string          `json:"instrument_id" db:"instrument_id"`
	BillType      string          `json:"bill_type" db:"bill_type"`
	BillSubType   string          `json:"bill_sub_type" db:"bill_sub_type"`
	BalanceChange decimal.Decimal `json:"balance_change" db:"balance_change"`
	Balance       decimal.Decimal `json:"balance" db:"balance"`
	Fee           decimal.Decimal `json:"fee" db:"fee"`
	OrderID       string          `json:"order_id,omitempty" db:"order_id"`
	Timestamp     time.Time       `json:"timestamp" db:"timestamp"`
}

// Bill types of the exchange ledger that feed the fee aggregates.
const (
	BillTypeTrade      = "2"
	BillTypeFundingFee = "8"
)

// Stats aggregates the audit tables for the metrics exporter.
type Stats struct {
	OrdersTotal            int64           `json:"orders_total"`
	OrdersSucceeded        int64           `json:"orders_succeeded"`
	InternalTransfersTotal int64           `json:"internal_transfers_total"`
	ExternalTransfersTotal int64           `json:"external_transfers_total"`
	InFlightPending        int64           `json:"in_flight_pending"`
	TradingFeesBTC         decimal.Decimal `json:"trading_fees_btc"`
	WithdrawalFeesBTC      decimal.Decimal `json:"withdrawal_fees_btc"`
	FundingFeesBTC         decimal.Decimal `json:"funding_fees_btc"`
}
