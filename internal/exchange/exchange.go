package exchange

import (
	"context"

	"github.com/atmx/dealer/internal/model"
)

// Client is the raw third-party trading API. Every method returns the
// undecoded response body; interpreting it is the Configuration's job.
type Client interface {
	FetchDepositAddress(ctx context.Context, currency string) ([]byte, error)
	FetchDeposits(ctx context.Context, currency, cursor string) ([]byte, error)
	FetchWithdrawals(ctx context.Context, currency, cursor string) ([]byte, error)
	FetchTransactionHistory(ctx context.Context, currency, cursor string) ([]byte, error)
	Withdraw(ctx context.Context, args WithdrawArgs) ([]byte, error)
	Transfer(ctx context.Context, args TransferArgs) ([]byte, error)
	CreateMarketOrder(ctx context.Context, args OrderArgs) ([]byte, error)
	FetchOrder(ctx context.Context, instrumentID, orderID string) ([]byte, error)
	FetchBalance(ctx context.Context, currency string) ([]byte, error)
	FetchPosition(ctx context.Context, instrumentID string) ([]byte, error)
	FetchTicker(ctx context.Context, instrumentID string) ([]byte, error)
	FetchInstrument(ctx context.Context, instrumentID string) ([]byte, error)
}

// Configuration is the per-exchange contract. Validate* methods reject bad
// arguments before any network call with a *ValidationError. Process*
// methods turn a raw response into a typed result or fail with
// ErrUnsupportedAPIResponse, ErrEmptyAPIResponse or ErrMissingAccountValue.
// Implementations are stateless.
type Configuration interface {
	Name() string

	ValidateDepositAddress(currency string) error
	ValidateHistory(currency string) error
	ValidateWithdraw(args WithdrawArgs) error
	ValidateTransfer(args TransferArgs) error
	ValidateOrder(args OrderArgs) error
	ValidateFetchOrder(instrumentID, orderID string) error
	ValidateBalance(currency string) error
	ValidateInstrument(instrumentID string) error

	ProcessDepositAddress(raw []byte) (DepositAddress, error)
	ProcessDeposits(raw []byte) (Page[TransferRecord], error)
	ProcessWithdrawals(raw []byte) (Page[TransferRecord], error)
	ProcessTransactions(raw []byte) (Page[model.Transaction], error)
	ProcessWithdraw(raw []byte) (WithdrawResult, error)
	ProcessTransfer(raw []byte) (TransferResult, error)
	ProcessCreateOrder(raw []byte) (OrderResult, error)
	ProcessOrder(raw []byte) (OrderState, error)
	ProcessBalance(raw []byte) (Balance, error)
	ProcessPosition(raw []byte) (Position, error)
	ProcessTicker(raw []byte) (Ticker, error)
	ProcessInstrument(raw []byte) (Instrument, error)

	// IsDepositCompleted and IsWithdrawalCompleted filter history fetched
	// by the Adapter; the exchange cannot filter by address or amount.
	IsDepositCompleted(records []TransferRecord, address string, sizeInSats int64) bool
	IsWithdrawalCompleted(records []TransferRecord, address string, sizeInSats int64) bool
}
