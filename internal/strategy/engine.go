package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/dealer/internal/exchange"
	"github.com/atmx/dealer/internal/model"
	"github.com/atmx/dealer/internal/store"
)

// Exchange is the subset of the exchange adapter the engine drives.
// *exchange.Adapter satisfies it.
type Exchange interface {
	Name() string
	FetchPosition(ctx context.Context, instrumentID string) (exchange.Position, error)
	FetchBalance(ctx context.Context, currency string) (exchange.Balance, error)
	FetchInstrument(ctx context.Context, instrumentID string) (exchange.Instrument, error)
	CreateMarketOrder(ctx context.Context, args exchange.OrderArgs) (exchange.OrderResult, error)
	FetchOrder(ctx context.Context, instrumentID, orderID string) (exchange.OrderState, error)
	Transfer(ctx context.Context, args exchange.TransferArgs) (exchange.TransferResult, error)
	Withdraw(ctx context.Context, args exchange.WithdrawArgs) (exchange.WithdrawResult, error)
	FetchDepositAddress(ctx context.Context, currency string) (exchange.DepositAddress, error)
	FetchDeposits(ctx context.Context, currency string) ([]exchange.TransferRecord, error)
	FetchWithdrawals(ctx context.Context, currency string) ([]exchange.TransferRecord, error)
	FetchTransactionHistory(ctx context.Context, currency string) ([]model.Transaction, error)
	IsDepositCompleted(records []exchange.TransferRecord, address string, sizeInSats int64) bool
	IsWithdrawalCompleted(records []exchange.TransferRecord, address string, sizeInSats int64) bool
}

var _ Exchange = (*exchange.Adapter)(nil)

const (
	DefaultPollInterval = time.Second
	DefaultMaxPolls     = 30
)

// Options configure an Engine. Simulation is read-only after construction.
type Options struct {
	InstrumentID   string
	Currency       string
	TradeMode      string
	Chain          string
	Simulation     bool
	WithdrawFeeBTC decimal.Decimal
	PollInterval   time.Duration
	MaxPolls       int
}

// Engine computes and executes hedge and rebalance decisions for one
// account. It holds no lock: callers must not run two cycles at once.
type Engine struct {
	exchange Exchange
	store    store.Store
	bounds   Bounds
	opts     Options
	now      func() time.Time
}

// NewEngine creates an engine. Zero-valued options fall back to the
// BTC-USD swap defaults; invalid bounds are rejected.
func NewEngine(ex Exchange, s store.Store, b Bounds, opts Options) (*Engine, error) {
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("new engine: %w", err)
	}
	if opts.InstrumentID == "" {
		opts.InstrumentID = "BTC-USD-SWAP"
	}
	if opts.Currency == "" {
		opts.Currency = "BTC"
	}
	if opts.TradeMode == "" {
		opts.TradeMode = "cross"
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MaxPolls <= 0 {
		opts.MaxPolls = DefaultMaxPolls
	}
	return &Engine{
		exchange: ex,
		store:    s,
		bounds:   b,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Simulation reports whether trades and transfers are only logged.
func (e *Engine) Simulation() bool { return e.opts.Simulation }

// Bounds returns the configured brackets.
func (e *Engine) Bounds() Bounds { return e.bounds }
