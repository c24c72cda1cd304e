package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/atmx/dealer/internal/model"
)

// DefaultMaxPages bounds every pagination loop.
const DefaultMaxPages = 50

// Observer is notified after every exchange call.
type Observer func(op string, elapsed time.Duration, err error)

// Adapter wraps a Client with its Configuration: validate, call, log the
// raw response, normalize. Failures of any kind come back as errors.
type Adapter struct {
	client   Client
	config   Configuration
	maxPages int
	observe  Observer
}

// NewAdapter creates an adapter for one exchange.
func NewAdapter(client Client, config Configuration) *Adapter {
	return &Adapter{
		client:   client,
		config:   config,
		maxPages: DefaultMaxPages,
	}
}

// WithMaxPages overrides the pagination bound.
func (a *Adapter) WithMaxPages(n int) *Adapter {
	if n > 0 {
		a.maxPages = n
	}
	return a
}

// WithObserver installs a call observer (metrics).
func (a *Adapter) WithObserver(o Observer) *Adapter {
	a.observe = o
	return a
}

// Name returns the exchange name.
func (a *Adapter) Name() string {
	return a.config.Name()
}

func (a *Adapter) FetchDepositAddress(ctx context.Context, currency string) (DepositAddress, error) {
	return call(ctx, a, "fetch_deposit_address",
		func() error { return a.config.ValidateDepositAddress(currency) },
		func(ctx context.Context) ([]byte, error) { return a.client.FetchDepositAddress(ctx, currency) },
		a.config.ProcessDepositAddress)
}

func (a *Adapter) Withdraw(ctx context.Context, args WithdrawArgs) (WithdrawResult, error) {
	return call(ctx, a, "withdraw",
		func() error { return a.config.ValidateWithdraw(args) },
		func(ctx context.Context) ([]byte, error) { return a.client.Withdraw(ctx, args) },
		a.config.ProcessWithdraw)
}

func (a *Adapter) Transfer(ctx context.Context, args TransferArgs) (TransferResult, error) {
	return call(ctx, a, "transfer",
		func() error { return a.config.ValidateTransfer(args) },
		func(ctx context.Context) ([]byte, error) { return a.client.Transfer(ctx, args) },
		a.config.ProcessTransfer)
}

func (a *Adapter) CreateMarketOrder(ctx context.Context, args OrderArgs) (OrderResult, error) {
	return call(ctx, a, "create_market_order",
		func() error { return a.config.ValidateOrder(args) },
		func(ctx context.Context) ([]byte, error) { return a.client.CreateMarketOrder(ctx, args) },
		a.config.ProcessCreateOrder)
}

func (a *Adapter) FetchOrder(ctx context.Context, instrumentID, orderID string) (OrderState, error) {
	return call(ctx, a, "fetch_order",
		func() error { return a.config.ValidateFetchOrder(instrumentID, orderID) },
		func(ctx context.Context) ([]byte, error) { return a.client.FetchOrder(ctx, instrumentID, orderID) },
		a.config.ProcessOrder)
}

func (a *Adapter) FetchBalance(ctx context.Context, currency string) (Balance, error) {
	return call(ctx, a, "fetch_balance",
		func() error { return a.config.ValidateBalance(currency) },
		func(ctx context.Context) ([]byte, error) { return a.client.FetchBalance(ctx, currency) },
		a.config.ProcessBalance)
}

func (a *Adapter) FetchPosition(ctx context.Context, instrumentID string) (Position, error) {
	return call(ctx, a, "fetch_position",
		func() error { return a.config.ValidateInstrument(instrumentID) },
		func(ctx context.Context) ([]byte, error) { return a.client.FetchPosition(ctx, instrumentID) },
		a.config.ProcessPosition)
}

func (a *Adapter) FetchTicker(ctx context.Context, instrumentID string) (Ticker, error) {
	return call(ctx, a, "fetch_ticker",
		func() error { return a.config.ValidateInstrument(instrumentID) },
		func(ctx context.Context) ([]byte, error) { return a.client.FetchTicker(ctx, instrumentID) },
		a.config.ProcessTicker)
}

func (a *Adapter) FetchInstrument(ctx context.Context, instrumentID string) (Instrument, error) {
	return call(ctx, a, "fetch_instrument",
		func() error { return a.config.ValidateInstrument(instrumentID) },
		func(ctx context.Context) ([]byte, error) { return a.client.FetchInstrument(ctx, instrumentID) },
		a.config.ProcessInstrument)
}

// FetchDeposits returns the deposit history across all pages.
func (a *Adapter) FetchDeposits(ctx context.Context, currency string) ([]TransferRecord, error) {
	return paginate(ctx, a, "fetch_deposits",
		func() error { return a.config.ValidateHistory(currency) },
		func(ctx context.Context, cursor string) ([]byte, error) {
			return a.client.FetchDeposits(ctx, currency, cursor)
		},
		a.config.ProcessDeposits)
}

// FetchWithdrawals returns the withdrawal history across all pages.
func (a *Adapter) FetchWithdrawals(ctx context.Context, currency string) ([]TransferRecord, error) {
	return paginate(ctx, a, "fetch_withdrawals",
		func() error { return a.config.ValidateHistory(currency) },
		func(ctx context.Context, cursor string) ([]byte, error) {
			return a.client.FetchWithdrawals(ctx, currency, cursor)
		},
		a.config.ProcessWithdrawals)
}

// FetchTransactionHistory returns the account ledger across all pages.
func (a *Adapter) FetchTransactionHistory(ctx context.Context, currency string) ([]model.Transaction, error) {
	return paginate(ctx, a, "fetch_transaction_history",
		func() error { return a.config.ValidateHistory(currency) },
		func(ctx context.Context, cursor string) ([]byte, error) {
			return a.client.FetchTransactionHistory(ctx, currency, cursor)
		},
		a.config.ProcessTransactions)
}

func (a *Adapter) IsDepositCompleted(records []TransferRecord, address string, sizeInSats int64) bool {
	return a.config.IsDepositCompleted(records, address, sizeInSats)
}

func (a *Adapter) IsWithdrawalCompleted(records []TransferRecord, address string, sizeInSats int64) bool {
	return a.config.IsWithdrawalCompleted(records, address, sizeInSats)
}

// call runs one validated, normalized exchange operation. A panic inside
// the client or the configuration is returned as ErrExchangeCall.
func call[T any](
	ctx context.Context,
	a *Adapter,
	op string,
	validate func() error,
	fetch func(ctx context.Context) ([]byte, error),
	process func(raw []byte) (T, error),
) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			result = zero
			err = fmt.Errorf("%s: %w: panic: %v", op, ErrExchangeCall, r)
		}
	}()

	if validate != nil {
		if err := validate(); err != nil {
			return result, fmt.Errorf("%s: %w", op, err)
		}
	}

	start := time.Now()
	raw, err := fetch(ctx)
	if a.observe != nil {
		a.observe(op, time.Since(start), err)
	}
	if err != nil {
		return result, fmt.Errorf("%s: %w: %w", op, ErrExchangeCall, err)
	}

	slog.Debug("exchange response",
		"exchange", a.config.Name(),
		"op", op,
		"raw", string(raw),
	)

	result, err = process(raw)
	if err != nil {
		return result, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// paginate accumulates pages while the exchange returns a non-empty page
// and a fresh cursor. On error the pages fetched so far are returned along
// with the error.
func paginate[T any](
	ctx context.Context,
	a *Adapter,
	op string,
	validate func() error,
	fetch func(ctx context.Context, cursor string) ([]byte, error),
	process func(raw []byte) (Page[T], error),
) ([]T, error) {
	if err := validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var items []T
	cursor := ""
	for page := 0; page < a.maxPages; page++ {
		p, err := call(ctx, a, op, nil,
			func(ctx context.Context) ([]byte, error) { return fetch(ctx, cursor) },
			process)
		if err != nil {
			return items, err
		}
		if len(p.Items) == 0 {
			break
		}
		items = append(items, p.Items...)
		if p.Next == "" || p.Next == cursor {
			break
		}
		cursor = p.Next
	}
	return items, nil
}
