package strategy_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/atmx/dealer/internal/exchange"
	"github.com/atmx/dealer/internal/exchange/okx"
	"github.com/atmx/dealer/internal/model"
	"github.com/atmx/dealer/internal/store"
	"github.com/atmx/dealer/internal/strategy"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var errBoom = errors.New("boom")

// fakeExchange is a scripted strategy.Exchange.
type fakeExchange struct {
	position    exchange.Position
	positionErr error
	balance     exchange.Balance
	balanceErr  error
	instrument  exchange.Instrument

	// pollStates is consumed one per FetchOrder; once exhausted the
	// last state repeats.
	pollStates []exchange.OrderStatus
	onClosed   func(f *fakeExchange)
	createErr  error

	transferErr map[exchange.Account]error // keyed by source account
	withdrawErr error
	address     string
	addressErr  error

	deposits    []exchange.TransferRecord
	withdrawals []exchange.TransferRecord
	bills       []model.Transaction
	billsErr    error

	calls     map[string]int
	orders    []exchange.OrderArgs
	transfers []exchange.TransferArgs
	withdraws []exchange.WithdrawArgs
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{
		position: exchange.Position{
			InstrumentID: "BTC-USD-SWAP",
			LastPriceUSD: d("50000"),
		},
		balance: exchange.Balance{Currency: "BTC"},
		instrument: exchange.Instrument{
			ID:            "BTC-USD-SWAP",
			ContractValue: d("100"),
			MinSize:       d("1"),
			LotSize:       d("1"),
		},
		transferErr: map[exchange.Account]error{},
		address:     "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq",
		calls:       map[string]int{},
	}
}

// setShort sets a short position of the given USD notional.
func (f *fakeExchange) setShort(notionalUSD string) {
	n := d(notionalUSD)
	f.position.NotionalUSD = n
	f.position.Quantity = n.Div(d("100")).Round(0).Neg()
}

func (f *fakeExchange) writes() int {
	return f.calls["create_market_order"] + f.calls["transfer"] + f.calls["withdraw"]
}

func (f *fakeExchange) Name() string { return "fake" }

func (f *fakeExchange) FetchPosition(context.Context, string) (exchange.Position, error) {
	f.calls["fetch_position"]++
	return f.position, f.positionErr
}

func (f *fakeExchange) FetchBalance(context.Context, string) (exchange.Balance, error) {
	f.calls["fetch_balance"]++
	return f.balance, f.balanceErr
}

func (f *fakeExchange) FetchInstrument(context.Context, string) (exchange.Instrument, error) {
	f.calls["fetch_instrument"]++
	return f.instrument, nil
}

func (f *fakeExchange) CreateMarketOrder(_ context.Context, args exchange.OrderArgs) (exchange.OrderResult, error) {
	f.calls["create_market_order"]++
	f.orders = append(f.orders, args)
	if f.createErr != nil {
		return exchange.OrderResult{}, f.createErr
	}
	return exchange.OrderResult{ID: "ex-1", ClientOrderID: args.ClientOrderID}, nil
}

func (f *fakeExchange) FetchOrder(_ context.Context, _, orderID string) (exchange.OrderState, error) {
	f.calls["fetch_order"]++
	status := exchange.OrderStatusOpen
	if len(f.pollStates) > 0 {
		status = f.pollStates[0]
		if len(f.pollStates) > 1 {
			f.pollStates = f.pollStates[1:]
		}
	}
	if status == exchange.OrderStatusClosed && f.onClosed != nil {
		f.onClosed(f)
		f.onClosed = nil
	}
	return exchange.OrderState{ID: orderID, Status: status}, nil
}

func (f *fakeExchange) Transfer(_ context.Context, args exchange.TransferArgs) (exchange.TransferResult, error) {
	f.calls["transfer"]++
	f.transfers = append(f.transfers, args)
	if err := f.transferErr[args.From]; err != nil {
		return exchange.TransferResult{}, err
	}
	return exchange.TransferResult{ID: "tr-1", Quantity: args.Quantity}, nil
}

func (f *fakeExchange) Withdraw(_ context.Context, args exchange.WithdrawArgs) (exchange.WithdrawResult, error) {
	f.calls["withdraw"]++
	f.withdraws = append(f.withdraws, args)
	if f.withdrawErr != nil {
		return exchange.WithdrawResult{}, f.withdrawErr
	}
	return exchange.WithdrawResult{ID: "wd-1", Currency: args.Currency, Quantity: args.Quantity, Chain: "BTC-Bitcoin"}, nil
}

func (f *fakeExchange) FetchDepositAddress(context.Context, string) (exchange.DepositAddress, error) {
	f.calls["fetch_deposit_address"]++
	return exchange.DepositAddress{Currency: "BTC", Address: f.address, Chain: "BTC-Bitcoin"}, f.addressErr
}

func (f *fakeExchange) FetchDeposits(context.Context, string) ([]exchange.TransferRecord, error) {
	f.calls["fetch_deposits"]++
	return f.deposits, nil
}

func (f *fakeExchange) FetchWithdrawals(context.Context, string) ([]exchange.TransferRecord, error) {
	f.calls["fetch_withdrawals"]++
	return f.withdrawals, nil
}

func (f *fakeExchange) FetchTransactionHistory(context.Context, string) ([]model.Transaction, error) {
	f.calls["fetch_transaction_history"]++
	return f.bills, f.billsErr
}

func (f *fakeExchange) IsDepositCompleted(records []exchange.TransferRecord, address string, sats int64) bool {
	return okx.NewConfiguration().IsDepositCompleted(records, address, sats)
}

func (f *fakeExchange) IsWithdrawalCompleted(records []exchange.TransferRecord, address string, sats int64) bool {
	return okx.NewConfiguration().IsWithdrawalCompleted(records, address, sats)
}

// testBounds are the default leverage brackets with a ratio bracket whose
// safebounds both sit at 1.0.
func testBounds() strategy.Bounds {
	b := strategy.DefaultBounds()
	b.LowBoundRatioShorting = d("0.95")
	b.LowSafeboundRatioShorting = d("1.0")
	b.HighSafeboundRatioShorting = d("1.0")
	b.HighBoundRatioShorting = d("1.03")
	return b
}

func newEngine(t *testing.T, fx *fakeExchange, st store.Store, simulation bool) *strategy.Engine {
	t.Helper()
	e, err := strategy.NewEngine(fx, st, testBounds(), strategy.Options{
		Chain:          "BTC-Bitcoin",
		Simulation:     simulation,
		WithdrawFeeBTC: d("0.0001"),
		PollInterval:   time.Millisecond,
		MaxPolls:       30,
	})
	require.NoError(t, err)
	return e
}

func staticAddress(address string) strategy.WithdrawAddressFunc {
	return func(context.Context) (string, error) { return address, nil }
}
