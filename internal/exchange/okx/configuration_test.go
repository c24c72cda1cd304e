package okx_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/dealer/internal/exchange"
	"github.com/atmx/dealer/internal/exchange/okx"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func validationKind(t *testing.T, err error) exchange.ValidationKind {
	t.Helper()
	var ve *exchange.ValidationError
	require.True(t, errors.As(err, &ve), "expected validation error, got %v", err)
	return ve.Kind
}

func TestValidateWithdraw(t *testing.T) {
	cfg := okx.NewConfiguration()
	good := exchange.WithdrawArgs{
		Currency: "BTC",
		Quantity: d("0.01"),
		Address:  "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq",
		Fee:      d("0.0002"),
	}
	require.NoError(t, cfg.ValidateWithdraw(good))

	tests := []struct {
		name   string
		mutate func(a *exchange.WithdrawArgs)
		kind   exchange.ValidationKind
	}{
		{"wrong currency", func(a *exchange.WithdrawArgs) { a.Currency = "ETH" }, exchange.UnsupportedCurrency},
		{"empty currency", func(a *exchange.WithdrawArgs) { a.Currency = "" }, exchange.MissingParameters},
		{"zero quantity", func(a *exchange.WithdrawArgs) { a.Quantity = decimal.Zero }, exchange.NonPositiveQuantity},
		{"negative quantity", func(a *exchange.WithdrawArgs) { a.Quantity = d("-1") }, exchange.NonPositiveQuantity},
		{"missing address", func(a *exchange.WithdrawArgs) { a.Address = "" }, exchange.MissingParameters},
		{"garbage address", func(a *exchange.WithdrawArgs) { a.Address = "not-an-address" }, exchange.UnsupportedAddress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := good
			tt.mutate(&args)
			assert.Equal(t, tt.kind, validationKind(t, cfg.ValidateWithdraw(args)))
		})
	}
}

func TestValidateTransfer(t *testing.T) {
	cfg := okx.NewConfiguration()
	args := exchange.TransferArgs{Currency: "BTC", Quantity: d("0.5"), From: exchange.AccountTrading, To: exchange.AccountFunding}
	require.NoError(t, cfg.ValidateTransfer(args))

	same := args
	same.To = exchange.AccountTrading
	assert.Equal(t, exchange.MissingParameters, validationKind(t, cfg.ValidateTransfer(same)))

	unknown := args
	unknown.From = "margin"
	assert.Equal(t, exchange.MissingParameters, validationKind(t, cfg.ValidateTransfer(unknown)))
}

func TestValidateOrder(t *testing.T) {
	cfg := okx.NewConfiguration()
	args := exchange.OrderArgs{InstrumentID: "BTC-USD-SWAP", Side: exchange.SideSell, Quantity: d("3"), TradeMode: "cross"}
	require.NoError(t, cfg.ValidateOrder(args))

	other := args
	other.InstrumentID = "ETH-USD-SWAP"
	assert.Equal(t, exchange.UnsupportedInstrument, validationKind(t, cfg.ValidateOrder(other)))

	side := args
	side.Side = "hold"
	assert.Equal(t, exchange.UnsupportedSide, validationKind(t, cfg.ValidateOrder(side)))

	frac := args
	frac.Quantity = d("1.5")
	assert.Equal(t, exchange.NonPositiveQuantity, validationKind(t, cfg.ValidateOrder(frac)))

	mode := args
	mode.TradeMode = "cash"
	assert.Equal(t, exchange.MissingParameters, validationKind(t, cfg.ValidateOrder(mode)))
}

func TestProcessBalance(t *testing.T) {
	cfg := okx.NewConfiguration()
	raw := `{"code":"0","msg":"","data":[{"totalEq":"12345.6","details":[
		{"ccy":"USDT","eq":"10","availBal":"10","frozenBal":"0"},
		{"ccy":"BTC","eq":"0.5","availBal":"0.3","frozenBal":"0.2"}]}]}`

	bal, err := cfg.ProcessBalance([]byte(raw))
	require.NoError(t, err)
	assert.True(t, bal.Total.Equal(d("0.5")))
	assert.True(t, bal.Free.Equal(d("0.3")))
	assert.True(t, bal.Used.Equal(d("0.2")))
	assert.True(t, bal.TotalEquityUSD.Equal(d("12345.6")))
}

func TestProcessBalance_MissingValues(t *testing.T) {
	cfg := okx.NewConfiguration()

	_, err := cfg.ProcessBalance([]byte(`{"code":"0","data":[{"details":[]}]}`))
	assert.ErrorIs(t, err, exchange.ErrMissingAccountValue)

	_, err = cfg.ProcessBalance([]byte(`{"code":"0","data":[{"totalEq":"1","details":[{"ccy":"BTC","availBal":"1"}]}]}`))
	assert.ErrorIs(t, err, exchange.ErrMissingAccountValue)

	_, err = cfg.ProcessBalance([]byte(`{"code":"0","data":[{"totalEq":"abc","details":[{"ccy":"BTC","eq":"1"}]}]}`))
	assert.ErrorIs(t, err, exchange.ErrUnsupportedAPIResponse)
}

func TestProcessBalance_CurrencyNeverHeld(t *testing.T) {
	cfg := okx.NewConfiguration()

	for _, raw := range []string{
		`{"code":"0","data":[{"totalEq":"0","details":[]}]}`,
		`{"code":"0","data":[{"totalEq":"1","details":[{"ccy":"ETH","eq":"1"}]}]}`,
	} {
		bal, err := cfg.ProcessBalance([]byte(raw))
		require.NoError(t, err, raw)
		assert.Equal(t, "BTC", bal.Currency)
		assert.True(t, bal.Total.IsZero(), raw)
		assert.True(t, bal.Free.IsZero(), raw)
	}
}

func TestProcessPosition(t *testing.T) {
	cfg := okx.NewConfiguration()
	raw := `{"code":"0","data":[{"instId":"BTC-USD-SWAP","pos":"-10","notionalUsd":"-1000",
		"imr":"0.002","last":"50000","liqPx":"90000","lever":"5"}]}`

	pos, err := cfg.ProcessPosition([]byte(raw))
	require.NoError(t, err)
	assert.True(t, pos.Quantity.Equal(d("-10")))
	assert.True(t, pos.NotionalUSD.Equal(d("1000")))
	assert.True(t, pos.MarginBTC.Equal(d("0.002")))
	assert.True(t, pos.LastPriceUSD.Equal(d("50000")))
	assert.True(t, pos.Leverage.Equal(d("5")))
}

func TestProcessPosition_Errors(t *testing.T) {
	cfg := okx.NewConfiguration()

	_, err := cfg.ProcessPosition([]byte(`{"code":"0","data":[]}`))
	assert.ErrorIs(t, err, exchange.ErrEmptyAPIResponse)

	_, err = cfg.ProcessPosition([]byte(`{"code":"0","data":[{"instId":"ETH-USD-SWAP","pos":"1","notionalUsd":"1","imr":"1","last":"1"}]}`))
	assert.ErrorIs(t, err, exchange.ErrUnsupportedAPIResponse)

	_, err = cfg.ProcessPosition([]byte(`{"code":"0","data":[{"instId":"BTC-USD-SWAP","pos":"NaN?","notionalUsd":"1","imr":"1","last":"1"}]}`))
	assert.ErrorIs(t, err, exchange.ErrUnsupportedAPIResponse)

	_, err = cfg.ProcessPosition([]byte(`not json`))
	assert.ErrorIs(t, err, exchange.ErrUnsupportedAPIResponse)

	_, err = cfg.ProcessPosition(nil)
	assert.ErrorIs(t, err, exchange.ErrEmptyAPIResponse)
}

func TestProcessOrder(t *testing.T) {
	cfg := okx.NewConfiguration()
	cases := map[string]exchange.OrderStatus{
		"live":             exchange.OrderStatusOpen,
		"partially_filled": exchange.OrderStatusOpen,
		"filled":           exchange.OrderStatusClosed,
		"canceled":         exchange.OrderStatusCanceled,
	}
	for state, want := range cases {
		raw := `{"code":"0","data":[{"instId":"BTC-USD-SWAP","ordId":"42","state":"` + state +
			`","side":"sell","sz":"7","accFillSz":"7","avgPx":"50000.5"}]}`
		got, err := cfg.ProcessOrder([]byte(raw))
		require.NoError(t, err, state)
		assert.Equal(t, want, got.Status, state)
		assert.Equal(t, "42", got.ID)
		assert.Equal(t, exchange.SideSell, got.Side)
	}

	_, err := cfg.ProcessOrder([]byte(`{"code":"0","data":[{"instId":"BTC-USD-SWAP","ordId":"42","state":"weird","sz":"1"}]}`))
	assert.ErrorIs(t, err, exchange.ErrUnsupportedAPIResponse)
}

func TestProcessCreateOrder_Rejected(t *testing.T) {
	cfg := okx.NewConfiguration()
	_, err := cfg.ProcessCreateOrder([]byte(`{"code":"0","data":[{"ordId":"","sCode":"51008","sMsg":"insufficient balance"}]}`))
	assert.ErrorIs(t, err, exchange.ErrRejected)

	res, err := cfg.ProcessCreateOrder([]byte(`{"code":"0","data":[{"ordId":"777","clOrdId":"abc","sCode":"0"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "777", res.ID)
	assert.Equal(t, "abc", res.ClientOrderID)
}

func TestProcessDepositAddress_PrefersSelectedChain(t *testing.T) {
	cfg := okx.NewConfiguration()
	raw := `{"code":"0","data":[
		{"ccy":"BTC","chain":"BTC-Lightning","addr":"lnbc1","selected":true},
		{"ccy":"BTC","chain":"BTC-Bitcoin","addr":"bc1first","selected":false},
		{"ccy":"BTC","chain":"BTC-Bitcoin","addr":"bc1chosen","selected":true}]}`

	addr, err := cfg.ProcessDepositAddress([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "bc1chosen", addr.Address)
	assert.Equal(t, "BTC-Bitcoin", addr.Chain)

	_, err = cfg.ProcessDepositAddress([]byte(`{"code":"0","data":[{"ccy":"BTC","chain":"BTC-Lightning","addr":"lnbc1"}]}`))
	assert.ErrorIs(t, err, exchange.ErrUnsupportedAPIResponse)
}

func TestProcessDeposits_Cursor(t *testing.T) {
	cfg := okx.NewConfiguration()
	cfg.PageLimit = 2

	full := `{"code":"0","data":[
		{"ccy":"BTC","depId":"1","amt":"0.1","to":"bc1a","state":"2","ts":"1700000002000"},
		{"ccy":"BTC","depId":"2","amt":"0.2","to":"bc1b","state":"1","ts":"1700000001000"}]}`
	page, err := cfg.ProcessDeposits([]byte(full))
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.True(t, page.Items[0].Completed)
	assert.False(t, page.Items[1].Completed)
	assert.Equal(t, "1700000001000", page.Next)

	short := `{"code":"0","data":[{"ccy":"BTC","depId":"3","amt":"0.3","to":"bc1c","state":"2","ts":"1700000000000"}]}`
	page, err = cfg.ProcessDeposits([]byte(short))
	require.NoError(t, err)
	assert.Empty(t, page.Next)
}

func TestProcessTransactions(t *testing.T) {
	cfg := okx.NewConfiguration()
	cfg.PageLimit = 1
	raw := `{"code":"0","data":[{"billId":"900","ccy":"BTC","instId":"BTC-USD-SWAP","type":"2","subType":"1",
		"balChg":"-0.0001","bal":"0.4999","fee":"-0.00001","ordId":"42","ts":"1700000000000"}]}`

	page, err := cfg.ProcessTransactions([]byte(raw))
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	tx := page.Items[0]
	assert.Equal(t, "900", tx.BillID)
	assert.True(t, tx.Fee.Equal(d("-0.00001")))
	assert.Equal(t, "900", page.Next)
}

func TestIsWithdrawalCompleted(t *testing.T) {
	cfg := okx.NewConfiguration()
	records := []exchange.TransferRecord{
		{Currency: "BTC", Address: "bc1dest", Amount: d("0.0123"), Completed: false},
		{Currency: "BTC", Address: "bc1other", Amount: d("0.0123"), Completed: true},
		{Currency: "BTC", Address: "BC1DEST", Amount: d("0.0123"), Completed: true},
	}
	assert.True(t, cfg.IsWithdrawalCompleted(records, "bc1dest", 1_230_000))
	assert.False(t, cfg.IsWithdrawalCompleted(records, "bc1dest", 1_230_001))
	assert.False(t, cfg.IsDepositCompleted(records[:2], "bc1dest", 1_230_000))
}

func TestProcessInstrument(t *testing.T) {
	cfg := okx.NewConfiguration()
	raw := `{"code":"0","data":[{"instId":"BTC-USD-SWAP","ctVal":"100","ctValCcy":"USD","minSz":"1","lotSz":"1","settleCcy":"BTC","state":"live"}]}`
	inst, err := cfg.ProcessInstrument([]byte(raw))
	require.NoError(t, err)
	assert.True(t, inst.ContractValue.Equal(d("100")))
	assert.Equal(t, "USD", inst.ContractValueCurrency)

	_, err = cfg.ProcessInstrument([]byte(strings.Replace(raw, `"settleCcy":"BTC"`, `"settleCcy":"USDT"`, 1)))
	assert.ErrorIs(t, err, exchange.ErrUnsupportedAPIResponse)
}
