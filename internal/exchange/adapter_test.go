package exchange_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/dealer/internal/exchange"
	"github.com/atmx/dealer/internal/exchange/okx"
)

// fakeClient serves scripted raw pages and records the cursors it saw.
type fakeClient struct {
	exchange.Client // unimplemented methods panic

	pages   []string
	errAt   int
	cursors []string
	calls   int
}

func (f *fakeClient) FetchDeposits(_ context.Context, _ string, cursor string) ([]byte, error) {
	f.cursors = append(f.cursors, cursor)
	f.calls++
	if f.errAt > 0 && f.calls == f.errAt {
		return nil, errors.New("rate limited")
	}
	if f.calls > len(f.pages) {
		return []byte(`{"code":"0","data":[]}`), nil
	}
	return []byte(f.pages[f.calls-1]), nil
}

func (f *fakeClient) FetchBalance(context.Context, string) ([]byte, error) {
	f.calls++
	return []byte(`{"code":"0","data":[{"totalEq":"100","details":[{"ccy":"BTC","eq":"0.002"}]}]}`), nil
}

func deposit(id, ts string) string {
	return fmt.Sprintf(`{"ccy":"BTC","depId":%q,"amt":"0.1","to":"bc1q","state":"2","ts":%q}`, id, ts)
}

func page(rows ...string) string {
	out := `{"code":"0","data":[`
	for i, r := range rows {
		if i > 0 {
			out += ","
		}
		out += r
	}
	return out + `]}`
}

func newAdapter(c exchange.Client) *exchange.Adapter {
	cfg := okx.NewConfiguration()
	cfg.PageLimit = 2
	return exchange.NewAdapter(c, cfg)
}

func TestPaginate_FollowsCursorUntilShortPage(t *testing.T) {
	fc := &fakeClient{pages: []string{
		page(deposit("1", "300"), deposit("2", "200")),
		page(deposit("3", "100")),
	}}

	got, err := newAdapter(fc).FetchDeposits(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, []string{"", "200"}, fc.cursors)
}

func TestPaginate_StopsOnEmptyPage(t *testing.T) {
	fc := &fakeClient{pages: []string{
		page(deposit("1", "300"), deposit("2", "200")),
		page(),
	}}

	got, err := newAdapter(fc).FetchDeposits(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 2, fc.calls)
}

func TestPaginate_StopsOnRepeatedCursor(t *testing.T) {
	p := page(deposit("1", "300"), deposit("2", "200"))
	fc := &fakeClient{pages: []string{p, p, p}}

	got, err := newAdapter(fc).FetchDeposits(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Len(t, got, 4)
	assert.Equal(t, 2, fc.calls)
}

func TestPaginate_ReturnsAccumulatedOnError(t *testing.T) {
	fc := &fakeClient{
		pages: []string{page(deposit("1", "300"), deposit("2", "200"))},
		errAt: 2,
	}

	got, err := newAdapter(fc).FetchDeposits(context.Background(), "BTC")
	require.Error(t, err)
	assert.ErrorIs(t, err, exchange.ErrExchangeCall)
	assert.Len(t, got, 2)
}

func TestPaginate_PageCap(t *testing.T) {
	var pages []string
	for i := 0; i < 10; i++ {
		pages = append(pages, page(deposit(fmt.Sprint(2*i), fmt.Sprint(1000-2*i)), deposit(fmt.Sprint(2*i+1), fmt.Sprint(999-2*i))))
	}
	fc := &fakeClient{pages: pages}

	got, err := newAdapter(fc).WithMaxPages(3).FetchDeposits(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Len(t, got, 6)
	assert.Equal(t, 3, fc.calls)
}

func TestAdapter_ValidatesBeforeCall(t *testing.T) {
	fc := &fakeClient{}
	a := newAdapter(fc)

	_, err := a.FetchBalance(context.Background(), "ETH")
	assert.True(t, exchange.IsValidation(err))
	_, err = a.FetchDeposits(context.Background(), "")
	assert.True(t, exchange.IsValidation(err))
	assert.Zero(t, fc.calls)
}

func TestAdapter_RecoversPanics(t *testing.T) {
	a := newAdapter(&fakeClient{})

	// fakeClient does not implement Withdraw; the embedded nil interface panics.
	_, err := a.Withdraw(context.Background(), exchange.WithdrawArgs{
		Currency: "BTC",
		Quantity: decimal.RequireFromString("0.1"),
		Address:  "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq",
		Fee:      decimal.RequireFromString("0.0001"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, exchange.ErrExchangeCall)
}

func TestAdapter_Observer(t *testing.T) {
	var ops []string
	a := newAdapter(&fakeClient{}).WithObserver(func(op string, _ time.Duration, err error) {
		ops = append(ops, op)
		assert.NoError(t, err)
	})

	bal, err := a.FetchBalance(context.Background(), "BTC")
	require.NoError(t, err)
	assert.True(t, bal.Total.Equal(decimal.RequireFromString("0.002")))
	assert.Equal(t, []string{"fetch_balance"}, ops)
}
