package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/dealer/internal/model"
	"github.com/atmx/dealer/internal/store"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestMemoryStore_OrderLifecycle(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	now := time.Now().UTC()

	o := &model.Order{ID: "o-1", InstrumentID: "BTC-USD-SWAP", OrderType: "market", Side: "sell",
		Quantity: d("3"), TradeMode: "cross", StatusCode: "submitted", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.InsertOrder(ctx, o))
	require.Error(t, s.InsertOrder(ctx, o), "duplicate id")

	o.ExchangeOrderID = "123"
	o.StatusCode = "closed"
	o.Success = true
	require.NoError(t, s.UpdateOrder(ctx, o))

	orders, err := s.ListRecentOrders(ctx, 10)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "123", orders[0].ExchangeOrderID)
	assert.True(t, orders[0].Success)

	err = s.UpdateOrder(ctx, &model.Order{ID: "missing"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMemoryStore_ListRecentOrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.InsertOrder(ctx, &model.Order{ID: id}))
	}

	orders, err := s.ListRecentOrders(ctx, 2)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "c", orders[0].ID)
	assert.Equal(t, "b", orders[1].ID)
}

func TestMemoryStore_InFlight(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	now := time.Now().UTC()

	require.NoError(t, s.InsertInFlightTransfer(ctx, &model.InFlightTransfer{ID: "2", Direction: model.DirectionWithdraw, SizeInSats: 10, CreatedAt: now}))
	require.NoError(t, s.InsertInFlightTransfer(ctx, &model.InFlightTransfer{ID: "1", Direction: model.DirectionDeposit, SizeInSats: 20, CreatedAt: now.Add(-time.Minute)}))

	pending, err := s.ListPendingInFlightTransfers(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "1", pending[0].ID)

	require.NoError(t, s.CompleteInFlightTransfer(ctx, "1"))
	pending, err = s.ListPendingInFlightTransfers(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "2", pending[0].ID)

	assert.ErrorIs(t, s.CompleteInFlightTransfer(ctx, "nope"), store.ErrNotFound)
}

func TestMemoryStore_InsertTransactionsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	txs := []model.Transaction{
		{BillID: "1", BillType: model.BillTypeTrade, Fee: d("-0.0001")},
		{BillID: "2", BillType: model.BillTypeFundingFee, BalanceChange: d("-0.00002")},
	}

	n, err := s.InsertTransactions(ctx, txs)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.InsertTransactions(ctx, append(txs, model.Transaction{BillID: "3", BillType: model.BillTypeTrade, Fee: d("-0.0002")}))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryStore_Stats(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	require.NoError(t, s.InsertOrder(ctx, &model.Order{ID: "a", Success: true}))
	require.NoError(t, s.InsertOrder(ctx, &model.Order{ID: "b"}))
	require.NoError(t, s.InsertInternalTransfer(ctx, &model.InternalTransfer{ID: "i"}))
	require.NoError(t, s.InsertExternalTransfer(ctx, &model.ExternalTransfer{ID: "e1", Fee: d("0.0002"), Success: true}))
	require.NoError(t, s.InsertExternalTransfer(ctx, &model.ExternalTransfer{ID: "e2", Fee: d("0.0002")}))
	require.NoError(t, s.InsertInFlightTransfer(ctx, &model.InFlightTransfer{ID: "f"}))
	_, err := s.InsertTransactions(ctx, []model.Transaction{
		{BillID: "1", BillType: model.BillTypeTrade, Fee: d("-0.0001")},
		{BillID: "2", BillType: model.BillTypeTrade, Fee: d("-0.0003")},
		{BillID: "3", BillType: model.BillTypeFundingFee, BalanceChange: d("-0.00002")},
		{BillID: "4", BillType: model.BillTypeFundingFee, BalanceChange: d("0.00001")},
	})
	require.NoError(t, err)

	st, err := s.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.OrdersTotal)
	assert.Equal(t, int64(1), st.OrdersSucceeded)
	assert.Equal(t, int64(1), st.InternalTransfersTotal)
	assert.Equal(t, int64(2), st.ExternalTransfersTotal)
	assert.Equal(t, int64(1), st.InFlightPending)
	assert.True(t, st.TradingFeesBTC.Equal(d("0.0004")), st.TradingFeesBTC.String())
	assert.True(t, st.WithdrawalFeesBTC.Equal(d("0.0002")))
	assert.True(t, st.FundingFeesBTC.Equal(d("0.00001")), st.FundingFeesBTC.String())
}
