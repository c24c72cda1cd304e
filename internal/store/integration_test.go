package store_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/dealer/internal/model"
	"github.com/atmx/dealer/internal/store"
)

// These tests run against real services when DATABASE_URL / REDIS_URL are set.

func postgresStore(t *testing.T) *store.PostgresStore {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	s := store.NewPostgresStore(pool)
	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestPostgresStore_OrderAndTransactions(t *testing.T) {
	s := postgresStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	o := &model.Order{ID: uuid.NewString(), InstrumentID: "BTC-USD-SWAP", OrderType: "market", Side: "buy",
		Quantity: d("2"), TradeMode: "cross", StatusCode: "submitted", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.InsertOrder(ctx, o))

	o.ExchangeOrderID = "ex-1"
	o.Success = true
	o.StatusCode = "closed"
	require.NoError(t, s.UpdateOrder(ctx, o))

	bill := model.Transaction{BillID: uuid.NewString(), Currency: "BTC", BillType: model.BillTypeTrade,
		BalanceChange: d("-0.0001"), Balance: d("1"), Fee: d("-0.0001"), Timestamp: now}
	n, err := s.InsertTransactions(ctx, []model.Transaction{bill, bill})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	st, err := s.GetStats(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, st.OrdersSucceeded, int64(1))
}

func TestCachedStore_InvalidatesStats(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	t.Cleanup(func() { _ = rdb.Close() })

	ctx := context.Background()
	require.NoError(t, rdb.Del(ctx, "dealer:stats").Err())

	s := store.NewCachedStore(store.NewMemoryStore(), rdb, time.Minute)
	st, err := s.GetStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.OrdersTotal)

	require.NoError(t, s.InsertOrder(ctx, &model.Order{ID: "cached-1"}))
	st, err = s.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.OrdersTotal)
}
