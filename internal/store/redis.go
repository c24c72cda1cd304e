package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atmx/dealer/internal/model"
)

const (
	statsKey        = "dealer:stats"
	recentOrdersKey = "dealer:orders:recent"

	recentOrdersCached = 100
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for the aggregate reads served to the exporter and the HTTP API.
// Writes go to the primary store and invalidate the cache.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) InsertOrder(ctx context.Context, o *model.Order) error {
	if err := s.primary.InsertOrder(ctx, o); err != nil {
		return err
	}
	s.invalidate(ctx, statsKey, recentOrdersKey)
	return nil
}

func (s *CachedStore) UpdateOrder(ctx context.Context, o *model.Order) error {
	if err := s.primary.UpdateOrder(ctx, o); err != nil {
		return err
	}
	s.invalidate(ctx, statsKey, recentOrdersKey)
	return nil
}

func (s *CachedStore) InsertInternalTransfer(ctx context.Context, t *model.InternalTransfer) error {
	if err := s.primary.InsertInternalTransfer(ctx, t); err != nil {
		return err
	}
	s.invalidate(ctx, statsKey)
	return nil
}

func (s *CachedStore) InsertExternalTransfer(ctx context.Context, t *model.ExternalTransfer) error {
	if err := s.primary.InsertExternalTransfer(ctx, t); err != nil {
		return err
	}
	s.invalidate(ctx, statsKey)
	return nil
}

func (s *CachedStore) InsertInFlightTransfer(ctx context.Context, t *model.InFlightTransfer) error {
	if err := s.primary.InsertInFlightTransfer(ctx, t); err != nil {
		return err
	}
	s.invalidate(ctx, statsKey)
	return nil
}

func (s *CachedStore) CompleteInFlightTransfer(ctx context.Context, id string) error {
	if err := s.primary.CompleteInFlightTransfer(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, statsKey)
	return nil
}

func (s *CachedStore) InsertTransactions(ctx context.Context, txs []model.Transaction) (int, error) {
	n, err := s.primary.InsertTransactions(ctx, txs)
	if n > 0 {
		s.invalidate(ctx, statsKey)
	}
	return n, err
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetStats(ctx context.Context) (*model.Stats, error) {
	data, err := s.rdb.Get(ctx, statsKey).Bytes()
	if err == nil {
		var st model.Stats
		if json.Unmarshal(data, &st) == nil {
			return &st, nil
		}
	}

	st, err := s.primary.GetStats(ctx)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(st); err == nil {
		s.rdb.Set(ctx, statsKey, data, s.ttl)
	}
	return st, nil
}

// ListRecentOrders serves up to recentOrdersCached rows from the cache.
func (s *CachedStore) ListRecentOrders(ctx context.Context, limit int) ([]model.Order, error) {
	if limit <= 0 || limit > recentOrdersCached {
		return s.primary.ListRecentOrders(ctx, limit)
	}

	var orders []model.Order
	data, err := s.rdb.Get(ctx, recentOrdersKey).Bytes()
	if err != nil || json.Unmarshal(data, &orders) != nil {
		orders, err = s.primary.ListRecentOrders(ctx, recentOrdersCached)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(orders); err == nil {
			s.rdb.Set(ctx, recentOrdersKey, data, s.ttl)
		}
	}

	if len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListPendingInFlightTransfers(ctx context.Context) ([]model.InFlightTransfer, error) {
	return s.primary.ListPendingInFlightTransfers(ctx)
}

func (s *CachedStore) invalidate(ctx context.Context, keys ...string) {
	s.rdb.Del(ctx, keys...)
}
