package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/dealer/internal/model"
)

// MemoryStore implements Store with in-memory slices and maps. Used for
// testing and simulation runs. Not suitable for production (no persistence).
type MemoryStore struct {
	mu                sync.RWMutex
	orders            []model.Order
	internalTransfers []model.InternalTransfer
	externalTransfers []model.ExternalTransfer
	inFlight          []model.InFlightTransfer
	transactions      map[string]model.Transaction
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transactions: make(map[string]model.Transaction),
	}
}

func (s *MemoryStore) InsertOrder(_ context.Context, o *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.orders {
		if existing.ID == o.ID {
			return fmt.Errorf("order %s already exists", o.ID)
		}
	}
	s.orders = append(s.orders, *o)
	return nil
}

func (s *MemoryStore) UpdateOrder(_ context.Context, o *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.orders {
		if s.orders[i].ID == o.ID {
			s.orders[i].ExchangeOrderID = o.ExchangeOrderID
			s.orders[i].StatusCode = o.StatusCode
			s.orders[i].StatusMessage = o.StatusMessage
			s.orders[i].Success = o.Success
			s.orders[i].UpdatedAt = o.UpdatedAt
			return nil
		}
	}
	return fmt.Errorf("order %s: %w", o.ID, ErrNotFound)
}

func (s *MemoryStore) ListRecentOrders(_ context.Context, limit int) ([]model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Order, 0, len(s.orders))
	for i := len(s.orders) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, s.orders[i])
	}
	return out, nil
}

// Orders returns a copy of every order row, oldest first.
func (s *MemoryStore) Orders() []model.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Order(nil), s.orders...)
}

func (s *MemoryStore) InsertInternalTransfer(_ context.Context, t *model.InternalTransfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.internalTransfers = append(s.internalTransfers, *t)
	return nil
}

// InternalTransfers returns a copy of every internal transfer row.
func (s *MemoryStore) InternalTransfers() []model.InternalTransfer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.InternalTransfer(nil), s.internalTransfers...)
}

func (s *MemoryStore) InsertExternalTransfer(_ context.Context, t *model.ExternalTransfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.externalTransfers = append(s.externalTransfers, *t)
	return nil
}

// ExternalTransfers returns a copy of every external transfer row.
func (s *MemoryStore) ExternalTransfers() []model.ExternalTransfer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.ExternalTransfer(nil), s.externalTransfers...)
}

func (s *MemoryStore) InsertInFlightTransfer(_ context.Context, t *model.InFlightTransfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = append(s.inFlight, *t)
	return nil
}

func (s *MemoryStore) ListPendingInFlightTransfers(_ context.Context) ([]model.InFlightTransfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.InFlightTransfer
	for _, t := range s.inFlight {
		if !t.IsCompleted {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) CompleteInFlightTransfer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.inFlight {
		if s.inFlight[i].ID == id {
			s.inFlight[i].IsCompleted = true
			s.inFlight[i].UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return fmt.Errorf("in-flight transfer %s: %w", id, ErrNotFound)
}

// InFlightTransfers returns a copy of every in-flight row.
func (s *MemoryStore) InFlightTransfers() []model.InFlightTransfer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.InFlightTransfer(nil), s.inFlight...)
}

func (s *MemoryStore) InsertTransactions(_ context.Context, txs []model.Transaction) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, tx := range txs {
		if _, ok := s.transactions[tx.BillID]; ok {
			continue
		}
		s.transactions[tx.BillID] = tx
		inserted++
	}
	return inserted, nil
}

// GetStats aggregates the in-memory rows (single lock, no re-entrant calls).
func (s *MemoryStore) GetStats(_ context.Context) (*model.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := &model.Stats{
		OrdersTotal:            int64(len(s.orders)),
		InternalTransfersTotal: int64(len(s.internalTransfers)),
		ExternalTransfersTotal: int64(len(s.externalTransfers)),
		TradingFeesBTC:         decimal.Zero,
		WithdrawalFeesBTC:      decimal.Zero,
		FundingFeesBTC:         decimal.Zero,
	}
	for _, o := range s.orders {
		if o.Success {
			st.OrdersSucceeded++
		}
	}
	for _, t := range s.inFlight {
		if !t.IsCompleted {
			st.InFlightPending++
		}
	}
	for _, t := range s.externalTransfers {
		if t.Success {
			st.WithdrawalFeesBTC = st.WithdrawalFeesBTC.Add(t.Fee)
		}
	}
	for _, tx := range s.transactions {
		switch tx.BillType {
		case model.BillTypeTrade:
			st.TradingFeesBTC = st.TradingFeesBTC.Sub(tx.Fee)
		case model.BillTypeFundingFee:
			st.FundingFeesBTC = st.FundingFeesBTC.Sub(tx.BalanceChange)
		}
	}
	return st, nil
}
