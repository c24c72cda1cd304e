// Package wallet is the operator wallet the dealer hedges for: it reports
// the USD liability and moves bitcoin on-chain.
package wallet

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
)

// ErrWallet wraps failures reported by the wallet backend.
var ErrWallet = errors.New("wallet: request failed")

// Wallet is the operator wallet.
type Wallet interface {
	// GetLiabilityInUSD returns the USD amount the dealer must hedge.
	GetLiabilityInUSD(ctx context.Context) (decimal.Decimal, error)

	// GetOnChainDepositAddress returns an address that credits the
	// operator's BTC wallet.
	GetOnChainDepositAddress(ctx context.Context) (string, error)

	// PayOnChain sends amountSats from the operator's BTC wallet.
	PayOnChain(ctx context.Context, address string, amountSats int64, memo string) error
}

// Payment is one PayOnChain call recorded by Static.
type Payment struct {
	Address    string
	AmountSats int64
	Memo       string
}

// Static is an in-process Wallet with a fixed liability. Used for
// simulation runs and tests.
type Static struct {
	mu        sync.Mutex
	liability decimal.Decimal
	address   string
	payErr    error
	payments  []Payment
}

// NewStatic creates a static wallet.
func NewStatic(liability decimal.Decimal, address string) *Static {
	return &Static{liability: liability, address: address}
}

// SetLiability replaces the reported liability.
func (s *Static) SetLiability(v decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liability = v
}

// FailPayments makes every later PayOnChain return err.
func (s *Static) FailPayments(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payErr = err
}

// Payments returns the recorded payments.
func (s *Static) Payments() []Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Payment(nil), s.payments...)
}

func (s *Static) GetLiabilityInUSD(context.Context) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liability, nil
}

func (s *Static) GetOnChainDepositAddress(context.Context) (string, error) {
	return s.address, nil
}

func (s *Static) PayOnChain(_ context.Context, address string, amountSats int64, memo string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.payErr != nil {
		return s.payErr
	}
	s.payments = append(s.payments, Payment{Address: address, AmountSats: amountSats, Memo: memo})
	return nil
}
