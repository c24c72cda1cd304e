// Package price keeps the latest BTC/USD quote of the hedging instrument.
// All monetary values use shopspring/decimal — never float64 for money.
package price

import (
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// ErrStale is returned when no quote newer than the allowed age exists.
var ErrStale = errors.New("price: quote is stale")

// Quote is one top-of-book observation.
type Quote struct {
	InstrumentID string          `json:"instrument_id"`
	Bid          decimal.Decimal `json:"bid"`
	Ask          decimal.Decimal `json:"ask"`
	Last         decimal.Decimal `json:"last"`
	Mid          decimal.Decimal `json:"mid"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Cache holds the latest quote. Safe for concurrent use.
type Cache struct {
	mu     sync.RWMutex
	quote  Quote
	maxAge time.Duration
	now    func() time.Time
}

// NewCache creates a cache whose quotes expire after maxAge.
func NewCache(maxAge time.Duration) *Cache {
	return &Cache{maxAge: maxAge, now: time.Now}
}

// Set stores q, computing its mid price. The mid is the bid/ask midpoint
// when both sides are quoted, the last trade otherwise.
func (c *Cache) Set(q Quote) Quote {
	if q.Bid.IsPositive() && q.Ask.IsPositive() {
		q.Mid = q.Bid.Add(q.Ask).Div(decimal.NewFromInt(2))
	} else {
		q.Mid = q.Last
	}
	if q.UpdatedAt.IsZero() {
		q.UpdatedAt = c.now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.quote = q
	return q
}

// Get returns the latest quote, fresh or not.
func (c *Cache) Get() (Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.quote, !c.quote.UpdatedAt.IsZero()
}

// Mid returns the mid price if the quote is fresh and positive.
func (c *Cache) Mid() (decimal.Decimal, error) {
	q, ok := c.Get()
	if !ok || !q.Mid.IsPositive() || c.now().Sub(q.UpdatedAt) > c.maxAge {
		return decimal.Zero, ErrStale
	}
	return q.Mid, nil
}
