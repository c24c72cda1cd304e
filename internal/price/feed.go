package price

import (
	"context"
	"log/slog"
	"time"

	"github.com/atmx/dealer/internal/exchange"
)

// TickerSource reads the exchange ticker.
type TickerSource interface {
	FetchTicker(ctx context.Context, instrumentID string) (exchange.Ticker, error)
}

// Feed refreshes a Cache from the exchange ticker.
type Feed struct {
	source       TickerSource
	cache        *Cache
	instrumentID string
	interval     time.Duration
	onUpdate     func(Quote)
}

// NewFeed creates a feed. onUpdate, if set, is called after each refresh.
func NewFeed(source TickerSource, cache *Cache, instrumentID string, interval time.Duration, onUpdate func(Quote)) *Feed {
	return &Feed{
		source:       source,
		cache:        cache,
		instrumentID: instrumentID,
		interval:     interval,
		onUpdate:     onUpdate,
	}
}

// Run refreshes immediately and then on every tick until ctx is done.
func (f *Feed) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		if _, err := f.Refresh(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("price refresh failed", "instrument", f.instrumentID, "err", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Refresh reads the ticker once into the cache.
func (f *Feed) Refresh(ctx context.Context) (Quote, error) {
	t, err := f.source.FetchTicker(ctx, f.instrumentID)
	if err != nil {
		return Quote{}, err
	}
	q := f.cache.Set(Quote{
		InstrumentID: t.InstrumentID,
		Bid:          t.Bid,
		Ask:          t.Ask,
		Last:         t.Last,
		UpdatedAt:    t.Timestamp,
	})
	if f.onUpdate != nil {
		f.onUpdate(q)
	}
	return q, nil
}
