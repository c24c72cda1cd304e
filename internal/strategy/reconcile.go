package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/atmx/dealer/internal/exchange"
	"github.com/atmx/dealer/internal/model"
)

// transferClockSkew is how far a history record may predate the pending
// row it confirms. The row is written after the exchange or wallet call
// returns, and the two clocks differ.
const transferClockSkew = 10 * time.Minute

// CheckInFlightTransfers marks pending on-chain transfers completed once
// they appear in the exchange deposit or withdrawal history. History is
// fetched at most once per direction. A record only confirms a row created
// before it, and confirms at most one row. Returns the number completed.
func (e *Engine) CheckInFlightTransfers(ctx context.Context) (int, error) {
	pending, err := e.store.ListPendingInFlightTransfers(ctx)
	if err != nil {
		return 0, fmt.Errorf("check in-flight: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	deposits := &transferHistory{name: "deposits", fetch: e.exchange.FetchDeposits, match: e.exchange.IsDepositCompleted}
	withdrawals := &transferHistory{name: "withdrawals", fetch: e.exchange.FetchWithdrawals, match: e.exchange.IsWithdrawalCompleted}
	completed := 0

	for _, t := range pending {
		var h *transferHistory
		switch t.Direction {
		case model.DirectionDeposit:
			h = deposits
		case model.DirectionWithdraw:
			h = withdrawals
		default:
			slog.Warn("unknown in-flight direction", "id", t.ID, "direction", t.Direction)
			continue
		}
		if !h.fetched {
			h.records = e.history(ctx, h.name, h.fetch)
			h.claimed = make([]bool, len(h.records))
			h.fetched = true
		}
		rec, ok := h.claim(t.Address, t.SizeInSats, t.CreatedAt)
		if !ok {
			continue
		}

		if err := e.store.CompleteInFlightTransfer(ctx, t.ID); err != nil {
			return completed, fmt.Errorf("check in-flight: %w", err)
		}
		completed++
		slog.Info("in-flight transfer completed",
			"id", t.ID,
			"direction", t.Direction,
			"address", t.Address,
			"sats", t.SizeInSats,
			"record_id", rec.ID,
		)
	}
	return completed, nil
}

type transferHistory struct {
	name    string
	fetch   func(ctx context.Context, currency string) ([]exchange.TransferRecord, error)
	match   func(records []exchange.TransferRecord, address string, sizeInSats int64) bool
	fetched bool
	records []exchange.TransferRecord
	claimed []bool
}

// claim returns the first unclaimed record that completes the transfer
// and is not older than createdAt, and marks it used. Records without a
// timestamp are not filtered by age.
func (h *transferHistory) claim(address string, sizeInSats int64, createdAt time.Time) (exchange.TransferRecord, bool) {
	notBefore := createdAt.Add(-transferClockSkew)
	for i, r := range h.records {
		if h.claimed[i] {
			continue
		}
		if !r.Timestamp.IsZero() && !createdAt.IsZero() && r.Timestamp.Before(notBefore) {
			continue
		}
		if h.match([]exchange.TransferRecord{r}, address, sizeInSats) {
			h.claimed[i] = true
			return r, true
		}
	}
	return exchange.TransferRecord{}, false
}

// history returns whatever pages were fetched; a partial history can still
// confirm a transfer.
func (e *Engine) history(
	ctx context.Context,
	name string,
	fetch func(ctx context.Context, currency string) ([]exchange.TransferRecord, error),
) []exchange.TransferRecord {
	records, err := fetch(ctx, e.opts.Currency)
	if err != nil {
		slog.Warn("history fetch incomplete",
			"history", name,
			"records", len(records),
			"error", err,
		)
	}
	return records
}

// SyncTransactions copies the exchange ledger into the store. Bills are
// unique by id so repeated syncs are idempotent. Returns new rows.
func (e *Engine) SyncTransactions(ctx context.Context) (int, error) {
	txs, fetchErr := e.exchange.FetchTransactionHistory(ctx, e.opts.Currency)
	if len(txs) == 0 && fetchErr != nil {
		return 0, fmt.Errorf("sync transactions: %w", fetchErr)
	}

	inserted, err := e.store.InsertTransactions(ctx, txs)
	if err != nil {
		return inserted, fmt.Errorf("sync transactions: %w", err)
	}
	if fetchErr != nil {
		return inserted, fmt.Errorf("sync transactions: partial history: %w", fetchErr)
	}
	if inserted > 0 {
		slog.Info("transactions synced", "fetched", len(txs), "inserted", inserted)
	}
	return inserted, nil
}
