// Package store defines the audit persistence interface of the dealer.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache for aggregates), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/atmx/dealer/internal/model"
)

// ErrNotFound is returned when an update targets a missing row.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface. Rows are append-only except for the
// order status fields and the in-flight completion flag.
type Store interface {
	// --- Orders ---

	// InsertOrder records a hedge order attempt before submission.
	InsertOrder(ctx context.Context, o *model.Order) error

	// UpdateOrder writes the exchange id and status of an existing order.
	UpdateOrder(ctx context.Context, o *model.Order) error

	// ListRecentOrders returns the latest orders, newest first.
	ListRecentOrders(ctx context.Context, limit int) ([]model.Order, error)

	// --- Transfers ---

	InsertInternalTransfer(ctx context.Context, t *model.InternalTransfer) error
	InsertExternalTransfer(ctx context.Context, t *model.ExternalTransfer) error

	// InsertInFlightTransfer tracks an on-chain movement awaiting exchange confirmation.
	InsertInFlightTransfer(ctx context.Context, t *model.InFlightTransfer) error

	// ListPendingInFlightTransfers returns transfers not yet completed, oldest first.
	ListPendingInFlightTransfers(ctx context.Context) ([]model.InFlightTransfer, error)

	// CompleteInFlightTransfer flips the completion flag.
	CompleteInFlightTransfer(ctx context.Context, id string) error

	// --- Exchange ledger ---

	// InsertTransactions stores bills, skipping bill ids already present.
	// Returns the number of new rows.
	InsertTransactions(ctx context.Context, txs []model.Transaction) (int, error)

	// --- Aggregates ---

	// GetStats computes counts and fee sums for the metrics exporter.
	GetStats(ctx context.Context) (*model.Stats, error)
}
