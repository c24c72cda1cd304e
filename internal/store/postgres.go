package store

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/atmx/dealer/internal/model"
)

//go:embed schema.sql
var schema string

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the audit tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertOrder(ctx context.Context, o *model.Order) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO orders (id, instrument_id, order_type, side, quantity, trade_mode,
		                     exchange_order_id, status_code, status_message, success, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6, NULLIF($7, ''), $8, $9, $10, $11, $12)`,
		o.ID, o.InstrumentID, o.OrderType, o.Side, o.Quantity.String(), o.TradeMode,
		o.ExchangeOrderID, o.StatusCode, o.StatusMessage, o.Success, o.CreatedAt, o.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) UpdateOrder(ctx context.Context, o *model.Order) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE orders
		 SET exchange_order_id = NULLIF($2, ''), status_code = $3, status_message = $4,
		     success = $5, updated_at = $6
		 WHERE id = $1`,
		o.ID, o.ExchangeOrderID, o.StatusCode, o.StatusMessage, o.Success, o.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %s: %w", o.ID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ListRecentOrders(ctx context.Context, limit int) ([]model.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, instrument_id, order_type, side, quantity::TEXT, trade_mode,
		        COALESCE(exchange_order_id, ''), status_code, status_message, success,
		        created_at, updated_at
		 FROM orders ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var o model.Order
		var qty string
		if err := rows.Scan(&o.ID, &o.InstrumentID, &o.OrderType, &o.Side, &qty, &o.TradeMode,
			&o.ExchangeOrderID, &o.StatusCode, &o.StatusMessage, &o.Success,
			&o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		if o.Quantity, err = parseNumeric("orders.quantity", qty); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (s *PostgresStore) InsertInternalTransfer(ctx context.Context, t *model.InternalTransfer) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO internal_transfers (id, currency, quantity, from_account, to_account,
		                                 instrument_id, transfer_id, success, created_at)
		 VALUES ($1, $2, $3::NUMERIC, $4, $5, $6, NULLIF($7, ''), $8, $9)`,
		t.ID, t.Currency, t.Quantity.String(), t.FromAccount, t.ToAccount,
		t.InstrumentID, t.TransferID, t.Success, t.CreatedAt,
	)
	return err
}

func (s *PostgresStore) InsertExternalTransfer(ctx context.Context, t *model.ExternalTransfer) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO external_transfers (id, currency, quantity, destination_type, to_address,
		                                 chain, fee, transfer_id, success, created_at)
		 VALUES ($1, $2, $3::NUMERIC, $4, $5, $6, $7::NUMERIC, NULLIF($8, ''), $9, $10)`,
		t.ID, t.Currency, t.Quantity.String(), t.DestinationType, t.ToAddress,
		t.Chain, t.Fee.String(), t.TransferID, t.Success, t.CreatedAt,
	)
	return err
}

func (s *PostgresStore) InsertInFlightTransfer(ctx context.Context, t *model.InFlightTransfer) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO in_flight_transfers (id, direction, address, size_in_sats, memo,
		                                  is_completed, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.Direction, t.Address, t.SizeInSats, t.Memo,
		t.IsCompleted, t.CreatedAt, t.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) ListPendingInFlightTransfers(ctx context.Context) ([]model.InFlightTransfer, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, direction, address, size_in_sats, memo, is_completed, created_at, updated_at
		 FROM in_flight_transfers WHERE NOT is_completed ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.InFlightTransfer
	for rows.Next() {
		var t model.InFlightTransfer
		if err := rows.Scan(&t.ID, &t.Direction, &t.Address, &t.SizeInSats, &t.Memo,
			&t.IsCompleted, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CompleteInFlightTransfer(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE in_flight_transfers SET is_completed = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("in-flight transfer %s: %w", id, ErrNotFound)
	}
	return nil
}

// InsertTransactions writes all bills in one batch; existing bill ids are skipped.
func (s *PostgresStore) InsertTransactions(ctx context.Context, txs []model.Transaction) (int, error) {
	if len(txs) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, tx := range txs {
		batch.Queue(
			`INSERT INTO transactions (bill_id, currency, instrument_id, bill_type, bill_sub_type,
			                           balance_change, balance, fee, order_id, timestamp)
			 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC, $9, $10)
			 ON CONFLICT (bill_id) DO NOTHING`,
			tx.BillID, tx.Currency, tx.InstrumentID, tx.BillType, tx.BillSubType,
			tx.BalanceChange.String(), tx.Balance.String(), tx.Fee.String(), tx.OrderID, tx.Timestamp,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range txs {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("insert transactions: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func (s *PostgresStore) GetStats(ctx context.Context) (*model.Stats, error) {
	var st model.Stats
	var tradingFees, withdrawalFees, fundingFees string

	err := s.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM orders),
			(SELECT COUNT(*) FROM orders WHERE success),
			(SELECT COUNT(*) FROM internal_transfers),
			(SELECT COUNT(*) FROM external_transfers),
			(SELECT COUNT(*) FROM in_flight_transfers WHERE NOT is_completed),
			(SELECT COALESCE(-SUM(fee), 0)::TEXT FROM transactions WHERE bill_type = $1),
			(SELECT COALESCE(SUM(fee), 0)::TEXT FROM external_transfers WHERE success),
			(SELECT COALESCE(-SUM(balance_change), 0)::TEXT FROM transactions WHERE bill_type = $2)`,
		model.BillTypeTrade, model.BillTypeFundingFee).
		Scan(&st.OrdersTotal, &st.OrdersSucceeded,
			&st.InternalTransfersTotal, &st.ExternalTransfersTotal, &st.InFlightPending,
			&tradingFees, &withdrawalFees, &fundingFees)
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}

	if st.TradingFeesBTC, err = parseNumeric("trading fees", tradingFees); err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	if st.WithdrawalFeesBTC, err = parseNumeric("withdrawal fees", withdrawalFees); err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	if st.FundingFeesBTC, err = parseNumeric("funding fees", fundingFees); err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	return &st, nil
}

// parseNumeric reads a NUMERIC column selected as TEXT.
func parseNumeric(column, v string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %s %q: %w", column, v, err)
	}
	return d, nil
}
