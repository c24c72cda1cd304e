package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atmx/dealer/internal/exchange"
	"github.com/atmx/dealer/internal/model"
	"github.com/atmx/dealer/internal/units"
)

// WithdrawBookkeepingFunc records the liability reduction after an
// on-chain withdrawal left the exchange.
type WithdrawBookkeepingFunc func(ctx context.Context, sizeInBTC decimal.Decimal) error

// WithdrawAddressFunc resolves the on-chain address a withdrawal is sent
// to. It is only called when a withdrawal is actually executed.
type WithdrawAddressFunc func(ctx context.Context) (string, error)

// DepositOnExchangeFunc funds an exchange deposit address, typically with
// an on-chain payment from the operator wallet.
type DepositOnExchangeFunc func(ctx context.Context, address string, sizeInSats int64, memo string) error

// LeverageResult reports one UpdateLeverage call. The decision carries the
// original and the projected ratios in every branch.
type LeverageResult struct {
	Snapshot         RiskSnapshot            `json:"snapshot"`
	Decision         RebalanceDecision       `json:"decision"`
	InternalTransfer *model.InternalTransfer `json:"internal_transfer,omitempty"`
	ExternalTransfer *model.ExternalTransfer `json:"external_transfer,omitempty"`
	DepositAddress   string                  `json:"deposit_address,omitempty"`
	Simulated        bool                    `json:"simulated"`
}

// UpdateLeverage keeps the trading collateral inside the leverage brackets.
//
// A withdrawal resolves withdrawAddress, moves funds trading → funding (continuing on failure,
// the funds may already be there), then withdraws on-chain net of the
// configured fee and calls bookkeeping. A deposit first tries funding →
// trading; if that fails it fetches an exchange deposit address and asks
// depositOnExchange to fund it.
func (e *Engine) UpdateLeverage(
	ctx context.Context,
	liabilityInUSD, priceInUSD decimal.Decimal,
	withdrawAddress WithdrawAddressFunc,
	withdrawBookkeeping WithdrawBookkeepingFunc,
	depositOnExchange DepositOnExchangeFunc,
) (LeverageResult, error) {
	var res LeverageResult
	if liabilityInUSD.IsNegative() {
		return res, fmt.Errorf("update leverage: %w: %s", ErrNegativeLiability, liabilityInUSD)
	}

	snap, err := e.Snapshot(ctx, priceInUSD)
	if err != nil {
		return res, fmt.Errorf("update leverage: %w", err)
	}
	res.Snapshot = snap
	res.Decision = GetRebalanceTransferIfNeeded(
		liabilityInUSD,
		snap.ExposureInUSD,
		snap.UsedCollateralInUSD,
		snap.TotalCollateralInUSD,
		snap.LastPriceInUSD,
		e.bounds,
	)
	d := res.Decision

	log := slog.With(
		"branch", d.Branch,
		"side", d.TransferSide,
		"size_btc", d.TransferSizeInBTC.String(),
		"leverage_ratio", d.LeverageRatio.StringFixed(4),
		"new_leverage_ratio", d.NewLeverageRatio.StringFixed(4),
		"margin_ratio", d.MarginRatio.StringFixed(4),
	)

	if e.opts.Simulation {
		res.Simulated = true
		log.Info("simulation: rebalance not executed")
		return res, nil
	}
	if !d.IsTransfer() {
		log.Debug("leverage within brackets")
		return res, nil
	}

	switch d.TransferSide {
	case TransferWithdraw:
		err = e.withdraw(ctx, &res, withdrawAddress, withdrawBookkeeping)
	case TransferDeposit:
		err = e.deposit(ctx, &res, depositOnExchange)
	}
	if err != nil {
		log.Error("rebalance failed", "error", err)
		return res, fmt.Errorf("update leverage: %w", err)
	}
	log.Info("rebalance executed")
	return res, nil
}

func (e *Engine) withdraw(ctx context.Context, res *LeverageResult, resolve WithdrawAddressFunc, bookkeeping WithdrawBookkeepingFunc) error {
	size := res.Decision.TransferSizeInBTC

	if resolve == nil {
		return fmt.Errorf("%w: no withdraw address configured", ErrTransferFailed)
	}
	address, err := resolve(ctx)
	if err != nil {
		return fmt.Errorf("%w: withdraw address: %w", ErrTransferFailed, err)
	}

	it, err := e.internalTransfer(ctx, size, exchange.AccountTrading, exchange.AccountFunding)
	res.InternalTransfer = it
	if err != nil {
		slog.Warn("trading to funding transfer failed, withdrawing from funding anyway",
			"size_btc", size.String(),
			"error", err,
		)
	}

	amount := units.FloorBTC(size.Sub(e.opts.WithdrawFeeBTC))
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s BTC does not cover the %s BTC withdrawal fee",
			ErrTransferFailed, size, e.opts.WithdrawFeeBTC)
	}

	ext := &model.ExternalTransfer{
		ID:              uuid.New().String(),
		Currency:        e.opts.Currency,
		Quantity:        amount,
		DestinationType: "on_chain",
		ToAddress:       address,
		Chain:           e.opts.Chain,
		Fee:             e.opts.WithdrawFeeBTC,
		CreatedAt:       e.now(),
	}
	wr, werr := e.exchange.Withdraw(ctx, exchange.WithdrawArgs{
		Currency: e.opts.Currency,
		Quantity: amount,
		Address:  address,
		Fee:      e.opts.WithdrawFeeBTC,
	})
	if werr == nil {
		ext.TransferID = wr.ID
		ext.Success = true
		if wr.Chain != "" {
			ext.Chain = wr.Chain
		}
	}
	res.ExternalTransfer = ext
	if err := e.store.InsertExternalTransfer(context.WithoutCancel(ctx), ext); err != nil {
		slog.Error("external transfer audit failed", "transfer_id", ext.TransferID, "error", err)
	}
	if werr != nil {
		return fmt.Errorf("%w: withdraw: %w", ErrTransferFailed, werr)
	}

	e.trackInFlight(ctx, model.DirectionWithdraw, address, units.BTCToSat(amount), "withdraw "+wr.ID)

	if bookkeeping != nil {
		if err := bookkeeping(ctx, amount); err != nil {
			return fmt.Errorf("withdraw bookkeeping: %w", err)
		}
	}
	return nil
}

func (e *Engine) deposit(ctx context.Context, res *LeverageResult, depositOnExchange DepositOnExchangeFunc) error {
	size := res.Decision.TransferSizeInBTC

	it, err := e.internalTransfer(ctx, size, exchange.AccountFunding, exchange.AccountTrading)
	res.InternalTransfer = it
	if err == nil {
		return nil
	}
	slog.Warn("funding to trading transfer failed, depositing on-chain",
		"size_btc", size.String(),
		"error", err,
	)

	addr, aerr := e.exchange.FetchDepositAddress(ctx, e.opts.Currency)
	if aerr != nil {
		return fmt.Errorf("%w: deposit address: %w", ErrTransferFailed, errors.Join(err, aerr))
	}
	res.DepositAddress = addr.Address

	if depositOnExchange == nil {
		return fmt.Errorf("%w: no on-chain deposit path configured", ErrTransferFailed)
	}
	sats := units.BTCToSat(size)
	memo := fmt.Sprintf("dealer deposit %s BTC to %s", size, e.exchange.Name())
	if err := depositOnExchange(ctx, addr.Address, sats, memo); err != nil {
		return fmt.Errorf("%w: on-chain deposit: %w", ErrTransferFailed, err)
	}

	e.trackInFlight(ctx, model.DirectionDeposit, addr.Address, sats, memo)
	return nil
}

// internalTransfer moves size between sub-accounts and always writes the
// audit row.
func (e *Engine) internalTransfer(ctx context.Context, size decimal.Decimal, from, to exchange.Account) (*model.InternalTransfer, error) {
	row := &model.InternalTransfer{
		ID:           uuid.New().String(),
		Currency:     e.opts.Currency,
		Quantity:     size,
		FromAccount:  string(from),
		ToAccount:    string(to),
		InstrumentID: e.opts.InstrumentID,
		CreatedAt:    e.now(),
	}
	tr, err := e.exchange.Transfer(ctx, exchange.TransferArgs{
		Currency: e.opts.Currency,
		Quantity: size,
		From:     from,
		To:       to,
	})
	if err == nil {
		row.TransferID = tr.ID
		row.Success = true
	}
	if aerr := e.store.InsertInternalTransfer(context.WithoutCancel(ctx), row); aerr != nil {
		slog.Error("internal transfer audit failed", "transfer_id", row.TransferID, "error", aerr)
	}
	return row, err
}

func (e *Engine) trackInFlight(ctx context.Context, direction, address string, sats int64, memo string) {
	now := e.now()
	t := &model.InFlightTransfer{
		ID:         uuid.New().String(),
		Direction:  direction,
		Address:    address,
		SizeInSats: sats,
		Memo:       memo,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := e.store.InsertInFlightTransfer(context.WithoutCancel(ctx), t); err != nil {
		slog.Error("in-flight transfer audit failed",
			"direction", direction,
			"address", address,
			"sats", sats,
			"error", err,
		)
	}
}
