// Package okx implements the exchange contracts for the OKX v5 API and the
// BTC-USD inverse perpetual swap.
package okx

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/atmx/dealer/internal/exchange"
	"github.com/atmx/dealer/internal/model"
	"github.com/atmx/dealer/internal/units"
)

const (
	DefaultInstrumentID = "BTC-USD-SWAP"
	DefaultCurrency     = "BTC"
	DefaultChain        = "BTC-Bitcoin"
	DefaultPageLimit    = 100

	// stateSuccess is the deposit and withdrawal history state of a
	// credited deposit or a completed withdrawal.
	stateSuccess = "2"
)

var (
	tradeModes = map[string]bool{"cross": true, "isolated": true}

	// orderStates maps OKX order states onto the normalized lifecycle.
	orderStates = map[string]exchange.OrderStatus{
		"live":             exchange.OrderStatusOpen,
		"partially_filled": exchange.OrderStatusOpen,
		"filled":           exchange.OrderStatusClosed,
		"canceled":         exchange.OrderStatusCanceled,
		"mmp_canceled":     exchange.OrderStatusCanceled,
	}

	// btcAddress accepts legacy, P2SH and bech32 addresses on main and test networks.
	btcAddress = regexp.MustCompile(`^(bc1|tb1|bcrt1)[02-9ac-hj-np-z]{8,87}$|^[123mn][1-9A-HJ-NP-Za-km-z]{25,34}$`)
)

// Configuration validates dealer requests and normalizes OKX responses for
// one instrument and one collateral currency.
type Configuration struct {
	InstrumentID string
	Currency     string
	Chain        string
	PageLimit    int
}

// NewConfiguration returns the configuration for the BTC-USD swap.
func NewConfiguration() Configuration {
	return Configuration{
		InstrumentID: DefaultInstrumentID,
		Currency:     DefaultCurrency,
		Chain:        DefaultChain,
		PageLimit:    DefaultPageLimit,
	}
}

func (c Configuration) Name() string { return "okx" }

// --- Input validation ---

func (c Configuration) ValidateDepositAddress(currency string) error {
	return c.validateCurrency(currency)
}

func (c Configuration) ValidateHistory(currency string) error {
	return c.validateCurrency(currency)
}

func (c Configuration) ValidateBalance(currency string) error {
	return c.validateCurrency(currency)
}

func (c Configuration) ValidateWithdraw(args exchange.WithdrawArgs) error {
	if err := c.validateCurrency(args.Currency); err != nil {
		return err
	}
	if !args.Quantity.IsPositive() {
		return exchange.Invalid(exchange.NonPositiveQuantity, "quantity", args.Quantity.String())
	}
	if args.Fee.IsNegative() {
		return exchange.Invalid(exchange.NonPositiveQuantity, "fee", args.Fee.String())
	}
	if args.Address == "" {
		return exchange.Invalid(exchange.MissingParameters, "address", "")
	}
	if !btcAddress.MatchString(args.Address) {
		return exchange.Invalid(exchange.UnsupportedAddress, "address", args.Address)
	}
	return nil
}

func (c Configuration) ValidateTransfer(args exchange.TransferArgs) error {
	if err := c.validateCurrency(args.Currency); err != nil {
		return err
	}
	if !args.Quantity.IsPositive() {
		return exchange.Invalid(exchange.NonPositiveQuantity, "quantity", args.Quantity.String())
	}
	if accountType(args.From) == "" {
		return exchange.Invalid(exchange.MissingParameters, "from", string(args.From))
	}
	if accountType(args.To) == "" {
		return exchange.Invalid(exchange.MissingParameters, "to", string(args.To))
	}
	if args.From == args.To {
		return exchange.Invalid(exchange.MissingParameters, "to", string(args.To))
	}
	return nil
}

func (c Configuration) ValidateOrder(args exchange.OrderArgs) error {
	if err := c.ValidateInstrument(args.InstrumentID); err != nil {
		return err
	}
	if args.Side != exchange.SideBuy && args.Side != exchange.SideSell {
		return exchange.Invalid(exchange.UnsupportedSide, "side", string(args.Side))
	}
	if !args.Quantity.IsPositive() || !args.Quantity.Equal(args.Quantity.Truncate(0)) {
		return exchange.Invalid(exchange.NonPositiveQuantity, "quantity", args.Quantity.String())
	}
	if !tradeModes[args.TradeMode] {
		return exchange.Invalid(exchange.MissingParameters, "trade_mode", args.TradeMode)
	}
	return nil
}

func (c Configuration) ValidateFetchOrder(instrumentID, orderID string) error {
	if err := c.ValidateInstrument(instrumentID); err != nil {
		return err
	}
	if orderID == "" {
		return exchange.Invalid(exchange.MissingParameters, "order_id", "")
	}
	return nil
}

func (c Configuration) ValidateInstrument(instrumentID string) error {
	if instrumentID == "" {
		return exchange.Invalid(exchange.MissingParameters, "instrument_id", "")
	}
	if instrumentID != c.InstrumentID {
		return exchange.Invalid(exchange.UnsupportedInstrument, "instrument_id", instrumentID)
	}
	return nil
}

func (c Configuration) validateCurrency(currency string) error {
	if currency == "" {
		return exchange.Invalid(exchange.MissingParameters, "currency", "")
	}
	if currency != c.Currency {
		return exchange.Invalid(exchange.UnsupportedCurrency, "currency", currency)
	}
	return nil
}

// --- Response normalization ---

func (c Configuration) ProcessDepositAddress(raw []byte) (exchange.DepositAddress, error) {
	rows, err := dataRows(raw)
	if err != nil {
		return exchange.DepositAddress{}, err
	}
	if len(rows) == 0 {
		return exchange.DepositAddress{}, exchange.ErrEmptyAPIResponse
	}

	var fallback *gjson.Result
	for i := range rows {
		row := rows[i]
		if row.Get("ccy").String() != c.Currency || row.Get("chain").String() != c.Chain {
			continue
		}
		if row.Get("addr").String() == "" {
			continue
		}
		if row.Get("selected").Bool() {
			return c.depositAddress(row), nil
		}
		if fallback == nil {
			fallback = &rows[i]
		}
	}
	if fallback == nil {
		return exchange.DepositAddress{}, exchange.Unsupported("no %s deposit address on chain %s", c.Currency, c.Chain)
	}
	return c.depositAddress(*fallback), nil
}

func (c Configuration) depositAddress(row gjson.Result) exchange.DepositAddress {
	return exchange.DepositAddress{
		Currency: c.Currency,
		Address:  row.Get("addr").String(),
		Chain:    c.Chain,
	}
}

func (c Configuration) ProcessDeposits(raw []byte) (exchange.Page[exchange.TransferRecord], error) {
	return c.transferPage(raw, "depId")
}

func (c Configuration) ProcessWithdrawals(raw []byte) (exchange.Page[exchange.TransferRecord], error) {
	return c.transferPage(raw, "wdId")
}

func (c Configuration) transferPage(raw []byte, idField string) (exchange.Page[exchange.TransferRecord], error) {
	var page exchange.Page[exchange.TransferRecord]
	rows, err := dataRows(raw)
	if err != nil {
		return page, err
	}

	for _, row := range rows {
		if ccy := row.Get("ccy").String(); ccy != c.Currency {
			return page, exchange.Unsupported("history entry currency %q", ccy)
		}
		id, err := stringField(row, idField)
		if err != nil {
			return page, err
		}
		amount, err := decimalField(row, "amt")
		if err != nil {
			return page, err
		}
		fee, err := optionalDecimalField(row, "fee")
		if err != nil {
			return page, err
		}
		ts, err := timestampField(row, "ts")
		if err != nil {
			return page, err
		}
		state := row.Get("state").String()
		page.Items = append(page.Items, exchange.TransferRecord{
			ID:        id,
			Currency:  c.Currency,
			Chain:     row.Get("chain").String(),
			Address:   row.Get("to").String(),
			TxID:      row.Get("txId").String(),
			Amount:    amount,
			Fee:       fee,
			State:     state,
			Completed: state == stateSuccess,
			Timestamp: ts,
		})
	}

	if len(rows) >= c.pageLimit() {
		page.Next = rows[len(rows)-1].Get("ts").String()
	}
	return page, nil
}

func (c Configuration) ProcessTransactions(raw []byte) (exchange.Page[model.Transaction], error) {
	var page exchange.Page[model.Transaction]
	rows, err := dataRows(raw)
	if err != nil {
		return page, err
	}

	for _, row := range rows {
		if ccy := row.Get("ccy").String(); ccy != c.Currency {
			return page, exchange.Unsupported("bill currency %q", ccy)
		}
		billID, err := stringField(row, "billId")
		if err != nil {
			return page, err
		}
		balChg, err := decimalField(row, "balChg")
		if err != nil {
			return page, err
		}
		bal, err := decimalField(row, "bal")
		if err != nil {
			return page, err
		}
		fee, err := optionalDecimalField(row, "fee")
		if err != nil {
			return page, err
		}
		ts, err := timestampField(row, "ts")
		if err != nil {
			return page, err
		}
		page.Items = append(page.Items, model.Transaction{
			BillID:        billID,
			Currency:      c.Currency,
			InstrumentID:  row.Get("instId").String(),
			BillType:      row.Get("type").String(),
			BillSubType:   row.Get("subType").String(),
			BalanceChange: balChg,
			Balance:       bal,
			Fee:           fee,
			OrderID:       row.Get("ordId").String(),
			Timestamp:     ts,
		})
	}

	if len(rows) >= c.pageLimit() {
		page.Next = rows[len(rows)-1].Get("billId").String()
	}
	return page, nil
}

func (c Configuration) ProcessWithdraw(raw []byte) (exchange.WithdrawResult, error) {
	row, err := firstRow(raw)
	if err != nil {
		return exchange.WithdrawResult{}, err
	}
	id, err := stringField(row, "wdId")
	if err != nil {
		return exchange.WithdrawResult{}, err
	}
	amount, err := decimalField(row, "amt")
	if err != nil {
		return exchange.WithdrawResult{}, err
	}
	if ccy := row.Get("ccy").String(); ccy != c.Currency {
		return exchange.WithdrawResult{}, exchange.Unsupported("withdrawal currency %q", ccy)
	}
	return exchange.WithdrawResult{
		ID:       id,
		Currency: c.Currency,
		Quantity: amount,
		Chain:    row.Get("chain").String(),
	}, nil
}

func (c Configuration) ProcessTransfer(raw []byte) (exchange.TransferResult, error) {
	row, err := firstRow(raw)
	if err != nil {
		return exchange.TransferResult{}, err
	}
	id, err := stringField(row, "transId")
	if err != nil {
		return exchange.TransferResult{}, err
	}
	amount, err := decimalField(row, "amt")
	if err != nil {
		return exchange.TransferResult{}, err
	}
	return exchange.TransferResult{ID: id, Quantity: amount}, nil
}

func (c Configuration) ProcessCreateOrder(raw []byte) (exchange.OrderResult, error) {
	row, err := firstRow(raw)
	if err != nil {
		return exchange.OrderResult{}, err
	}
	if code := row.Get("sCode").String(); code != "" && code != "0" {
		return exchange.OrderResult{}, &APIError{Code: code, Message: row.Get("sMsg").String()}
	}
	id, err := stringField(row, "ordId")
	if err != nil {
		return exchange.OrderResult{}, err
	}
	return exchange.OrderResult{ID: id, ClientOrderID: row.Get("clOrdId").String()}, nil
}

func (c Configuration) ProcessOrder(raw []byte) (exchange.OrderState, error) {
	row, err := firstRow(raw)
	if err != nil {
		return exchange.OrderState{}, err
	}
	if err := c.checkInstrument(row); err != nil {
		return exchange.OrderState{}, err
	}
	id, err := stringField(row, "ordId")
	if err != nil {
		return exchange.OrderState{}, err
	}
	state := row.Get("state").String()
	status, ok := orderStates[state]
	if !ok {
		return exchange.OrderState{}, exchange.Unsupported("order state %q", state)
	}
	size, err := decimalField(row, "sz")
	if err != nil {
		return exchange.OrderState{}, err
	}
	filled, err := optionalDecimalField(row, "accFillSz")
	if err != nil {
		return exchange.OrderState{}, err
	}
	avgPx, err := optionalDecimalField(row, "avgPx")
	if err != nil {
		return exchange.OrderState{}, err
	}
	return exchange.OrderState{
		ID:           id,
		InstrumentID: c.InstrumentID,
		Status:       status,
		Side:         exchange.Side(row.Get("side").String()),
		Quantity:     size,
		Filled:       filled,
		AveragePrice: avgPx,
	}, nil
}

func (c Configuration) ProcessBalance(raw []byte) (exchange.Balance, error) {
	row, err := firstRow(raw)
	if err != nil {
		return exchange.Balance{}, err
	}
	if row.Get("totalEq").String() == "" {
		return exchange.Balance{}, exchange.ErrMissingAccountValue
	}
	totalEq, err := decimalField(row, "totalEq")
	if err != nil {
		return exchange.Balance{}, err
	}

	var detail gjson.Result
	found := false
	for _, d := range row.Get("details").Array() {
		if d.Get("ccy").String() == c.Currency {
			detail, found = d, true
			break
		}
	}
	if !found {
		// OKX omits currencies the account has never held.
		return exchange.Balance{
			Currency:       c.Currency,
			Total:          decimal.Zero,
			Free:           decimal.Zero,
			Used:           decimal.Zero,
			TotalEquityUSD: totalEq,
		}, nil
	}
	if detail.Get("eq").String() == "" {
		return exchange.Balance{}, exchange.ErrMissingAccountValue
	}

	total, err := decimalField(detail, "eq")
	if err != nil {
		return exchange.Balance{}, err
	}
	free, err := optionalDecimalField(detail, "availBal")
	if err != nil {
		return exchange.Balance{}, err
	}
	used, err := optionalDecimalField(detail, "frozenBal")
	if err != nil {
		return exchange.Balance{}, err
	}
	return exchange.Balance{
		Currency:       c.Currency,
		Total:          total,
		Free:           free,
		Used:           used,
		TotalEquityUSD: totalEq,
	}, nil
}

func (c Configuration) ProcessPosition(raw []byte) (exchange.Position, error) {
	row, err := firstRow(raw)
	if err != nil {
		return exchange.Position{}, err
	}
	if err := c.checkInstrument(row); err != nil {
		return exchange.Position{}, err
	}
	qty, err := decimalField(row, "pos")
	if err != nil {
		return exchange.Position{}, err
	}
	notional, err := decimalField(row, "notionalUsd")
	if err != nil {
		return exchange.Position{}, err
	}
	marginField := "imr"
	if row.Get(marginField).String() == "" {
		marginField = "margin"
	}
	margin, err := decimalField(row, marginField)
	if err != nil {
		return exchange.Position{}, err
	}
	last, err := decimalField(row, "last")
	if err != nil {
		return exchange.Position{}, err
	}
	liqPx, err := optionalDecimalField(row, "liqPx")
	if err != nil {
		return exchange.Position{}, err
	}
	lever, err := optionalDecimalField(row, "lever")
	if err != nil {
		return exchange.Position{}, err
	}
	return exchange.Position{
		InstrumentID:        c.InstrumentID,
		Quantity:            qty,
		NotionalUSD:         notional.Abs(),
		MarginBTC:           margin,
		LastPriceUSD:        last,
		LiquidationPriceUSD: liqPx,
		Leverage:            lever,
	}, nil
}

func (c Configuration) ProcessTicker(raw []byte) (exchange.Ticker, error) {
	row, err := firstRow(raw)
	if err != nil {
		return exchange.Ticker{}, err
	}
	if err := c.checkInstrument(row); err != nil {
		return exchange.Ticker{}, err
	}
	last, err := decimalField(row, "last")
	if err != nil {
		return exchange.Ticker{}, err
	}
	bid, err := decimalField(row, "bidPx")
	if err != nil {
		return exchange.Ticker{}, err
	}
	ask, err := decimalField(row, "askPx")
	if err != nil {
		return exchange.Ticker{}, err
	}
	ts, err := timestampField(row, "ts")
	if err != nil {
		return exchange.Ticker{}, err
	}
	return exchange.Ticker{
		InstrumentID: c.InstrumentID,
		Last:         last,
		Bid:          bid,
		Ask:          ask,
		Timestamp:    ts,
	}, nil
}

func (c Configuration) ProcessInstrument(raw []byte) (exchange.Instrument, error) {
	row, err := firstRow(raw)
	if err != nil {
		return exchange.Instrument{}, err
	}
	if err := c.checkInstrument(row); err != nil {
		return exchange.Instrument{}, err
	}
	ctVal, err := decimalField(row, "ctVal")
	if err != nil {
		return exchange.Instrument{}, err
	}
	minSz, err := decimalField(row, "minSz")
	if err != nil {
		return exchange.Instrument{}, err
	}
	lotSz, err := decimalField(row, "lotSz")
	if err != nil {
		return exchange.Instrument{}, err
	}
	if settle := row.Get("settleCcy").String(); settle != c.Currency {
		return exchange.Instrument{}, exchange.Unsupported("settlement currency %q", settle)
	}
	return exchange.Instrument{
		ID:                    c.InstrumentID,
		ContractValue:         ctVal,
		ContractValueCurrency: row.Get("ctValCcy").String(),
		MinSize:               minSz,
		LotSize:               lotSz,
		SettleCurrency:        c.Currency,
		State:                 row.Get("state").String(),
	}, nil
}

// --- History filtering ---

func (c Configuration) IsDepositCompleted(records []exchange.TransferRecord, address string, sizeInSats int64) bool {
	return c.matchTransfer(records, address, sizeInSats)
}

func (c Configuration) IsWithdrawalCompleted(records []exchange.TransferRecord, address string, sizeInSats int64) bool {
	return c.matchTransfer(records, address, sizeInSats)
}

func (c Configuration) matchTransfer(records []exchange.TransferRecord, address string, sizeInSats int64) bool {
	for _, r := range records {
		if !r.Completed || r.Currency != c.Currency {
			continue
		}
		if strings.EqualFold(r.Address, address) && units.BTCToSat(r.Amount) == sizeInSats {
			return true
		}
	}
	return false
}

// --- gjson helpers ---

func (c Configuration) checkInstrument(row gjson.Result) error {
	if id := row.Get("instId").String(); id != c.InstrumentID {
		return exchange.Unsupported("instrument %q, expected %q", id, c.InstrumentID)
	}
	return nil
}

func (c Configuration) pageLimit() int {
	if c.PageLimit <= 0 {
		return DefaultPageLimit
	}
	return c.PageLimit
}

func dataRows(raw []byte) ([]gjson.Result, error) {
	if len(raw) == 0 {
		return nil, exchange.ErrEmptyAPIResponse
	}
	if !gjson.ValidBytes(raw) {
		return nil, exchange.Unsupported("malformed json")
	}
	data := gjson.GetBytes(raw, "data")
	if !data.Exists() || !data.IsArray() {
		return nil, exchange.Unsupported("missing data array")
	}
	return data.Array(), nil
}

func firstRow(raw []byte) (gjson.Result, error) {
	rows, err := dataRows(raw)
	if err != nil {
		return gjson.Result{}, err
	}
	if len(rows) == 0 {
		return gjson.Result{}, exchange.ErrEmptyAPIResponse
	}
	return rows[0], nil
}

func stringField(row gjson.Result, field string) (string, error) {
	v := row.Get(field).String()
	if v == "" {
		return "", exchange.Unsupported("missing field %s", field)
	}
	return v, nil
}

func decimalField(row gjson.Result, field string) (decimal.Decimal, error) {
	return exchange.ParseDecimal(field, row.Get(field).String())
}

func optionalDecimalField(row gjson.Result, field string) (decimal.Decimal, error) {
	v := row.Get(field).String()
	if v == "" {
		return decimal.Zero, nil
	}
	return exchange.ParseDecimal(field, v)
}

func timestampField(row gjson.Result, field string) (time.Time, error) {
	v := row.Get(field).String()
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, exchange.Unsupported("malformed timestamp %s=%q", field, v)
	}
	return time.UnixMilli(ms).UTC(), nil
}
