package wallet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/atmx/dealer/internal/units"
)

const (
	walletsQuery = `query me { me { defaultAccount { wallets { id walletCurrency balance } } } }`

	addressMutation = `mutation onChainAddressCurrent($input: OnChainAddressCurrentInput!) {
  onChainAddressCurrent(input: $input) { errors { message } address }
}`

	paymentMutation = `mutation onChainPaymentSend($input: OnChainPaymentSendInput!) {
  onChainPaymentSend(input: $input) { errors { message } status }
}`
)

// GraphQLConfig configures the GraphQL wallet client.
type GraphQLConfig struct {
	Endpoint string
	Token    string
	Timeout  time.Duration

	// NegativeBalance reads the liability as the negated USD balance, for
	// backends that book user stable balances as a dealer debit.
	NegativeBalance bool
}

// GraphQL talks to a Galoy-style wallet API. The liability is the balance
// of the account's USD wallet, reported in cents.
type GraphQL struct {
	http    *resty.Client
	negated bool
}

var _ Wallet = (*GraphQL)(nil)

// NewGraphQL creates a GraphQL wallet client.
func NewGraphQL(cfg GraphQLConfig) *GraphQL {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	hc := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.Endpoint, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.Token != "" {
		hc.SetAuthToken(cfg.Token)
	}
	return &GraphQL{http: hc, negated: cfg.NegativeBalance}
}

func (g *GraphQL) GetLiabilityInUSD(ctx context.Context) (decimal.Decimal, error) {
	w, err := g.wallet(ctx, "USD")
	if err != nil {
		return decimal.Zero, err
	}
	cents := w.Get("balance")
	if !cents.Exists() {
		return decimal.Zero, fmt.Errorf("%w: usd wallet without balance", ErrWallet)
	}
	usd := units.CentsToUSD(cents.Int())
	if g.negated {
		usd = usd.Neg()
	}
	return usd, nil
}

func (g *GraphQL) GetOnChainDepositAddress(ctx context.Context) (string, error) {
	w, err := g.wallet(ctx, "BTC")
	if err != nil {
		return "", err
	}
	data, err := g.do(ctx, addressMutation, map[string]any{
		"input": map[string]any{"walletId": w.Get("id").String()},
	})
	if err != nil {
		return "", err
	}
	if err := mutationErrors(data, "onChainAddressCurrent"); err != nil {
		return "", err
	}
	addr := data.Get("onChainAddressCurrent.address").String()
	if addr == "" {
		return "", fmt.Errorf("%w: empty address", ErrWallet)
	}
	return addr, nil
}

func (g *GraphQL) PayOnChain(ctx context.Context, address string, amountSats int64, memo string) error {
	w, err := g.wallet(ctx, "BTC")
	if err != nil {
		return err
	}
	data, err := g.do(ctx, paymentMutation, map[string]any{
		"input": map[string]any{
			"walletId": w.Get("id").String(),
			"address":  address,
			"amount":   amountSats,
			"memo":     memo,
		},
	})
	if err != nil {
		return err
	}
	if err := mutationErrors(data, "onChainPaymentSend"); err != nil {
		return err
	}
	if status := data.Get("onChainPaymentSend.status").String(); status != "SUCCESS" && status != "PENDING" {
		return fmt.Errorf("%w: payment status %q", ErrWallet, status)
	}
	return nil
}

func (g *GraphQL) wallet(ctx context.Context, currency string) (gjson.Result, error) {
	data, err := g.do(ctx, walletsQuery, nil)
	if err != nil {
		return gjson.Result{}, err
	}
	for _, w := range data.Get("me.defaultAccount.wallets").Array() {
		if w.Get("walletCurrency").String() == currency {
			return w, nil
		}
	}
	return gjson.Result{}, fmt.Errorf("%w: no %s wallet", ErrWallet, currency)
}

// do posts one GraphQL operation and returns its data object.
func (g *GraphQL) do(ctx context.Context, query string, variables map[string]any) (gjson.Result, error) {
	body := map[string]any{"query": query}
	if variables != nil {
		body["variables"] = variables
	}

	resp, err := g.http.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", uuid.NewString()).
		SetBody(body).
		Post("/graphql")
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%w: %w", ErrWallet, err)
	}
	if resp.IsError() {
		return gjson.Result{}, fmt.Errorf("%w: http %d", ErrWallet, resp.StatusCode())
	}

	raw := resp.Body()
	if errs := gjson.GetBytes(raw, "errors"); errs.Exists() && len(errs.Array()) > 0 {
		return gjson.Result{}, fmt.Errorf("%w: %s", ErrWallet, errs.Array()[0].Get("message").String())
	}
	data := gjson.GetBytes(raw, "data")
	if !data.Exists() {
		return gjson.Result{}, fmt.Errorf("%w: response without data", ErrWallet)
	}
	return data, nil
}

func mutationErrors(data gjson.Result, field string) error {
	errs := data.Get(field + ".errors").Array()
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Get("message").String())
	}
	return fmt.Errorf("%w: %s", ErrWallet, strings.Join(msgs, "; "))
}
