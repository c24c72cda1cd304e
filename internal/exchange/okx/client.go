package okx

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/atmx/dealer/internal/exchange"
)

const (
	DefaultBaseURL = "https://www.okx.com"

	timestampLayout = "2006-01-02T15:04:05.000Z"

	// Sub-account type codes of the asset transfer endpoint.
	accountFunding = "6"
	accountTrading = "18"

	// Withdrawal destination: on-chain.
	destinationOnChain = "4"
)

// Credentials authenticate private endpoints.
type Credentials struct {
	APIKey       string
	SecretKey    string
	Passphrase   string
	FundPassword string
}

// ClientConfig holds the transport settings of the REST client.
type ClientConfig struct {
	BaseURL   string
	Timeout   time.Duration
	Simulated bool // demo trading environment
	PageLimit int
	Chain     string
}

// APIError is a non-zero OKX response code.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("okx: code %s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error { return exchange.ErrRejected }

// Client is a signed OKX v5 REST client returning raw response bodies.
// Requests are never retried: a duplicated POST could double an order.
type Client struct {
	http      *resty.Client
	creds     Credentials
	pageLimit int
	chain     string
	now       func() time.Time
}

var _ exchange.Client = (*Client)(nil)

// NewClient creates an OKX client.
func NewClient(creds Credentials, cfg ClientConfig) *Client {
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := cfg.PageLimit
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	chain := cfg.Chain
	if chain == "" {
		chain = DefaultChain
	}

	hc := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")
	if cfg.Simulated {
		hc.SetHeader("x-simulated-trading", "1")
	}

	return &Client{
		http:      hc,
		creds:     creds,
		pageLimit: limit,
		chain:     chain,
		now:       time.Now,
	}
}

func (c *Client) FetchDepositAddress(ctx context.Context, currency string) ([]byte, error) {
	return c.get(ctx, "/api/v5/asset/deposit-address", url.Values{"ccy": {currency}})
}

func (c *Client) FetchDeposits(ctx context.Context, currency, cursor string) ([]byte, error) {
	return c.get(ctx, "/api/v5/asset/deposit-history", c.pageQuery(currency, "after", cursor))
}

func (c *Client) FetchWithdrawals(ctx context.Context, currency, cursor string) ([]byte, error) {
	return c.get(ctx, "/api/v5/asset/withdrawal-history", c.pageQuery(currency, "after", cursor))
}

func (c *Client) FetchTransactionHistory(ctx context.Context, currency, cursor string) ([]byte, error) {
	return c.get(ctx, "/api/v5/account/bills", c.pageQuery(currency, "after", cursor))
}

func (c *Client) Withdraw(ctx context.Context, args exchange.WithdrawArgs) ([]byte, error) {
	body := map[string]string{
		"ccy":    args.Currency,
		"amt":    args.Quantity.String(),
		"dest":   destinationOnChain,
		"toAddr": args.Address,
		"fee":    args.Fee.String(),
		"chain":  c.chain,
	}
	if c.creds.FundPassword != "" {
		body["pwd"] = c.creds.FundPassword
	}
	return c.post(ctx, "/api/v5/asset/withdrawal", body)
}

func (c *Client) Transfer(ctx context.Context, args exchange.TransferArgs) ([]byte, error) {
	return c.post(ctx, "/api/v5/asset/transfer", map[string]string{
		"ccy":  args.Currency,
		"amt":  args.Quantity.String(),
		"from": accountType(args.From),
		"to":   accountType(args.To),
		"type": "0",
	})
}

func (c *Client) CreateMarketOrder(ctx context.Context, args exchange.OrderArgs) ([]byte, error) {
	body := map[string]string{
		"instId":  args.InstrumentID,
		"tdMode":  args.TradeMode,
		"side":    string(args.Side),
		"ordType": "market",
		"sz":      args.Quantity.String(),
	}
	if args.ClientOrderID != "" {
		body["clOrdId"] = args.ClientOrderID
	}
	return c.post(ctx, "/api/v5/trade/order", body)
}

func (c *Client) FetchOrder(ctx context.Context, instrumentID, orderID string) ([]byte, error) {
	return c.get(ctx, "/api/v5/trade/order", url.Values{"instId": {instrumentID}, "ordId": {orderID}})
}

func (c *Client) FetchBalance(ctx context.Context, currency string) ([]byte, error) {
	return c.get(ctx, "/api/v5/account/balance", url.Values{"ccy": {currency}})
}

func (c *Client) FetchPosition(ctx context.Context, instrumentID string) ([]byte, error) {
	return c.get(ctx, "/api/v5/account/positions", url.Values{"instId": {instrumentID}})
}

func (c *Client) FetchTicker(ctx context.Context, instrumentID string) ([]byte, error) {
	return c.get(ctx, "/api/v5/market/ticker", url.Values{"instId": {instrumentID}})
}

func (c *Client) FetchInstrument(ctx context.Context, instrumentID string) ([]byte, error) {
	return c.get(ctx, "/api/v5/public/instruments", url.Values{"instType": {"SWAP"}, "instId": {instrumentID}})
}

func (c *Client) pageQuery(currency, cursorKey, cursor string) url.Values {
	q := url.Values{
		"ccy":   {currency},
		"limit": {strconv.Itoa(c.pageLimit)},
	}
	if cursor != "" {
		q.Set(cursorKey, cursor)
	}
	return q
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) post(ctx context.Context, path string, body any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("okx: encode %s: %w", path, err)
	}
	return c.do(ctx, http.MethodPost, path, b)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	ts := c.now().UTC().Format(timestampLayout)

	req := c.http.R().
		SetContext(ctx).
		SetHeader("OK-ACCESS-KEY", c.creds.APIKey).
		SetHeader("OK-ACCESS-SIGN", Sign(c.creds.SecretKey, ts, method, path, string(body))).
		SetHeader("OK-ACCESS-TIMESTAMP", ts).
		SetHeader("OK-ACCESS-PASSPHRASE", c.creds.Passphrase)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("okx: %s %s: %w", method, path, err)
	}

	raw := resp.Body()
	if code := gjson.GetBytes(raw, "code"); code.Exists() && code.String() != "0" {
		return raw, &APIError{Code: code.String(), Message: gjson.GetBytes(raw, "msg").String()}
	}
	if resp.IsError() {
		return raw, fmt.Errorf("okx: %s %s: http %d", method, path, resp.StatusCode())
	}
	return raw, nil
}

// Sign computes the OK-ACCESS-SIGN header: base64(HMAC-SHA256(secret,
// timestamp + method + requestPath + body)).
func Sign(secret, timestamp, method, requestPath, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + strings.ToUpper(method) + requestPath + body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func accountType(a exchange.Account) string {
	switch a {
	case exchange.AccountFunding:
		return accountFunding
	case exchange.AccountTrading:
		return accountTrading
	default:
		return ""
	}
}
