package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dealer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// clearEnv blanks every variable Load reads so the host environment does
// not leak into the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"OKX_API_KEY", "OKX_SECRET_KEY", "OKX_PASSPHRASE", "OKX_FUND_PASSWORD", "OKX_BASE_URL",
		"OKX_DEMO", "WALLET_API_TOKEN", "WALLET_ENDPOINT", "DATABASE_URL", "REDIS_URL",
		"LOG_LEVEL", "DEALER_LIVE_TRADING", "PORT",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)

	assert.True(t, cfg.Simulation())
	assert.Equal(t, "BTC-USD-SWAP", cfg.Exchange.InstrumentID)
	assert.Equal(t, "cross", cfg.Exchange.TradeMode)
	assert.Equal(t, 30*time.Second, cfg.Interval())
	assert.Equal(t, WalletStatic, cfg.Wallet.Kind)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.True(t, cfg.Bounds.HighBoundLeverage.Equal(decimal.NewFromInt(3)))
	assert.True(t, cfg.Exchange.WithdrawFeeBTC.Equal(decimal.RequireFromString("0.0002")))
}

func TestLoad_FileAndEnv(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
exchange:
  demo: true
  withdraw_fee_btc: 0.0001
bounds:
  low_bound_ratio_shorting: 0.96
  minimum_transfer_amount_usd: 250
dealer:
  interval: 1m
wallet:
  kind: graphql
  endpoint: https://wallet.example/graphql
  negative_balance: true
logging:
  level: debug
`)
	t.Setenv("DEALER_LIVE_TRADING", "true")
	t.Setenv("OKX_API_KEY", "key")
	t.Setenv("OKX_SECRET_KEY", "secret")
	t.Setenv("OKX_PASSPHRASE", "pass")
	t.Setenv("WALLET_API_TOKEN", "token")
	t.Setenv("PORT", "9090")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.Simulation())
	assert.True(t, cfg.Exchange.Demo)
	assert.Equal(t, "key", cfg.Exchange.APIKey)
	assert.True(t, cfg.Exchange.WithdrawFeeBTC.Equal(decimal.RequireFromString("0.0001")))
	assert.True(t, cfg.Bounds.LowBoundRatioShorting.Equal(decimal.RequireFromString("0.96")))
	assert.True(t, cfg.Bounds.MinimumTransferAmountUSD.Equal(decimal.NewFromInt(250)))
	// Unset bounds keep their defaults.
	assert.True(t, cfg.Bounds.LowSafeboundRatioShorting.Equal(decimal.RequireFromString("0.98")))
	assert.Equal(t, time.Minute, cfg.Interval())
	assert.Equal(t, WalletGraphQL, cfg.Wallet.Kind)
	assert.True(t, cfg.Wallet.NegativeBalance)
	assert.Equal(t, "token", cfg.Wallet.Token)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
	}{
		{"unordered bounds", "bounds:\n  low_bound_leverage: 2\n", nil},
		{"bad interval", "dealer:\n  interval: soon\n", nil},
		{"negative interval", "dealer:\n  interval: -1s\n", nil},
		{"live without credentials", "", map[string]string{"DEALER_LIVE_TRADING": "1"}},
		{"bad live flag", "", map[string]string{"DEALER_LIVE_TRADING": "maybe"}},
		{"graphql without endpoint", "wallet:\n  kind: graphql\n", nil},
		{"unknown wallet", "wallet:\n  kind: paper\n", nil},
		{"bad trade mode", "exchange:\n  trade_mode: portfolio\n", nil},
		{"bad port", "", map[string]string{"PORT": "http"}},
		{"port out of range", "http:\n  port: 70000\n", nil},
		{"malformed yaml", "bounds: [", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
