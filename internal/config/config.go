// Package config loads the dealer configuration from a YAML file, a .env
// file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/atmx/dealer/internal/logger"
	"github.com/atmx/dealer/internal/strategy"
)

// Wallet backends.
const (
	WalletStatic  = "static"
	WalletGraphQL = "graphql"
)

type Config struct {
	Exchange ExchangeConfig  `yaml:"exchange"`
	Bounds   strategy.Bounds `yaml:"bounds"`
	Dealer   DealerConfig    `yaml:"dealer"`
	Wallet   WalletConfig    `yaml:"wallet"`
	Storage  StorageConfig   `yaml:"storage"`
	HTTP     HTTPConfig      `yaml:"http"`
	Logging  logger.Config   `yaml:"logging"`
}

type ExchangeConfig struct {
	BaseURL        string          `yaml:"base_url"`
	Demo           bool            `yaml:"demo"`
	InstrumentID   string          `yaml:"instrument_id"`
	Currency       string          `yaml:"currency"`
	Chain          string          `yaml:"chain"`
	TradeMode      string          `yaml:"trade_mode"`
	PageLimit      int             `yaml:"page_limit"`
	MaxPages       int             `yaml:"max_pages"`
	Timeout        string          `yaml:"timeout"`
	WithdrawFeeBTC decimal.Decimal `yaml:"withdraw_fee_btc"`

	// Secrets come from the environment only.
	APIKey       string `yaml:"-"`
	SecretKey    string `yaml:"-"`
	Passphrase   string `yaml:"-"`
	FundPassword string `yaml:"-"`
}

type DealerConfig struct {
	Interval     string `yaml:"interval"`
	LiveTrading  bool   `yaml:"live_trading"`
	PollInterval string `yaml:"poll_interval"`
	MaxPolls     int    `yaml:"max_polls"`
	PriceRefresh string `yaml:"price_refresh"`
	PriceMaxAge  string `yaml:"price_max_age"`
	LeaseKey     string `yaml:"lease_key"`
	LeaseTTL     string `yaml:"lease_ttl"`
}

type WalletConfig struct {
	Kind            string          `yaml:"kind"`
	Endpoint        string          `yaml:"endpoint"`
	Token           string          `yaml:"-"`
	Timeout         string          `yaml:"timeout"`
	NegativeBalance bool            `yaml:"negative_balance"`
	StaticLiability decimal.Decimal `yaml:"static_liability_usd"`
	StaticAddress   string          `yaml:"static_address"`
}

type StorageConfig struct {
	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`
	CacheTTL    string `yaml:"cache_ttl"`
}

type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Load reads path (optional), then .env, then the environment. An empty
// path means defaults plus environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{Bounds: strategy.DefaultBounds()}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	str := map[string]*string{
		"OKX_API_KEY":       &cfg.Exchange.APIKey,
		"OKX_SECRET_KEY":    &cfg.Exchange.SecretKey,
		"OKX_PASSPHRASE":    &cfg.Exchange.Passphrase,
		"OKX_FUND_PASSWORD": &cfg.Exchange.FundPassword,
		"OKX_BASE_URL":      &cfg.Exchange.BaseURL,
		"WALLET_API_TOKEN":  &cfg.Wallet.Token,
		"WALLET_ENDPOINT":   &cfg.Wallet.Endpoint,
		"DATABASE_URL":      &cfg.Storage.DatabaseURL,
		"REDIS_URL":         &cfg.Storage.RedisURL,
		"LOG_LEVEL":         &cfg.Logging.Level,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	flags := map[string]*bool{
		"DEALER_LIVE_TRADING": &cfg.Dealer.LiveTrading,
		"OKX_DEMO":            &cfg.Exchange.Demo,
	}
	for key, dst := range flags {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", key, v, err)
			}
			*dst = b
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.HTTP.Port = port
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Exchange.BaseURL == "" {
		cfg.Exchange.BaseURL = "https://www.okx.com"
	}
	if cfg.Exchange.InstrumentID == "" {
		cfg.Exchange.InstrumentID = "BTC-USD-SWAP"
	}
	if cfg.Exchange.Currency == "" {
		cfg.Exchange.Currency = "BTC"
	}
	if cfg.Exchange.Chain == "" {
		cfg.Exchange.Chain = "BTC-Bitcoin"
	}
	if cfg.Exchange.TradeMode == "" {
		cfg.Exchange.TradeMode = "cross"
	}
	if cfg.Exchange.PageLimit == 0 {
		cfg.Exchange.PageLimit = 100
	}
	if cfg.Exchange.MaxPages == 0 {
		cfg.Exchange.MaxPages = 50
	}
	if cfg.Exchange.Timeout == "" {
		cfg.Exchange.Timeout = "10s"
	}
	if cfg.Exchange.WithdrawFeeBTC.IsZero() {
		cfg.Exchange.WithdrawFeeBTC = decimal.RequireFromString("0.0002")
	}
	if cfg.Dealer.Interval == "" {
		cfg.Dealer.Interval = "30s"
	}
	if cfg.Dealer.PollInterval == "" {
		cfg.Dealer.PollInterval = "1s"
	}
	if cfg.Dealer.MaxPolls == 0 {
		cfg.Dealer.MaxPolls = strategy.DefaultMaxPolls
	}
	if cfg.Dealer.PriceRefresh == "" {
		cfg.Dealer.PriceRefresh = "5s"
	}
	if cfg.Dealer.PriceMaxAge == "" {
		cfg.Dealer.PriceMaxAge = "30s"
	}
	if cfg.Dealer.LeaseKey == "" {
		cfg.Dealer.LeaseKey = "dealer:cycle:lease"
	}
	if cfg.Dealer.LeaseTTL == "" {
		cfg.Dealer.LeaseTTL = "5m"
	}
	if cfg.Wallet.Kind == "" {
		cfg.Wallet.Kind = WalletStatic
	}
	if cfg.Wallet.Timeout == "" {
		cfg.Wallet.Timeout = "15s"
	}
	if cfg.Storage.CacheTTL == "" {
		cfg.Storage.CacheTTL = "30s"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

func (c *Config) Validate() error {
	if err := c.Bounds.Validate(); err != nil {
		return err
	}

	durations := map[string]string{
		"exchange.timeout":     c.Exchange.Timeout,
		"dealer.interval":      c.Dealer.Interval,
		"dealer.poll_interval": c.Dealer.PollInterval,
		"dealer.price_refresh": c.Dealer.PriceRefresh,
		"dealer.price_max_age": c.Dealer.PriceMaxAge,
		"dealer.lease_ttl":     c.Dealer.LeaseTTL,
		"wallet.timeout":       c.Wallet.Timeout,
		"storage.cache_ttl":    c.Storage.CacheTTL,
	}
	for name, v := range durations {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if c.Exchange.WithdrawFeeBTC.IsNegative() {
		return fmt.Errorf("exchange.withdraw_fee_btc must not be negative")
	}
	if c.Exchange.TradeMode != "cross" && c.Exchange.TradeMode != "isolated" {
		return fmt.Errorf("exchange.trade_mode must be cross or isolated, got %q", c.Exchange.TradeMode)
	}
	if c.Dealer.LiveTrading {
		if c.Exchange.APIKey == "" || c.Exchange.SecretKey == "" || c.Exchange.Passphrase == "" {
			return fmt.Errorf("OKX_API_KEY, OKX_SECRET_KEY and OKX_PASSPHRASE are required for live trading")
		}
	}

	switch c.Wallet.Kind {
	case WalletStatic:
		if c.Wallet.StaticLiability.IsNegative() {
			return fmt.Errorf("wallet.static_liability_usd must not be negative")
		}
	case WalletGraphQL:
		if c.Wallet.Endpoint == "" {
			return fmt.Errorf("wallet.endpoint is required for the graphql wallet")
		}
	default:
		return fmt.Errorf("unknown wallet.kind %q", c.Wallet.Kind)
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http.port %d", c.HTTP.Port)
	}
	return nil
}

// Simulation reports whether orders and transfers are only logged.
func (c *Config) Simulation() bool {
	return !c.Dealer.LiveTrading
}

func (c *Config) Interval() time.Duration { return mustDuration(c.Dealer.Interval) }
func (c *Config) PollInterval() time.Duration { return mustDuration(c.Dealer.PollInterval) }
func (c *Config) PriceRefresh() time.Duration { return mustDuration(c.Dealer.PriceRefresh) }
func (c *Config) PriceMaxAge() time.Duration { return mustDuration(c.Dealer.PriceMaxAge) }
func (c *Config) LeaseTTL() time.Duration { return mustDuration(c.Dealer.LeaseTTL) }
func (c *Config) ExchangeTimeout() time.Duration { return mustDuration(c.Exchange.Timeout) }
func (c *Config) WalletTimeout() time.Duration { return mustDuration(c.Wallet.Timeout) }
func (c *Config) CacheTTL() time.Duration { return mustDuration(c.Storage.CacheTTL) }

// mustDuration parses a duration already checked by Validate.
func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
