package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/atmx/dealer/internal/api"
	"github.com/atmx/dealer/internal/config"
	"github.com/atmx/dealer/internal/dealer"
	"github.com/atmx/dealer/internal/exchange"
	"github.com/atmx/dealer/internal/exchange/okx"
	"github.com/atmx/dealer/internal/logger"
	"github.com/atmx/dealer/internal/metrics"
	"github.com/atmx/dealer/internal/price"
	"github.com/atmx/dealer/internal/scheduler"
	"github.com/atmx/dealer/internal/store"
	"github.com/atmx/dealer/internal/strategy"
	"github.com/atmx/dealer/internal/wallet"
)

func main() {
	os.Exit(execute(os.Args[1:], run))
}

// execute returns the process exit code so that every deferred cleanup,
// the log file flush included, runs before os.Exit.
func execute(args []string, run func(context.Context, *config.Config) error) int {
	fs := flag.NewFlagSet("dealer", flag.ContinueOnError)
	configPath := fs.String("config", os.Getenv("DEALER_CONFIG"), "path to YAML config file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 1
	}

	logCloser, err := logger.Setup(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("dealer stopped with error", "err", err)
		return 1
	}
	slog.Info("dealer stopped")
	return 0
}

func run(ctx context.Context, cfg *config.Config) error {
	slog.Info("starting dealer",
		"instrument", cfg.Exchange.InstrumentID,
		"simulation", cfg.Simulation(),
		"demo", cfg.Exchange.Demo,
		"wallet", cfg.Wallet.Kind,
	)

	// --- Initialize store ---
	var st store.Store
	var rdb *redis.Client

	if cfg.Storage.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return fmt.Errorf("database connection: %w", err)
		}
		defer pool.Close()
		pg := store.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			return fmt.Errorf("database migration: %w", err)
		}
		st = pg
		slog.Info("connected to PostgreSQL")
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	if cfg.Storage.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.Storage.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb = redis.NewClient(opt)
		defer rdb.Close()
		st = store.NewCachedStore(st, rdb, cfg.CacheTTL())
		slog.Info("Redis cache and cycle lease enabled")
	}

	prometheus.MustRegister(metrics.NewStatsCollector(st))

	// --- Exchange ---
	okxCfg := okx.NewConfiguration()
	okxCfg.InstrumentID = cfg.Exchange.InstrumentID
	okxCfg.Currency = cfg.Exchange.Currency
	okxCfg.Chain = cfg.Exchange.Chain
	okxCfg.PageLimit = cfg.Exchange.PageLimit

	client := okx.NewClient(okx.Credentials{
		APIKey:       cfg.Exchange.APIKey,
		SecretKey:    cfg.Exchange.SecretKey,
		Passphrase:   cfg.Exchange.Passphrase,
		FundPassword: cfg.Exchange.FundPassword,
	}, okx.ClientConfig{
		BaseURL:   cfg.Exchange.BaseURL,
		Timeout:   cfg.ExchangeTimeout(),
		Simulated: cfg.Exchange.Demo,
		PageLimit: cfg.Exchange.PageLimit,
		Chain:     cfg.Exchange.Chain,
	})
	adapter := exchange.NewAdapter(client, okxCfg).
		WithMaxPages(cfg.Exchange.MaxPages).
		WithObserver(metrics.ObserveExchangeCall)

	// --- Wallet ---
	var w wallet.Wallet
	switch cfg.Wallet.Kind {
	case config.WalletGraphQL:
		w = wallet.NewGraphQL(wallet.GraphQLConfig{
			Endpoint:        cfg.Wallet.Endpoint,
			Token:           cfg.Wallet.Token,
			Timeout:         cfg.WalletTimeout(),
			NegativeBalance: cfg.Wallet.NegativeBalance,
		})
	default:
		slog.Warn("using static wallet", "liability_usd", cfg.Wallet.StaticLiability.String())
		w = wallet.NewStatic(cfg.Wallet.StaticLiability, cfg.Wallet.StaticAddress)
	}

	// --- Engine and dealer ---
	engine, err := strategy.NewEngine(adapter, st, cfg.Bounds, strategy.Options{
		InstrumentID:   cfg.Exchange.InstrumentID,
		Currency:       cfg.Exchange.Currency,
		TradeMode:      cfg.Exchange.TradeMode,
		Chain:          cfg.Exchange.Chain,
		Simulation:     cfg.Simulation(),
		WithdrawFeeBTC: cfg.Exchange.WithdrawFeeBTC,
		PollInterval:   cfg.PollInterval(),
		MaxPolls:       cfg.Dealer.MaxPolls,
	})
	if err != nil {
		return err
	}

	hub := api.NewHub()
	prices := price.NewCache(cfg.PriceMaxAge())
	feed := price.NewFeed(adapter, prices, cfg.Exchange.InstrumentID, cfg.PriceRefresh(), func(q price.Quote) {
		metrics.SetDecimal(metrics.PriceUSD, q.Mid)
		hub.Publish(api.EventPriceUpdated, q)
	})
	dl := dealer.New(engine, w, prices, adapter, cfg.Exchange.InstrumentID, hub)

	var lease scheduler.Lease
	if rdb != nil {
		lease = scheduler.NewRedisLease(rdb, cfg.Dealer.LeaseKey, cfg.LeaseTTL())
	}
	sched := scheduler.New("dealer", cfg.Interval(), lease, dl.Tick)

	// --- HTTP server ---
	svc := api.NewService(hub, prices, st, func() any {
		if s := dl.Status(); s != nil {
			return s
		}
		return nil
	})
	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.HTTP.Port),
		Handler:      svc.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(ctx) })
	g.Go(func() error { return feed.Run(ctx) })
	g.Go(func() error { return sched.Run(ctx) })
	g.Go(func() error {
		slog.Info("dealer listening", "port", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		slog.Info("shutting down dealer...")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
