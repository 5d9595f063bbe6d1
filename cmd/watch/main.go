package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"solana-portfolio-watch/internal/balance"
	"solana-portfolio-watch/internal/config"
	"solana-portfolio-watch/internal/notify"
	"solana-portfolio-watch/internal/observability"
	"solana-portfolio-watch/internal/pricing"
	"solana-portfolio-watch/internal/reconcile"
	"solana-portfolio-watch/internal/solana"
	"solana-portfolio-watch/internal/storage/stores"
	"solana-portfolio-watch/internal/watcher"
)

const shutdownTimeout = 30 * time.Second

type flags struct {
	configPath  string
	once        bool
	debug       bool
	store       string
	metricsAddr string
}

func main() {
	var f flags
	flag.StringVar(&f.configPath, "config", "config.yaml", "Path to YAML config (empty to use environment only)")
	flag.BoolVar(&f.once, "once", false, "Run a single cycle and exit")
	flag.BoolVar(&f.debug, "debug", false, "Enable development logging")
	flag.StringVar(&f.store, "store", "", "Override snapshot store kind: xlsx, postgres or memory")
	flag.StringVar(&f.metricsAddr, "metrics-addr", "", "Override Prometheus metrics HTTP address")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	logger, err := newLogger(f.debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(logger, f); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("watcher stopped", zap.Error(err))
		logger.Sync() //nolint:errcheck
		os.Exit(1)
	}

	logger.Info("Shutdown complete")
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func loadConfig(f flags) (*config.Config, error) {
	path := f.configPath
	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) && !isFlagSet("config") {
			path = ""
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if f.store != "" {
		cfg.Store.Kind = f.store
	}
	if isFlagSet("metrics-addr") {
		cfg.MetricsAddr = f.metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(fl *flag.Flag) {
		if fl.Name == name {
			set = true
		}
	})
	return set
}

func run(logger *zap.Logger, f flags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	logger = logger.With(zap.String("account", cfg.Account))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	defer close(done)
	go handleSignals(logger, cancel, done)

	if cfg.MetricsAddr != "" && !f.once {
		srv := startMetricsServer(logger, cfg.MetricsAddr)
		defer func() {
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	rpc := solana.NewHTTPClient(cfg.RPCURL,
		solana.WithMaxRetries(0),
		solana.WithTimeout(cfg.RPCTimeout),
	)
	checkRPC(ctx, logger, rpc)

	snapshots, closeSnapshots, err := stores.OpenSnapshot(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer closeSnapshots()

	history, closeHistory, err := stores.OpenHistory(ctx, cfg.ClickhouseDSN, logger)
	if err != nil {
		return err
	}
	defer closeHistory()

	var resolver pricing.MetadataResolver
	if cfg.ResolveMetadata {
		resolver = solana.NewMetadataClient(rpc)
	}

	enricher := pricing.NewEnricher(pricing.EnricherOptions{
		Source: pricing.NewHTTPSource(pricing.HTTPSourceOptions{
			Endpoint:     cfg.PriceURL,
			QuoteAddress: cfg.QuoteAddress,
			Client:       &http.Client{Timeout: cfg.PriceTimeout},
		}),
		Resolver:    resolver,
		Concurrency: cfg.Concurrency,
		Logger:      logger,
	})

	policy := reconcile.Policy{
		RelativeMultiplier: cfg.RelativeMultiplier,
		AbsoluteThreshold:  cfg.AbsoluteThreshold,
		RequireIncrease:    cfg.RequireIncrease,
	}
	engine := reconcile.NewEngine(reconcile.EngineOptions{
		Store:  snapshots,
		Policy: &policy,
		Logger: logger,
	})

	notifier := notify.NewNotifier(notify.NotifierOptions{
		Sink:   newSink(logger, cfg.Telegram),
		Ignore: cfg.IgnoreMints,
		Logger: logger,
	})

	cycle := watcher.NewCycle(watcher.CycleOptions{
		Account: cfg.Account,
		Balances: balance.NewRPCSource(balance.RPCSourceOptions{
			RPC:      rpc,
			Programs: cfg.Programs,
			Logger:   logger,
		}),
		Enricher: enricher,
		Engine:   engine,
		History:  history,
		Notifier: notifier,
		Logger:   logger,
	})

	loop := watcher.NewLoop(watcher.LoopOptions{
		Runner:   cycle,
		Interval: cfg.Interval,
		Logger:   logger,
	})

	if f.once {
		_, err := loop.RunOnce(ctx)
		return err
	}

	logger.Info("Starting watcher",
		zap.Duration("interval", cfg.Interval),
		zap.String("store", cfg.Store.Kind),
		zap.Bool("telegram", cfg.Telegram.Enabled()),
		zap.Bool("history", history != nil),
	)
	return loop.Run(ctx)
}

func newSink(logger *zap.Logger, tg config.TelegramConfig) notify.Sink {
	if !tg.Enabled() {
		logger.Warn("Telegram is not configured, alerts will only be logged")
		return notify.NewLogSink(logger)
	}
	return notify.NewTelegramSink(notify.TelegramOptions{
		BaseURL: tg.BaseURL,
		Token:   tg.Token,
		ChatID:  tg.ChatID,
	})
}

// checkRPC logs the current slot. A failure is not fatal; cycles absorb RPC errors.
func checkRPC(ctx context.Context, logger *zap.Logger, rpc *solana.HTTPClient) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	slot, err := rpc.GetSlot(ctx)
	if err != nil {
		logger.Warn("RPC connectivity check failed", zap.Error(err))
		return
	}
	logger.Info("RPC connected", zap.Int64("slot", slot))
}

func startMetricsServer(logger *zap.Logger, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok")) //nolint:errcheck
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("Starting metrics server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server error", zap.Error(err))
		}
	}()
	return srv
}

// handleSignals cancels ctx on the first signal. The running cycle is allowed
// to finish; a second signal or the shutdown timeout forces exit.
func handleSignals(logger *zap.Logger, cancel context.CancelFunc, done <-chan struct{}) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("Received signal, finishing current cycle", zap.String("signal", sig.String()))
		cancel()
	case <-done:
		return
	}

	select {
	case sig := <-sigCh:
		logger.Warn("Received second signal, forcing exit", zap.String("signal", sig.String()))
		os.Exit(1)
	case <-time.After(shutdownTimeout):
		logger.Warn("Graceful shutdown timed out, forcing exit", zap.Duration("timeout", shutdownTimeout))
		os.Exit(1)
	case <-done:
	}
}
