package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/updown/config"
	"github.com/alejandrodnm/updown/internal/activity"
	"github.com/alejandrodnm/updown/internal/adapters/polygon"
	"github.com/alejandrodnm/updown/internal/adapters/polymarket"
	"github.com/alejandrodnm/updown/internal/api"
	"github.com/alejandrodnm/updown/internal/bot"
	"github.com/alejandrodnm/updown/internal/domain"
	"github.com/alejandrodnm/updown/internal/feed"
	"github.com/alejandrodnm/updown/internal/markets"
	"github.com/alejandrodnm/updown/internal/notify"
	"github.com/alejandrodnm/updown/internal/policy"
	"github.com/alejandrodnm/updown/internal/ports"
	"github.com/alejandrodnm/updown/internal/positions"
	"github.com/alejandrodnm/updown/internal/recorder"
	"github.com/alejandrodnm/updown/internal/redemption"
	"github.com/alejandrodnm/updown/internal/safety"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	paused := flag.Bool("paused", false, "start with the trading loop stopped")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	if cfg.Chain.PrivateKey == "" {
		slog.Error("WALLET_PRIVATE_KEY is required")
		os.Exit(1)
	}

	slog.Info("updown starting",
		"config", *configPath,
		"interval", cfg.ScanInterval(),
		"strategy", cfg.Bot.Strategy,
		"asset", cfg.Bot.Asset,
	)

	// Audit recorder: sqlite when configured, noop otherwise.
	var rec ports.Recorder = recorder.NewNoopRecorder()
	if cfg.Storage.DSN != "" {
		sqlRec, err := recorder.NewSQLiteRecorder(cfg.Storage.DSN)
		if err != nil {
			slog.Error("failed to open audit recorder", "err", err)
			os.Exit(1)
		}
		rec = sqlRec
		defer sqlRec.Close()
	}

	bus := activity.NewBus(rec)
	ledger := safety.NewLedger(safety.Limits{
		MaxTradeSize:   cfg.Safety.MaxTradeSize,
		DailyLossLimit: cfg.Safety.DailyLossLimit,
		MaxDailyLosses: cfg.Safety.MaxDailyLosses,
	}, bus)

	client := polymarket.NewClient(cfg.API.CLOBBase, cfg.API.GammaBase, cfg.API.DataBase)

	authClient, err := polymarket.NewAuthClient(client, cfg.Chain.PrivateKey, polymarket.Credentials{
		APIKey:     cfg.API.Key,
		Secret:     cfg.API.Secret,
		Passphrase: cfg.API.Passphrase,
	})
	if err != nil {
		slog.Error("failed to create auth client", "err", err)
		os.Exit(1)
	}
	slog.Info("clob: signing as", "address", authClient.Address())

	chainClient, err := polygon.NewChainClient(cfg.Chain.RPCURL, cfg.Chain.PrivateKey, cfg.Chain.KnownProxy)
	if err != nil {
		slog.Error("failed to create chain client", "err", err)
		os.Exit(1)
	}

	spikeMode := cfg.Bot.Strategy == "spike"

	scanCfg := markets.DefaultScannerConfig(cfg.Bot.Asset)
	feeRateBps := 0
	if spikeMode {
		scanCfg = markets.SpikeScannerConfig(cfg.Bot.Asset)
		feeRateBps = 1000 // aggressive entries tolerate a higher fee cap
	}
	scanner := markets.NewScanner(client, scanCfg)
	fetcher := markets.NewFetcher(client)

	executor := polymarket.NewTradingClient(authClient, domain.DefaultRetryPolicy(), feeRateBps)

	spike := policy.NewSpikeDetector(cfg.Spike.Threshold, cfg.Spike.MinSpeed)
	var pol ports.Policy = spike
	if !spikeMode {
		pol = policy.NewModelPolicy(policy.ModelConfig{
			BaseURL: cfg.Model.BaseURL,
			APIKey:  cfg.Model.APIKey,
			Model:   cfg.Model.Model,
		})
	}

	queue := redemption.NewQueue()
	engine := redemption.NewEngine(chainClient, queue, bus)
	discovery := positions.NewDiscovery(client, chainClient, queue, bus)

	priceFeed := feed.New(cfg.API.FeedURL, cfg.Bot.Symbol)

	coordinator := bot.New(bot.Config{
		ScanInterval:  cfg.ScanInterval(),
		Asset:         cfg.Bot.Asset,
		MaxEntryPrice: cfg.Bot.MaxEntryPrice,
		SpikeMode:     spikeMode,
	}, ledger, priceFeed, scanner, fetcher, pol, spike, executor, queue, engine, bus)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	priceFeed.Start(ctx)
	defer priceFeed.Stop()

	// Startup scan: enqueue anything redeemable left from prior runs.
	go discovery.ScanOnStartup(ctx)

	server := api.NewServer(cfg.Server.Addr, coordinator, ledger, bus, priceFeed, queue, discovery,
		func() string { return chainClient.ProxyAddress(context.Background()) })
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("api server exited", "err", err)
		}
	}()

	// Console status report every few minutes.
	console := notify.NewConsole()
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				console.PrintStatus(ledger.Snapshot(), bus.Trades(10), queue.Pending())
			}
		}
	}()

	if !*paused {
		coordinator.Start()
	}
	coordinator.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)

	slog.Info("updown stopped cleanly")
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
