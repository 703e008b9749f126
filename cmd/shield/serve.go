package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"CDPShield/internal/alert"
	"CDPShield/internal/analysis"
	"CDPShield/internal/assistant"
	"CDPShield/internal/collector"
	"CDPShield/internal/config"
	"CDPShield/internal/health"
	"CDPShield/internal/logger"
	"CDPShield/internal/metrics"
	"CDPShield/internal/model"
	"CDPShield/internal/notifier"
	"CDPShield/internal/portfolio"
	"CDPShield/internal/positions"
	"CDPShield/internal/recorder"
	"CDPShield/internal/scheduler"
	"CDPShield/internal/server"
	"CDPShield/internal/testnet"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the alert monitor, scheduler, Telegram bot and HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			return serve(path)
		},
	}
}

func newFetcher(cfg *config.Config) collector.Fetcher {
	switch cfg.DataSource.Provider {
	case "rest":
		return collector.NewRESTFetcher(cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.Proxy)
	case "mock":
		return collector.NewMockFetcher()
	default:
		return collector.NewYahooFetcher(cfg.Proxy)
	}
}

func openRecorder(cfg *config.Config, log zerolog.Logger) recorder.Recorder {
	if cfg.Database.SQLitePath == "" {
		return recorder.NewNoopRecorder()
	}
	sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
	if err != nil {
		log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
		return recorder.NewNoopRecorder()
	}
	return sr
}

func serve(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	log.Info().Str("config", cfgPath).Msg("CDPShield starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fetcher := newFetcher(cfg)
	log.Info().Str("provider", fetcher.Name()).Strs("symbols", cfg.DataSource.Symbols).Msg("data source ready")
	col := collector.NewCollector(fetcher, cfg.DataSource.Symbols, log)

	network := testnet.NewDemoNetwork(time.Now)
	quotes := portfolio.NewQuoteBook(portfolio.DemoMarketData(), network, cfg.DataSource.Symbols)

	store, err := positions.NewStore(cfg.State.PositionsFile, log)
	if err != nil {
		return fmt.Errorf("open position store: %w", err)
	}
	if len(store.List()) == 0 && cfg.SeedDemo() {
		if err := store.Set(portfolio.DemoCDPs(time.Now())); err != nil {
			return fmt.Errorf("seed demo positions: %w", err)
		}
		log.Info().Int("positions", len(store.List())).Msg("seeded demo positions")
	}

	rec := openRecorder(cfg, log)
	defer rec.Close()

	reg := metrics.NewRegistry(cfg.Analysis.UserID)

	var tg *notifier.Telegram
	if cfg.Telegram.BotToken != "" {
		tg = notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)
	}
	dispatcher := notifier.NewDispatcher(tg, log)

	monitor, err := alert.NewMonitor(cfg.AlertConfig(), store, log,
		alert.WithNotifier(dispatcher),
		alert.WithRecorder(rec),
		alert.WithMetrics(reg))
	if err != nil {
		return fmt.Errorf("init alert monitor: %w", err)
	}

	engine := health.NewEngine(health.WithDelay(cfg.Analysis.SimulatedDelay))
	builder := portfolio.NewBuilder(store, portfolio.DemoHoldings(), quotes, log)
	builder.Revalue = cfg.Analysis.Revalue
	svc := analysis.NewService(engine, builder, cfg.Analysis.CacheTTL, cfg.Analysis.CacheSize, log,
		analysis.WithRecorder(rec),
		analysis.WithMetrics(reg))
	unsubscribe := store.Subscribe(func([]model.CDPPosition) { svc.Invalidate() })
	defer unsubscribe()

	asst := assistant.New(store, monitor, log)

	sched := scheduler.NewScheduler(ctx, scheduler.Deps{
		Collector: col,
		Quotes:    quotes,
		Feed:      network,
		Analyzer:  svc,
		Monitor:   monitor,
		Assistant: asst,
		Notifier:  tg,
		Metrics:   reg,
		UserID:    cfg.Analysis.UserID,
	}, log)
	if err := sched.RegisterAll(scheduler.Schedule{
		MarketCron:  cfg.Schedule.MarketCron,
		ReportCron:  cfg.Schedule.ReportCron,
		CleanupCron: cfg.Schedule.CleanupCron,
		SweepCron:   cfg.Schedule.SweepCron,
	}); err != nil {
		return fmt.Errorf("register cron tasks: %w", err)
	}
	monitor.Start()
	sched.Start()
	go sched.RefreshMarket()

	pollDone := make(chan struct{})
	if tg.Configured() {
		go func() {
			defer close(pollDone)
			tg.StartPolling(ctx, sched.HandleCommand)
		}()
		log.Info().Msg("telegram polling started")
	} else {
		close(pollDone)
		log.Info().Msg("telegram not configured, bot commands disabled")
	}

	srv := server.New(server.Config{
		Addr:      cfg.Server.Addr,
		Log:       log,
		Analysis:  svc,
		Positions: store,
		Monitor:   monitor,
		Assistant: asst,
		Network:   network,
		Recorder:  rec,
		Metrics:   reg.Handler(),
		UserID:    cfg.Analysis.UserID,
	})
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	log.Info().Msg("CDPShield is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received, stopping")
	case err := <-errCh:
		log.Error().Err(err).Msg("http server failed")
	}

	cancel()
	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	<-pollDone
	stopThenWait(dispatcher, sched, monitor)
	log.Info().Msg("CDPShield stopped")
	return nil
}

// stopThenWait stops every component that can start a speech delivery, in
// order, and only then waits for the deliveries already in flight.
func stopThenWait(deliveries interface{ Wait() }, producers ...interface{ Stop() }) {
	for _, p := range producers {
		p.Stop()
	}
	deliveries.Wait()
}
