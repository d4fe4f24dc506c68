package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fx-signal-engine/config"
	"fx-signal-engine/internal/analysis"
	"fx-signal-engine/internal/api"
	"fx-signal-engine/internal/cache"
	"fx-signal-engine/internal/collector"
	"fx-signal-engine/internal/database"
	"fx-signal-engine/internal/engine"
	"fx-signal-engine/internal/logging"
	"fx-signal-engine/internal/market"
	"fx-signal-engine/internal/notification"
	"fx-signal-engine/internal/patterns"
	"fx-signal-engine/internal/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(&logging.Config{
		Level:  cfg.LoggingConfig.Level,
		Pretty: cfg.LoggingConfig.Pretty,
		Output: cfg.LoggingConfig.Output,
	})
	logger.Info().Str("symbol", cfg.CollectorConfig.Symbol).Msg("signal engine starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.NewDB(ctx, database.Config{
		Host:           cfg.DatabaseConfig.Host,
		Port:           cfg.DatabaseConfig.Port,
		User:           cfg.DatabaseConfig.User,
		Password:       cfg.DatabaseConfig.Password,
		Database:       cfg.DatabaseConfig.Database,
		SSLMode:        cfg.DatabaseConfig.SSLMode,
		MinConns:       int32(cfg.DatabaseConfig.MinConns),
		MaxConns:       int32(cfg.DatabaseConfig.MaxConns),
		CommandTimeout: time.Duration(cfg.DatabaseConfig.CommandTimeout) * time.Second,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}
	repo := database.NewRepository(db)

	// Optional Redis signal cache
	var signalCache *cache.SignalCache
	if cfg.RedisConfig.Enabled {
		signalCache, err = cache.NewSignalCache(
			ctx, cfg.RedisConfig.Addr, cfg.RedisConfig.Password, cfg.RedisConfig.DB,
			logging.WithComponent(logger, "cache"),
		)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer signalCache.Close()
		logger.Info().Str("addr", cfg.RedisConfig.Addr).Msg("redis signal cache enabled")
	}

	// Notifications
	notifier := notification.NewManager(logging.WithComponent(logger, "notify"))
	if cfg.NotificationConfig.Enabled {
		if cfg.NotificationConfig.WebhookURL != "" {
			notifier.AddNotifier(notification.NewWebhookNotifier(cfg.NotificationConfig.WebhookURL))
			logger.Info().Msg("webhook notifications enabled")
		}
		if cfg.NotificationConfig.Discord != "" {
			notifier.AddNotifier(notification.NewDiscordNotifier(cfg.NotificationConfig.Discord))
			logger.Info().Msg("discord notifications enabled")
		}
	}

	// Market data vendor
	provider := market.NewYahooProvider(time.Duration(cfg.CollectorConfig.VendorTimeout) * time.Second)

	// Three-gate engine
	loader := patterns.NewLoader(cfg.EngineConfig.ConfigDir, logging.WithComponent(logger, "patterns"))
	eng := engine.New(loader, engine.Config{
		MinConfidence:    cfg.EngineConfig.MinConfidence,
		SignalInterval:   time.Duration(cfg.EngineConfig.SignalIntervalMinutes) * time.Minute,
		DisableRateLimit: cfg.EngineConfig.DisableRateLimit,
	}, logging.WithComponent(logger, "engine"))

	// Analysis backends
	backends := map[string]analysis.Backend{
		analysis.ModeThreeGate: analysis.NewThreeGateBackend(
			repo, eng, notifier, signalCache, cfg.AnalysisConfig.Lookback,
			logging.WithComponent(logger, "analysis"),
		),
		analysis.ModeLegacy: analysis.NewLegacyBackend(
			repo, notifier, logging.WithComponent(logger, "legacy"),
		),
	}

	// Event router and pipeline
	eventRouter, err := router.New(repo, backends, cfg.AnalysisConfig.Mode, logging.WithComponent(logger, "router"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create event router")
	}

	timeframes := make([]market.Timeframe, 0, len(cfg.CollectorConfig.Timeframes))
	for _, tf := range cfg.CollectorConfig.Timeframes {
		timeframe := market.Timeframe(tf)
		if !timeframe.Valid() {
			logger.Fatal().Str("timeframe", tf).Msg("unsupported timeframe in config")
		}
		timeframes = append(timeframes, timeframe)
	}
	dataCollector := collector.New(repo, provider, collector.Config{
		Symbol:     cfg.CollectorConfig.Symbol,
		Interval:   time.Duration(cfg.CollectorConfig.IntervalMinutes) * time.Minute,
		Timeframes: timeframes,
	}, logging.WithComponent(logger, "collector"))

	manager := router.NewManager(dataCollector, eventRouter, repo, provider, logging.WithComponent(logger, "manager"))

	// Operational API
	var apiServer *api.Server
	if cfg.APIConfig.Enabled {
		apiServer = api.NewServer(cfg.APIConfig.Addr, manager, eng, repo, logging.WithComponent(logger, "api"))
		go func() {
			if err := apiServer.Run(); err != nil {
				logger.Error().Err(err).Msg("api server failed")
				cancel()
			}
		}()
	}

	// Shutdown on SIGINT/SIGTERM
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("shutdown requested")
		cancel()
	}()

	manager.Start(ctx)

	if apiServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("api shutdown failed")
		}
	}
	logger.Info().Msg("signal engine stopped")
}
