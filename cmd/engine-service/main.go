package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"ignitex-signal-engine/internal/engine/config"
	delivery "ignitex-signal-engine/internal/engine/delivery/http"
	"ignitex-signal-engine/internal/engine/metrics"
	"ignitex-signal-engine/internal/engine/pipeline"
	"ignitex-signal-engine/internal/engine/policy"
	"ignitex-signal-engine/internal/engine/repository"
	"ignitex-signal-engine/internal/engine/service"
	"ignitex-signal-engine/pkg/logger"
	"ignitex-signal-engine/pkg/postgres"
	"ignitex-signal-engine/pkg/redis"
	"ignitex-signal-engine/pkg/telegram"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the signal engine service",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	// Create a context that is canceled on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	appLogger.Info("Starting Signal Engine Service", logger.Field("name", cfg.App.Name))

	// Initialize database
	postgresCfg := postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}
	db, err := postgres.NewDB(postgresCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize database", logger.ErrorField(err))
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		defer sqlDB.Close()
	}

	// Initialize Redis
	redisCfg := redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}
	redisClient, err := redis.NewClient(redisCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize Redis", logger.ErrorField(err))
	}
	defer redisClient.Close()

	// Initialize repositories
	signalRepo := repository.NewSignalRepository(db.DB)
	historyRepo := repository.NewSignalHistoryRepository(db.DB)
	statRepo := repository.NewStrategyStatRepository(db.DB)
	settingRepo := repository.NewSettingRepository(db.DB)

	// Initialize pipeline components
	aggregator := metrics.NewAggregator(prometheus.DefaultRegisterer)
	policyStore := policy.NewStore(settingRepo)
	statsSvc := service.NewStrategyStatsService(statRepo, historyRepo, appLogger)
	emitter := service.NewRedisEmitter(redisClient.Client, cfg.Redis.StreamMaxLen)

	var broadcaster pipeline.Broadcaster
	if cfg.Telegram.BotToken != "" {
		notifier, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			appLogger.Fatal("Failed to initialize Telegram notifier", logger.ErrorField(err))
		}
		broadcaster = service.NewTelegramBroadcaster(notifier)
	}

	engineSvc := service.NewEngineService(
		cfg,
		policyStore,
		statsSvc,
		aggregator,
		signalRepo,
		historyRepo,
		emitter,
		pipeline.ModelScore{},
		broadcaster,
		appLogger,
	)

	if cfg.Engine.AutoStart {
		if err := engineSvc.Start(ctx); err != nil {
			appLogger.Fatal("Failed to start pipeline engine", logger.ErrorField(err))
		}
	}

	// Initialize Echo server
	e := echo.New()
	e.HideBanner = true

	// Initialize handlers and routes
	apiV1 := e.Group("/api/v1")

	pipelineHandler := delivery.NewPipelineHandler(engineSvc, policyStore, appLogger)
	pipelineHandler.RegisterRoutes(apiV1.Group("/pipeline"))

	signalHandler := delivery.NewSignalHandler(engineSvc, appLogger)
	signalHandler.RegisterRoutes(apiV1.Group("/pipeline/signals"))

	strategyHandler := delivery.NewStrategyHandler(statsSvc, appLogger)
	strategyHandler.RegisterRoutes(apiV1.Group("/strategies"))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.API.Port)
		appLogger.Info("HTTP server starting", logger.Field("address", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server failed to start", logger.ErrorField(err))
			stop() // trigger shutdown
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	appLogger.Info("Shutting down server...")

	if engineSvc.Running() {
		if err := engineSvc.Stop(); err != nil {
			appLogger.Error("Failed to stop pipeline engine", logger.ErrorField(err))
		}
	}

	// Gracefully shutdown the server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatal("Server forced to shutdown", logger.ErrorField(err))
	}

	appLogger.Info("Server exiting")
}

func main() {
	rootCmd := &cobra.Command{Use: "engine-service"}

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config-engine.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing engine-service CLI: %s\n", err)
		os.Exit(1)
	}
}
