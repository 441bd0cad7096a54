package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"boosterbucks/internal/amqp"
	"boosterbucks/internal/backend"
	"boosterbucks/internal/config"
	"boosterbucks/internal/engine"
	apphttp "boosterbucks/internal/http"
	"boosterbucks/internal/ledger"
	"boosterbucks/internal/log"
	"boosterbucks/internal/rules"
	"boosterbucks/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	// Open the data backend
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	factory := backend.NewFactory(logger.Logger)
	result, err := factory.CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer func() {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup failed", "error", err)
			}
		}()
	}

	// Initialize AMQP client for publishing achievement events (optional)
	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPEvalQueue, cfg.AMQPEventQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			logger.Info("Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"event_queue", cfg.AMQPEventQueue)
		}
	}

	// Wire the evaluation pipeline
	registry := rules.DefaultRegistry(rules.Config{
		EmergencyFundDefaultGoal: cfg.EmergencyFundDefaultGoal,
	})
	eng := engine.New(registry)
	stores := services.Stores{
		Catalog:   result.Stores.Catalog,
		Progress:  result.Stores.Progress,
		Ledger:    result.Stores.Ledger,
		Snapshots: result.Stores.Snapshots,
	}
	ledgerSvc := ledger.NewService(result.Stores.Ledger, nil)
	redemption := ledger.NewRedemption(result.Stores.Ledger, cfg.MinRedemption, cfg.ConversionRate, nil)
	coordinator := services.NewCoordinator(eng, stores, ledgerSvc, redemption, publisher, nil)

	srv := apphttp.NewServer(":"+cfg.Port, coordinator)

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting boosterbucks server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
