package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"boosterbucks/internal/amqp"
	"boosterbucks/internal/backend"
	"boosterbucks/internal/config"
	"boosterbucks/internal/engine"
	"boosterbucks/internal/ledger"
	"boosterbucks/internal/log"
	"boosterbucks/internal/rules"
	"boosterbucks/internal/services"
	"boosterbucks/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := log.New(log.Config{
		Level:     log.DefaultConfig().Level,
		Component: log.ComponentWorker,
	})
	log.SetDefault(logger)

	logger.Info("Starting boosterbucks-worker")

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

	// Initialize AMQP client for consuming evaluation requests
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPEvalQueue, cfg.AMQPEventQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

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
	coordinator := services.NewCoordinator(eng, stores, ledgerSvc, redemption, amqpClient, nil)

	evalWorker := worker.NewEvaluationWorker(coordinator, cfg.EvalInterval)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Consume evaluation requests with automatic reconnection
	go func() {
		if err := amqpClient.ConsumeWithReconnect(ctx, evalWorker.HandleEvaluationRequest); err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", "error", err)
			}
			cancel()
		}
	}()

	// Periodic sweep for users whose evaluation may have been missed
	go func() {
		if err := evalWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Evaluation sweep loop failed", "error", err)
			cancel()
		}
	}()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	// Give the worker time to finish current operations
	logger.Info("Shutting down worker...")
	cancel()

	time.Sleep(5 * time.Second)
	logger.Info("Worker shutdown complete")
}
