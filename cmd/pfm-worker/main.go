package main

import (
	"context"
	"errors"
	"os"

	"pfm/internal/backend"
	"pfm/internal/cli"
	"pfm/internal/events"
	"pfm/internal/services"
	"pfm/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig(cli.SetupLogger("info", "text"))
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("Starting pfm-worker", "broker", cfg.Broker)

	journal := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer journal.Close()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	factory := backend.NewFactory(logger)

	writer, err := factory.CreateWriter(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize activity exporter", "error", err)
		os.Exit(1)
	}

	procCfg := services.DefaultSyncProcessorConfig()
	procCfg.BatchSize = cfg.SyncBatchSize
	procCfg.MaxRetries = cfg.SyncRetries
	procCfg.PollInterval = cfg.SyncInterval
	processor := services.NewSyncProcessor(journal, writer, procCfg)
	syncWorker := worker.NewSyncWorker(journal, processor)
	syncWorker.RetryFailedOnStart = cfg.SyncRetryFailed

	// Without a broker the polling pass is the only path to the sheet.
	consumer, err := factory.CreateConsumer(context.Background(), backendCfg)
	switch {
	case errors.Is(err, backend.ErrNoBroker):
		logger.Info("No broker configured, relying on periodic sync")
		consumer = events.Nop{}
	case err != nil:
		logger.Error("Failed to initialize consumer", "error", err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			logger.Error("Sync processor stop failed", "error", err)
		}
		if err := consumer.Close(); err != nil {
			logger.Error("Failed to close consumer", "error", err)
		}
	})

	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", "error", err)
	}

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start sync processor", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := consumer.ConsumeActivity(ctx, syncWorker.HandleActivity); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
