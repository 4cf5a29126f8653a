package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/savegrandma/phishguard/internal/adapters/source"
	"github.com/savegrandma/phishguard/internal/core"
	"github.com/savegrandma/phishguard/internal/di"
	"github.com/savegrandma/phishguard/internal/engine"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	eng *engine.Engine,
	kv core.KeyValueStore,
) error {
	defer logger.Sync()

	ctx := context.Background()
	if err := eng.Start(ctx); err != nil {
		logger.Fatal("Failed to start engine", zap.Error(err))
		return err
	}

	// Records arrive as NDJSON on stdin, one per line.
	src := source.NewStdinSource(os.Stdin, func(ctx context.Context, rec *core.Record) {
		result := eng.Analyze(ctx, rec)
		if result.IsSuspicious {
			logger.Warn("Suspicious record",
				zap.String("thread_id", rec.ThreadID),
				zap.String("sender", rec.SenderEmail),
				zap.String("subject", rec.Subject),
				zap.Int("score", result.Score))
		}
	}, logger)
	if err := src.Start(); err != nil {
		logger.Fatal("Failed to start record source", zap.Error(err))
		return err
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("Shutting down...")
	case <-src.Done():
		logger.Info("Record input exhausted, shutting down...")
	}

	if err := src.Stop(); err != nil {
		logger.Error("Failed to stop record source", zap.Error(err))
	}
	if err := eng.Stop(ctx); err != nil {
		logger.Error("Failed to stop engine", zap.Error(err))
	}
	if err := kv.Close(); err != nil {
		logger.Error("Failed to close storage backend", zap.Error(err))
	}

	logger.Info("Shutdown complete")
	return nil
}
