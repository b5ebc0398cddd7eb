package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/avvvet/rhoai-intent/internal/app"
	"github.com/avvvet/rhoai-intent/internal/config"
)

func main() {
	// Load .env file if it exists (for development)
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger, err := app.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()
	if envErr != nil {
		logger.Debug("no .env file found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to start", zap.Error(err))
	}
	defer a.Close()

	if err := a.Run(ctx); err != nil {
		logger.Error("service stopped with error", zap.Error(err))
		a.Close()
		os.Exit(1)
	}
	logger.Info("service stopped")
}
