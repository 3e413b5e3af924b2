package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/noah-isme/backtrackers-api/api/swagger"
	"github.com/noah-isme/backtrackers-api/internal/app"
	"github.com/noah-isme/backtrackers-api/pkg/config"
	"github.com/noah-isme/backtrackers-api/pkg/logger"
)

// @title Backtrackers API
// @version 1.0.0
// @description Lost and found registry with ownership verification
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to start", "error", err)
	}
	defer application.Close()

	if err := application.Run(ctx); err != nil {
		logr.Sugar().Errorw("server failed", "error", err)
	}
}
