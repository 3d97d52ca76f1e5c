package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/davydenko-ucu/lesson-subscription-api/internal/app"
	"github.com/davydenko-ucu/lesson-subscription-api/internal/config"
	"github.com/davydenko-ucu/lesson-subscription-api/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	cfg, err := config.NewConfig()
	if err != nil {
		log.Panicf("failed to load configuration: %v", err)
	}

	l, err := logger.NewLogger(cfg.LogsPath, "lesson-subscription")
	if err != nil {
		log.Panicf("failed to create logger: %v", err)
	}

	application := app.New(*cfg, l)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		log.Panic(err)
	}
}
