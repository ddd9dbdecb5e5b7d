package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/rafflehouse-backend/pkg/config"
	"github.com/angelmondragon/rafflehouse-backend/pkg/logger"
	"github.com/angelmondragon/rafflehouse-backend/pkg/storefront"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "raffle", Level: logger.ParseLevel(os.Getenv("RAFFLEHOUSE_LOG_LEVEL")), Output: os.Stderr})
	_ = godotenv.Load()

	cfg, err := config.LoadStorefront()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	client, err := storefront.NewFromConfig(cfg)
	if err != nil {
		logg.Error(context.Background(), "failed to build storefront client", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(client, logg, os.Stdout, cfg.StrictInvariants())
	if err != nil {
		logg.Error(ctx, "failed to wire cli", err)
		os.Exit(1)
	}
	os.Exit(app.Run(ctx, os.Args[1:]))
}
