package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/rafflehouse-backend/internal/cart"
	"github.com/angelmondragon/rafflehouse-backend/internal/cron"
	"github.com/angelmondragon/rafflehouse-backend/pkg/config"
	"github.com/angelmondragon/rafflehouse-backend/pkg/db"
	"github.com/angelmondragon/rafflehouse-backend/pkg/instance"
	"github.com/angelmondragon/rafflehouse-backend/pkg/logger"
	"github.com/angelmondragon/rafflehouse-backend/pkg/metrics"
	"github.com/angelmondragon/rafflehouse-backend/pkg/migrate"
	"github.com/angelmondragon/rafflehouse-backend/pkg/outbox"
	"github.com/angelmondragon/rafflehouse-backend/pkg/redis"
)

const (
	serviceName   = "housekeeping"
	lockKeyFormat = "rh:housekeeping:lock:%s"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "housekeeping worker stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	bootCtx := context.Background()

	dbClient, err := db.New(bootCtx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	if err := migrate.MaybeRunDev(bootCtx, cfg, logg, dbClient); err != nil {
		return multierr.Append(fmt.Errorf("dev migrations: %w", err), dbClient.Close())
	}

	redisClient, err := redis.New(bootCtx, cfg.Redis, logg)
	if err != nil {
		return multierr.Append(fmt.Errorf("bootstrap redis: %w", err), dbClient.Close())
	}
	defer func() {
		err = multierr.Append(err, multierr.Combine(redisClient.Close(), dbClient.Close()))
	}()

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), cfg.Housekeeping.Interval)
	if err != nil {
		return fmt.Errorf("create lock: %w", err)
	}

	outboxRetention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repository:  outbox.NewRepository(dbClient.DB()),
		Retention:   cfg.Housekeeping.OutboxRetention,
		MaxAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return fmt.Errorf("outbox retention job: %w", err)
	}
	cartExpiry, err := cron.NewCartExpiryJob(cron.CartExpiryJobParams{
		Logger:       logg,
		Repository:   cart.NewRepository(dbClient.DB()),
		AbandonAfter: cfg.Housekeeping.CartAbandonAfter,
	})
	if err != nil {
		return fmt.Errorf("cart expiry job: %w", err)
	}

	registry := metrics.NewRegistry()
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(cartExpiry, outboxRetention),
		Lock:     lock,
		Metrics:  metrics.New(registry),
		Interval: cfg.Housekeeping.Interval,
	})
	if err != nil {
		return fmt.Errorf("create housekeeping service: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting housekeeping worker")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return service.Run(gctx) })
	g.Go(func() error { return metrics.Serve(gctx, cfg.App.MetricsAddr, registry, logg) })
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logg.Info(ctx, "housekeeping worker shutting down gracefully")
	return nil
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
