package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/rafflehouse-backend/api/routes"
	"github.com/angelmondragon/rafflehouse-backend/internal/auth"
	"github.com/angelmondragon/rafflehouse-backend/internal/cart"
	"github.com/angelmondragon/rafflehouse-backend/internal/checkout"
	"github.com/angelmondragon/rafflehouse-backend/internal/competitions"
	"github.com/angelmondragon/rafflehouse-backend/internal/entry"
	"github.com/angelmondragon/rafflehouse-backend/internal/users"
	"github.com/angelmondragon/rafflehouse-backend/pkg/auth/session"
	"github.com/angelmondragon/rafflehouse-backend/pkg/config"
	"github.com/angelmondragon/rafflehouse-backend/pkg/db"
	"github.com/angelmondragon/rafflehouse-backend/pkg/instance"
	"github.com/angelmondragon/rafflehouse-backend/pkg/logger"
	"github.com/angelmondragon/rafflehouse-backend/pkg/metrics"
	"github.com/angelmondragon/rafflehouse-backend/pkg/migrate"
	"github.com/angelmondragon/rafflehouse-backend/pkg/outbox"
	"github.com/angelmondragon/rafflehouse-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		_ = dbClient.Close()
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		_ = dbClient.Close()
		os.Exit(1)
	}
	defer func() {
		if err := multierr.Combine(redisClient.Close(), dbClient.Close()); err != nil {
			logg.Error(context.Background(), "error closing clients", err)
		}
	}()

	handler, err := buildHandler(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to wire api", err)
		return
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
		}
		return
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "api server shutdown failed", err)
		return
	}
	logg.Info(ctx, "api server shutting down gracefully")
}

func buildHandler(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (http.Handler, error) {
	registry := metrics.NewRegistry()
	recorder := metrics.New(registry)

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return nil, err
	}

	userRepo := users.NewRepository(dbClient.DB())
	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: &cfg.Password,
	})
	if err != nil {
		return nil, err
	}
	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		UserRepo:       userRepo,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		return nil, err
	}

	events := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	competitionService, err := competitions.NewService(competitions.NewRepository(dbClient.DB()), dbClient, events, logg)
	if err != nil {
		return nil, err
	}

	passes, err := entry.NewPassGate(redisClient, cfg.Cart.EntryPassTTL)
	if err != nil {
		return nil, err
	}
	entryService, err := entry.NewService(competitionService, passes, recorder, logg)
	if err != nil {
		return nil, err
	}

	cartRepo := cart.NewRepository(dbClient.DB())
	cartService, err := cart.NewService(cartRepo, dbClient, competitionService, passes, cfg.Cart.MaxQuantity, logg)
	if err != nil {
		return nil, err
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Intents:      checkout.NewRepository(dbClient.DB()),
		Carts:        cartRepo,
		Competitions: competitionService,
		Tx:           dbClient,
		Events:       events,
		Logger:       logg,
	})
	if err != nil {
		return nil, err
	}

	return routes.NewRouter(
		cfg,
		logg,
		dbClient,
		redisClient,
		sessionManager,
		metrics.Handler(registry),
		recorder,
		routes.Services{
			Auth:         authService,
			Register:     registerService,
			Competitions: competitionService,
			Entry:        entryService,
			Cart:         cart.Instrument(cartService, recorder),
			Checkout:     checkoutService,
		},
	), nil
}
