package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/rafflehouse-backend/api/controllers"
	"github.com/angelmondragon/rafflehouse-backend/api/middleware"
	"github.com/angelmondragon/rafflehouse-backend/internal/auth"
	"github.com/angelmondragon/rafflehouse-backend/internal/cart"
	"github.com/angelmondragon/rafflehouse-backend/internal/checkout"
	"github.com/angelmondragon/rafflehouse-backend/internal/competitions"
	"github.com/angelmondragon/rafflehouse-backend/internal/entry"
	"github.com/angelmondragon/rafflehouse-backend/pkg/auth/session"
	"github.com/angelmondragon/rafflehouse-backend/pkg/config"
	"github.com/angelmondragon/rafflehouse-backend/pkg/enums"
	"github.com/angelmondragon/rafflehouse-backend/pkg/logger"
	"github.com/angelmondragon/rafflehouse-backend/pkg/redis"
)

// redisStore is the slice of the redis client the HTTP layer depends on.
type redisStore interface {
	middleware.IdempotencyStore
	middleware.RateLimitStore
	Ping(ctx context.Context) error
}

// Services bundles the domain services exposed over HTTP.
type Services struct {
	Auth         auth.Service
	Register     auth.RegisterService
	Competitions competitions.Service
	Entry        entry.Service
	Cart         cart.Service
	Checkout     checkout.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient *redis.Client,
	sessions session.AccessSessionChecker,
	metricsHandler http.Handler,
	httpMetrics middleware.HTTPRecorder,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, httpMetrics),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	var store redisStore
	if redisClient != nil {
		store = redisClient
	}
	idempotent := middleware.Idempotency(idempotencyStore(store), logg, middleware.DefaultIdempotencyTTL)
	idempotentCheckout := middleware.Idempotency(idempotencyStore(store), logg, middleware.CheckoutIdempotencyTTL)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)
	answerPolicy := middleware.NewUserRateLimitPolicy(
		"answer",
		cfg.AuthRateLimit.AnswerWindow,
		cfg.AuthRateLimit.AnswerUserLimit,
	)

	ready := map[string]controllers.Pinger{"db": dbP}
	if store != nil {
		ready["redis"] = store
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, ready))
	})
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, limiter(store), logg)).Post("/login", controllers.AuthLogin(svc.Auth, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, limiter(store), logg), idempotent).Post("/register", controllers.AuthRegister(svc.Register, svc.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(svc.Auth, logg))
		r.With(middleware.Auth(cfg.JWT, sessions, logg)).Post("/logout", controllers.AuthLogout(svc.Auth, logg))
	})

	r.Route("/api/v1/competitions", func(r chi.Router) {
		r.Get("/", controllers.CompetitionList(svc.Competitions, logg))
		r.Get("/{competitionId}", controllers.CompetitionGet(svc.Competitions, logg))
		r.With(
			middleware.Auth(cfg.JWT, sessions, logg),
			middleware.RateLimit(answerPolicy, limiter(store), logg),
		).Post("/{competitionId}/validate-answer", controllers.CompetitionValidateAnswer(svc.Entry, logg))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))

		r.Route("/api/v1/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(svc.Cart, logg))
			r.Delete("/", controllers.CartClear(svc.Cart, logg))
			r.With(idempotent).Post("/items", controllers.CartAddItem(svc.Cart, logg))
			r.Patch("/items/{itemId}", controllers.CartUpdateItem(svc.Cart, logg))
			r.Delete("/items/{itemId}", controllers.CartRemoveItem(svc.Cart, logg))
		})
		r.With(idempotentCheckout).Post("/api/v1/checkout", controllers.CheckoutSubmit(svc.Checkout, logg))
	})

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.RequireRole(enums.UserRoleAdmin, logg))
		r.Get("/competitions", controllers.AdminCompetitionList(svc.Competitions, logg))
		r.With(idempotent).Post("/competitions", controllers.AdminCompetitionCreate(svc.Competitions, logg))
		r.Patch("/competitions/{competitionId}", controllers.AdminCompetitionUpdate(svc.Competitions, logg))
		r.Delete("/competitions/{competitionId}", controllers.AdminCompetitionDelete(svc.Competitions, logg))
	})

	return r
}

// idempotencyStore and limiter keep a missing redis client a true nil so the
// middleware can skip itself.
func idempotencyStore(store redisStore) middleware.IdempotencyStore {
	if store == nil {
		return nil
	}
	return store
}

func limiter(store redisStore) middleware.RateLimitStore {
	if store == nil {
		return nil
	}
	return store
}
