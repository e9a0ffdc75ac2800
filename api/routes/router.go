package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/uporders-backend/api/controllers"
	ordercontrollers "github.com/angelmondragon/uporders-backend/api/controllers/orders"
	"github.com/angelmondragon/uporders-backend/api/middleware"
	"github.com/angelmondragon/uporders-backend/internal/orders"
	"github.com/angelmondragon/uporders-backend/pkg/config"
	"github.com/angelmondragon/uporders-backend/pkg/enums"
	"github.com/angelmondragon/uporders-backend/pkg/logger"
	"github.com/angelmondragon/uporders-backend/pkg/metrics"
	"github.com/angelmondragon/uporders-backend/pkg/queue"
)

type pinger interface {
	Ping(context.Context) error
}

type windowCounter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type rateLimiter interface {
	pinger
	windowCounter
}

// Deps are the collaborators the router dispatches to. Redis and Metrics
// are optional.
type Deps struct {
	DB        pinger
	Queue     pinger
	Redis     rateLimiter
	Publisher queue.Publisher
	Orders    orders.Service
	Metrics   *prometheus.Registry
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	var httpMetrics *metrics.HTTPMetrics
	if deps.Metrics != nil {
		httpMetrics = metrics.NewHTTPMetrics(deps.Metrics)
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Logging(logg, httpMetrics),
		middleware.Recoverer(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	readiness := []controllers.Dependency{
		{Name: "database", Pinger: deps.DB},
		{Name: "queue", Pinger: deps.Queue},
	}
	// left nil without redis so the limiter is skipped
	var limiter windowCounter
	if deps.Redis != nil {
		readiness = append(readiness, controllers.Dependency{Name: "redis", Pinger: deps.Redis})
		limiter = deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness...))
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Metrics))
	}

	ordersPolicy := middleware.NewRateLimitPolicy(
		"orders",
		cfg.RateLimit.OrdersWindow,
		cfg.RateLimit.OrdersIPLimit,
		cfg.RateLimit.OrdersCustomerLimit,
	)

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.With(
			middleware.RequireRole(logg, enums.CustomerRoleConsumer),
			middleware.RateLimit(ordersPolicy, limiter, logg),
		).Post("/", ordercontrollers.Submit(deps.Publisher, logg))
		r.Get("/", ordercontrollers.List(deps.Orders, logg))
		r.Get("/requests/{key}", ordercontrollers.RequestStatus(deps.Orders, logg))
		r.Get("/{orderId}", ordercontrollers.Detail(deps.Orders, logg))
	})

	return r
}
