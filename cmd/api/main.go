package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/uporders-backend/api/routes"
	"github.com/angelmondragon/uporders-backend/internal/fulfillment"
	"github.com/angelmondragon/uporders-backend/internal/orders"
	"github.com/angelmondragon/uporders-backend/pkg/config"
	"github.com/angelmondragon/uporders-backend/pkg/db"
	"github.com/angelmondragon/uporders-backend/pkg/instance"
	"github.com/angelmondragon/uporders-backend/pkg/logger"
	"github.com/angelmondragon/uporders-backend/pkg/metrics"
	"github.com/angelmondragon/uporders-backend/pkg/migrate"
	"github.com/angelmondragon/uporders-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/uporders-backend/pkg/redis"
	"github.com/angelmondragon/uporders-backend/pkg/tracing"
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
	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(context.Background(), "api shutting down gracefully")
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := net.JoinHostPort("", port)
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"instance":    instance.GetID(),
		"queueDriver": cfg.Queue.DriverName(),
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	provider, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, provider.Shutdown(context.Background())) }()

	reg := metrics.NewRegistry()
	deps := routes.Deps{DB: dbClient, Metrics: reg}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, redisClient.Close()) }()
		deps.Redis = redisClient
	} else {
		logg.Warn(ctx, "redis not configured, order rate limiting disabled")
	}

	requests, err := openQueue(ctx, cfg, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, requests.Close()) }()
	deps.Queue = requests
	deps.Publisher = requests

	deps.Orders, err = orders.NewService(orders.NewRepository(dbClient.DB()))
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logg.Info(gctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	// The memory driver has no broker between processes, so the worker
	// consumes from the same queue inside this one.
	if local, ok := requests.(*localQueue); ok {
		workerDeps := fulfillment.Deps{
			DB:      dbClient,
			Metrics: metrics.NewFulfillmentMetrics(reg),
			Tracer:  provider.Tracer(),
			Logger:  logg,
		}
		if redisClient != nil {
			workerDeps.Leases, err = idempotency.NewManager(redisClient, cfg.Worker.LeaseTTL)
			if err != nil {
				return err
			}
		}
		worker, err := fulfillment.New(cfg.Worker, workerDeps)
		if err != nil {
			return err
		}
		logg.Warn(ctx, "memory queue driver: running fulfillment worker in-process")
		g.Go(func() error { return worker.Run(gctx, local) })
	}

	return g.Wait()
}
