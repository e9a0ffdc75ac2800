package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/uporders-backend/internal/fulfillment"
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

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(context.Background(), "worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(context.Background(), "worker shutting down gracefully")
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"queueDriver": cfg.Queue.DriverName(),
		"instance":    instance.GetID(),
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

	deps := fulfillment.Deps{
		DB:     dbClient,
		Tracer: provider.Tracer(),
		Logger: logg,
	}

	params := ServiceParams{Logger: logg, DB: dbClient}
	if cfg.Redis.Enabled() {
		var redisClient *redis.Client
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, redisClient.Close()) }()
		deps.Leases, err = idempotency.NewManager(redisClient, cfg.Worker.LeaseTTL)
		if err != nil {
			return err
		}
		params.Redis = redisClient
	} else {
		logg.Warn(ctx, "redis not configured, in-flight lease disabled")
	}

	reg := metrics.NewRegistry()
	deps.Metrics = metrics.NewFulfillmentMetrics(reg)
	worker, err := fulfillment.New(cfg.Worker, deps)
	if err != nil {
		return err
	}

	requests, err := openQueue(ctx, cfg, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, requests.Close()) }()
	params.Queue = requests
	params.Worker = worker

	service, err := NewService(params)
	if err != nil {
		return err
	}

	logg.Info(ctx, "starting fulfillment worker")
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return service.Run(gctx) })
	g.Go(func() error { return metrics.Serve(gctx, cfg.App.MetricsPort, reg) })
	return g.Wait()
}
