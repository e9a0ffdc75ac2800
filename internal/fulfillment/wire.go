package fulfillment

import (
	"fmt"

	"github.com/angelmondragon/uporders-backend/internal/catalog"
	"github.com/angelmondragon/uporders-backend/internal/checkout"
	"github.com/angelmondragon/uporders-backend/internal/orders"
	"github.com/angelmondragon/uporders-backend/internal/stock"
	"github.com/angelmondragon/uporders-backend/pkg/config"
	"github.com/angelmondragon/uporders-backend/pkg/db"
	"github.com/angelmondragon/uporders-backend/pkg/logger"
	"github.com/angelmondragon/uporders-backend/pkg/metrics"
	"github.com/angelmondragon/uporders-backend/pkg/outbox"
	"github.com/angelmondragon/uporders-backend/pkg/outbox/idempotency"
	"go.opentelemetry.io/otel/trace"
)

// Deps are the process-level collaborators a worker is built from.
type Deps struct {
	DB      *db.Client
	Leases  *idempotency.Manager
	Metrics *metrics.FulfillmentMetrics
	Tracer  trace.Tracer
	Logger  *logger.Logger
}

// New assembles the full fulfillment stack over deps using the worker settings.
func New(cfg config.WorkerConfig, deps Deps) (*Worker, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	pricing, err := checkout.NewPricing(cfg.PricePolicy, cfg.PriceTolerance)
	if err != nil {
		return nil, err
	}

	conn := deps.DB.DB()
	var observer stock.Observer
	if deps.Metrics != nil {
		observer = deps.Metrics
	}
	ledger, err := stock.NewLedger(stock.NewRepository(conn), observer)
	if err != nil {
		return nil, err
	}
	ordersRepo := orders.NewRepository(conn)
	assembler, err := checkout.NewAssembler(catalog.NewRepository(conn), ledger, ordersRepo, pricing)
	if err != nil {
		return nil, err
	}

	opts := Options{
		DB:             deps.DB,
		Assembler:      assembler,
		Orders:         ordersRepo,
		Outbox:         outbox.NewService(outbox.NewRepository(conn), deps.Logger),
		Tracer:         deps.Tracer,
		Logger:         deps.Logger,
		RequestTimeout: cfg.RequestTimeout,
	}
	if deps.Leases != nil {
		opts.Leases = deps.Leases
	}
	if deps.Metrics != nil {
		opts.Metrics = deps.Metrics
	}
	return NewWorker(opts)
}
