// Package fulfillment turns queued order requests into orders, exactly once
// per idempotency key, without overselling store stock.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/uporders-backend/internal/checkout"
	"github.com/angelmondragon/uporders-backend/internal/orders"
	dbpkg "github.com/angelmondragon/uporders-backend/pkg/db"
	"github.com/angelmondragon/uporders-backend/pkg/db/models"
	"github.com/angelmondragon/uporders-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/uporders-backend/pkg/errors"
	"github.com/angelmondragon/uporders-backend/pkg/logger"
	"github.com/angelmondragon/uporders-backend/pkg/outbox"
	"github.com/angelmondragon/uporders-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/uporders-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"gorm.io/gorm"
)

const (
	consumerName          = "fulfillment"
	defaultRequestTimeout = 30 * time.Second
)

// ErrLeaseHeld means another worker is processing the same idempotency key.
var ErrLeaseHeld = errors.New("order request is in flight elsewhere")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderAssembler interface {
	Assemble(ctx context.Context, tx *gorm.DB, req checkout.Request) (*models.Order, error)
}

type leaser interface {
	Acquire(ctx context.Context, consumer, idempotencyKey string) (*idempotency.Lease, bool, error)
}

type outcomeObserver interface {
	ObserveOutcome(status, reason string, elapsed time.Duration)
	ObserveLease(result string)
}

// Options wires a Worker. Leases, Metrics and Tracer are optional.
type Options struct {
	DB             txRunner
	Assembler      orderAssembler
	Orders         orders.Repository
	Outbox         outbox.Emitter
	Leases         leaser
	Metrics        outcomeObserver
	Tracer         trace.Tracer
	Logger         *logger.Logger
	RequestTimeout time.Duration
}

// Result is the terminal state of one processed request.
type Result struct {
	Status         enums.FulfillmentStatus
	IdempotencyKey string
	OrderID        *uuid.UUID
	Rejection      *checkout.Rejection
	// Duplicate is set when an earlier delivery already reached this state.
	Duplicate bool
}

// Worker processes order requests. It is safe for concurrent use.
type Worker struct {
	db        txRunner
	assembler orderAssembler
	orders    orders.Repository
	outbox    outbox.Emitter
	leases    leaser
	metrics   outcomeObserver
	tracer    trace.Tracer
	logg      *logger.Logger
	timeout   time.Duration
	now       func() time.Time
}

// NewWorker validates opts and builds a worker.
func NewWorker(opts Options) (*Worker, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if opts.Assembler == nil {
		return nil, fmt.Errorf("order assembler required")
	}
	if opts.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if opts.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if opts.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	w := &Worker{
		db:        opts.DB,
		assembler: opts.Assembler,
		orders:    opts.Orders,
		outbox:    opts.Outbox,
		leases:    opts.Leases,
		metrics:   opts.Metrics,
		tracer:    opts.Tracer,
		logg:      opts.Logger,
		timeout:   opts.RequestTimeout,
		now:       time.Now,
	}
	if w.tracer == nil {
		w.tracer = noop.NewTracerProvider().Tracer(consumerName)
	}
	if w.timeout <= 0 {
		w.timeout = defaultRequestTimeout
	}
	return w, nil
}

// Process drives one request to Fulfilled, Rejected or Failed. A non-nil
// error always comes with Status Failed: nothing was persisted and the
// request must be redelivered.
func (w *Worker) Process(ctx context.Context, req OrderRequest) (Result, error) {
	started := w.now()
	ctx, span := w.tracer.Start(ctx, "fulfillment.process", trace.WithAttributes(
		attribute.String("store_id", req.StoreID.String()),
		attribute.String("customer_id", req.CustomerID.String()),
	))
	defer span.End()

	res, err := w.process(ctx, req)

	reason := ""
	if res.Rejection != nil {
		reason = string(res.Rejection.Reason)
	}
	span.SetAttributes(
		attribute.String("status", string(res.Status)),
		attribute.Bool("duplicate", res.Duplicate),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fulfillment failed")
	}
	if w.metrics != nil {
		w.metrics.ObserveOutcome(string(res.Status), reason, w.now().Sub(started))
	}
	return res, err
}

func (w *Worker) process(ctx context.Context, raw OrderRequest) (Result, error) {
	req, err := raw.Normalize()
	ctx = w.logg.WithOrderRequest(ctx, req.IdempotencyKey, req.CustomerID.String(), req.StoreID.String())
	ctx = w.stage(w.logg.WithTrace(ctx), enums.StageReceived)
	res := Result{IdempotencyKey: req.IdempotencyKey}

	if req.IdempotencyKey == "" {
		rejection, _ := checkout.RejectionFromError(err)
		w.logg.Warn(w.stage(ctx, enums.StageRejected), "order request has no idempotency key")
		res.Status = enums.FulfillmentStatusRejected
		res.Rejection = &rejection
		return res, nil
	}

	if w.leases != nil {
		lease, acquired, leaseErr := w.leases.Acquire(ctx, consumerName, req.IdempotencyKey)
		switch {
		case leaseErr != nil:
			w.observeLease("error")
			return w.fail(ctx, res, pkgerrors.Wrap(pkgerrors.CodeDependency, leaseErr, "acquire in-flight lease"))
		case !acquired:
			w.observeLease("contended")
			return w.fail(ctx, res, ErrLeaseHeld)
		}
		w.observeLease("acquired")
		defer func() {
			if releaseErr := lease.Release(context.WithoutCancel(ctx)); releaseErr != nil {
				w.logg.Warn(ctx, "failed to release in-flight lease: "+releaseErr.Error())
			}
		}()
	}

	existing, findErr := w.orders.FindOutcome(ctx, req.IdempotencyKey)
	if findErr != nil {
		return w.fail(ctx, res, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load outcome"))
	}
	if existing != nil {
		res = resultFromOutcome(existing)
		w.logg.Info(w.stage(ctx, stageFor(res.Status)), "order request already processed")
		return res, nil
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	if err != nil {
		rejection, ok := checkout.RejectionFromError(err)
		if !ok {
			return w.fail(ctx, res, err)
		}
		return w.reject(ctx, req, rejection)
	}

	ctx = w.stage(ctx, enums.StageValidating)
	var order *models.Order
	err = w.db.WithTx(ctx, func(tx *gorm.DB) error {
		w.stage(ctx, enums.StageReserving)
		assembled, err := w.assembler.Assemble(ctx, tx, req)
		if err != nil {
			return err
		}
		w.stage(ctx, enums.StageCommitting)
		if err := w.orders.WithTx(tx).CreateOutcome(ctx, fulfilledOutcome(assembled)); err != nil {
			return err
		}
		if err := w.outbox.Emit(ctx, tx, fulfilledEvent(assembled)); err != nil {
			return err
		}
		order = assembled
		return nil
	})
	if err != nil {
		if rejection, ok := checkout.RejectionFromError(err); ok {
			return w.reject(ctx, req, rejection)
		}
		if dbpkg.IsUniqueViolation(err, "") {
			return w.resolveConflict(ctx, res, err)
		}
		return w.fail(ctx, res, err)
	}

	orderID := order.ID
	res.Status = enums.FulfillmentStatusFulfilled
	res.OrderID = &orderID
	ctx = w.logg.WithField(ctx, "order_id", orderID.String())
	w.logg.Info(w.stage(ctx, enums.StageFulfilled), "order fulfilled")
	return res, nil
}

// reject records the rejection after the order transaction rolled back.
func (w *Worker) reject(ctx context.Context, req checkout.Request, rejection checkout.Rejection) (Result, error) {
	res := Result{
		Status:         enums.FulfillmentStatusRejected,
		IdempotencyKey: req.IdempotencyKey,
		Rejection:      &rejection,
	}
	err := w.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := w.orders.WithTx(tx).CreateOutcome(ctx, rejectedOutcome(req, rejection)); err != nil {
			return err
		}
		return w.outbox.EmitIfNotExists(ctx, tx, rejectedEvent(req, rejection))
	})
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return w.resolveConflict(ctx, res, err)
		}
		return w.fail(ctx, res, err)
	}

	ctx = w.logg.WithField(ctx, "reason", string(rejection.Reason))
	w.logg.Info(w.stage(ctx, enums.StageRejected), "order rejected")
	return res, nil
}

// resolveConflict handles a unique violation: a concurrent delivery of the
// same key reached a terminal state first, and that state is returned.
func (w *Worker) resolveConflict(ctx context.Context, res Result, cause error) (Result, error) {
	lookupCtx := context.WithoutCancel(ctx)
	existing, err := w.orders.FindOutcome(lookupCtx, res.IdempotencyKey)
	if err != nil {
		return w.fail(ctx, res, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload outcome"))
	}
	if existing != nil {
		res = resultFromOutcome(existing)
		w.logg.Info(w.stage(ctx, stageFor(res.Status)), "order request completed by another delivery")
		return res, nil
	}
	order, err := w.orders.FindByIdempotencyKey(lookupCtx, res.IdempotencyKey)
	if err != nil {
		return w.fail(ctx, res, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order"))
	}
	if order != nil {
		orderID := order.ID
		res = Result{
			Status:         enums.FulfillmentStatusFulfilled,
			IdempotencyKey: res.IdempotencyKey,
			OrderID:        &orderID,
			Duplicate:      true,
		}
		w.logg.Info(w.stage(ctx, enums.StageFulfilled), "order already exists for idempotency key")
		return res, nil
	}
	return w.fail(ctx, res, pkgerrors.Wrap(pkgerrors.CodeConflict, cause, "unresolved idempotency conflict"))
}

func (w *Worker) fail(ctx context.Context, res Result, err error) (Result, error) {
	res.Status = enums.FulfillmentStatusFailed
	res.Rejection = nil
	res.OrderID = nil
	w.logg.Error(w.stage(ctx, enums.StageFailed), "order request failed", err)
	return res, err
}

func (w *Worker) stage(ctx context.Context, stage enums.FulfillmentStage) context.Context {
	ctx = w.logg.WithField(ctx, "stage", string(stage))
	w.logg.Debug(ctx, "stage transition")
	return ctx
}

func (w *Worker) observeLease(result string) {
	if w.metrics != nil {
		w.metrics.ObserveLease(result)
	}
}

func stageFor(status enums.FulfillmentStatus) enums.FulfillmentStage {
	if status == enums.FulfillmentStatusFulfilled {
		return enums.StageFulfilled
	}
	return enums.StageRejected
}

func resultFromOutcome(outcome *models.FulfillmentOutcome) Result {
	res := Result{
		Status:         outcome.Status,
		IdempotencyKey: outcome.IdempotencyKey,
		OrderID:        outcome.OrderID,
		Duplicate:      true,
	}
	if outcome.Status == enums.FulfillmentStatusRejected {
		rejection := checkout.Rejection{ItemID: outcome.RejectedItemID}
		if outcome.Reason != nil {
			rejection.Reason = *outcome.Reason
		}
		if outcome.Detail != nil {
			rejection.Detail = *outcome.Detail
		}
		res.Rejection = &rejection
	}
	return res
}

func fulfilledOutcome(order *models.Order) *models.FulfillmentOutcome {
	orderID := order.ID
	return &models.FulfillmentOutcome{
		IdempotencyKey: order.IdempotencyKey,
		Status:         enums.FulfillmentStatusFulfilled,
		OrderID:        &orderID,
		CustomerID:     order.CustomerID,
		StoreID:        order.StoreID,
	}
}

func rejectedOutcome(req checkout.Request, rejection checkout.Rejection) *models.FulfillmentOutcome {
	reason := rejection.Reason
	outcome := &models.FulfillmentOutcome{
		IdempotencyKey: req.IdempotencyKey,
		Status:         enums.FulfillmentStatusRejected,
		Reason:         &reason,
		RejectedItemID: rejection.ItemID,
		CustomerID:     req.CustomerID,
		StoreID:        req.StoreID,
	}
	if rejection.Detail != "" {
		detail := rejection.Detail
		outcome.Detail = &detail
	}
	return outcome
}

func fulfilledEvent(order *models.Order) outbox.DomainEvent {
	storeID := order.StoreID
	return outbox.DomainEvent{
		EventType:     enums.EventOrderFulfilled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor: &outbox.ActorRef{
			CustomerID: order.CustomerID,
			StoreID:    &storeID,
			Role:       string(enums.CustomerRoleConsumer),
		},
		Data: payloads.OrderFulfilledEvent{
			OrderID:        order.ID,
			IdempotencyKey: order.IdempotencyKey,
			CustomerID:     order.CustomerID,
			MerchantID:     order.MerchantID,
			StoreID:        order.StoreID,
			BillAmount:     order.BillAmount.StringFixed(2),
			LineCount:      len(order.Lines),
		},
	}
}

func rejectedEvent(req checkout.Request, rejection checkout.Rejection) outbox.DomainEvent {
	storeID := req.StoreID
	return outbox.DomainEvent{
		EventType:     enums.EventOrderRejected,
		AggregateType: enums.AggregateFulfillmentRequest,
		AggregateID:   outbox.RequestAggregateID(req.IdempotencyKey),
		Actor: &outbox.ActorRef{
			CustomerID: req.CustomerID,
			StoreID:    &storeID,
			Role:       string(enums.CustomerRoleConsumer),
		},
		Data: payloads.OrderRejectedEvent{
			IdempotencyKey: req.IdempotencyKey,
			CustomerID:     req.CustomerID,
			StoreID:        req.StoreID,
			Reason:         rejection.Reason,
			ItemID:         rejection.ItemID,
			Detail:         rejection.Detail,
		},
	}
}
