package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/angelmondragon/uporders-backend/pkg/config"
	"github.com/angelmondragon/uporders-backend/pkg/db/models"
	"github.com/angelmondragon/uporders-backend/pkg/enums"
	"github.com/angelmondragon/uporders-backend/pkg/logger"
	"github.com/angelmondragon/uporders-backend/pkg/outbox/registry"
	"github.com/angelmondragon/uporders-backend/pkg/queue"
)

const (
	jobName = "outbox_publish_batch"

	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	defaultConcurrency    = 8
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

type pinger interface {
	Ping(context.Context) error
}

type dbClient interface {
	pinger
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

// outcomeSink delivers one message to a named topic and blocks until the
// broker accepted it.
type outcomeSink interface {
	Publish(ctx context.Context, topic string, msg queue.Message) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type outboxMetrics interface {
	IncPublished(eventType string)
	IncFailed(eventType string)
	IncDeadLettered(eventType, reason string)
}

type jobMetrics interface {
	ObserveDuration(job string, duration time.Duration)
	IncSuccess(job string)
	IncFailure(job string)
}

type ServiceParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            dbClient
	Broker        pinger
	Sink          outcomeSink
	Repository    outboxRepository
	Registry      registryResolver
	DLQRepository dlqRepository
	Metrics       outboxMetrics
	Jobs          jobMetrics
}

// Service relays committed fulfillment outcomes from outbox_events to the
// outcomes topic.
type Service struct {
	logg     *logger.Logger
	db       dbClient
	broker   pinger
	sink     outcomeSink
	repo     outboxRepository
	registry registryResolver
	dlq      dlqRepository
	metrics  outboxMetrics
	jobs     jobMetrics

	batchSize      int
	maxAttempts    int
	concurrency    int
	pollInterval   time.Duration
	publishTimeout time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.Broker == nil:
		return nil, errors.New("broker client is required")
	case params.Sink == nil:
		return nil, errors.New("outcome sink is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	case params.DLQRepository == nil:
		return nil, errors.New("dlq repository is required")
	}

	cfg := params.Config.Outbox
	return &Service{
		logg:           params.Logger,
		db:             params.DB,
		broker:         params.Broker,
		sink:           params.Sink,
		repo:           params.Repository,
		registry:       params.Registry,
		dlq:            params.DLQRepository,
		metrics:        params.Metrics,
		jobs:           params.Jobs,
		batchSize:      positiveOr(cfg.BatchSize, defaultBatchSize),
		maxAttempts:    positiveOr(cfg.MaxAttempts, defaultMaxAttempts),
		concurrency:    positiveOr(cfg.PublishConcurrency, defaultConcurrency),
		pollInterval:   positiveOr(time.Duration(cfg.PollIntervalMS)*time.Millisecond, defaultPollInterval),
		publishTimeout: positiveOr(cfg.PublishTimeout, defaultPublishTimeout),
	}, nil
}

func positiveOr[T int | time.Duration](v, fallback T) T {
	if v > 0 {
		return v
	}
	return fallback
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	deps := []struct {
		name string
		dep  pinger
	}{{"database", s.db}, {"broker", s.broker}}
	for _, d := range deps {
		if err := d.dep.Ping(ctx); err != nil {
			s.logg.Error(ctx, d.name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", d.name, err)
		}
	}
	return nil
}

// Run polls until ctx is cancelled. A full batch is followed immediately by
// the next one; an empty batch waits one poll interval; a failed batch
// backs off exponentially up to maxBackoff.
func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	wait := time.Duration(0)
	for {
		if err := sleep(ctx, wait); err != nil {
			s.logg.Info(ctx, "outbox publisher context canceled")
			return err
		}

		processed, err := s.runBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox publisher batch error", err)
			wait = withJitter(min(max(wait, s.pollInterval)*2, maxBackoff))
		case processed:
			wait = 0
		default:
			wait = withJitter(s.pollInterval)
		}
	}
}

func (s *Service) runBatch(ctx context.Context) (bool, error) {
	started := time.Now()
	processed, err := s.processBatch(ctx)
	if s.jobs != nil {
		s.jobs.ObserveDuration(jobName, time.Since(started))
		if err != nil {
			s.jobs.IncFailure(jobName)
		} else {
			s.jobs.IncSuccess(jobName)
		}
	}
	return processed, err
}

// delivery is the outcome of trying to publish one claimed row.
type delivery struct {
	resolved *registry.ResolvedEvent
	err      error
}

// processBatch claims a batch, publishes it concurrently, then settles every
// row in the claiming transaction. A crash before commit re-exposes the
// whole batch, so consumers must tolerate a repeated event_id.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	processed := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		processed = len(events) > 0

		results := s.publishAll(ctx, events)
		for i, event := range events {
			if err := s.settle(ctx, tx, event, results[i]); err != nil {
				return err
			}
		}
		return nil
	})
	return processed, err
}

func (s *Service) publishAll(ctx context.Context, events []models.OutboxEvent) []delivery {
	results := make([]delivery, len(events))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i := range events {
		g.Go(func() error {
			results[i] = s.publish(ctx, events[i])
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent) delivery {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		var nonRetry registry.NonRetryableError
		if !errors.As(err, &nonRetry) {
			err = registry.NewNonRetryableError(err)
		}
		return delivery{err: err}
	}

	publishCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()
	err = s.sink.Publish(publishCtx, resolved.Descriptor.Topic, queue.Message{
		ID:         event.ID.String(),
		Data:       event.Payload,
		Attributes: resolved.Attributes,
	})
	return delivery{resolved: resolved, err: err}
}

func (s *Service) settle(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, d delivery) error {
	logCtx := s.logg.WithFields(ctx, eventFields(event, d.resolved))

	if d.err == nil {
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		if s.metrics != nil {
			s.metrics.IncPublished(string(event.EventType))
		}
		s.logg.Info(logCtx, "outbox event published")
		return nil
	}

	var nonRetry registry.NonRetryableError
	if errors.As(d.err, &nonRetry) {
		return s.deadLetter(logCtx, tx, event, enums.OutboxDLQReasonNonRetryable, d.err)
	}

	attempt := event.AttemptCount + 1
	logCtx = s.logg.WithField(logCtx, "attempt_count", attempt)
	if attempt >= s.maxAttempts {
		return s.deadLetter(logCtx, tx, event, enums.OutboxDLQReasonMaxAttempts,
			fmt.Errorf("max publish attempts reached: %w", d.err))
	}

	s.logg.Warn(s.logg.WithField(logCtx, "error", d.err.Error()), "outbox publish failed")
	if s.metrics != nil {
		s.metrics.IncFailed(string(event.EventType))
	}
	if err := s.repo.MarkFailedTx(tx, event.ID, d.err); err != nil {
		return fmt.Errorf("mark failure %s: %w", event.ID, err)
	}
	return nil
}

func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	msg := cause.Error()
	ctx = s.logg.WithFields(ctx, map[string]any{"error_reason": reason, "error": msg})
	s.logg.Warn(ctx, "outbox event will not be retried")

	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  event.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
	if err := s.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	if s.metrics != nil {
		s.metrics.IncDeadLettered(string(event.EventType), string(reason))
	}
	return nil
}

func eventFields(event models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if resolved != nil {
		fields["topic"] = resolved.Descriptor.Topic
		if !resolved.Envelope.OccurredAt.IsZero() {
			fields["occurred_at"] = resolved.Envelope.OccurredAt.Format(time.RFC3339Nano)
		}
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}
