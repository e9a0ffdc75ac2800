package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/angelmondragon/uporders-backend/internal/fulfillment"
	"github.com/angelmondragon/uporders-backend/internal/stock"
	"github.com/angelmondragon/uporders-backend/pkg/config"
	"github.com/angelmondragon/uporders-backend/pkg/db"
	"github.com/angelmondragon/uporders-backend/pkg/db/models"
	"github.com/angelmondragon/uporders-backend/pkg/enums"
	"github.com/angelmondragon/uporders-backend/pkg/logger"
	"github.com/angelmondragon/uporders-backend/pkg/metrics"
	"github.com/angelmondragon/uporders-backend/pkg/migrate"
	"github.com/angelmondragon/uporders-backend/pkg/outbox"
	"github.com/angelmondragon/uporders-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/uporders-backend/pkg/outbox/registry"
	"github.com/angelmondragon/uporders-backend/pkg/queue"
	"github.com/angelmondragon/uporders-backend/pkg/queue/memqueue"
)

// scenario is one oversubscribed run: Customers race for Stock units of a
// single item, and every customer submits its request 1+Duplicates times.
type scenario struct {
	Customers   int
	Stock       int
	Duplicates  int
	Concurrency int
	Price       string
	LeaseTTL    time.Duration
}

func (s scenario) validate() error {
	var err error
	if s.Customers <= 0 {
		err = multierr.Append(err, errors.New("customers must be positive"))
	}
	if s.Stock < 0 {
		err = multierr.Append(err, errors.New("stock must not be negative"))
	}
	if s.Duplicates < 0 {
		err = multierr.Append(err, errors.New("duplicates must not be negative"))
	}
	if s.Concurrency <= 0 {
		err = multierr.Append(err, errors.New("concurrency must be positive"))
	}
	if _, perr := decimal.NewFromString(s.Price); perr != nil {
		err = multierr.Append(err, fmt.Errorf("price: %w", perr))
	}
	return err
}

type report struct {
	Published    int64                           `json:"published"`
	Delivered    int64                           `json:"delivered"`
	Outcomes     map[enums.FulfillmentStatus]int `json:"outcomes"`
	Events       map[enums.OutboxEventType]int   `json:"events"`
	InitialStock int                             `json:"initial_stock"`
	Remaining    int                             `json:"remaining"`
	Elapsed      string                          `json:"elapsed"`
}

type fixture struct {
	storeID   uuid.UUID
	itemID    uuid.UUID
	customers []uuid.UUID
}

// runScenario migrates conn, seeds one stocked item, floods an in-memory
// queue with requests and checks the end state. The returned error lists
// every violated expectation.
func runScenario(ctx context.Context, conn *gorm.DB, sc scenario, logg *logger.Logger) (*report, error) {
	if err := sc.validate(); err != nil {
		return nil, err
	}
	if err := migrate.AutoMigrate(ctx, conn); err != nil {
		return nil, err
	}
	ledger, err := stock.NewLedger(stock.NewRepository(conn), nil)
	if err != nil {
		return nil, err
	}
	fx, err := seedScenario(ctx, conn, ledger, sc)
	if err != nil {
		return nil, err
	}

	leases, err := idempotency.NewManager(idempotency.NewMemoryStore(), sc.LeaseTTL)
	if err != nil {
		return nil, err
	}
	worker, err := fulfillment.New(config.WorkerConfig{
		PricePolicy:    config.PricePolicyTrust,
		PriceTolerance: "0.00",
	}, fulfillment.Deps{
		DB:      db.FromConn(conn, 0),
		Leases:  leases,
		Metrics: metrics.NewFulfillmentMetrics(prometheus.NewRegistry()),
		Logger:  logg,
	})
	if err != nil {
		return nil, err
	}

	q := memqueue.New(sc.Customers*(sc.Duplicates+1), sc.Concurrency)
	defer q.Close()

	started := time.Now()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- worker.Run(runCtx, q) }()

	published, err := flood(ctx, q, fx, sc)
	if err != nil {
		cancel()
		<-done
		return nil, err
	}
	if err := q.WaitIdle(ctx); err != nil {
		cancel()
		<-done
		return nil, err
	}
	cancel()
	if err := <-done; err != nil {
		return nil, err
	}

	rep := &report{
		Published:    published,
		Delivered:    q.Delivered(),
		InitialStock: sc.Stock,
		Elapsed:      time.Since(started).Round(time.Millisecond).String(),
	}
	if rep.Outcomes, err = countOutcomes(ctx, conn); err != nil {
		return rep, err
	}
	if rep.Events, err = countEvents(ctx, conn); err != nil {
		return rep, err
	}
	if rep.Remaining, err = ledger.Available(ctx, fx.storeID, fx.itemID); err != nil {
		return rep, err
	}
	return rep, rep.check(sc)
}

func seedScenario(ctx context.Context, conn *gorm.DB, ledger *stock.Ledger, sc scenario) (fixture, error) {
	var fx fixture
	err := conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		merchant := models.Customer{Name: "Stress Merchant", Role: enums.CustomerRoleMerchant}
		if err := tx.Create(&merchant).Error; err != nil {
			return err
		}
		store := models.Store{Name: "Stress Kitchen", Address: "0 Load St", MerchantID: merchant.ID}
		if err := tx.Create(&store).Error; err != nil {
			return err
		}
		item := models.Item{
			Name:       "Limited Special",
			Category:   enums.ItemCategoryMainCourse,
			Price:      decimal.RequireFromString(sc.Price),
			MerchantID: merchant.ID,
		}
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
		if err := ledger.Stock(ctx, tx, store.ID, item.ID, sc.Stock); err != nil {
			return err
		}
		fx.storeID, fx.itemID = store.ID, item.ID
		for i := 0; i < sc.Customers; i++ {
			customer := models.Customer{Name: fmt.Sprintf("Stress Consumer %d", i), Role: enums.CustomerRoleConsumer}
			if err := tx.Create(&customer).Error; err != nil {
				return err
			}
			fx.customers = append(fx.customers, customer.ID)
		}
		return nil
	})
	return fx, err
}

// flood publishes every customer's request, duplicates included, from
// Concurrency goroutines.
func flood(ctx context.Context, publisher queue.Publisher, fx fixture, sc scenario) (int64, error) {
	var published atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sc.Concurrency)
	for i, customerID := range fx.customers {
		req := fulfillment.OrderRequest{
			IdempotencyKey: fmt.Sprintf("stress-%d", i),
			CustomerID:     customerID,
			StoreID:        fx.storeID,
			Items:          []fulfillment.OrderItem{{ItemID: fx.itemID, Price: decimal.RequireFromString(sc.Price)}},
		}
		data, err := json.Marshal(req)
		if err != nil {
			return published.Load(), err
		}
		for n := 0; n <= sc.Duplicates; n++ {
			msg := queue.Message{
				ID:         fmt.Sprintf("%s#%d", req.IdempotencyKey, n),
				Data:       data,
				Attributes: map[string]string{"idempotency_key": req.IdempotencyKey},
			}
			g.Go(func() error {
				if err := publisher.Publish(gctx, msg); err != nil {
					return err
				}
				published.Add(1)
				return nil
			})
		}
	}
	err := g.Wait()
	return published.Load(), err
}

func countOutcomes(ctx context.Context, conn *gorm.DB) (map[enums.FulfillmentStatus]int, error) {
	var rows []struct {
		Status enums.FulfillmentStatus
		Total  int
	}
	err := conn.WithContext(ctx).
		Model(&models.FulfillmentOutcome{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[enums.FulfillmentStatus]int, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Total
	}
	return out, nil
}

// countEvents decodes every outbox payload so a malformed event fails the run.
func countEvents(ctx context.Context, conn *gorm.DB) (map[enums.OutboxEventType]int, error) {
	var events []models.OutboxEvent
	if err := conn.WithContext(ctx).Find(&events).Error; err != nil {
		return nil, err
	}
	decoders := registry.NewOutcomeDecoders()
	out := make(map[enums.OutboxEventType]int)
	var errs error
	for _, event := range events {
		var envelope outbox.PayloadEnvelope
		if err := json.Unmarshal(event.Payload, &envelope); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("event %s: %w", event.ID, err))
			continue
		}
		if _, err := decoders.Decode(event.EventType, envelope.Version, envelope.Data); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("event %s: %w", event.ID, err))
			continue
		}
		out[event.EventType]++
	}
	return out, errs
}

func (r *report) check(sc scenario) error {
	var err error
	fulfilled := r.Outcomes[enums.FulfillmentStatusFulfilled]
	rejected := r.Outcomes[enums.FulfillmentStatusRejected]
	want := min(sc.Customers, sc.Stock)

	if r.Remaining < 0 {
		err = multierr.Append(err, fmt.Errorf("stock went negative: %d", r.Remaining))
	}
	if fulfilled != want {
		err = multierr.Append(err, fmt.Errorf("fulfilled %d requests, want %d", fulfilled, want))
	}
	if fulfilled+r.Remaining != sc.Stock {
		err = multierr.Append(err, fmt.Errorf("fulfilled %d + remaining %d does not match stock %d", fulfilled, r.Remaining, sc.Stock))
	}
	if fulfilled+rejected != sc.Customers {
		err = multierr.Append(err, fmt.Errorf("%d outcomes for %d distinct requests", fulfilled+rejected, sc.Customers))
	}
	if r.Outcomes[enums.FulfillmentStatusFailed] != 0 {
		err = multierr.Append(err, errors.New("failed outcomes were persisted"))
	}
	if r.Events[enums.EventOrderFulfilled] != fulfilled {
		err = multierr.Append(err, fmt.Errorf("%d fulfilled events for %d orders", r.Events[enums.EventOrderFulfilled], fulfilled))
	}
	if r.Events[enums.EventOrderRejected] != rejected {
		err = multierr.Append(err, fmt.Errorf("%d rejected events for %d rejections", r.Events[enums.EventOrderRejected], rejected))
	}
	return err
}
