package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/angelmondragon/uporders-backend/pkg/db/dbtest"
	"github.com/angelmondragon/uporders-backend/pkg/db/models"
	"github.com/angelmondragon/uporders-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/uporders-backend/pkg/errors"
	"github.com/angelmondragon/uporders-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type stubRepo struct {
	Repository
	findOutcome func(ctx context.Context, key string) (*models.FulfillmentOutcome, error)
	findByID    func(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

func (s *stubRepo) WithTx(*gorm.DB) Repository { return s }

func (s *stubRepo) ListByCustomer(_ context.Context, _ uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, "", err
	}
	return nil, "", nil
}

func (s *stubRepo) FindOutcome(ctx context.Context, key string) (*models.FulfillmentOutcome, error) {
	return s.findOutcome(ctx, key)
}

func (s *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.findByID(ctx, id)
}

func TestGetOrderEnforcesOwnership(t *testing.T) {
	conn := dbtest.Open(t)
	f := dbtest.Seed(t, conn)
	item := f.Item(t, conn, "Soup", "5.00")
	repo := NewRepository(conn)
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()

	order := newOrder(f, "key-own", item.ID)
	order.BillAmount = decimal.RequireFromString("5")
	if err := repo.CreateOrder(ctx, order); err != nil {
		t.Fatalf("create order: %v", err)
	}

	detail, err := svc.GetOrder(ctx, f.Customer.ID, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if detail.BillAmount != "5.00" || len(detail.Lines) != 1 {
		t.Fatalf("unexpected detail %+v", detail)
	}

	_, err = svc.GetOrder(ctx, uuid.New(), order.ID)
	if pkgerrors.CodeOf(err) != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for other customer, got %v", err)
	}
}

func TestGetOutcomePendingAndOwnership(t *testing.T) {
	owner := uuid.New()
	orderID := uuid.New()
	svc, _ := NewService(&stubRepo{findOutcome: func(_ context.Context, key string) (*models.FulfillmentOutcome, error) {
		if key != "known" {
			return nil, nil
		}
		return &models.FulfillmentOutcome{
			IdempotencyKey: key,
			Status:         enums.FulfillmentStatusFulfilled,
			OrderID:        &orderID,
			CustomerID:     owner,
		}, nil
	}})
	ctx := context.Background()

	view, err := svc.GetOutcome(ctx, owner, "unknown")
	if err != nil || view.Status != enums.FulfillmentStatusPending {
		t.Fatalf("expected pending view, got %+v (%v)", view, err)
	}

	view, err = svc.GetOutcome(ctx, owner, "known")
	if err != nil || view.Status != enums.FulfillmentStatusFulfilled || *view.OrderID != orderID {
		t.Fatalf("unexpected outcome view %+v (%v)", view, err)
	}

	if _, err := svc.GetOutcome(ctx, uuid.New(), "known"); pkgerrors.CodeOf(err) != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for other customer, got %v", err)
	}
	if _, err := svc.GetOutcome(ctx, owner, "  "); pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for blank key, got %v", err)
	}
}

func TestGetOrderWrapsStoreFailure(t *testing.T) {
	svc, _ := NewService(&stubRepo{findByID: func(context.Context, uuid.UUID) (*models.Order, error) {
		return nil, errors.New("connection reset")
	}})
	_, err := svc.GetOrder(context.Background(), uuid.New(), uuid.New())
	if pkgerrors.CodeOf(err) != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestNewServiceRequiresRepository(t *testing.T) {
	if _, err := NewService(nil); err == nil {
		t.Fatal("expected error for nil repository")
	}
}

func TestListOrdersRejectsBadCursor(t *testing.T) {
	svc, _ := NewService(&stubRepo{})
	_, err := svc.ListOrders(context.Background(), uuid.New(), pagination.Params{Cursor: "not-base64!"})
	if pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
