package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/uporders-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/uporders-backend/pkg/errors"
	"github.com/angelmondragon/uporders-backend/pkg/pagination"
	"github.com/google/uuid"
)

// Service exposes the customer-facing reads over fulfilled orders and outcomes.
type Service interface {
	GetOrder(ctx context.Context, customerID, orderID uuid.UUID) (*OrderDetail, error)
	GetOutcome(ctx context.Context, customerID uuid.UUID, key string) (*OutcomeView, error)
	ListOrders(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*OrderList, error)
}

type service struct {
	repo Repository
}

// NewService wires the orders read service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return &service{repo: repo}, nil
}

// GetOrder returns the order only to the customer who placed it. Other
// customers see NOT_FOUND.
func (s *service) GetOrder(ctx context.Context, customerID, orderID uuid.UUID) (*OrderDetail, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil || order.CustomerID != customerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return newOrderDetail(order), nil
}

// GetOutcome reports pending until the worker records a terminal outcome.
func (s *service) GetOutcome(ctx context.Context, customerID uuid.UUID, key string) (*OutcomeView, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key is required")
	}
	outcome, err := s.repo.FindOutcome(ctx, key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load outcome")
	}
	if outcome == nil {
		return &OutcomeView{IdempotencyKey: key, Status: enums.FulfillmentStatusPending}, nil
	}
	if outcome.CustomerID != customerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order request not found")
	}
	return NewOutcomeView(outcome), nil
}

func (s *service) ListOrders(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*OrderList, error) {
	orders, next, err := s.repo.ListByCustomer(ctx, customerID, params)
	if errors.Is(err, pagination.ErrInvalidCursor) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	list := &OrderList{Orders: make([]OrderDetail, 0, len(orders)), NextCursor: next}
	for i := range orders {
		list.Orders = append(list.Orders, *newOrderDetail(&orders[i]))
	}
	return list, nil
}
