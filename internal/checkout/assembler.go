package checkout

import (
	"context"
	"fmt"

	"github.com/angelmondragon/uporders-backend/internal/catalog"
	"github.com/angelmondragon/uporders-backend/internal/orders"
	"github.com/angelmondragon/uporders-backend/pkg/db/models"
	"github.com/angelmondragon/uporders-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/uporders-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

type stockLedger interface {
	TryDecrement(ctx context.Context, tx *gorm.DB, storeID, itemID uuid.UUID, units int, reference string) error
	Release(ctx context.Context, tx *gorm.DB, storeID, itemID uuid.UUID, units int, reference string) error
}

// Unit is one requested unit of an item with the price the customer saw.
type Unit struct {
	ItemID uuid.UUID
	Price  decimal.Decimal
}

// Request is a validated order request. Units keep request order; a repeated
// item id is another unit of the same item.
type Request struct {
	IdempotencyKey string
	CustomerID     uuid.UUID
	StoreID        uuid.UUID
	Units          []Unit
}

// Assembler turns a request into a persisted order inside the caller's
// transaction, reserving stock one unit at a time.
type Assembler struct {
	catalog catalog.Repository
	ledger  stockLedger
	orders  orders.Repository
	pricing Pricing
}

// NewAssembler wires the order assembler.
func NewAssembler(catalogRepo catalog.Repository, ledger stockLedger, ordersRepo orders.Repository, pricing Pricing) (*Assembler, error) {
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if pricing.Policy == "" {
		pricing.Policy = PricePolicyTrust
	}
	return &Assembler{catalog: catalogRepo, ledger: ledger, orders: ordersRepo, pricing: pricing}, nil
}

// Assemble validates req, decrements stock for every unit and persists the
// order with one line per unit. Any error leaves the transaction to be
// rolled back; rejections are typed errors readable with RejectionFromError.
func (a *Assembler) Assemble(ctx context.Context, tx *gorm.DB, req Request) (*models.Order, error) {
	if req.IdempotencyKey == "" || len(req.Units) == 0 {
		return nil, Reject(enums.RejectionInvalidRequest, nil, "order request has no idempotency key or no items")
	}
	catalogRepo := a.catalog.WithTx(tx)

	store, err := catalogRepo.FindStore(ctx, req.StoreID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load store")
	}
	if store == nil {
		return nil, Reject(enums.RejectionStoreNotFound, nil, "store not found")
	}

	customer, err := catalogRepo.FindCustomer(ctx, req.CustomerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}
	if customer == nil {
		return nil, Reject(enums.RejectionCustomerNotFound, nil, "customer not found")
	}

	prices, err := a.priceUnits(ctx, catalogRepo, req.Units)
	if err != nil {
		return nil, err
	}
	bill := decimal.Sum(decimal.Zero, prices...)
	if err := CheckAmount("bill total", bill); err != nil {
		return nil, err
	}

	lines := make([]models.OrderLine, 0, len(req.Units))
	for i, unit := range req.Units {
		if err := a.ledger.TryDecrement(ctx, tx, store.ID, unit.ItemID, 1, req.IdempotencyKey); err != nil {
			if releaseErr := a.releaseTaken(ctx, tx, store.ID, req.Units[:i], req.IdempotencyKey); releaseErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, multierr.Append(err, releaseErr), "release reserved stock")
			}
			if rejection, ok := RejectionFromError(err); ok {
				return nil, rejection.Err()
			}
			return nil, err
		}
		lines = append(lines, models.OrderLine{ItemID: unit.ItemID, UnitPrice: prices[i], Position: i})
	}

	order := &models.Order{
		IdempotencyKey: req.IdempotencyKey,
		CustomerID:     customer.ID,
		MerchantID:     store.MerchantID,
		StoreID:        store.ID,
		BillAmount:     bill,
		Lines:          lines,
	}
	if err := a.orders.WithTx(tx).CreateOrder(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// priceUnits returns the price charged for each unit under the configured policy.
func (a *Assembler) priceUnits(ctx context.Context, catalogRepo catalog.Repository, units []Unit) ([]decimal.Decimal, error) {
	prices := make([]decimal.Decimal, len(units))
	if !a.pricing.needsCatalog() {
		for i, unit := range units {
			prices[i] = unit.Price
		}
		return prices, nil
	}

	ids := make([]uuid.UUID, 0, len(units))
	for _, unit := range units {
		ids = append(ids, unit.ItemID)
	}
	items, err := catalogRepo.FindItems(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load items")
	}

	for i, unit := range units {
		itemID := unit.ItemID
		item, ok := items[itemID]
		if !ok {
			return nil, Reject(enums.RejectionItemNotFound, &itemID, "item not found")
		}
		price, ok := a.pricing.resolve(unit.Price, item.Price)
		if !ok {
			detail := fmt.Sprintf("requested %s, catalog %s", unit.Price.StringFixed(2), item.Price.StringFixed(2))
			return nil, Reject(enums.RejectionPriceMismatch, &itemID, detail)
		}
		prices[i] = price
	}
	return prices, nil
}

// releaseTaken gives back the units decremented earlier in this order.
func (a *Assembler) releaseTaken(ctx context.Context, tx *gorm.DB, storeID uuid.UUID, taken []Unit, reference string) error {
	counts := make(map[uuid.UUID]int, len(taken))
	order := make([]uuid.UUID, 0, len(taken))
	for _, unit := range taken {
		if counts[unit.ItemID] == 0 {
			order = append(order, unit.ItemID)
		}
		counts[unit.ItemID]++
	}
	for _, itemID := range order {
		if err := a.ledger.Release(ctx, tx, storeID, itemID, counts[itemID], reference); err != nil {
			return fmt.Errorf("release item %s: %w", itemID, err)
		}
	}
	return nil
}
