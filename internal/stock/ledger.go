package stock

import (
	"context"
	"fmt"

	"github.com/angelmondragon/uporders-backend/pkg/db/models"
	"github.com/angelmondragon/uporders-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/uporders-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Decrement results reported to an Observer.
const (
	ResultOK                = "ok"
	ResultInsufficientStock = "insufficient_stock"
	ResultNotStocked        = "not_stocked"
	ResultError             = "error"
)

// Observer receives the outcome of every decrement attempt.
type Observer interface {
	ObserveStockDecrement(result string)
}

// Shortfall is attached as details to NOT_STOCKED and INSUFFICIENT_STOCK errors.
type Shortfall struct {
	StoreID   uuid.UUID `json:"store_id"`
	ItemID    uuid.UUID `json:"item_id"`
	Requested int       `json:"requested"`
}

// Ledger owns per-(store, item) available counts. Mutations run on the
// caller's transaction so they commit or roll back with the order.
type Ledger struct {
	repo     Repository
	observer Observer
}

// NewLedger wires a ledger over the provided repository. observer may be nil.
func NewLedger(repo Repository, observer Observer) (*Ledger, error) {
	if repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	return &Ledger{repo: repo, observer: observer}, nil
}

// TryDecrement takes units from the pair when enough are available.
// Returns nil, NOT_STOCKED or INSUFFICIENT_STOCK; other errors are store failures.
func (l *Ledger) TryDecrement(ctx context.Context, tx *gorm.DB, storeID, itemID uuid.UUID, units int, reference string) error {
	if units <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "units must be positive")
	}
	repo := l.repo.WithTx(tx)

	ok, err := repo.Decrement(ctx, storeID, itemID, units)
	if err != nil {
		l.observe(ResultError)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
	}
	if !ok {
		exists, err := repo.Exists(ctx, storeID, itemID)
		if err != nil {
			l.observe(ResultError)
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check stock entry")
		}
		shortfall := Shortfall{StoreID: storeID, ItemID: itemID, Requested: units}
		if !exists {
			l.observe(ResultNotStocked)
			return pkgerrors.New(pkgerrors.CodeNotStocked, "item is not stocked by store").WithDetails(shortfall)
		}
		l.observe(ResultInsufficientStock)
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").WithDetails(shortfall)
	}

	if err := l.record(ctx, repo, storeID, itemID, -units, enums.StockMovementDecrement, reference); err != nil {
		l.observe(ResultError)
		return err
	}
	l.observe(ResultOK)
	return nil
}

// Release gives units back to the pair. Releasing against a removed
// association returns NOT_STOCKED.
func (l *Ledger) Release(ctx context.Context, tx *gorm.DB, storeID, itemID uuid.UUID, units int, reference string) error {
	if units <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "units must be positive")
	}
	repo := l.repo.WithTx(tx)

	ok, err := repo.Increment(ctx, storeID, itemID, units)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release stock")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotStocked, "item is not stocked by store").
			WithDetails(Shortfall{StoreID: storeID, ItemID: itemID, Requested: units})
	}
	return l.record(ctx, repo, storeID, itemID, units, enums.StockMovementRelease, reference)
}

// Available returns the current count, or NOT_STOCKED when the store does not carry the item.
func (l *Ledger) Available(ctx context.Context, storeID, itemID uuid.UUID) (int, error) {
	entry, err := l.repo.Find(ctx, storeID, itemID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock entry")
	}
	if entry == nil {
		return 0, pkgerrors.New(pkgerrors.CodeNotStocked, "item is not stocked by store")
	}
	return entry.AvailableCount, nil
}

// Stock adds units to the pair, creating the association when the store did
// not carry the item yet. units may be zero to only create the association.
func (l *Ledger) Stock(ctx context.Context, tx *gorm.DB, storeID, itemID uuid.UUID, units int) error {
	if units < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "units must not be negative")
	}
	repo := l.repo.WithTx(tx)
	if err := repo.Ensure(ctx, storeID, itemID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stock entry")
	}
	if units == 0 {
		return nil
	}
	if _, err := repo.Increment(ctx, storeID, itemID, units); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stock units")
	}
	return l.record(ctx, repo, storeID, itemID, units, enums.StockMovementStocked, "")
}

// Unstock removes the association. Orders in flight against it will be
// rejected as NOT_STOCKED.
func (l *Ledger) Unstock(ctx context.Context, tx *gorm.DB, storeID, itemID uuid.UUID) error {
	repo := l.repo.WithTx(tx)
	removed, err := repo.Delete(ctx, storeID, itemID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete stock entry")
	}
	if removed == nil {
		return pkgerrors.New(pkgerrors.CodeNotStocked, "item is not stocked by store")
	}
	return l.record(ctx, repo, storeID, itemID, -removed.AvailableCount, enums.StockMovementUnstocked, "")
}

// Movements lists the journal for one pair, oldest first.
func (l *Ledger) Movements(ctx context.Context, storeID, itemID uuid.UUID) ([]models.StockMovement, error) {
	return l.repo.ListMovements(ctx, storeID, itemID)
}

func (l *Ledger) record(ctx context.Context, repo Repository, storeID, itemID uuid.UUID, delta int, reason enums.StockMovementReason, reference string) error {
	movement := &models.StockMovement{
		StoreID: storeID,
		ItemID:  itemID,
		Delta:   delta,
		Reason:  reason,
	}
	if reference != "" {
		movement.Reference = &reference
	}
	if err := repo.RecordMovement(ctx, movement); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record stock movement")
	}
	return nil
}

func (l *Ledger) observe(result string) {
	if l.observer != nil {
		l.observer.ObserveStockDecrement(result)
	}
}
