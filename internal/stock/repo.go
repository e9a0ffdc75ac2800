package stock

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/uporders-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the persistence surface of the stock ledger. Every count
// mutation is a single conditional statement.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Decrement(ctx context.Context, storeID, itemID uuid.UUID, units int) (bool, error)
	Increment(ctx context.Context, storeID, itemID uuid.UUID, units int) (bool, error)
	Exists(ctx context.Context, storeID, itemID uuid.UUID) (bool, error)
	Find(ctx context.Context, storeID, itemID uuid.UUID) (*models.StoreItem, error)
	Ensure(ctx context.Context, storeID, itemID uuid.UUID) error
	Delete(ctx context.Context, storeID, itemID uuid.UUID) (*models.StoreItem, error)
	RecordMovement(ctx context.Context, movement *models.StockMovement) error
	ListMovements(ctx context.Context, storeID, itemID uuid.UUID) ([]models.StockMovement, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a stock repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Decrement subtracts units only when enough are available. The UPDATE takes
// the row lock, so the check and the write cannot interleave with another
// decrement of the same pair.
func (r *repository) Decrement(ctx context.Context, storeID, itemID uuid.UUID, units int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.StoreItem{}).
		Where("store_id = ? AND item_id = ? AND available_count >= ?", storeID, itemID, units).
		Updates(map[string]any{
			"available_count": gorm.Expr("available_count - ?", units),
			"updated_at":      time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Increment(ctx context.Context, storeID, itemID uuid.UUID, units int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.StoreItem{}).
		Where("store_id = ? AND item_id = ?", storeID, itemID).
		Updates(map[string]any{
			"available_count": gorm.Expr("available_count + ?", units),
			"updated_at":      time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Exists(ctx context.Context, storeID, itemID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.StoreItem{}).
		Where("store_id = ? AND item_id = ?", storeID, itemID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) Find(ctx context.Context, storeID, itemID uuid.UUID) (*models.StoreItem, error) {
	var entry models.StoreItem
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND item_id = ?", storeID, itemID).
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Ensure creates the association with a zero count when it does not exist.
func (r *repository) Ensure(ctx context.Context, storeID, itemID uuid.UUID) error {
	entry := models.StoreItem{StoreID: storeID, ItemID: itemID}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&entry).Error
}

// Delete removes the association and returns the row as it was deleted. On
// postgres the row is locked first so a concurrent decrement cannot change
// the count between the read and the delete. Nil when nothing was removed.
func (r *repository) Delete(ctx context.Context, storeID, itemID uuid.UUID) (*models.StoreItem, error) {
	query := r.db.WithContext(ctx)
	if query.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var entry models.StoreItem
	err := query.Where("store_id = ? AND item_id = ?", storeID, itemID).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	res := r.db.WithContext(ctx).
		Where("store_id = ? AND item_id = ?", storeID, itemID).
		Delete(&models.StoreItem{})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &entry, nil
}

func (r *repository) RecordMovement(ctx context.Context, movement *models.StockMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *repository) ListMovements(ctx context.Context, storeID, itemID uuid.UUID) ([]models.StockMovement, error) {
	var movements []models.StockMovement
	if err := r.db.WithContext(ctx).
		Where("store_id = ? AND item_id = ?", storeID, itemID).
		Order("created_at ASC").
		Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}
