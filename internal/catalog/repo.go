package catalog

import (
	"context"
	"errors"

	"github.com/angelmondragon/uporders-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository resolves the stores, customers and items an order refers to.
// Lookups return (nil, nil) when the row does not exist.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindStore(ctx context.Context, id uuid.UUID) (*models.Store, error)
	FindCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	FindItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Item, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a catalog repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindStore(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	var store models.Store
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&store).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &store, nil
}

func (r *repository) FindCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&customer).Error; err != nil {
		return nil, notFoundAsNil(err)
	}
	return &customer, nil
}

func (r *repository) FindItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Item, error) {
	out := make(map[uuid.UUID]models.Item, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var items []models.Item
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	for _, item := range items {
		out[item.ID] = item
	}
	return out, nil
}

func notFoundAsNil(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}
