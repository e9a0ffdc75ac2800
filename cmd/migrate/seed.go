package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/uporders-backend/internal/stock"
	"github.com/angelmondragon/uporders-backend/pkg/auth"
	"github.com/angelmondragon/uporders-backend/pkg/config"
	"github.com/angelmondragon/uporders-backend/pkg/db/models"
	"github.com/angelmondragon/uporders-backend/pkg/enums"
)

type seedItem struct {
	name     string
	category enums.ItemCategory
	price    string
	stock    int
}

var demoMenu = []seedItem{
	{name: "Tomato Soup", category: enums.ItemCategoryStarter, price: "4.50", stock: 20},
	{name: "Chicken Curry", category: enums.ItemCategoryMainCourse, price: "11.00", stock: 10},
	{name: "Lemon Tart", category: enums.ItemCategoryDessert, price: "5.25", stock: 3},
}

type seededItem struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Price     string    `json:"price"`
	Available int       `json:"available"`
}

type seedResult struct {
	MerchantID  uuid.UUID    `json:"merchant_id"`
	CustomerID  uuid.UUID    `json:"customer_id"`
	StoreID     uuid.UUID    `json:"store_id"`
	Items       []seededItem `json:"items"`
	AccessToken string       `json:"access_token,omitempty"`
}

// seedDemo creates a merchant with one stocked store and a consumer, and mints
// a consumer token when a JWT secret is configured.
func seedDemo(ctx context.Context, conn *gorm.DB, jwtCfg config.JWTConfig, now time.Time) (*seedResult, error) {
	ledger, err := stock.NewLedger(stock.NewRepository(conn), nil)
	if err != nil {
		return nil, err
	}

	result := &seedResult{}
	err = conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		merchant := models.Customer{Name: "Demo Merchant", Role: enums.CustomerRoleMerchant}
		if err := tx.Create(&merchant).Error; err != nil {
			return fmt.Errorf("create merchant: %w", err)
		}
		consumer := models.Customer{Name: "Demo Consumer", Role: enums.CustomerRoleConsumer}
		if err := tx.Create(&consumer).Error; err != nil {
			return fmt.Errorf("create consumer: %w", err)
		}
		store := models.Store{Name: "Demo Kitchen", Address: "1 Demo Way", MerchantID: merchant.ID}
		if err := tx.Create(&store).Error; err != nil {
			return fmt.Errorf("create store: %w", err)
		}

		result.MerchantID = merchant.ID
		result.CustomerID = consumer.ID
		result.StoreID = store.ID

		for _, entry := range demoMenu {
			item := models.Item{
				Name:       entry.name,
				Category:   entry.category,
				Price:      decimal.RequireFromString(entry.price),
				MerchantID: merchant.ID,
			}
			if err := tx.Create(&item).Error; err != nil {
				return fmt.Errorf("create item %s: %w", entry.name, err)
			}
			if err := ledger.Stock(ctx, tx, store.ID, item.ID, entry.stock); err != nil {
				return fmt.Errorf("stock item %s: %w", entry.name, err)
			}
			result.Items = append(result.Items, seededItem{
				ID:        item.ID,
				Name:      item.Name,
				Price:     item.Price.StringFixed(2),
				Available: entry.stock,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if jwtCfg.Secret != "" {
		token, err := auth.MintAccessToken(jwtCfg, now, auth.AccessTokenPayload{
			CustomerID: result.CustomerID,
			Role:       enums.CustomerRoleConsumer,
		})
		if err != nil {
			return nil, err
		}
		result.AccessToken = token
	}
	return result, nil
}
