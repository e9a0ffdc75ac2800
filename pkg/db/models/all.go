package models

// All lists every persisted model, in dependency order. Used by sqlite
// auto-migration in local runs and tests.
func All() []any {
	return []any{
		&Customer{},
		&Store{},
		&Item{},
		&StoreItem{},
		&Order{},
		&OrderLine{},
		&StockMovement{},
		&FulfillmentOutcome{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
