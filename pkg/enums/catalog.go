package enums

import "fmt"

// ItemCategory represents the menu sections an item can be listed under.
type ItemCategory string

const (
	ItemCategoryStarter    ItemCategory = "Starter"
	ItemCategoryBeverage   ItemCategory = "Beverage"
	ItemCategoryMainCourse ItemCategory = "Main Course"
	ItemCategoryDessert    ItemCategory = "Dessert"
)

var validItemCategories = []ItemCategory{
	ItemCategoryStarter,
	ItemCategoryBeverage,
	ItemCategoryMainCourse,
	ItemCategoryDessert,
}

// String implements fmt.Stringer.
func (c ItemCategory) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ItemCategory.
func (c ItemCategory) IsValid() bool {
	for _, candidate := range validItemCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseItemCategory converts raw input into an ItemCategory.
func ParseItemCategory(value string) (ItemCategory, error) {
	for _, candidate := range validItemCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid item category %q", value)
}

// CustomerRole distinguishes ordering customers from merchants.
type CustomerRole string

const (
	CustomerRoleConsumer CustomerRole = "consumer"
	CustomerRoleMerchant CustomerRole = "merchant"
)

func (r CustomerRole) IsValid() bool {
	return r == CustomerRoleConsumer || r == CustomerRoleMerchant
}

// StockMovementReason labels a stock_movements journal row.
type StockMovementReason string

const (
	StockMovementStocked   StockMovementReason = "stocked"
	StockMovementUnstocked StockMovementReason = "unstocked"
	StockMovementDecrement StockMovementReason = "decrement"
	StockMovementRelease   StockMovementReason = "release"
)
