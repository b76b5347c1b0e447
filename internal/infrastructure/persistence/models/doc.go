// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain types to keep the domain layer pure and free
// from ORM concerns.
//
// Key Principles:
// 1. Domain types carry no GORM tags
// 2. Persistence models contain all GORM annotations and table mappings
// 3. ToDomain / FromDomain convert between the two
// 4. Repositories use persistence models for database operations
//
// Structure:
// - catalog.go: products, categories, brands (read-only for the storefront)
// - cart.go: cart_details
// - order.go: orders, order_lines, payments
package models

// All returns every model in dependency order, for AutoMigrate
func All() []any {
	return []any{
		&CategoryModel{},
		&BrandModel{},
		&ProductModel{},
		&CartLineModel{},
		&OrderModel{},
		&OrderLineModel{},
		&PaymentModel{},
	}
}
