package catalog

import (
	"github.com/shopspring/decimal"
)

// Product is a sellable item as seen by the cart and checkout
type Product struct {
	ID         int64           `json:"product_id"`
	Title      string          `json:"title"`
	Price      decimal.Decimal `json:"price"`
	Image      string          `json:"image"`
	CategoryID *int64          `json:"category_id,omitempty"`
	Category   string          `json:"category"`
	BrandID    *int64          `json:"brand_id,omitempty"`
	Brand      string          `json:"brand"`
}

// Filter keys understood by Repository.FindAll
const (
	FilterCategoryID = "category_id"
	FilterBrandID    = "brand_id"
)
