package models

import (
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/catalog"
)

// CategoryModel is the persistence model for product categories
type CategoryModel struct {
	ID    int64  `gorm:"column:category_id;primaryKey;autoIncrement"`
	Title string `gorm:"type:varchar(100);not null"`
}

// TableName returns the table name for GORM
func (CategoryModel) TableName() string {
	return "categories"
}

// BrandModel is the persistence model for brands
type BrandModel struct {
	ID    int64  `gorm:"column:brand_id;primaryKey;autoIncrement"`
	Title string `gorm:"type:varchar(100);not null"`
}

// TableName returns the table name for GORM
func (BrandModel) TableName() string {
	return "brands"
}

// ProductModel is the persistence model for products
type ProductModel struct {
	ID         int64           `gorm:"column:product_id;primaryKey;autoIncrement"`
	Title      string          `gorm:"type:varchar(255);not null;index"`
	Price      decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	Image      string          `gorm:"type:varchar(255);not null;default:''"`
	CategoryID *int64          `gorm:"index"`
	BrandID    *int64          `gorm:"index"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a catalog.Product without
// category or brand titles
func (m *ProductModel) ToDomain() *catalog.Product {
	return &catalog.Product{
		ID:         m.ID,
		Title:      m.Title,
		Price:      m.Price,
		Image:      m.Image,
		CategoryID: m.CategoryID,
		BrandID:    m.BrandID,
	}
}

// ProductRow is a product joined with its category and brand titles
type ProductRow struct {
	ProductModel
	CategoryTitle *string
	BrandTitle    *string
}

// ToDomain converts the joined row to a catalog.Product
func (r *ProductRow) ToDomain() *catalog.Product {
	p := r.ProductModel.ToDomain()
	if r.CategoryTitle != nil {
		p.Category = *r.CategoryTitle
	}
	if r.BrandTitle != nil {
		p.Brand = *r.BrandTitle
	}
	return p
}
