package models

import (
	"time"

	"github.com/storefront/backend/internal/domain/cart"
)

// CartLineModel is the persistence model for cart_details.
// Customer lines store an empty ip_address; guest lines a NULL customer_id.
// chk_cart_details_owner rejects rows with both or neither.
// (owner, product_id) is not unique; duplicates are repaired by the integrity auditor.
type CartLineModel struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	ProductID  int64     `gorm:"not null;index"`
	CustomerID *int64    `gorm:"index"`
	IPAddress  string    `gorm:"type:varchar(45);not null;default:'';index;check:chk_cart_details_owner,(customer_id IS NULL) <> (ip_address = '')"`
	Quantity   int       `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (CartLineModel) TableName() string {
	return "cart_details"
}

// NewCartLineModel creates a row for owner
func NewCartLineModel(productID int64, quantity int, owner cart.Owner) *CartLineModel {
	m := &CartLineModel{ProductID: productID, Quantity: quantity}
	if id, ok := owner.CustomerID(); ok {
		m.CustomerID = &id
	}
	if ip, ok := owner.IPAddress(); ok {
		m.IPAddress = ip
	}
	return m
}

// Owner returns the owner stored on the row
func (m *CartLineModel) Owner() cart.Owner {
	if m.CustomerID != nil {
		return cart.CustomerOwner(*m.CustomerID)
	}
	return cart.GuestOwner(m.IPAddress)
}

// ToDomain converts the persistence model to a cart.Line
func (m *CartLineModel) ToDomain() *cart.Line {
	return &cart.Line{
		ID:        m.ID,
		ProductID: m.ProductID,
		Owner:     m.Owner(),
		Quantity:  m.Quantity,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
