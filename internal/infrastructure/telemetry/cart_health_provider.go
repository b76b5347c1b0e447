package telemetry

import (
	"context"

	"github.com/storefront/backend/internal/domain/cart"
	"gorm.io/gorm"
)

// GormCartHealthProvider implements CartHealthProvider with aggregate
// queries over cart_details across all owners.
type GormCartHealthProvider struct {
	db *gorm.DB
}

// NewGormCartHealthProvider creates a new GormCartHealthProvider.
func NewGormCartHealthProvider(db *gorm.DB) *GormCartHealthProvider {
	return &GormCartHealthProvider{db: db}
}

// CartHealth counts orphaned lines, out of range quantities, duplicate
// (owner, product) groups and guest lines.
func (p *GormCartHealthProvider) CartHealth(ctx context.Context) (CartHealth, error) {
	var h CartHealth
	db := p.db.WithContext(ctx)

	err := db.Table("cart_details AS cd").
		Joins("LEFT JOIN products p ON p.product_id = cd.product_id").
		Where("p.product_id IS NULL").
		Count(&h.OrphanedLines).Error
	if err != nil {
		return CartHealth{}, err
	}

	err = db.Table("cart_details").
		Where("quantity <= 0 OR quantity > ?", cart.MaxQuantity).
		Count(&h.InvalidLines).Error
	if err != nil {
		return CartHealth{}, err
	}

	groups := db.Table("cart_details").
		Select("product_id").
		Group("product_id, customer_id, ip_address").
		Having("COUNT(*) > 1")
	err = db.Table("(?) AS dup", groups).Count(&h.DuplicateGroups).Error
	if err != nil {
		return CartHealth{}, err
	}

	err = db.Table("cart_details").
		Where("customer_id IS NULL").
		Count(&h.GuestLines).Error
	if err != nil {
		return CartHealth{}, err
	}
	return h, nil
}
