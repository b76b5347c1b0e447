package persistence

import (
	"context"
	"time"

	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormCartIntegrityRepository implements cart.IntegrityRepository using GORM
type GormCartIntegrityRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormCartIntegrityRepository creates a new GormCartIntegrityRepository
func NewGormCartIntegrityRepository(db *gorm.DB) *GormCartIntegrityRepository {
	return &GormCartIntegrityRepository{db: db, now: time.Now}
}

func (r *GormCartIntegrityRepository) lines(ctx context.Context, owner cart.Owner) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.CartLineModel{}).Scopes(scopeOwner(owner))
}

// FindOrphans returns lines whose product no longer exists
func (r *GormCartIntegrityRepository) FindOrphans(ctx context.Context, owner cart.Owner) ([]cart.OrphanedLine, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	var out []cart.OrphanedLine
	if err := r.db.WithContext(ctx).
		Table("cart_details").
		Select("cart_details.id AS line_id, cart_details.product_id, cart_details.quantity").
		Joins("LEFT JOIN products p ON p.product_id = cart_details.product_id").
		Scopes(scopeOwner(owner)).
		Where("p.product_id IS NULL").
		Order("cart_details.id").
		Scan(&out).Error; err != nil {
		return nil, ClassifyError(err)
	}
	return out, nil
}

// FindInvalidQuantities returns lines with quantity outside 1..MaxQuantity
func (r *GormCartIntegrityRepository) FindInvalidQuantities(ctx context.Context, owner cart.Owner) ([]cart.InvalidQuantityLine, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	var out []cart.InvalidQuantityLine
	if err := r.lines(ctx, owner).
		Select("id AS line_id, product_id, quantity").
		Where("quantity <= 0 OR quantity > ?", cart.MaxQuantity).
		Order("id").
		Scan(&out).Error; err != nil {
		return nil, ClassifyError(err)
	}
	return out, nil
}

// FindDuplicates returns products held on more than one line
func (r *GormCartIntegrityRepository) FindDuplicates(ctx context.Context, owner cart.Owner) ([]cart.DuplicateGroup, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	var out []cart.DuplicateGroup
	if err := r.lines(ctx, owner).
		Select("product_id, COUNT(*) AS count, SUM(quantity) AS merged_quantity").
		Group("product_id").
		Having("COUNT(*) > 1").
		Order("product_id").
		Scan(&out).Error; err != nil {
		return nil, ClassifyError(err)
	}
	return out, nil
}

// RemoveOrphans deletes lines whose product no longer exists
func (r *GormCartIntegrityRepository) RemoveOrphans(ctx context.Context, owner cart.Owner) (int64, error) {
	if err := checkOwner(owner); err != nil {
		return 0, err
	}
	var affected int64
	err := withinTx(ctx, r.db, func(tx *gorm.DB) error {
		res := tx.Scopes(scopeOwner(owner)).
			Where("product_id NOT IN (?)", tx.Model(&models.ProductModel{}).Select("product_id")).
			Delete(&models.CartLineModel{})
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// FixQuantities deletes lines with quantity <= 0 and clamps the rest to MaxQuantity
func (r *GormCartIntegrityRepository) FixQuantities(ctx context.Context, owner cart.Owner) (int64, error) {
	if err := checkOwner(owner); err != nil {
		return 0, err
	}
	var affected int64
	err := withinTx(ctx, r.db, func(tx *gorm.DB) error {
		del := tx.Scopes(scopeOwner(owner)).
			Where("quantity <= 0").
			Delete(&models.CartLineModel{})
		if del.Error != nil {
			return del.Error
		}
		clamp := tx.Model(&models.CartLineModel{}).
			Scopes(scopeOwner(owner)).
			Where("quantity > ?", cart.MaxQuantity).
			Updates(map[string]any{"quantity": cart.MaxQuantity, "updated_at": r.now()})
		if clamp.Error != nil {
			return clamp.Error
		}
		affected = del.RowsAffected + clamp.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// MergeDuplicates keeps the oldest line of each duplicate group with the
// summed quantity, clamped to 1..MaxQuantity, and deletes the others.
// It returns the number of deleted lines.
func (r *GormCartIntegrityRepository) MergeDuplicates(ctx context.Context, owner cart.Owner) (int64, error) {
	if err := checkOwner(owner); err != nil {
		return 0, err
	}
	var affected int64
	err := withinTx(ctx, r.db, func(tx *gorm.DB) error {
		affected = 0
		var productIDs []int64
		if err := tx.Model(&models.CartLineModel{}).
			Scopes(scopeOwner(owner)).
			Group("product_id").
			Having("COUNT(*) > 1").
			Pluck("product_id", &productIDs).Error; err != nil {
			return err
		}

		for _, productID := range productIDs {
			var group []models.CartLineModel
			if err := tx.Scopes(scopeOwner(owner)).
				Where("product_id = ?", productID).
				Order("created_at, id").
				Find(&group).Error; err != nil {
				return err
			}
			if len(group) < 2 {
				continue
			}

			total := 0
			ids := make([]int64, 0, len(group)-1)
			for i, l := range group {
				if l.Quantity > 0 {
					total += l.Quantity
				}
				if i > 0 {
					ids = append(ids, l.ID)
				}
			}
			total = max(1, min(total, cart.MaxQuantity))

			if err := tx.Model(&models.CartLineModel{}).
				Where("id = ?", group[0].ID).
				Updates(map[string]any{"quantity": total, "updated_at": r.now()}).Error; err != nil {
				return err
			}
			res := tx.Where("id IN ?", ids).Delete(&models.CartLineModel{})
			if res.Error != nil {
				return res.Error
			}
			affected += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// DeleteStaleGuestLines removes guest lines not updated since cutoff
func (r *GormCartIntegrityRepository) DeleteStaleGuestLines(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("customer_id IS NULL AND updated_at < ?", cutoff).
		Delete(&models.CartLineModel{})
	if res.Error != nil {
		return 0, ClassifyError(res.Error)
	}
	return res.RowsAffected, nil
}

var _ cart.IntegrityRepository = (*GormCartIntegrityRepository)(nil)
