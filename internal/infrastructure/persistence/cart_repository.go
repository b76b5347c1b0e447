package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCartRepository implements cart.Repository using GORM
type GormCartRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormCartRepository creates a new GormCartRepository
func NewGormCartRepository(db *gorm.DB) *GormCartRepository {
	return &GormCartRepository{db: db, now: time.Now}
}

// scopeOwner restricts a cart_details query to one owner.
// Every owner-scoped cart query goes through here; an invalid owner matches nothing.
func scopeOwner(owner cart.Owner) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if owner.Validate() != nil {
			return db.Where("1 = 0")
		}
		if id, ok := owner.CustomerID(); ok {
			return db.Where("customer_id = ?", id)
		}
		ip, _ := owner.IPAddress()
		return db.Where("ip_address = ? AND customer_id IS NULL", ip)
	}
}

func checkOwner(owner cart.Owner) error {
	return owner.Validate()
}

// Add increments the line for product if present, otherwise creates it.
// The existing line is locked with SELECT ... FOR UPDATE, but a line that does
// not exist yet cannot be locked: two concurrent first adds of one product
// both insert, leaving duplicate lines for the owner. Reads sum duplicates and
// the integrity auditor's MergeDuplicates folds them back into one line, so
// one line per (product, owner) holds only after a repair run.
func (r *GormCartRepository) Add(ctx context.Context, productID int64, quantity int, owner cart.Owner) (*cart.Line, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	if quantity < 1 || quantity > cart.MaxQuantity {
		return nil, shared.NewValidationError("quantity", fmt.Sprintf("must be between 1 and %d", cart.MaxQuantity), quantity)
	}

	var line *cart.Line
	err := withinTx(ctx, r.db, func(tx *gorm.DB) error {
		var existing models.CartLineModel
		err := tx.Scopes(scopeOwner(owner)).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("product_id = ?", productID).
			Order("id").
			First(&existing).Error
		now := r.now()

		switch {
		case err == nil:
			if existing.Quantity+quantity > cart.MaxQuantity {
				return shared.NewValidationError("quantity",
					fmt.Sprintf("cart would hold %d, the maximum is %d", existing.Quantity+quantity, cart.MaxQuantity), quantity)
			}
			if err := tx.Model(&models.CartLineModel{}).
				Where("id = ?", existing.ID).
				Updates(map[string]any{
					"quantity":   gorm.Expr("quantity + ?", quantity),
					"updated_at": now,
				}).Error; err != nil {
				return err
			}
			if err := tx.First(&existing, existing.ID).Error; err != nil {
				return err
			}
			line = existing.ToDomain()
			return nil

		case errors.Is(err, gorm.ErrRecordNotFound):
			m := models.NewCartLineModel(productID, quantity, owner)
			m.CreatedAt, m.UpdatedAt = now, now
			if err := tx.Create(m).Error; err != nil {
				return err
			}
			line = m.ToDomain()
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// GetLine returns the line for product or shared.ErrCartLineNotFound
func (r *GormCartRepository) GetLine(ctx context.Context, productID int64, owner cart.Owner) (*cart.Line, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	var m models.CartLineModel
	if err := r.db.WithContext(ctx).
		Scopes(scopeOwner(owner)).
		Where("product_id = ?", productID).
		Order("id").
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrCartLineNotFound
		}
		return nil, ClassifyError(err)
	}
	return m.ToDomain(), nil
}

// SetQuantity overwrites the quantity of an existing line.
// Zero removes the line and returns a nil line.
func (r *GormCartRepository) SetQuantity(ctx context.Context, productID int64, quantity int, owner cart.Owner) (*cart.Line, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	switch {
	case quantity < 0:
		return nil, shared.NewValidationError("quantity", "must not be negative", quantity)
	case quantity == 0:
		_, err := r.Remove(ctx, productID, owner)
		return nil, err
	case quantity > cart.MaxQuantity:
		return nil, shared.NewValidationError("quantity", fmt.Sprintf("must be at most %d", cart.MaxQuantity), quantity)
	}

	res := r.db.WithContext(ctx).
		Model(&models.CartLineModel{}).
		Scopes(scopeOwner(owner)).
		Where("product_id = ?", productID).
		Updates(map[string]any{"quantity": quantity, "updated_at": r.now()})
	if res.Error != nil {
		return nil, ClassifyError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, shared.ErrCartLineNotFound
	}
	return r.GetLine(ctx, productID, owner)
}

// Remove deletes the line for product. Removing an absent line is not an error.
func (r *GormCartRepository) Remove(ctx context.Context, productID int64, owner cart.Owner) (int64, error) {
	if err := checkOwner(owner); err != nil {
		return 0, err
	}
	res := r.db.WithContext(ctx).
		Scopes(scopeOwner(owner)).
		Where("product_id = ?", productID).
		Delete(&models.CartLineModel{})
	if res.Error != nil {
		return 0, ClassifyError(res.Error)
	}
	return res.RowsAffected, nil
}

// Empty deletes every line of owner
func (r *GormCartRepository) Empty(ctx context.Context, owner cart.Owner) (int64, error) {
	if err := checkOwner(owner); err != nil {
		return 0, err
	}
	res := r.db.WithContext(ctx).
		Scopes(scopeOwner(owner)).
		Delete(&models.CartLineModel{})
	if res.Error != nil {
		return 0, ClassifyError(res.Error)
	}
	return res.RowsAffected, nil
}

// consumeLines takes the ordered quantities out of owner's cart inside tx.
// Lines of one product are drained oldest first. A line that grew after the
// snapshot keeps the surplus; products added after it are left alone.
func consumeLines(tx *gorm.DB, owner cart.Owner, items []cart.Item, now time.Time) (int64, error) {
	if err := checkOwner(owner); err != nil {
		return 0, err
	}
	var touched int64
	for _, it := range items {
		var lines []models.CartLineModel
		if err := tx.Scopes(scopeOwner(owner)).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("product_id = ? AND quantity > 0", it.ProductID).
			Order("id").
			Find(&lines).Error; err != nil {
			return touched, ClassifyError(err)
		}

		remaining := it.Quantity
		for i := 0; i < len(lines) && remaining > 0; i++ {
			l := lines[i]
			if l.Quantity <= remaining {
				if err := tx.Delete(&models.CartLineModel{}, l.ID).Error; err != nil {
					return touched, ClassifyError(err)
				}
				remaining -= l.Quantity
			} else {
				if err := tx.Model(&models.CartLineModel{}).
					Where("id = ?", l.ID).
					Updates(map[string]any{"quantity": l.Quantity - remaining, "updated_at": now}).Error; err != nil {
					return touched, ClassifyError(err)
				}
				remaining = 0
			}
			touched++
		}
	}
	return touched, nil
}

type snapshotRow struct {
	ProductID int64
	Quantity  int
	Title     string
	Price     decimal.Decimal
	Image     string
	Category  *string
	Brand     *string
}

// Snapshot returns the priced cart ordered by product title.
// Duplicate lines of one product are summed; orphaned lines are left out.
func (r *GormCartRepository) Snapshot(ctx context.Context, owner cart.Owner) (cart.Snapshot, error) {
	if err := checkOwner(owner); err != nil {
		return cart.Snapshot{}, err
	}
	var rows []snapshotRow
	if err := r.db.WithContext(ctx).
		Table("cart_details").
		Select("cart_details.product_id, SUM(cart_details.quantity) AS quantity, " +
			"p.title, p.price, p.image, c.title AS category, b.title AS brand").
		Joins("JOIN products p ON p.product_id = cart_details.product_id").
		Joins("LEFT JOIN categories c ON c.category_id = p.category_id").
		Joins("LEFT JOIN brands b ON b.brand_id = p.brand_id").
		Scopes(scopeOwner(owner)).
		Where("cart_details.quantity > 0").
		Group("cart_details.product_id, p.title, p.price, p.image, c.title, b.title").
		Order("p.title ASC, cart_details.product_id ASC").
		Scan(&rows).Error; err != nil {
		return cart.Snapshot{}, ClassifyError(err)
	}

	items := make([]cart.Item, 0, len(rows))
	for _, row := range rows {
		it := cart.Item{
			ProductID: row.ProductID,
			Title:     row.Title,
			Price:     row.Price,
			Image:     row.Image,
			Quantity:  row.Quantity,
		}
		if row.Category != nil {
			it.Category = *row.Category
		}
		if row.Brand != nil {
			it.Brand = *row.Brand
		}
		items = append(items, it)
	}
	return cart.NewSnapshot(owner, items), nil
}

// Transfer moves the guest cart of fromIP into the customer cart.
// Each line runs under its own savepoint. When no line succeeds and at least
// one failed the transaction is rolled back with transfer_failed; otherwise it
// commits and the report lists the failures. Guest lines left over are deleted.
func (r *GormCartRepository) Transfer(ctx context.Context, fromIP string, toCustomerID int64) (*cart.TransferReport, error) {
	if fromIP == "" {
		return nil, shared.NewValidationError("ip_address", "is required", fromIP)
	}
	if toCustomerID <= 0 {
		return nil, shared.NewValidationError("customer_id", "must be a positive integer", toCustomerID)
	}

	guest := cart.GuestOwner(fromIP)
	customer := cart.CustomerOwner(toCustomerID)
	report := &cart.TransferReport{FromIP: fromIP, ToCustomerID: toCustomerID}

	err := withinTx(ctx, r.db, func(tx *gorm.DB) error {
		// reset counters if the transaction body is retried by the caller
		report.Moved, report.Merged, report.Failures, report.LeftoverRemoved = 0, 0, nil, 0

		var guestLines []models.CartLineModel
		if err := tx.Scopes(scopeOwner(guest)).Order("id").Find(&guestLines).Error; err != nil {
			return err
		}
		if len(guestLines) == 0 {
			return nil
		}

		for i := range guestLines {
			gl := guestLines[i]
			merged := false
			err := withSavepoint(tx, fmt.Sprintf("cart_transfer_%d", i), func(tx *gorm.DB) error {
				var err error
				merged, err = r.transferLine(tx, gl, customer)
				return err
			})
			if err != nil {
				de := shared.AsDomainError(err)
				report.Failures = append(report.Failures, cart.TransferFailure{
					ProductID: gl.ProductID,
					Kind:      string(de.Kind),
					Reason:    de.Error(),
				})
				continue
			}
			if merged {
				report.Merged++
			} else {
				report.Moved++
			}
		}

		if report.Succeeded() == 0 && len(report.Failures) > 0 {
			return shared.NewDomainError(shared.KindTransferFailed,
				fmt.Sprintf("none of %d guest cart line(s) could be transferred", len(report.Failures)))
		}

		res := tx.Scopes(scopeOwner(guest)).Delete(&models.CartLineModel{})
		if res.Error != nil {
			return res.Error
		}
		report.LeftoverRemoved = res.RowsAffected
		return nil
	})
	if err != nil {
		return report, err
	}
	return report, nil
}

// transferLine merges one guest line into the customer cart or re-keys it.
// It reports whether the line was merged into an existing customer line.
func (r *GormCartRepository) transferLine(tx *gorm.DB, gl models.CartLineModel, customer cart.Owner) (bool, error) {
	customerID, _ := customer.CustomerID()
	now := r.now()

	var existing models.CartLineModel
	err := tx.Scopes(scopeOwner(customer)).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ?", gl.ProductID).
		Order("id").
		First(&existing).Error
	switch {
	case err == nil:
		qty := existing.Quantity + gl.Quantity
		if qty > cart.MaxQuantity {
			qty = cart.MaxQuantity
		}
		if err := tx.Model(&models.CartLineModel{}).
			Where("id = ?", existing.ID).
			Updates(map[string]any{"quantity": qty, "updated_at": now}).Error; err != nil {
			return false, err
		}
		if err := tx.Delete(&models.CartLineModel{}, gl.ID).Error; err != nil {
			return false, err
		}
		return true, nil

	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := tx.Model(&models.CartLineModel{}).
			Where("id = ?", gl.ID).
			Updates(map[string]any{"customer_id": customerID, "ip_address": "", "updated_at": now}).Error; err != nil {
			return false, err
		}
		return false, nil
	}
	return false, err
}

var _ cart.Repository = (*GormCartRepository)(nil)
