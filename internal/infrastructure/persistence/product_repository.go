package persistence

import (
	"context"
	"strings"

	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormProductRepository implements catalog.ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) joined(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("products AS p").
		Select("p.product_id, p.title, p.price, p.image, p.category_id, p.brand_id, " +
			"c.title AS category_title, b.title AS brand_title").
		Joins("LEFT JOIN categories c ON c.category_id = p.category_id").
		Joins("LEFT JOIN brands b ON b.brand_id = p.brand_id")
}

// FindByID finds a product with its category and brand titles
func (r *GormProductRepository) FindByID(ctx context.Context, id int64) (*catalog.Product, error) {
	var rows []models.ProductRow
	if err := r.joined(ctx).Where("p.product_id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return nil, ClassifyError(err)
	}
	if len(rows) == 0 {
		return nil, shared.ErrProductNotFound
	}
	return rows[0].ToDomain(), nil
}

// Exists reports whether the product exists and returns it when it does
func (r *GormProductRepository) Exists(ctx context.Context, productID int64) (bool, *catalog.Product, error) {
	p, err := r.FindByID(ctx, productID)
	if err != nil {
		if shared.IsKind(err, shared.KindNotFound) {
			return false, nil, nil
		}
		return false, nil, err
	}
	return true, p, nil
}

// ExistingIDs returns the subset of ids that exist
func (r *GormProductRepository) ExistingIDs(ctx context.Context, ids []int64) (map[int64]bool, error) {
	found := make(map[int64]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	var existing []int64
	if err := r.db.WithContext(ctx).
		Model(&models.ProductModel{}).
		Where("product_id IN ?", ids).
		Pluck("product_id", &existing).Error; err != nil {
		return nil, ClassifyError(err)
	}
	for _, id := range existing {
		found[id] = true
	}
	return found, nil
}

// FindAll lists products matching the filter and returns the total count
func (r *GormProductRepository) FindAll(ctx context.Context, filter shared.Filter) ([]catalog.Product, int64, error) {
	filter = filter.Normalize()

	var total int64
	if err := r.applyFilter(r.db.WithContext(ctx).Table("products AS p"), filter).
		Count(&total).Error; err != nil {
		return nil, 0, ClassifyError(err)
	}

	var rows []models.ProductRow
	if err := r.applyFilter(r.joined(ctx), filter).
		Order(productSort.clause(filter.OrderBy, filter.OrderDir)).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Scan(&rows).Error; err != nil {
		return nil, 0, ClassifyError(err)
	}

	products := make([]catalog.Product, 0, len(rows))
	for i := range rows {
		products = append(products, *rows[i].ToDomain())
	}
	return products, total, nil
}

func (r *GormProductRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if s := strings.TrimSpace(filter.Search); s != "" {
		query = query.Where("LOWER(p.title) LIKE ?", "%"+strings.ToLower(s)+"%")
	}
	if v, ok := filter.Filters[catalog.FilterCategoryID]; ok && v != nil {
		query = query.Where("p.category_id = ?", v)
	}
	if v, ok := filter.Filters[catalog.FilterBrandID]; ok && v != nil {
		query = query.Where("p.brand_id = ?", v)
	}
	return query
}

var _ catalog.ProductRepository = (*GormProductRepository)(nil)
