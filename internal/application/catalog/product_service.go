package catalog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/validation"
	"golang.org/x/sync/singleflight"
)

// ProductQuery is a catalog browse request
type ProductQuery struct {
	Page       int
	PageSize   int
	Search     string
	CategoryID *int64
	BrandID    *int64
	OrderBy    string
	OrderDir   string
}

func (q ProductQuery) filter() shared.Filter {
	f := shared.Filter{
		Page:     q.Page,
		PageSize: q.PageSize,
		Search:   q.Search,
		OrderBy:  q.OrderBy,
		OrderDir: q.OrderDir,
		Filters:  map[string]interface{}{},
	}
	if q.CategoryID != nil {
		f.Filters[catalog.FilterCategoryID] = *q.CategoryID
	}
	if q.BrandID != nil {
		f.Filters[catalog.FilterBrandID] = *q.BrandID
	}
	return f.Normalize()
}

// key identifies identical queries for request collapsing
func (q ProductQuery) key() string {
	f := q.filter()
	return fmt.Sprintf("list:%d:%d:%s:%s:%s:%v:%v",
		f.Page, f.PageSize, f.Search, f.OrderBy, f.OrderDir,
		f.Filters[catalog.FilterCategoryID], f.Filters[catalog.FilterBrandID])
}

// ProductService serves catalog reads. Reads are not cached; concurrent
// identical reads share one query.
type ProductService struct {
	repo catalog.ProductRepository
	sfg  singleflight.Group
}

// NewProductService creates a new ProductService
func NewProductService(repo catalog.ProductRepository) *ProductService {
	return &ProductService{repo: repo}
}

// GetProduct returns one product with its category and brand titles
func (s *ProductService) GetProduct(ctx context.Context, id int64) (*catalog.Product, error) {
	if _, err := validation.ProductID(id); err != nil {
		return nil, err
	}
	v, err, _ := s.sfg.Do("product:"+strconv.FormatInt(id, 10), func() (interface{}, error) {
		return s.repo.FindByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	p := *v.(*catalog.Product)
	return &p, nil
}

// ListProducts returns one page of products
func (s *ProductService) ListProducts(ctx context.Context, q ProductQuery) (shared.Paginated[catalog.Product], error) {
	f := q.filter()
	v, err, _ := s.sfg.Do(q.key(), func() (interface{}, error) {
		products, total, err := s.repo.FindAll(ctx, f)
		if err != nil {
			return nil, err
		}
		return shared.NewPaginated(products, total, f.Page, f.PageSize), nil
	})
	if err != nil {
		return shared.Paginated[catalog.Product]{}, err
	}
	page := v.(shared.Paginated[catalog.Product])
	page.Items = append([]catalog.Product(nil), page.Items...)
	return page, nil
}

// Exists reports whether a product exists
func (s *ProductService) Exists(ctx context.Context, id int64) (bool, error) {
	ok, _, err := s.repo.Exists(ctx, id)
	return ok, err
}
