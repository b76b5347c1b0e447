package catalog

import (
	"context"

	"github.com/storefront/backend/internal/domain/shared"
)

// Lookup answers whether products exist. Reads are never cached.
type Lookup interface {
	// Exists reports whether the product exists and returns it when it does
	Exists(ctx context.Context, productID int64) (bool, *Product, error)

	// ExistingIDs returns the subset of ids that exist
	ExistingIDs(ctx context.Context, ids []int64) (map[int64]bool, error)
}

// ProductRepository is the read side of the catalog
type ProductRepository interface {
	Lookup

	// FindByID finds a product or returns shared.ErrProductNotFound
	FindByID(ctx context.Context, id int64) (*Product, error)

	// FindAll lists products matching the filter and returns the total count
	FindAll(ctx context.Context, filter shared.Filter) ([]Product, int64, error)
}
