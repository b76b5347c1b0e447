package cart

import (
	"context"
	"time"
)

// Repository is the cart store. Every method is scoped to one owner
// except Transfer, which moves lines between a guest and a customer.
type Repository interface {
	// Add increments the line for product if present, otherwise creates it.
	// Product existence is not checked here.
	Add(ctx context.Context, productID int64, quantity int, owner Owner) (*Line, error)

	// GetLine returns the line for product or shared.ErrCartLineNotFound
	GetLine(ctx context.Context, productID int64, owner Owner) (*Line, error)

	// SetQuantity overwrites the quantity of an existing line.
	// A zero quantity removes the line and returns a nil line.
	SetQuantity(ctx context.Context, productID int64, quantity int, owner Owner) (*Line, error)

	// Remove deletes the line for product and returns the affected row count
	Remove(ctx context.Context, productID int64, owner Owner) (int64, error)

	// Snapshot returns the priced cart ordered by product title.
	// Lines whose product is gone are left out.
	Snapshot(ctx context.Context, owner Owner) (Snapshot, error)

	// Empty deletes every line of owner
	Empty(ctx context.Context, owner Owner) (int64, error)

	// Transfer moves a guest cart into a customer cart in one transaction
	Transfer(ctx context.Context, fromIP string, toCustomerID int64) (*TransferReport, error)
}

// IntegrityRepository detects and repairs inconsistent cart rows
type IntegrityRepository interface {
	FindOrphans(ctx context.Context, owner Owner) ([]OrphanedLine, error)
	FindInvalidQuantities(ctx context.Context, owner Owner) ([]InvalidQuantityLine, error)
	FindDuplicates(ctx context.Context, owner Owner) ([]DuplicateGroup, error)

	// RemoveOrphans deletes lines whose product no longer exists
	RemoveOrphans(ctx context.Context, owner Owner) (int64, error)

	// FixQuantities deletes lines with quantity <= 0 and clamps the rest to MaxQuantity
	FixQuantities(ctx context.Context, owner Owner) (int64, error)

	// MergeDuplicates keeps the oldest line of each group with the summed quantity
	MergeDuplicates(ctx context.Context, owner Owner) (int64, error)

	// DeleteStaleGuestLines removes guest lines not touched since cutoff
	DeleteStaleGuestLines(ctx context.Context, cutoff time.Time) (int64, error)
}
