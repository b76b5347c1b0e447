package dto

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/cart"
)

// AddToCartRequest is the body of POST /cart/items.
// Fields stay untyped so the validation layer sees exactly what the client
// sent ("3", 3 and 3.0 are accepted, 3.5 is not).
type AddToCartRequest struct {
	ProductID any `json:"product_id"`
	Quantity  any `json:"quantity"`
}

// UpdateQuantityRequest is the body of PUT /cart/items/:product_id
type UpdateQuantityRequest struct {
	Quantity any `json:"quantity"`
}

// CheckoutRequest is the body of POST /checkout.
// The amount is computed from the cart and cannot be supplied.
type CheckoutRequest struct {
	Currency      string `json:"currency" binding:"omitempty,len=3"`
	PaymentMethod string `json:"payment_method" binding:"required"`
}

// UpdateOrderStatusRequest is the body of PUT /admin/orders/:id/status
type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// RepairRequest selects integrity repairs. Omitted fields default to true.
type RepairRequest struct {
	CustomerID      any   `json:"customer_id"`
	IPAddress       any   `json:"ip_address"`
	RemoveOrphaned  *bool `json:"remove_orphaned"`
	FixQuantities   *bool `json:"fix_quantities"`
	MergeDuplicates *bool `json:"merge_duplicates"`
}

// Options returns the selected repairs
func (r RepairRequest) Options() cart.RepairOptions {
	opts := cart.DefaultRepairOptions()
	if r.RemoveOrphaned != nil {
		opts.RemoveOrphaned = *r.RemoveOrphaned
	}
	if r.FixQuantities != nil {
		opts.FixQuantities = *r.FixQuantities
	}
	if r.MergeDuplicates != nil {
		opts.MergeDuplicates = *r.MergeDuplicates
	}
	return opts
}

// CartResponse is the cart view returned to clients
type CartResponse struct {
	Owner     cart.Owner      `json:"owner"`
	Items     []cart.Item     `json:"items"`
	ItemCount int             `json:"item_count"`
	Total     decimal.Decimal `json:"total"`
}

// NewCartResponse builds the view from a snapshot
func NewCartResponse(s cart.Snapshot) CartResponse {
	items := s.Items
	if items == nil {
		items = []cart.Item{}
	}
	count := 0
	for _, it := range items {
		count += it.Quantity
	}
	return CartResponse{
		Owner:     s.Owner,
		Items:     items,
		ItemCount: count,
		Total:     s.Total(),
	}
}

// RemovedResponse reports how many rows a delete touched
type RemovedResponse struct {
	Removed int64 `json:"removed"`
}

// TransferResponse is the outcome of a guest cart transfer
type TransferResponse struct {
	Report  *cart.TransferReport `json:"report"`
	Partial bool                 `json:"partial"`
	Cart    CartResponse         `json:"cart"`
}

// LogoutResponse confirms a revoked token
type LogoutResponse struct {
	RevokedUntil time.Time `json:"revoked_until"`
}

// CleanupResponse reports stale guest lines removed
type CleanupResponse struct {
	Removed int64     `json:"removed"`
	RanAt   time.Time `json:"ran_at"`
}
