package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxQuantity is the largest quantity a single cart line may hold
const MaxQuantity = 999

// Line is one stored cart row: a product in some owner's cart
type Line struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"product_id"`
	Owner     Owner     `json:"owner"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Item is a cart line joined with the current catalog data of its product
type Item struct {
	ProductID int64           `json:"product_id"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image"`
	Category  string          `json:"category"`
	Brand     string          `json:"brand"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Snapshot is the priced view of a cart at read time. It is never persisted.
type Snapshot struct {
	Owner       Owner           `json:"owner"`
	Items       []Item          `json:"items"`
	TotalItems  int             `json:"total_items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// NewSnapshot computes subtotals and totals for the given items.
// Items keep the order they were passed in.
func NewSnapshot(owner Owner, items []Item) Snapshot {
	s := Snapshot{
		Owner:       owner,
		Items:       make([]Item, 0, len(items)),
		TotalAmount: decimal.Zero,
	}
	for _, it := range items {
		it.Subtotal = it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		s.TotalItems += it.Quantity
		s.TotalAmount = s.TotalAmount.Add(it.Subtotal)
		s.Items = append(s.Items, it)
	}
	return s
}

// IsEmpty reports whether the snapshot has no items
func (s Snapshot) IsEmpty() bool {
	return len(s.Items) == 0
}

// Total returns the total amount rounded to cents
func (s Snapshot) Total() decimal.Decimal {
	return s.TotalAmount.Round(2)
}

// ProductIDs returns the product ids in snapshot order
func (s Snapshot) ProductIDs() []int64 {
	ids := make([]int64, 0, len(s.Items))
	for _, it := range s.Items {
		ids = append(ids, it.ProductID)
	}
	return ids
}

// TransferFailure records a guest line that could not be moved
type TransferFailure struct {
	ProductID int64  `json:"product_id"`
	Kind      string `json:"kind"`
	Reason    string `json:"reason"`
}

// TransferReport summarises a guest to customer cart transfer
type TransferReport struct {
	FromIP          string            `json:"from_ip"`
	ToCustomerID    int64             `json:"to_customer_id"`
	Moved           int               `json:"moved"`
	Merged          int               `json:"merged"`
	Failures        []TransferFailure `json:"failures,omitempty"`
	LeftoverRemoved int64             `json:"leftover_removed"`
}

// Succeeded returns how many guest lines ended up in the customer cart
func (r *TransferReport) Succeeded() int {
	return r.Moved + r.Merged
}

// Partial reports whether some lines moved and others failed
func (r *TransferReport) Partial() bool {
	return r.Succeeded() > 0 && len(r.Failures) > 0
}
