package order

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/shared"
)

// Status represents the lifecycle state of an order
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// IsValid checks if the status is a known Status
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// ParseStatus converts raw input to a Status
func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.IsValid() {
		return "", shared.NewValidationError("status", "unknown order status", v)
	}
	return s, nil
}

// Order is the order header. Only Status changes after creation.
type Order struct {
	ID         int64     `json:"order_id"`
	CustomerID int64     `json:"customer_id"`
	InvoiceNo  int64     `json:"invoice_no"`
	OrderDate  time.Time `json:"order_date"`
	Status     Status    `json:"order_status"`
}

// Line is one product of an order. Title and price are read from the
// catalog when the order is loaded; they are not frozen at checkout.
type Line struct {
	OrderID   int64           `json:"order_id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Title     string          `json:"title,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Payment records what was charged for an order
type Payment struct {
	ID          int64           `json:"payment_id"`
	OrderID     int64           `json:"order_id"`
	CustomerID  int64           `json:"customer_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Method      string          `json:"payment_method"`
	PaymentDate time.Time       `json:"payment_date"`
}

// Receipt is a persisted order with its lines and payment
type Receipt struct {
	Order   Order   `json:"order"`
	Lines   []Line  `json:"lines"`
	Payment Payment `json:"payment"`
}

// Request is everything the checkout engine needs to persist one order
type Request struct {
	CustomerID    int64
	Snapshot      cart.Snapshot
	Total         decimal.Decimal
	Currency      string
	PaymentMethod string

	// ConsumeCart removes the ordered quantities from Snapshot.Owner's cart
	// in the order transaction. Lines added after the snapshot stay.
	ConsumeCart bool
}

// Validate checks the request before any storage access
func (r Request) Validate() error {
	var fields []shared.FieldError
	if r.CustomerID <= 0 {
		fields = append(fields, shared.FieldError{Field: "customer_id", Reason: "is required for checkout", Value: r.CustomerID})
	}
	if r.Snapshot.IsEmpty() {
		fields = append(fields, shared.FieldError{Field: "cart", Reason: "cart is empty"})
	}
	if !r.Total.IsPositive() {
		fields = append(fields, shared.FieldError{Field: "amount", Reason: "must be greater than zero", Value: r.Total.String()})
	}
	if r.Currency == "" {
		fields = append(fields, shared.FieldError{Field: "currency", Reason: "is required"})
	}
	if r.PaymentMethod == "" {
		fields = append(fields, shared.FieldError{Field: "payment_method", Reason: "is required"})
	}
	if r.ConsumeCart && r.Snapshot.Owner.Validate() != nil {
		fields = append(fields, shared.FieldError{Field: "owner", Reason: "snapshot owner is required to consume the cart"})
	}
	if len(fields) == 0 {
		return nil
	}
	return shared.NewValidationErrors(fields)
}

// Lines returns one order line per snapshot item
func (r Request) Lines() []Line {
	lines := make([]Line, 0, len(r.Snapshot.Items))
	for _, it := range r.Snapshot.Items {
		lines = append(lines, Line{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Title:     it.Title,
			Price:     it.Price,
			Subtotal:  it.Subtotal,
		})
	}
	return lines
}
