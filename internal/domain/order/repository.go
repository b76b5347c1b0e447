package order

import (
	"context"

	"github.com/storefront/backend/internal/domain/shared"
)

// Repository persists orders
type Repository interface {
	InvoiceChecker

	// Checkout writes the order header, its lines and the payment in one
	// transaction and returns the receipt. Any failure leaves nothing behind.
	Checkout(ctx context.Context, req Request) (*Receipt, error)

	// UpdateStatus changes the status of an order. Unknown orders yield not_found.
	UpdateStatus(ctx context.Context, orderID int64, status Status) error

	// FindByID loads one order of a customer with lines priced at current catalog prices
	FindByID(ctx context.Context, customerID, orderID int64) (*Receipt, error)

	// FindByCustomer lists a customer's orders, newest first
	FindByCustomer(ctx context.Context, customerID int64, filter shared.Filter) ([]Receipt, int64, error)
}
