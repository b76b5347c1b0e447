package validation

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/shared"
)

// AddToCartInput is the raw add-to-cart request
type AddToCartInput struct {
	ProductID  any
	Quantity   any
	CustomerID any
	IPAddress  any
}

// AddToCart is a validated add-to-cart request
type AddToCart struct {
	ProductID int64
	Quantity  int
	Owner     cart.Owner
}

// CheckoutInput is the raw checkout request
type CheckoutInput struct {
	CustomerID    any
	Amount        any
	Currency      any
	PaymentMethod any
}

// Checkout is a validated checkout request
type Checkout struct {
	CustomerID    int64
	Amount        decimal.Decimal
	Currency      string
	PaymentMethod string
}

// collector gathers field errors so every bad field is reported at once
type collector struct {
	fields []shared.FieldError
}

func (c *collector) add(err error) {
	if err == nil {
		return
	}
	var de *shared.DomainError
	if errors.As(err, &de) && len(de.Errors) > 0 {
		c.fields = append(c.fields, de.Errors...)
		return
	}
	c.fields = append(c.fields, shared.FieldError{Field: "input", Reason: err.Error()})
}

func (c *collector) err() error {
	if len(c.fields) == 0 {
		return nil
	}
	return shared.NewValidationErrors(c.fields)
}

// ValidateAddToCart validates every field and reports all failures together.
// A missing quantity defaults to 1.
func ValidateAddToCart(in AddToCartInput) (AddToCart, error) {
	var c collector
	var out AddToCart
	var err error

	out.ProductID, err = ProductID(in.ProductID)
	c.add(err)

	qty := in.Quantity
	if isBlank(qty) {
		qty = 1
	}
	out.Quantity, err = Quantity(qty, QuantityOptions{})
	c.add(err)

	out.Owner, err = UserIdentification(in.CustomerID, in.IPAddress)
	c.add(err)

	if err := c.err(); err != nil {
		return AddToCart{}, err
	}
	return out, nil
}

// ValidateCheckout validates a checkout request. A customer id is required.
func ValidateCheckout(in CheckoutInput) (Checkout, error) {
	var c collector
	var out Checkout

	cid, err := CustomerID(in.CustomerID)
	c.add(err)
	if err == nil && cid == nil {
		c.add(shared.NewValidationError("customer_id", "is required for checkout", in.CustomerID))
	}
	if cid != nil {
		out.CustomerID = *cid
	}

	out.Amount, err = OrderAmount(in.Amount)
	c.add(err)

	out.Currency, err = Currency(in.Currency)
	c.add(err)

	out.PaymentMethod, err = PaymentMethod(in.PaymentMethod)
	c.add(err)

	if err := c.err(); err != nil {
		return Checkout{}, err
	}
	return out, nil
}
