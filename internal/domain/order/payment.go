package order

import (
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/validation"
)

// SimulatePayment applies the outcome of a simulated payment method.
// Real methods and simulated_success pass; payment is recorded, not processed.
func SimulatePayment(method string) error {
	switch method {
	case validation.PaymentSimulatedFailure:
		return shared.NewValidationError("payment_method", "payment declined", method)
	case validation.PaymentSimulatedTimeout:
		return shared.NewValidationError("payment_method", "payment timed out", method)
	}
	return nil
}
