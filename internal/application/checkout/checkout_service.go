package checkout

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/validation"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Recorder receives the outcome of every checkout attempt
type Recorder interface {
	RecordCheckout(ctx context.Context, method, currency string, amount decimal.Decimal, d time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordCheckout(context.Context, string, string, decimal.Decimal, time.Duration, error) {}

// PlaceOrderRequest asks to turn the owner's current cart into an order
type PlaceOrderRequest struct {
	Owner          cart.Owner
	Currency       string
	PaymentMethod  string
	IdempotencyKey string
}

// CheckoutService converts carts into orders and serves order queries
type CheckoutService struct {
	orders          order.Repository
	carts           cart.Repository
	integrity       cart.IntegrityRepository
	idempotency     shared.IdempotencyStore
	idempotencyCfg  shared.IdempotencyConfig
	defaultCurrency string
	metrics         Recorder
	now             func() time.Time
}

// Option configures a CheckoutService
type Option func(*CheckoutService)

// WithIdempotency enables Idempotency-Key handling backed by store
func WithIdempotency(store shared.IdempotencyStore, cfg shared.IdempotencyConfig) Option {
	return func(s *CheckoutService) {
		s.idempotency = store
		s.idempotencyCfg = cfg
	}
}

// WithDefaultCurrency sets the currency used when a request names none
func WithDefaultCurrency(currency string) Option {
	return func(s *CheckoutService) {
		if currency != "" {
			s.defaultCurrency = currency
		}
	}
}

// WithRecorder reports checkout outcomes to r
func WithRecorder(r Recorder) Option {
	return func(s *CheckoutService) {
		if r != nil {
			s.metrics = r
		}
	}
}

// WithClock replaces the time source used for durations
func WithClock(now func() time.Time) Option {
	return func(s *CheckoutService) { s.now = now }
}

// NewCheckoutService creates a new CheckoutService
func NewCheckoutService(orders order.Repository, carts cart.Repository, integrity cart.IntegrityRepository, opts ...Option) *CheckoutService {
	s := &CheckoutService{
		orders:          orders,
		carts:           carts,
		integrity:       integrity,
		idempotencyCfg:  shared.DefaultIdempotencyConfig(),
		defaultCurrency: validation.DefaultCurrency,
		metrics:         nopRecorder{},
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Checkout persists one order from an already built snapshot. The request is
// validated and simulated payments are applied before any storage access.
func (s *CheckoutService) Checkout(ctx context.Context, req order.Request) (*order.Receipt, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "checkout", "checkout")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCustomerID, req.CustomerID,
		telemetry.SpanAttrLineCount, len(req.Snapshot.Items),
		telemetry.SpanAttrAmount, req.Total.String(),
		telemetry.SpanAttrPaymentMethod, req.PaymentMethod,
	)

	start := s.now()
	receipt, err := s.checkout(ctx, req)
	s.metrics.RecordCheckout(ctx, req.PaymentMethod, req.Currency, req.Total, s.now().Sub(start), err)
	if err != nil {
		telemetry.RecordError(span, err)
		telemetry.SetAttributes(span, telemetry.SpanAttrErrorKind, string(shared.KindOf(err)))
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrOrderID, receipt.Order.ID,
		telemetry.SpanAttrInvoiceNo, receipt.Order.InvoiceNo,
	)
	return receipt, nil
}

func (s *CheckoutService) checkout(ctx context.Context, req order.Request) (*order.Receipt, error) {
	in, err := validation.ValidateCheckout(validation.CheckoutInput{
		CustomerID:    req.CustomerID,
		Amount:        req.Total.String(),
		Currency:      req.Currency,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		return nil, err
	}
	req.Total = in.Amount
	req.Currency = in.Currency
	req.PaymentMethod = in.PaymentMethod

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := order.SimulatePayment(req.PaymentMethod); err != nil {
		return nil, err
	}
	return s.orders.Checkout(ctx, req)
}

// PlaceOrder checks out the owner's current cart: it audits the cart, prices
// it and persists the order. The ordered lines leave the cart in the order
// transaction; lines added after the snapshot are kept for a later order.
func (s *CheckoutService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (receipt *order.Receipt, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "checkout", "place_order")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrOwner, req.Owner.String())
	defer func() {
		if err != nil {
			telemetry.RecordError(span, err)
		}
	}()

	customerID, ok := req.Owner.CustomerID()
	if !ok {
		return nil, shared.NewValidationError("customer_id", "is required for checkout", nil)
	}

	currency := req.Currency
	if currency == "" {
		currency = s.defaultCurrency
	}
	currency, err = validation.Currency(currency)
	if err != nil {
		return nil, err
	}
	method, err := validation.PaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, err
	}
	if err := order.SimulatePayment(method); err != nil {
		s.metrics.RecordCheckout(ctx, method, currency, decimal.Zero, 0, err)
		return nil, err
	}

	release, err := s.claim(ctx, customerID, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			release()
		}
	}()

	if err := s.audit(ctx, req.Owner); err != nil {
		return nil, err
	}

	snapshot, err := s.carts.Snapshot(ctx, req.Owner)
	if err != nil {
		return nil, err
	}
	if snapshot.IsEmpty() {
		return nil, shared.ErrEmptyCart
	}

	receipt, err = s.Checkout(ctx, order.Request{
		CustomerID:    customerID,
		Snapshot:      snapshot,
		Total:         snapshot.Total(),
		Currency:      currency,
		PaymentMethod: method,
		ConsumeCart:   true,
	})
	if err != nil {
		logger.L(ctx).Warn("Checkout rolled back",
			zap.Int64("customer_id", customerID),
			zap.String("kind", string(shared.KindOf(err))),
			zap.Error(err),
		)
		return nil, err
	}

	logger.L(ctx).Info("Order placed",
		zap.Int64("customer_id", customerID),
		zap.Int64("order_id", receipt.Order.ID),
		zap.Int64("invoice_no", receipt.Order.InvoiceNo),
		zap.String("amount", receipt.Payment.Amount.StringFixed(2)),
		zap.Int("lines", len(receipt.Lines)),
	)
	return receipt, nil
}

// claim reserves the idempotency key and returns a func that frees it again.
// Without a key or store the claim is a no-op.
func (s *CheckoutService) claim(ctx context.Context, customerID int64, key string) (func(), error) {
	noop := func() {}
	if key == "" || s.idempotency == nil || !s.idempotencyCfg.Enabled {
		return noop, nil
	}

	fullKey := "checkout:" + strconv.FormatInt(customerID, 10) + ":" + key
	claimed, err := s.idempotency.MarkProcessed(ctx, fullKey, s.idempotencyCfg.TTL)
	if err != nil {
		return noop, err
	}
	if !claimed {
		return noop, shared.ErrCheckoutDuplicate
	}
	return func() {
		// the request context may already be cancelled
		if err := s.idempotency.Release(context.WithoutCancel(ctx), fullKey); err != nil {
			logger.L(ctx).Warn("Failed to release idempotency key", zap.String("key", fullKey), zap.Error(err))
		}
	}, nil
}

// audit rejects carts that would produce a broken order
func (s *CheckoutService) audit(ctx context.Context, owner cart.Owner) error {
	orphans, err := s.integrity.FindOrphans(ctx, owner)
	if err != nil {
		return err
	}
	if len(orphans) > 0 {
		return shared.NewDomainError(shared.KindOrphanedProduct,
			fmt.Sprintf("cart contains %d product(s) that no longer exist", len(orphans)))
	}

	invalid, err := s.integrity.FindInvalidQuantities(ctx, owner)
	if err != nil {
		return err
	}
	if len(invalid) > 0 {
		fields := make([]shared.FieldError, 0, len(invalid))
		for _, l := range invalid {
			fields = append(fields, shared.FieldError{
				Field:  "quantity",
				Reason: fmt.Sprintf("product %d has a quantity outside 1..%d", l.ProductID, cart.MaxQuantity),
				Value:  l.Quantity,
			})
		}
		return shared.NewValidationErrors(fields)
	}
	return nil
}

// UpdateOrderStatus moves an order to any known status
func (s *CheckoutService) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	if orderID <= 0 {
		return shared.NewValidationError("order_id", "must be a positive integer", orderID)
	}
	st, err := order.ParseStatus(status)
	if err != nil {
		return err
	}
	if err := s.orders.UpdateStatus(ctx, orderID, st); err != nil {
		return err
	}
	logger.L(ctx).Info("Order status updated", zap.Int64("order_id", orderID), zap.String("status", st.String()))
	return nil
}

// GetOrder returns one order of the customer
func (s *CheckoutService) GetOrder(ctx context.Context, customerID, orderID int64) (*order.Receipt, error) {
	if customerID <= 0 {
		return nil, shared.NewValidationError("customer_id", "is required", customerID)
	}
	return s.orders.FindByID(ctx, customerID, orderID)
}

// ListOrders returns a page of the customer's orders, newest first
func (s *CheckoutService) ListOrders(ctx context.Context, customerID int64, filter shared.Filter) (shared.Paginated[order.Receipt], error) {
	if customerID <= 0 {
		return shared.Paginated[order.Receipt]{}, shared.NewValidationError("customer_id", "is required", customerID)
	}
	filter = filter.Normalize()
	receipts, total, err := s.orders.FindByCustomer(ctx, customerID, filter)
	if err != nil {
		return shared.Paginated[order.Receipt]{}, err
	}
	return shared.NewPaginated(receipts, total, filter.Page, filter.PageSize), nil
}
