package cart

import (
	"context"
	"strings"

	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/validation"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// TransferRecorder receives the outcome of guest cart transfers
type TransferRecorder interface {
	RecordCartTransfer(ctx context.Context, succeeded, failed int, err error)
}

type nopTransferRecorder struct{}

func (nopTransferRecorder) RecordCartTransfer(context.Context, int, int, error) {}

// CartService implements the cart operations exposed to HTTP and the CLI.
// Callers pass an already resolved owner; this layer validates the
// remaining input and checks the catalog before writing.
type CartService struct {
	repo    cart.Repository
	catalog catalog.Lookup
	metrics TransferRecorder
}

// CartServiceOption configures a CartService
type CartServiceOption func(*CartService)

// WithTransferRecorder reports transfer outcomes to r
func WithTransferRecorder(r TransferRecorder) CartServiceOption {
	return func(s *CartService) {
		if r != nil {
			s.metrics = r
		}
	}
}

// NewCartService creates a new CartService
func NewCartService(repo cart.Repository, lookup catalog.Lookup, opts ...CartServiceOption) *CartService {
	s := &CartService{
		repo:    repo,
		catalog: lookup,
		metrics: nopTransferRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func requireOwner(owner cart.Owner) error {
	return owner.Validate()
}

// AddToCart adds quantity of a product to the owner's cart.
// The product must exist; an existing line is incremented.
func (s *CartService) AddToCart(ctx context.Context, productID int64, quantity int, owner cart.Owner) (*cart.Line, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "cart", "add")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrOwner, owner.String(),
		"product_id", productID,
	)

	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	if _, err := validation.ProductID(productID); err != nil {
		return nil, err
	}
	if _, err := validation.Quantity(quantity, validation.QuantityOptions{}); err != nil {
		return nil, err
	}

	exists, _, err := s.catalog.Exists(ctx, productID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !exists {
		return nil, shared.ErrProductNotFound
	}

	line, err := s.repo.Add(ctx, productID, quantity, owner)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return line, nil
}

// GetCart returns the priced snapshot of the owner's cart
func (s *CartService) GetCart(ctx context.Context, owner cart.Owner) (cart.Snapshot, error) {
	if err := requireOwner(owner); err != nil {
		return cart.Snapshot{}, err
	}
	return s.repo.Snapshot(ctx, owner)
}

// GetLine returns one line of the owner's cart
func (s *CartService) GetLine(ctx context.Context, productID int64, owner cart.Owner) (*cart.Line, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	return s.repo.GetLine(ctx, productID, owner)
}

// UpdateQuantity sets the quantity of an existing line.
// A zero quantity removes the line and returns nil.
func (s *CartService) UpdateQuantity(ctx context.Context, productID int64, quantity int, owner cart.Owner) (*cart.Line, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	if _, err := validation.ProductID(productID); err != nil {
		return nil, err
	}
	if _, err := validation.Quantity(quantity, validation.QuantityOptions{AllowZero: true}); err != nil {
		return nil, err
	}
	return s.repo.SetQuantity(ctx, productID, quantity, owner)
}

// RemoveFromCart deletes the line for product. Removing an absent line returns 0.
func (s *CartService) RemoveFromCart(ctx context.Context, productID int64, owner cart.Owner) (int64, error) {
	if err := requireOwner(owner); err != nil {
		return 0, err
	}
	return s.repo.Remove(ctx, productID, owner)
}

// EmptyCart deletes every line of owner
func (s *CartService) EmptyCart(ctx context.Context, owner cart.Owner) (int64, error) {
	if err := requireOwner(owner); err != nil {
		return 0, err
	}
	return s.repo.Empty(ctx, owner)
}

// TransferGuestCart moves the guest cart of fromIP into the customer's cart.
// It is called right after login. Partial failures are committed and
// reported; only a transfer where nothing could move returns an error.
func (s *CartService) TransferGuestCart(ctx context.Context, fromIP string, toCustomerID int64) (*cart.TransferReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "cart", "transfer")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrCustomerID, toCustomerID)

	if strings.TrimSpace(fromIP) == "" {
		return nil, shared.NewValidationError("ip_address", "is required", fromIP)
	}
	ip, err := validation.IPAddress(fromIP)
	if err != nil {
		return nil, err
	}
	if toCustomerID <= 0 {
		return nil, shared.NewValidationError("customer_id", "must be a positive integer", toCustomerID)
	}

	log := logger.L(ctx).With(zap.String("from_ip", ip), zap.Int64("customer_id", toCustomerID))

	report, err := s.repo.Transfer(ctx, ip, toCustomerID)
	if err != nil {
		telemetry.RecordError(span, err)
		failed := 0
		if report != nil {
			failed = len(report.Failures)
		}
		s.metrics.RecordCartTransfer(ctx, 0, failed, err)
		log.Warn("Guest cart transfer failed", zap.Error(err), zap.Int("failed_lines", failed))
		return report, err
	}

	s.metrics.RecordCartTransfer(ctx, report.Succeeded(), len(report.Failures), nil)
	telemetry.SetAttributes(span, telemetry.SpanAttrLineCount, report.Succeeded())

	if report.Partial() {
		for _, f := range report.Failures {
			log.Warn("Guest cart line not transferred",
				zap.Int64("product_id", f.ProductID),
				zap.String("kind", f.Kind),
				zap.String("reason", f.Reason),
			)
		}
	}
	if report.Succeeded() > 0 {
		log.Info("Guest cart transferred",
			zap.Int("moved", report.Moved),
			zap.Int("merged", report.Merged),
			zap.Int("failed", len(report.Failures)),
		)
	}
	return report, nil
}
