package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/shared"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Outcome label values
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeFailure = "failure"
)

// Trigger label values for maintenance work
const (
	TriggerAPI       = "api"
	TriggerCLI       = "cli"
	TriggerScheduled = "scheduled"
)

// CartHealth is a store-wide count of integrity problems
type CartHealth struct {
	OrphanedLines   int64
	InvalidLines    int64
	DuplicateGroups int64
	GuestLines      int64
}

// CartHealthProvider supplies CartHealth for periodic collection
type CartHealthProvider interface {
	CartHealth(ctx context.Context) (CartHealth, error)
}

// StorefrontMetrics records checkout, cart transfer and cart maintenance metrics.
type StorefrontMetrics struct {
	logger *zap.Logger

	checkoutTotal    *Counter
	checkoutDuration *Histogram
	orderAmountTotal *Counter
	transferTotal    *Counter
	transferFailures *Counter
	repairedLines    *Counter
	staleGuestLines  *Counter

	integrityIssues *Gauge
	guestLines      *Gauge

	healthProvider CartHealthProvider
	stopChan       chan struct{}
	stopOnce       sync.Once
	collectOnce    sync.Once
}

// StorefrontMetricsConfig holds configuration for StorefrontMetrics.
type StorefrontMetricsConfig struct {
	Meter          metric.Meter
	Logger         *zap.Logger
	HealthProvider CartHealthProvider
}

// NewStorefrontMetrics creates the storefront instruments on cfg.Meter.
func NewStorefrontMetrics(cfg StorefrontMetricsConfig) (*StorefrontMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &StorefrontMetrics{
		logger:         logger,
		healthProvider: cfg.HealthProvider,
		stopChan:       make(chan struct{}),
	}

	var err error
	if m.checkoutTotal, err = NewCounter(cfg.Meter, "storefront_checkout_total", "Checkout attempts by outcome", "{checkouts}"); err != nil {
		return nil, err
	}
	if m.checkoutDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "storefront_checkout_duration_seconds",
		Description: "Checkout latency including invoice retries",
		Unit:        "s",
		Boundaries:  CheckoutDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.orderAmountTotal, err = NewCounter(cfg.Meter, "storefront_order_amount_total", "Total amount of placed orders in cents", "{cents}"); err != nil {
		return nil, err
	}
	if m.transferTotal, err = NewCounter(cfg.Meter, "storefront_cart_transfer_total", "Guest to customer cart transfers by outcome", "{transfers}"); err != nil {
		return nil, err
	}
	if m.transferFailures, err = NewCounter(cfg.Meter, "storefront_cart_transfer_failed_lines_total", "Guest lines that could not be transferred", "{lines}"); err != nil {
		return nil, err
	}
	if m.repairedLines, err = NewCounter(cfg.Meter, "storefront_cart_repaired_lines_total", "Cart lines changed by integrity repairs", "{lines}"); err != nil {
		return nil, err
	}
	if m.staleGuestLines, err = NewCounter(cfg.Meter, "storefront_cart_stale_guest_lines_removed_total", "Stale guest cart lines removed", "{lines}"); err != nil {
		return nil, err
	}
	if m.integrityIssues, err = NewGauge(cfg.Meter, "storefront_cart_integrity_issues", "Cart lines or groups currently failing integrity checks", "{lines}"); err != nil {
		return nil, err
	}
	if m.guestLines, err = NewGauge(cfg.Meter, "storefront_cart_guest_lines", "Cart lines owned by guests", "{lines}"); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordCheckout records one checkout attempt. amount is only counted on success.
func (m *StorefrontMetrics) RecordCheckout(ctx context.Context, method, currency string, amount decimal.Decimal, d time.Duration, err error) {
	if err != nil {
		m.checkoutTotal.Inc(ctx,
			AttrOutcome.String(OutcomeFailure),
			AttrErrorKind.String(string(shared.KindOf(err))),
			AttrPaymentMethod.String(method),
		)
		m.checkoutDuration.RecordDuration(ctx, d, AttrOutcome.String(OutcomeFailure))
		return
	}

	m.checkoutTotal.Inc(ctx,
		AttrOutcome.String(OutcomeSuccess),
		AttrPaymentMethod.String(method),
	)
	m.checkoutDuration.RecordDuration(ctx, d, AttrOutcome.String(OutcomeSuccess))
	m.orderAmountTotal.Add(ctx, amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart(),
		AttrCurrency.String(currency),
	)
}

// RecordCartTransfer records a guest to customer transfer.
func (m *StorefrontMetrics) RecordCartTransfer(ctx context.Context, succeeded, failed int, err error) {
	outcome := OutcomeSuccess
	switch {
	case err != nil:
		outcome = OutcomeFailure
	case failed > 0 && succeeded > 0:
		outcome = OutcomePartial
	}
	m.transferTotal.Inc(ctx, AttrOutcome.String(outcome))
	if failed > 0 {
		m.transferFailures.Add(ctx, int64(failed))
	}
}

// RecordRepair records the lines changed by one repair type.
func (m *StorefrontMetrics) RecordRepair(ctx context.Context, trigger, issueType string, affected int64) {
	if affected <= 0 {
		return
	}
	m.repairedLines.Add(ctx, affected,
		AttrTrigger.String(trigger),
		AttrIssueType.String(issueType),
	)
}

// RecordStaleGuestCleanup records removed stale guest lines.
func (m *StorefrontMetrics) RecordStaleGuestCleanup(ctx context.Context, trigger string, removed int64) {
	m.staleGuestLines.Add(ctx, removed, AttrTrigger.String(trigger))
}

// RecordCartHealth records the integrity gauges.
func (m *StorefrontMetrics) RecordCartHealth(ctx context.Context, h CartHealth) {
	m.integrityIssues.Record(ctx, h.OrphanedLines, AttrIssueType.String(string(cart.IssueOrphanedProducts)))
	m.integrityIssues.Record(ctx, h.InvalidLines, AttrIssueType.String(string(cart.IssueInvalidQuantities)))
	m.integrityIssues.Record(ctx, h.DuplicateGroups, AttrIssueType.String(string(cart.IssueDuplicateEntries)))
	m.guestLines.Record(ctx, h.GuestLines)
}

// StartPeriodicCollection refreshes the cart health gauges every interval
// (5 minutes when zero) until Stop is called or ctx is done.
func (m *StorefrontMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	m.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		go m.runPeriodicCollection(ctx, interval)
	})
}

func (m *StorefrontMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.collectCartHealth(ctx)

	for {
		select {
		case <-m.stopChan:
			m.logger.Info("Stopping periodic cart health collection")
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.collectCartHealth(ctx)
		}
	}
}

func (m *StorefrontMetrics) collectCartHealth(ctx context.Context) {
	if m.healthProvider == nil {
		m.logger.Debug("No cart health provider configured, skipping collection")
		return
	}
	h, err := m.healthProvider.CartHealth(ctx)
	if err != nil {
		m.logger.Warn("Failed to collect cart health", zap.Error(err))
		return
	}
	m.RecordCartHealth(ctx, h)
}

// Stop stops the periodic collection. Safe to call multiple times.
func (m *StorefrontMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewStorefrontMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
