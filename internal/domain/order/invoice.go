package order

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/storefront/backend/internal/domain/shared"
)

// Invoice number layout: minutes since epoch modulo 10^5, shifted left by
// four decimal digits, plus a random suffix. The largest value is
// 999,999,999, well inside a signed 32-bit column.
const (
	invoiceMinuteModulo = 100000
	invoiceSuffixRange  = 10000

	DefaultInvoiceAttempts = 10
	DefaultInvoiceBackoff  = 10 * time.Millisecond
)

// InvoiceChecker reports whether an invoice number is already taken
type InvoiceChecker interface {
	InvoiceExists(ctx context.Context, invoiceNo int64) (bool, error)
}

// InvoiceGenerator produces probably-unique invoice numbers.
// Uniqueness is enforced by the store; the generator only retries.
type InvoiceGenerator struct {
	attempts int
	backoff  time.Duration
	now      func() time.Time
	suffix   func() int64
}

// InvoiceOption configures an InvoiceGenerator
type InvoiceOption func(*InvoiceGenerator)

// WithAttempts sets the maximum number of candidates tried
func WithAttempts(n int) InvoiceOption {
	return func(g *InvoiceGenerator) {
		if n > 0 {
			g.attempts = n
		}
	}
}

// WithBackoff sets the base delay; attempt n waits n times this value
func WithBackoff(d time.Duration) InvoiceOption {
	return func(g *InvoiceGenerator) {
		if d >= 0 {
			g.backoff = d
		}
	}
}

// WithClock replaces the time source
func WithClock(now func() time.Time) InvoiceOption {
	return func(g *InvoiceGenerator) { g.now = now }
}

// WithSuffixSource replaces the random suffix source
func WithSuffixSource(f func() int64) InvoiceOption {
	return func(g *InvoiceGenerator) { g.suffix = f }
}

// NewInvoiceGenerator creates a generator with 10 attempts and 10ms linear backoff
func NewInvoiceGenerator(opts ...InvoiceOption) *InvoiceGenerator {
	g := &InvoiceGenerator{
		attempts: DefaultInvoiceAttempts,
		backoff:  DefaultInvoiceBackoff,
		now:      time.Now,
		suffix:   func() int64 { return rand.Int64N(invoiceSuffixRange) },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Attempts returns the maximum number of candidates tried
func (g *InvoiceGenerator) Attempts() int {
	return g.attempts
}

// Candidate returns the next invoice number to try
func (g *InvoiceGenerator) Candidate() int64 {
	minutes := (g.now().Unix() / 60) % invoiceMinuteModulo
	return minutes*invoiceSuffixRange + g.suffix()%invoiceSuffixRange
}

// Generate returns a candidate the checker reports as free
func (g *InvoiceGenerator) Generate(ctx context.Context, checker InvoiceChecker) (int64, error) {
	return g.Reserve(ctx, checker, nil)
}

// Reserve finds a free invoice number and hands it to claim.
// A duplicate_entry from claim means another writer took the number first;
// it consumes an attempt like a taken candidate. Any other error is returned as is.
func (g *InvoiceGenerator) Reserve(ctx context.Context, checker InvoiceChecker, claim func(invoiceNo int64) error) (int64, error) {
	for attempt := 1; attempt <= g.attempts; attempt++ {
		candidate := g.Candidate()

		taken, err := checker.InvoiceExists(ctx, candidate)
		if err != nil {
			return 0, err
		}
		if !taken {
			if claim == nil {
				return candidate, nil
			}
			err = claim(candidate)
			if err == nil {
				return candidate, nil
			}
			if !shared.IsKind(err, shared.KindDuplicateEntry) {
				return 0, err
			}
		}

		if attempt < g.attempts {
			if err := g.wait(ctx, attempt); err != nil {
				return 0, err
			}
		}
	}
	return 0, shared.ErrInvoiceExhausted
}

func (g *InvoiceGenerator) wait(ctx context.Context, attempt int) error {
	if g.backoff == 0 {
		return nil
	}
	t := time.NewTimer(time.Duration(attempt) * g.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return shared.WrapError(shared.KindDatabaseException, "invoice generation cancelled", ctx.Err())
	case <-t.C:
		return nil
	}
}
