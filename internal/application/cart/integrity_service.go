package cart

import (
	"context"
	"time"

	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DefaultStaleGuestTTL is how long an untouched guest line is kept
const DefaultStaleGuestTTL = 30 * 24 * time.Hour

// RepairRecorder receives the outcome of integrity repairs and cleanups
type RepairRecorder interface {
	RecordRepair(ctx context.Context, trigger, issueType string, affected int64)
	RecordStaleGuestCleanup(ctx context.Context, trigger string, removed int64)
}

type nopRepairRecorder struct{}

func (nopRepairRecorder) RecordRepair(context.Context, string, string, int64)     {}
func (nopRepairRecorder) RecordStaleGuestCleanup(context.Context, string, int64) {}

// IntegrityService audits and repairs carts
type IntegrityService struct {
	repo     cart.IntegrityRepository
	metrics  RepairRecorder
	trigger  string
	staleTTL time.Duration
	now      func() time.Time
}

// IntegrityServiceOption configures an IntegrityService
type IntegrityServiceOption func(*IntegrityService)

// WithRepairRecorder reports repair outcomes to r
func WithRepairRecorder(r RepairRecorder) IntegrityServiceOption {
	return func(s *IntegrityService) {
		if r != nil {
			s.metrics = r
		}
	}
}

// WithTrigger labels recorded repairs with what started them (api, cli, scheduled)
func WithTrigger(trigger string) IntegrityServiceOption {
	return func(s *IntegrityService) { s.trigger = trigger }
}

// WithStaleGuestTTL sets the age after which guest lines are cleaned up
func WithStaleGuestTTL(ttl time.Duration) IntegrityServiceOption {
	return func(s *IntegrityService) {
		if ttl > 0 {
			s.staleTTL = ttl
		}
	}
}

// WithClock replaces the time source
func WithClock(now func() time.Time) IntegrityServiceOption {
	return func(s *IntegrityService) { s.now = now }
}

// NewIntegrityService creates a new IntegrityService
func NewIntegrityService(repo cart.IntegrityRepository, opts ...IntegrityServiceOption) *IntegrityService {
	s := &IntegrityService{
		repo:     repo,
		metrics:  nopRepairRecorder{},
		trigger:  telemetry.TriggerAPI,
		staleTTL: DefaultStaleGuestTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Verify runs the three detectors against owner's cart.
// The first detector error aborts the audit.
func (s *IntegrityService) Verify(ctx context.Context, owner cart.Owner) (*cart.IntegrityReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "cart_integrity", "verify")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrOwner, owner.String())

	if err := requireOwner(owner); err != nil {
		return nil, err
	}

	orphans, err := s.repo.FindOrphans(ctx, owner)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	invalid, err := s.repo.FindInvalidQuantities(ctx, owner)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	dups, err := s.repo.FindDuplicates(ctx, owner)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	report := cart.BuildIntegrityReport(owner, orphans, invalid, dups, s.now().UTC())
	if !report.Healthy() {
		logger.L(ctx).Info("Cart integrity issues found",
			zap.String("cart_owner", owner.String()),
			zap.Int("total_issues", report.TotalIssues),
			zap.Bool("critical", report.HasCriticalIssues),
		)
	}
	return report, nil
}

// Fix runs the selected repairs. Each repair runs in its own transaction and
// a failing one does not stop the others; failures are reported per type.
func (s *IntegrityService) Fix(ctx context.Context, owner cart.Owner, opts cart.RepairOptions) (*cart.RepairReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "cart_integrity", "fix")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrOwner, owner.String())

	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	if !opts.Any() {
		return nil, shared.NewValidationError("options", "select at least one repair", opts)
	}

	report := &cart.RepairReport{Owner: owner, Results: []cart.RepairResult{}}
	repairs := []struct {
		enabled bool
		issue   cart.IssueType
		run     func(context.Context, cart.Owner) (int64, error)
	}{
		{opts.RemoveOrphaned, cart.IssueOrphanedProducts, s.repo.RemoveOrphans},
		{opts.FixQuantities, cart.IssueInvalidQuantities, s.repo.FixQuantities},
		{opts.MergeDuplicates, cart.IssueDuplicateEntries, s.repo.MergeDuplicates},
	}

	log := logger.L(ctx).With(zap.String("cart_owner", owner.String()), zap.String("trigger", s.trigger))
	for _, r := range repairs {
		if !r.enabled {
			continue
		}
		affected, err := r.run(ctx, owner)
		if err != nil {
			de := shared.AsDomainError(err)
			report.Results = append(report.Results, cart.RepairResult{
				Type:  r.issue,
				Kind:  string(de.Kind),
				Error: de.Error(),
			})
			telemetry.RecordError(span, err)
			log.Error("Cart repair failed", zap.String("issue_type", string(r.issue)), zap.Error(err))
			continue
		}
		report.Results = append(report.Results, cart.RepairResult{Type: r.issue, Success: true, Affected: affected})
		s.metrics.RecordRepair(ctx, s.trigger, string(r.issue), affected)
		if affected > 0 {
			log.Info("Cart repaired", zap.String("issue_type", string(r.issue)), zap.Int64("affected", affected))
		}
	}
	return report, nil
}

// CleanupStaleGuests deletes guest lines not updated within the stale TTL
func (s *IntegrityService) CleanupStaleGuests(ctx context.Context) (int64, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "cart_integrity", "cleanup_stale_guests")
	defer span.End()

	cutoff := s.now().Add(-s.staleTTL)
	removed, err := s.repo.DeleteStaleGuestLines(ctx, cutoff)
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, err
	}
	s.metrics.RecordStaleGuestCleanup(ctx, s.trigger, removed)
	logger.L(ctx).Info("Stale guest cart lines removed",
		zap.Int64("removed", removed),
		zap.Time("cutoff", cutoff),
		zap.String("trigger", s.trigger),
	)
	return removed, nil
}
