package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	appcart "github.com/storefront/backend/internal/application/cart"
	"github.com/storefront/backend/internal/application/checkout"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/validation"
	"github.com/storefront/backend/internal/infrastructure/auth"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/persistence"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// errCriticalIssues is returned by audit when the cart has critical issues
var errCriticalIssues = errors.New("critical cart integrity issues found")

type env struct {
	cfg    *config.Config
	log    *zap.Logger
	db     *persistence.Database
	out    io.Writer
	errOut io.Writer
	now    func() time.Time
}

func (e *env) clock() time.Time {
	if e.now != nil {
		return e.now()
	}
	return time.Now()
}

func (e *env) integrity(ttl time.Duration) *appcart.IntegrityService {
	return appcart.NewIntegrityService(persistence.NewGormCartIntegrityRepository(e.db.DB),
		appcart.WithTrigger(telemetry.TriggerCLI),
		appcart.WithStaleGuestTTL(ttl),
		appcart.WithClock(e.clock),
	)
}

func (e *env) print(v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type command struct {
	needsDB bool
	run     func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"audit":   {needsDB: true, run: auditCmd},
	"repair":  {needsDB: true, run: repairCmd},
	"cleanup": {needsDB: true, run: cleanupCmd},
	"orders":  {needsDB: true, run: ordersCmd},
	"token":   {needsDB: false, run: tokenCmd},
}

func newFlagSet(name string, e *env) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.errOut)
	return fs
}

// ownerFlags registers -customer and -ip and resolves them to an owner.
// A customer id wins over an ip address.
func ownerFlags(fs *flag.FlagSet) func() (cart.Owner, error) {
	customerID := fs.String("customer", "", "Customer id")
	ip := fs.String("ip", "", "Guest IP address")
	return func() (cart.Owner, error) {
		if *customerID == "" && *ip == "" {
			return cart.Owner{}, shared.NewValidationError("owner", "-customer or -ip is required", nil)
		}
		var cid any
		if *customerID != "" {
			cid = *customerID
		}
		return validation.UserIdentification(cid, *ip)
	}
}

func auditCmd(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("audit", e)
	owner := ownerFlags(fs)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	o, err := owner()
	if err != nil {
		return err
	}

	report, err := e.integrity(e.cfg.Cart.StaleGuestTTL).Verify(ctx, o)
	if err != nil {
		return err
	}
	if err := e.print(report); err != nil {
		return err
	}
	if report.HasCriticalIssues {
		return errCriticalIssues
	}
	return nil
}

func repairCmd(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("repair", e)
	owner := ownerFlags(fs)
	opts := cart.DefaultRepairOptions()
	fs.BoolVar(&opts.RemoveOrphaned, "orphaned", true, "Remove lines of deleted products")
	fs.BoolVar(&opts.FixQuantities, "quantities", true, "Clamp out of range quantities")
	fs.BoolVar(&opts.MergeDuplicates, "merge", true, "Merge duplicate lines")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	o, err := owner()
	if err != nil {
		return err
	}

	report, err := e.integrity(e.cfg.Cart.StaleGuestTTL).Fix(ctx, o, opts)
	if err != nil {
		return err
	}
	for _, r := range report.Results {
		if !r.Success {
			e.log.Warn("Repair failed", zap.String("issue_type", string(r.Type)), zap.String("kind", r.Kind))
		}
	}
	return e.print(report)
}

func cleanupCmd(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("cleanup", e)
	ttl := fs.Duration("ttl", e.cfg.Cart.StaleGuestTTL, "Delete guest lines not updated for this long")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *ttl < time.Hour {
		return shared.NewValidationError("ttl", "must be at least 1h", ttl.String())
	}

	removed, err := e.integrity(*ttl).CleanupStaleGuests(ctx)
	if err != nil {
		return err
	}
	return e.print(map[string]any{
		"removed": removed,
		"cutoff":  e.clock().Add(-*ttl).UTC(),
	})
}

func ordersCmd(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("orders", e)
	customer := fs.String("customer", "", "Customer id")
	page := fs.Int("page", 1, "Page number")
	size := fs.Int("size", 20, "Page size")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	owner, err := validation.UserIdentification(*customer, nil)
	if err != nil {
		return err
	}
	customerID, ok := owner.CustomerID()
	if !ok {
		return shared.NewValidationError("customer", "is required", nil)
	}

	db := e.db.DB
	svc := checkout.NewCheckoutService(
		persistence.NewGormOrderRepository(db, order.NewInvoiceGenerator()),
		persistence.NewGormCartRepository(db),
		persistence.NewGormCartIntegrityRepository(db),
	)
	result, err := svc.ListOrders(ctx, customerID, shared.Filter{Page: *page, PageSize: *size})
	if err != nil {
		return err
	}
	return e.print(result)
}

func tokenCmd(_ context.Context, e *env, args []string) error {
	fs := newFlagSet("token", e)
	customer := fs.Int64("customer", 0, "Customer id")
	email := fs.String("email", "", "Customer email")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *customer <= 0 {
		return shared.NewValidationError("customer", "must be a positive integer", *customer)
	}
	if e.cfg.App.Env == "production" {
		return fmt.Errorf("token issuing is disabled in production")
	}

	issued, err := auth.NewTokenService(e.cfg.JWT).Issue(*customer, *email)
	if err != nil {
		return err
	}
	return e.print(issued)
}
