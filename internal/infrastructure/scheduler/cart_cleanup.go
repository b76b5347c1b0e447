package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StaleGuestCleaner removes guest cart lines past their TTL
type StaleGuestCleaner interface {
	CleanupStaleGuests(ctx context.Context) (int64, error)
}

// CartCleanupConfig holds configuration for the cleanup trigger
type CartCleanupConfig struct {
	// Interval between runs
	Interval time.Duration
	// RunOnStart runs one cleanup immediately after Start
	RunOnStart bool
}

// DefaultCartCleanupConfig returns default cleanup configuration
func DefaultCartCleanupConfig() CartCleanupConfig {
	return CartCleanupConfig{
		Interval:   time.Hour,
		RunOnStart: true,
	}
}

// CartCleanupTrigger periodically deletes stale guest carts
type CartCleanupTrigger struct {
	config  CartCleanupConfig
	cleaner StaleGuestCleaner
	logger  *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	lastRun   time.Time
	lastCount int64
}

// NewCartCleanupTrigger creates a new cleanup trigger
func NewCartCleanupTrigger(config CartCleanupConfig, cleaner StaleGuestCleaner, logger *zap.Logger) (*CartCleanupTrigger, error) {
	if config.Interval <= 0 || cleaner == nil {
		return nil, ErrInvalidConfig
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartCleanupTrigger{
		config:  config,
		cleaner: cleaner,
		logger:  logger,
	}, nil
}

// Start starts the trigger. Calling Start on a running trigger is a no-op.
func (c *CartCleanupTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.runLoop(ctx)

	c.logger.Info("Cart cleanup trigger started",
		zap.Duration("interval", c.config.Interval),
		zap.Bool("run_on_start", c.config.RunOnStart),
	)
	return nil
}

// Stop stops the trigger and waits for a running cleanup to finish or ctx to expire
func (c *CartCleanupTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("Cart cleanup trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *CartCleanupTrigger) runLoop(ctx context.Context) {
	defer c.wg.Done()

	if c.config.RunOnStart {
		c.RunOnce(ctx)
	}

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

// RunOnce performs one cleanup and records its result
func (c *CartCleanupTrigger) RunOnce(ctx context.Context) {
	start := time.Now()
	removed, err := c.cleaner.CleanupStaleGuests(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.logger.Error("Stale guest cleanup failed", zap.Error(err))
		return
	}

	c.mu.Lock()
	c.lastRun = start
	c.lastCount = removed
	c.mu.Unlock()

	c.logger.Info("Stale guest cleanup completed",
		zap.Int64("removed", removed),
		zap.Duration("duration", time.Since(start)),
	)
}

// LastRun returns the start time and removed count of the last successful run
func (c *CartCleanupTrigger) LastRun() (time.Time, int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRun, c.lastCount
}
