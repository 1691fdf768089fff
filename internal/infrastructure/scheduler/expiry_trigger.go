package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ExpirableSource lists groups whose deadline has passed and groups whose
// checkout attempt was abandoned
type ExpirableSource interface {
	FindExpirable(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	FindStaleCheckouts(ctx context.Context, startedBefore time.Time, limit int) ([]uuid.UUID, error)
}

// GroupExpirer applies the deadline transition to one group and recovers it
// from an abandoned checkout
type GroupExpirer interface {
	ExpireGroup(ctx context.Context, groupID uuid.UUID) (bool, error)
}

// ExpiryExecutor runs expiry jobs through the group order service so the
// transition takes the group lock and publishes its event like any mutation
type ExpiryExecutor struct {
	expirer GroupExpirer
}

// NewExpiryExecutor creates an ExpiryExecutor
func NewExpiryExecutor(expirer GroupExpirer) *ExpiryExecutor {
	return &ExpiryExecutor{expirer: expirer}
}

// Execute implements JobExecutor
func (e *ExpiryExecutor) Execute(ctx context.Context, job *Job) (bool, error) {
	return e.expirer.ExpireGroup(ctx, job.GroupID)
}

// ExpiryTriggerConfig holds the sweep cadence. CheckoutTimeout is how long a
// group may sit in checking_out before the sweep picks it up.
type ExpiryTriggerConfig struct {
	Interval        time.Duration
	BatchSize       int
	CheckoutTimeout time.Duration
}

// DefaultExpiryTriggerConfig returns default sweep configuration
func DefaultExpiryTriggerConfig() ExpiryTriggerConfig {
	return ExpiryTriggerConfig{
		Interval:        30 * time.Second,
		BatchSize:       100,
		CheckoutTimeout: 5 * time.Minute,
	}
}

// ExpiryTrigger periodically finds overdue groups and hands them to the scheduler.
// Groups read lazily still expire on access; the sweep covers groups nobody touches.
type ExpiryTrigger struct {
	config    ExpiryTriggerConfig
	source    ExpirableSource
	scheduler *Scheduler
	logger    *zap.Logger
	now       func() time.Time

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	lastSweep time.Time
}

// NewExpiryTrigger creates a new ExpiryTrigger
func NewExpiryTrigger(config ExpiryTriggerConfig, source ExpirableSource, scheduler *Scheduler, logger *zap.Logger) *ExpiryTrigger {
	def := DefaultExpiryTriggerConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.CheckoutTimeout <= 0 {
		config.CheckoutTimeout = def.CheckoutTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExpiryTrigger{
		config:    config,
		source:    source,
		scheduler: scheduler,
		logger:    logger,
		now:       time.Now,
	}
}

// Start starts the sweep loop
func (t *ExpiryTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Expiry trigger started",
		zap.Duration("interval", t.config.Interval),
		zap.Int("batch_size", t.config.BatchSize),
		zap.Duration("checkout_timeout", t.config.CheckoutTimeout),
	)
	return nil
}

// Stop stops the sweep loop
func (t *ExpiryTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Expiry trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LastSweep returns when the last sweep started
func (t *ExpiryTrigger) LastSweep() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSweep
}

func (t *ExpiryTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := t.Sweep(ctx); err != nil && ctx.Err() == nil {
				t.logger.Error("Expiry sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep queues one batch of overdue groups and one batch of abandoned
// checkouts, and returns how many groups were queued
func (t *ExpiryTrigger) Sweep(ctx context.Context) (int, error) {
	now := t.now()
	t.mu.Lock()
	t.lastSweep = now
	t.mu.Unlock()

	ids, err := t.source.FindExpirable(ctx, now, t.config.BatchSize)
	if err != nil {
		return 0, err
	}
	stale, err := t.source.FindStaleCheckouts(ctx, now.Add(-t.config.CheckoutTimeout), t.config.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(stale) > 0 {
		t.logger.Warn("Found abandoned checkouts", zap.Int("count", len(stale)))
	}
	ids = append(ids, stale...)

	queued := 0
	for _, id := range ids {
		ok, err := t.scheduler.SubmitGroup(id)
		if errors.Is(err, ErrJobQueueFull) {
			t.logger.Warn("Expiry queue full, remaining groups wait for the next sweep",
				zap.Int("found", len(ids)),
				zap.Int("queued", queued),
			)
			break
		}
		if err != nil {
			return queued, err
		}
		if ok {
			queued++
		}
	}

	if len(ids) > 0 {
		t.logger.Debug("Expiry sweep queued groups",
			zap.Int("found", len(ids)),
			zap.Int("queued", queued),
		)
	}
	return queued, nil
}
