package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CycleRunner is the part of SyncCoordinator the trigger drives
type CycleRunner interface {
	TriggerInboundCycle(ctx context.Context, windowStart, windowEnd time.Time) (*SyncCycleJob, error)
	TriggerOutboundCycle(ctx context.Context) (*SyncCycleJob, error)
	NextInboundWindow() (time.Time, time.Time)
}

// SyncTriggerConfig holds configuration for the sync trigger
type SyncTriggerConfig struct {
	InboundInterval  time.Duration
	OutboundInterval time.Duration
	// RunOnStart fires both cycles once right after Start
	RunOnStart bool
}

// DefaultSyncTriggerConfig returns default trigger configuration
func DefaultSyncTriggerConfig() SyncTriggerConfig {
	return SyncTriggerConfig{
		InboundInterval:  5 * time.Minute,
		OutboundInterval: time.Minute,
		RunOnStart:       true,
	}
}

// SyncTrigger fires inbound and outbound cycles on independent tickers
type SyncTrigger struct {
	config SyncTriggerConfig
	runner CycleRunner
	logger *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewSyncTrigger creates a new sync trigger
func NewSyncTrigger(config SyncTriggerConfig, runner CycleRunner, logger *zap.Logger) *SyncTrigger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncTrigger{
		config: config,
		runner: runner,
		logger: logger.Named("sync_trigger"),
	}
}

// Start starts both ticker loops
func (t *SyncTrigger) Start(ctx context.Context) error {
	if t.config.InboundInterval <= 0 || t.config.OutboundInterval <= 0 {
		return ErrInvalidConfig
	}

	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(2)
	go t.runLoop(ctx, t.config.InboundInterval, t.fireInbound)
	go t.runLoop(ctx, t.config.OutboundInterval, t.fireOutbound)

	t.logger.Info("Sync trigger started",
		zap.Duration("inbound_interval", t.config.InboundInterval),
		zap.Duration("outbound_interval", t.config.OutboundInterval),
	)
	return nil
}

// Stop stops the loops and waits for a cycle in progress to return
func (t *SyncTrigger) Stop(ctx context.Context) error {
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
		t.logger.Info("Sync trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning reports whether the loops are active
func (t *SyncTrigger) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isRunning
}

func (t *SyncTrigger) runLoop(ctx context.Context, interval time.Duration, fire func(context.Context)) {
	defer t.wg.Done()

	if t.config.RunOnStart {
		fire(ctx)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fire(ctx)
		}
	}
}

func (t *SyncTrigger) fireInbound(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start, end := t.runner.NextInboundWindow()
	job, err := t.runner.TriggerInboundCycle(ctx, start, end)
	t.logOutcome(CycleTypeInbound, job, err)
}

func (t *SyncTrigger) fireOutbound(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	job, err := t.runner.TriggerOutboundCycle(ctx)
	t.logOutcome(CycleTypeOutbound, job, err)
}

func (t *SyncTrigger) logOutcome(cycleType CycleType, job *SyncCycleJob, err error) {
	switch {
	case errors.Is(err, ErrCycleRunning):
		t.logger.Debug("Sync cycle skipped, previous run still active",
			zap.String("cycle_type", string(cycleType)))
	case err != nil:
		t.logger.Warn("Sync cycle not started",
			zap.String("cycle_type", string(cycleType)), zap.Error(err))
	case job != nil:
		t.logger.Debug("Scheduled sync cycle completed",
			zap.String("cycle_type", string(cycleType)),
			zap.String("job_id", job.ID.String()),
			zap.String("status", string(job.Status)),
		)
	}
}
