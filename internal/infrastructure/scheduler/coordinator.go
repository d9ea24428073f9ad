package scheduler

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	appintegration "github.com/OsbanCerejo/inventoz-sub000/internal/application/integration"
	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/integration"
	"github.com/OsbanCerejo/inventoz-sub000/internal/infrastructure/logger"
	"github.com/OsbanCerejo/inventoz-sub000/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderSource produces the remote orders of a window
type OrderSource interface {
	FetchOrders(ctx context.Context, windowStart, windowEnd time.Time) iter.Seq2[integration.RemoteOrder, error]
}

// StreamReconciler applies a stream of remote orders to local stock
type StreamReconciler interface {
	ReconcileStream(ctx context.Context, orders iter.Seq2[integration.RemoteOrder, error]) (*appintegration.ReconcileSummary, error)
}

// LedgerDrainer pushes outstanding ledger entries to the marketplace
type LedgerDrainer interface {
	DrainBatch(ctx context.Context, maxSize, maxAttempts int, exclude ...uuid.UUID) (*appintegration.DrainResult, error)
}

// CycleLock is a cross-instance lease; see cache.RedisCycleLock
type CycleLock interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, acquired bool, err error)
}

// CycleRecorder receives finished cycles for metrics
type CycleRecorder interface {
	RecordCycle(ctx context.Context, cycleType, status string, d time.Duration)
}

// CoordinatorConfig holds the cycle settings
type CoordinatorConfig struct {
	CycleTimeout time.Duration
	BatchSize    int
	MaxAttempts  int
	HistorySize  int
	// LockTTL bounds the distributed lease; it must exceed CycleTimeout
	LockTTL time.Duration
	// InboundLookback is the window used before any inbound cycle succeeded
	InboundLookback time.Duration
	// InboundOverlap is re-read before the last successful window end
	InboundOverlap time.Duration
	// InboundRevisit keeps orders created this long ago in every scheduled
	// window, so status changes on already reconciled orders are seen.
	// Zero disables revisiting.
	InboundRevisit time.Duration
}

// DefaultCoordinatorConfig returns default coordinator settings
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		CycleTimeout: 10 * time.Minute,
		BatchSize:    integration.MaxBulkUpdateSize,
		MaxAttempts:  5,
		HistorySize:  50,
		LockTTL:      15 * time.Minute,

		InboundLookback: 24 * time.Hour,
		InboundOverlap:  5 * time.Minute,
		InboundRevisit:  72 * time.Hour,
	}
}

// Validate validates the configuration
func (c *CoordinatorConfig) Validate() error {
	if c.CycleTimeout <= 0 || c.BatchSize <= 0 || c.MaxAttempts <= 0 || c.HistorySize <= 0 {
		return ErrInvalidConfig
	}
	if c.InboundLookback <= 0 || c.InboundOverlap < 0 || c.InboundRevisit < 0 {
		return fmt.Errorf("%w: inbound lookback must be positive, overlap and revisit non-negative", ErrInvalidConfig)
	}
	if c.LockTTL > 0 && c.LockTTL < c.CycleTimeout {
		return fmt.Errorf("%w: lock ttl %s is shorter than cycle timeout %s", ErrInvalidConfig, c.LockTTL, c.CycleTimeout)
	}
	return nil
}

// CoordinatorOption configures a SyncCoordinator
type CoordinatorOption func(*SyncCoordinator)

// WithCycleLock guards cycles across instances
func WithCycleLock(lock CycleLock) CoordinatorOption {
	return func(c *SyncCoordinator) {
		if lock != nil {
			c.lock = lock
		}
	}
}

// WithCycleRecorder sets the metrics recorder
func WithCycleRecorder(recorder CycleRecorder) CoordinatorOption {
	return func(c *SyncCoordinator) {
		if recorder != nil {
			c.recorder = recorder
		}
	}
}

// WithCoordinatorClock replaces time.Now (tests)
func WithCoordinatorClock(now func() time.Time) CoordinatorOption {
	return func(c *SyncCoordinator) {
		c.now = now
	}
}

// SyncCoordinator runs inbound and outbound cycles. Each cycle type is
// single-flight; the two types never wait on each other.
type SyncCoordinator struct {
	source     OrderSource
	reconciler StreamReconciler
	drainer    LedgerDrainer
	lock       CycleLock
	recorder   CycleRecorder
	config     CoordinatorConfig
	logger     *zap.Logger
	now        func() time.Time

	guards map[CycleType]*sync.Mutex

	mu sync.Mutex
	// running holds the start snapshot of each in-flight cycle
	running        map[CycleType]SyncCycleJob
	history        []SyncCycleJob
	lastInboundEnd time.Time
	hasInboundEnd  bool
	closed         bool

	baseCtx    context.Context
	cancelBase context.CancelFunc
	wg         sync.WaitGroup
}

// NewSyncCoordinator creates a coordinator
func NewSyncCoordinator(
	source OrderSource,
	reconciler StreamReconciler,
	drainer LedgerDrainer,
	config CoordinatorConfig,
	logger *zap.Logger,
	opts ...CoordinatorOption,
) *SyncCoordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	baseCtx, cancel := context.WithCancel(context.Background())
	c := &SyncCoordinator{
		source:     source,
		reconciler: reconciler,
		drainer:    drainer,
		config:     config,
		logger:     logger.Named("sync_coordinator"),
		now:        time.Now,
		guards: map[CycleType]*sync.Mutex{
			CycleTypeInbound:  {},
			CycleTypeOutbound: {},
		},
		running:    make(map[CycleType]SyncCycleJob),
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TriggerInboundCycle reconciles the orders created in [windowStart, windowEnd)
// and returns the finished job. ErrCycleRunning means nothing was done.
func (c *SyncCoordinator) TriggerInboundCycle(ctx context.Context, windowStart, windowEnd time.Time) (*SyncCycleJob, error) {
	if !windowStart.Before(windowEnd) {
		return nil, fmt.Errorf("%w: start %s is not before end %s", ErrInvalidWindow,
			windowStart.Format(time.RFC3339), windowEnd.Format(time.RFC3339))
	}
	release, err := c.acquire(ctx, CycleTypeInbound)
	if err != nil {
		return nil, err
	}
	defer release()

	job := newInboundJob(windowStart, windowEnd, c.now())
	c.run(ctx, job)
	return job, nil
}

// TriggerOutboundCycle drains the ledger and returns the finished job.
// ErrCycleRunning means nothing was done.
func (c *SyncCoordinator) TriggerOutboundCycle(ctx context.Context) (*SyncCycleJob, error) {
	release, err := c.acquire(ctx, CycleTypeOutbound)
	if err != nil {
		return nil, err
	}
	defer release()

	job := newOutboundJob(c.now())
	c.run(ctx, job)
	return job, nil
}

// StartInboundCycle is TriggerInboundCycle in the background. The returned
// snapshot is the running job; the outcome lands in History.
func (c *SyncCoordinator) StartInboundCycle(ctx context.Context, windowStart, windowEnd time.Time) (SyncCycleJob, error) {
	if !windowStart.Before(windowEnd) {
		return SyncCycleJob{}, fmt.Errorf("%w: start %s is not before end %s", ErrInvalidWindow,
			windowStart.Format(time.RFC3339), windowEnd.Format(time.RFC3339))
	}
	return c.start(ctx, CycleTypeInbound, func() *SyncCycleJob {
		return newInboundJob(windowStart, windowEnd, c.now())
	})
}

// StartOutboundCycle is TriggerOutboundCycle in the background
func (c *SyncCoordinator) StartOutboundCycle(ctx context.Context) (SyncCycleJob, error) {
	return c.start(ctx, CycleTypeOutbound, func() *SyncCycleJob {
		return newOutboundJob(c.now())
	})
}

func (c *SyncCoordinator) start(ctx context.Context, cycleType CycleType, newJob func() *SyncCycleJob) (SyncCycleJob, error) {
	release, err := c.acquire(ctx, cycleType)
	if err != nil {
		return SyncCycleJob{}, err
	}

	job := newJob()
	snapshot := job.clone()
	c.mu.Lock()
	c.running[cycleType] = snapshot
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer release()
		c.run(c.baseCtx, job)
	}()
	return snapshot, nil
}

// acquire takes the local guard for cycleType, then the distributed lease if configured
func (c *SyncCoordinator) acquire(ctx context.Context, cycleType CycleType) (func(), error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrCoordinatorClosed
	}

	guard := c.guards[cycleType]
	if !guard.TryLock() {
		return nil, fmt.Errorf("%w: %s", ErrCycleRunning, cycleType)
	}
	if c.lock == nil {
		return guard.Unlock, nil
	}

	ttl := c.config.LockTTL
	if ttl <= 0 {
		ttl = c.config.CycleTimeout + time.Minute
	}
	releaseLease, acquired, err := c.lock.TryLock(ctx, "sync:"+string(cycleType), ttl)
	if err != nil {
		guard.Unlock()
		c.logger.Warn("Cycle lock unavailable, skipping cycle",
			zap.String("cycle_type", string(cycleType)), zap.Error(err))
		return nil, err
	}
	if !acquired {
		guard.Unlock()
		return nil, fmt.Errorf("%w: %s (held by another instance)", ErrCycleRunning, cycleType)
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseLease(ctx); err != nil {
			c.logger.Warn("Failed to release cycle lock",
				zap.String("cycle_type", string(cycleType)), zap.Error(err))
		}
		guard.Unlock()
	}, nil
}

// run executes job under the cycle deadline and records it
func (c *SyncCoordinator) run(parent context.Context, job *SyncCycleJob) {
	c.mu.Lock()
	c.running[job.Type] = job.clone()
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(parent, c.config.CycleTimeout)
	defer cancel()

	ctx, span := telemetry.StartSpan(ctx, "sync."+string(job.Type)+"_cycle",
		telemetry.WithAttribute(telemetry.SpanAttrCycleType, string(job.Type)),
		telemetry.WithAttribute("sync.cycle_id", job.ID.String()),
	)
	defer span.End()

	ctx, log := logger.WithCycle(ctx, c.logger, string(job.Type), job.ID.String())
	log.Info("Sync cycle started")

	telemetry.WithCycleLabels(ctx, string(job.Type), func(ctx context.Context) {
		switch job.Type {
		case CycleTypeInbound:
			c.runInbound(ctx, job, log)
		case CycleTypeOutbound:
			c.runOutbound(ctx, job, log)
		}
	})

	telemetry.SetAttributes(span, telemetry.SpanAttrStatus, string(job.Status))
	if job.Error != "" {
		telemetry.RecordError(span, errors.New(job.Error))
	}
	if c.recorder != nil {
		c.recorder.RecordCycle(ctx, string(job.Type), string(job.Status), job.Duration())
	}

	fields := []zap.Field{
		zap.String("status", string(job.Status)),
		zap.Duration("duration", job.Duration()),
	}
	if job.Error != "" {
		fields = append(fields, zap.String("error", job.Error))
	}
	if job.Status == CycleStatusSucceeded {
		log.Info("Sync cycle finished", fields...)
	} else {
		log.Warn("Sync cycle finished", fields...)
	}

	c.mu.Lock()
	delete(c.running, job.Type)
	if job.Type == CycleTypeInbound && job.Status == CycleStatusSucceeded && job.WindowEnd != nil {
		if !c.hasInboundEnd || job.WindowEnd.After(c.lastInboundEnd) {
			c.lastInboundEnd = *job.WindowEnd
			c.hasInboundEnd = true
		}
	}
	c.history = append([]SyncCycleJob{job.clone()}, c.history...)
	if len(c.history) > c.config.HistorySize {
		c.history = c.history[:c.config.HistorySize]
	}
	c.mu.Unlock()
}

func (c *SyncCoordinator) runInbound(ctx context.Context, job *SyncCycleJob, log *zap.Logger) {
	start, end := *job.WindowStart, *job.WindowEnd
	log.Info("Fetching orders",
		zap.Time("window_start", start),
		zap.Time("window_end", end),
	)

	summary, err := c.reconciler.ReconcileStream(ctx, c.source.FetchOrders(ctx, start, end))
	if summary == nil {
		summary = appintegration.NewReconcileSummary()
	}
	job.Inbound = summary

	log.Info("Orders reconciled",
		zap.Int("orders", summary.Orders),
		zap.Int("lines", summary.Lines),
		zap.Int("failures", len(summary.Failures)),
	)

	switch {
	case errors.Is(err, integration.ErrCredentialUnavailable):
		log.Error("Inbound cycle aborted: no marketplace credential", zap.Error(err))
		job.finish(CycleStatusAborted, integration.FailurePayload(err), c.now())
	case err != nil:
		job.finish(CycleStatusFailed, integration.FailurePayload(err), c.now())
	case len(summary.Failures) > 0:
		job.finish(CycleStatusPartial, "", c.now())
	default:
		job.finish(CycleStatusSucceeded, "", c.now())
	}
}

// runOutbound drains batches until nothing due is left that this cycle has
// not already tried, the credential is gone or the deadline passes. A
// rejected batch only affects its own entries; they are retried next cycle.
func (c *SyncCoordinator) runOutbound(ctx context.Context, job *SyncCycleJob, log *zap.Logger) {
	summary := job.Outbound
	var attempted []uuid.UUID
	seen := make(map[uuid.UUID]struct{})
	lastError := ""
	for {
		if err := ctx.Err(); err != nil {
			job.finish(c.outboundStatus(summary), fmt.Sprintf("deadline reached after %d batches: %v", summary.Batches, err), c.now())
			return
		}

		result, err := c.drainer.DrainBatch(ctx, c.config.BatchSize, c.config.MaxAttempts, attempted...)
		if result != nil {
			summary.add(result)
		}
		if err != nil {
			if errors.Is(err, integration.ErrCredentialUnavailable) {
				job.finish(CycleStatusAborted, integration.FailurePayload(err), c.now())
				return
			}
			log.Error("Ledger drain failed", zap.Error(err))
			job.finish(CycleStatusFailed, err.Error(), c.now())
			return
		}
		if result.Status == appintegration.DrainStatusEmpty {
			job.finish(c.outboundStatus(summary), lastError, c.now())
			return
		}
		if result.Status == appintegration.DrainStatusFailed {
			lastError = result.Error
			log.Warn("Ledger batch rejected, continuing with the next entries",
				zap.Int("selected", result.Selected),
				zap.String("error", result.Error),
			)
		}

		before := len(attempted)
		for _, id := range result.Attempted {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				attempted = append(attempted, id)
			}
		}
		if len(attempted) == before {
			// nothing new was selected, so another call would repeat this one
			job.finish(c.outboundStatus(summary), lastError, c.now())
			return
		}
	}
}

func (c *SyncCoordinator) outboundStatus(summary *OutboundSummary) CycleStatus {
	switch {
	case summary.Failed == 0:
		return CycleStatusSucceeded
	case summary.Synced > 0:
		return CycleStatusPartial
	default:
		return CycleStatusFailed
	}
}

// CoordinatorStatus is a point-in-time view of the coordinator
type CoordinatorStatus struct {
	Running map[CycleType]SyncCycleJob `json:"running"`
	History []SyncCycleJob             `json:"history"`
	// LastInboundWindowEnd is the end of the newest successful inbound window
	LastInboundWindowEnd *time.Time `json:"last_inbound_window_end,omitempty"`
}

// Status returns the running cycles and the recent history, newest first
func (c *SyncCoordinator) Status() CoordinatorStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := CoordinatorStatus{
		Running: make(map[CycleType]SyncCycleJob, len(c.running)),
		History: make([]SyncCycleJob, len(c.history)),
	}
	for t, job := range c.running {
		status.Running[t] = job
	}
	copy(status.History, c.history)
	if c.hasInboundEnd {
		end := c.lastInboundEnd
		status.LastInboundWindowEnd = &end
	}
	return status
}

// IsRunning reports whether a cycle of cycleType is in progress on this instance
func (c *SyncCoordinator) IsRunning(cycleType CycleType) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.running[cycleType]
	return ok
}

// LastSuccessfulInboundEnd returns the end of the newest successful inbound window
func (c *SyncCoordinator) LastSuccessfulInboundEnd() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastInboundEnd, c.hasInboundEnd
}

// NextInboundWindow returns [lastSuccessfulEnd - overlap, now), or the
// lookback window ending now when no inbound cycle has succeeded yet.
// The start is pulled back to now - InboundRevisit when that is earlier:
// the order list filters on creation date, so an order cancelled after its
// first window is only seen again while it is inside the revisit span.
func (c *SyncCoordinator) NextInboundWindow() (time.Time, time.Time) {
	now := c.now()
	var start time.Time
	if end, ok := c.LastSuccessfulInboundEnd(); ok {
		start = end.Add(-c.config.InboundOverlap)
		if !start.Before(now) {
			// clock moved backwards
			start = now.Add(-time.Minute)
		}
	} else {
		start = now.Add(-c.config.InboundLookback)
	}
	if c.config.InboundRevisit > 0 {
		if revisit := now.Add(-c.config.InboundRevisit); revisit.Before(start) {
			start = revisit
		}
	}
	return start, now
}

// Shutdown cancels background cycles and waits for them.
// In-flight remote calls still finish.
func (c *SyncCoordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancelBase()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("Sync coordinator stopped")
		return nil
	case <-ctx.Done():
		c.logger.Warn("Sync coordinator stop timed out")
		return ctx.Err()
	}
}
