package integration

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/integration"
	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/inventory"
	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/shared"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// OrderReconcilerConfig controls inbound reconciliation
type OrderReconcilerConfig struct {
	// MaxOrderAge is the first-sighting window; older orders are recorded without a decrement
	MaxOrderAge time.Duration
	// Workers bounds how many lines are reconciled in parallel
	Workers int
}

// DefaultOrderReconcilerConfig returns the default reconciliation settings
func DefaultOrderReconcilerConfig() OrderReconcilerConfig {
	return OrderReconcilerConfig{
		MaxOrderAge: 24 * time.Hour,
		Workers:     4,
	}
}

// OrderReconciler applies remote order lines to local inventory.
// Each line is handled in its own transaction under a per-SKU lock; the line
// row is claimed first so a duplicate delivery can never decrement twice.
type OrderReconciler struct {
	scope    TransactionScope
	locks    *KeyedMutex
	config   OrderReconcilerConfig
	recorder SyncRecorder
	logger   *zap.Logger
	now      func() time.Time
}

// OrderReconcilerOption configures an OrderReconciler
type OrderReconcilerOption func(*OrderReconciler)

// WithReconcilerRecorder sets the metrics recorder
func WithReconcilerRecorder(recorder SyncRecorder) OrderReconcilerOption {
	return func(r *OrderReconciler) {
		if recorder != nil {
			r.recorder = recorder
		}
	}
}

// WithReconcilerClock overrides the clock used for the age check
func WithReconcilerClock(now func() time.Time) OrderReconcilerOption {
	return func(r *OrderReconciler) {
		r.now = now
	}
}

// WithReconcilerLocks shares a KeyedMutex with other SKU writers
func WithReconcilerLocks(locks *KeyedMutex) OrderReconcilerOption {
	return func(r *OrderReconciler) {
		if locks != nil {
			r.locks = locks
		}
	}
}

// NewOrderReconciler creates a new OrderReconciler
func NewOrderReconciler(scope TransactionScope, config OrderReconcilerConfig, logger *zap.Logger, opts ...OrderReconcilerOption) *OrderReconciler {
	defaults := DefaultOrderReconcilerConfig()
	if config.MaxOrderAge <= 0 {
		config.MaxOrderAge = defaults.MaxOrderAge
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &OrderReconciler{
		scope:    scope,
		locks:    NewKeyedMutex(),
		config:   config,
		recorder: noopRecorder{},
		logger:   logger.Named("order_reconciler"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ---------------------------------------------------------------------------
// Stream
// ---------------------------------------------------------------------------

// ReconcileStream consumes orders and reconciles their lines with bounded
// parallelism. Line failures are collected in the summary. The returned error
// is the one that ended the order sequence (fetch failure or ctx), if any;
// lines already handed to workers finish regardless.
func (r *OrderReconciler) ReconcileStream(ctx context.Context, orders iter.Seq2[integration.RemoteOrder, error]) (*ReconcileSummary, error) {
	summary := NewReconcileSummary()
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(r.config.Workers)

	var streamErr error
	for order, err := range orders {
		if err != nil {
			streamErr = err
			summary.FetchError = integration.FailurePayload(err)
			break
		}
		if err := ctx.Err(); err != nil {
			streamErr = err
			break
		}

		summary.Orders++
		for _, item := range order.Items {
			g.Go(func() error {
				outcome := r.reconcileLine(context.WithoutCancel(ctx), &order, item)
				mu.Lock()
				summary.add(outcome)
				mu.Unlock()
				return nil
			})
		}
	}
	_ = g.Wait()

	return summary, streamErr
}

// ReconcileOrder reconciles every line of one order sequentially
func (r *OrderReconciler) ReconcileOrder(ctx context.Context, order *integration.RemoteOrder) []LineOutcome {
	outcomes := make([]LineOutcome, 0, len(order.Items))
	for _, item := range order.Items {
		outcomes = append(outcomes, r.reconcileLine(ctx, order, item))
	}
	return outcomes
}

// ReconcileLine applies one remote line and reports what was decided
func (r *OrderReconciler) ReconcileLine(ctx context.Context, order *integration.RemoteOrder, item integration.RemoteOrderItem) (LineOutcome, error) {
	outcome := r.reconcileLine(ctx, order, item)
	if outcome.Action == LineActionFailed {
		return outcome, errors.New(outcome.Error)
	}
	return outcome, nil
}

func (r *OrderReconciler) reconcileLine(ctx context.Context, order *integration.RemoteOrder, item integration.RemoteOrderItem) LineOutcome {
	outcome := LineOutcome{OrderID: order.OrderID, LineItemID: item.LineItemID, SKU: item.SKU}

	lockKey := SKULockKey(item.SKU)
	if item.SKU == "" {
		lockKey = "line:" + order.OrderID + "/" + item.LineItemID
	}
	unlock := r.locks.Lock(lockKey)
	defer unlock()

	err := r.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		lines := repos.OrderLineRepo()

		existing, err := lines.FindByKey(ctx, order.OrderID, item.LineItemID)
		if err == nil {
			return r.resight(ctx, repos, existing, order, item, &outcome)
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("load order line: %w", err)
		}

		line, err := integration.NewRemoteOrderLine(order, item)
		if err != nil {
			return err
		}
		claimed, err := lines.Claim(ctx, line)
		if err != nil {
			return fmt.Errorf("claim order line: %w", err)
		}
		if !claimed {
			existing, err := lines.FindByKey(ctx, order.OrderID, item.LineItemID)
			if err != nil {
				return fmt.Errorf("load claimed order line: %w", err)
			}
			return r.resight(ctx, repos, existing, order, item, &outcome)
		}
		return r.firstSighting(ctx, repos, line, order, &outcome)
	})
	if err != nil {
		outcome.Action = LineActionFailed
		outcome.Error = err.Error()
		r.logger.Error("Failed to reconcile order line",
			zap.String("order_id", order.OrderID),
			zap.String("line_item_id", item.LineItemID),
			zap.String("sku", item.SKU),
			zap.Error(err),
		)
	}

	r.recorder.RecordLine(ctx, outcome)
	return outcome
}

// ---------------------------------------------------------------------------
// Transitions
// ---------------------------------------------------------------------------

func (r *OrderReconciler) firstSighting(
	ctx context.Context,
	repos TransactionalRepositories,
	line *integration.RemoteOrderLine,
	order *integration.RemoteOrder,
	outcome *LineOutcome,
) error {
	now := r.now()
	var note string

	_, err := repos.InventoryRepo().FindBySKU(ctx, line.SKU)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		note = "product not found"
		outcome.Action = LineActionProductNotFound
		r.logger.Warn("Order line references unknown SKU",
			zap.String("order_id", line.OrderID),
			zap.String("line_item_id", line.LineItemID),
			zap.String("sku", line.SKU),
			zap.Error(integration.ErrLocalInconsistency),
		)

	case err != nil:
		return fmt.Errorf("load inventory item: %w", err)

	case order.AgeAt(now) > r.config.MaxOrderAge:
		note = fmt.Sprintf("skipped: order older than %s", formatAge(r.config.MaxOrderAge))
		outcome.Action = LineActionSkippedStale

	case line.Status.IsCancelled():
		note = "skipped: line already cancelled at first sighting"
		outcome.Action = LineActionSkippedCancelled

	default:
		change, err := repos.InventoryRepo().IncrementQuantity(ctx, line.SKU, -line.Quantity)
		if err != nil {
			return fmt.Errorf("decrement inventory: %w", err)
		}
		line.StockApplied = true
		note = fmt.Sprintf("decremented %d (%d -> %d)", line.Quantity, change.Before, change.After)
		outcome.Action = LineActionDecremented

		mirrored, err := r.mirror(ctx, repos, change)
		if err != nil {
			return err
		}
		if mirrored {
			note += "; marketplace push queued"
			outcome.Mirrored = true
		}
	}

	line.AppendNote(now, note)
	if err := repos.OrderLineRepo().Update(ctx, line); err != nil {
		return fmt.Errorf("save order line: %w", err)
	}
	return repos.AuditLog().AppendLog(ctx, integration.AuditEntityOrderLine, line.Key(), note)
}

func (r *OrderReconciler) resight(
	ctx context.Context,
	repos TransactionalRepositories,
	line *integration.RemoteOrderLine,
	order *integration.RemoteOrder,
	item integration.RemoteOrderItem,
	outcome *LineOutcome,
) error {
	status := order.LineStatus(item)
	previous, changed := line.TransitionTo(status, order.ModifiedAt)
	if !changed {
		outcome.Action = LineActionUnchanged
		return nil
	}

	now := r.now()
	note := fmt.Sprintf("status %s -> %s", previous, status)
	outcome.Action = LineActionStatusChanged

	if status.IsCancelled() && line.StockApplied {
		change, err := repos.InventoryRepo().IncrementQuantity(ctx, line.SKU, line.Quantity)
		if err != nil {
			return fmt.Errorf("restore inventory: %w", err)
		}
		line.StockApplied = false
		note += fmt.Sprintf("; restored %d (%d -> %d)", line.Quantity, change.Before, change.After)
		outcome.Action = LineActionRestored

		mirrored, err := r.mirror(ctx, repos, change)
		if err != nil {
			return err
		}
		if mirrored {
			note += "; marketplace push queued"
			outcome.Mirrored = true
		}
	}

	line.AppendNote(now, note)
	if err := repos.OrderLineRepo().Update(ctx, line); err != nil {
		return fmt.Errorf("save order line: %w", err)
	}
	return repos.AuditLog().AppendLog(ctx, integration.AuditEntityOrderLine, line.Key(), note)
}

func (r *OrderReconciler) mirror(ctx context.Context, repos TransactionalRepositories, change inventory.QuantityChange) (bool, error) {
	record, err := MirrorQuantityChange(ctx, repos.StockSyncRepo(), change)
	if err != nil {
		return false, err
	}
	return record != nil, nil
}

func formatAge(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%dh", int(d/time.Hour))
	}
	return d.String()
}
