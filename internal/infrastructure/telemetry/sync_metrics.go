package telemetry

import (
	"context"
	"time"

	appintegration "github.com/OsbanCerejo/inventoz-sub000/internal/application/integration"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SyncMetrics records inbound and outbound cycle outcomes.
// It implements the application layer's SyncRecorder.
type SyncMetrics struct {
	drains          *Counter
	entriesSynced   *Counter
	entriesFailed   *Counter
	entriesStuck    *Counter
	lineActions     *Counter
	linesMirrored   *Counter
	pageRetries     *Counter
	cycles          *Counter
	cycleDuration   *Histogram
	outstandingSize *Gauge
}

var _ appintegration.SyncRecorder = (*SyncMetrics)(nil)

// NewSyncMetrics creates the sync instruments on meter.
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	m := &SyncMetrics{}
	counters := []struct {
		dst               **Counter
		name, desc, unit string
	}{
		{&m.drains, "sync_drain_total", "Outbound drain calls by status", "{drain}"},
		{&m.entriesSynced, "sync_ledger_synced_total", "Ledger entries confirmed by the marketplace", "{entry}"},
		{&m.entriesFailed, "sync_ledger_failed_total", "Ledger entries whose push failed", "{entry}"},
		{&m.entriesStuck, "sync_ledger_stuck_total", "Ledger entries that reached the attempt ceiling", "{entry}"},
		{&m.lineActions, "sync_order_line_total", "Reconciled order lines by action", "{line}"},
		{&m.linesMirrored, "sync_order_line_mirrored_total", "Order lines whose quantity change was queued for push", "{line}"},
		{&m.pageRetries, "sync_order_page_retry_total", "Order page requests retried", "{request}"},
		{&m.cycles, "sync_cycle_total", "Sync cycles by type and status", "{cycle}"},
	}
	for _, c := range counters {
		counter, err := NewCounter(meter, c.name, c.desc, c.unit)
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	var err error
	if m.cycleDuration, err = NewHistogram(meter, "sync_cycle_duration_seconds",
		"Sync cycle duration in seconds", "s", CycleDurationBuckets); err != nil {
		return nil, err
	}
	if m.outstandingSize, err = NewGauge(meter, "sync_ledger_outstanding",
		"Outstanding ledger entries selected by the last drain", "{entry}"); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordDrain implements SyncRecorder.
func (m *SyncMetrics) RecordDrain(ctx context.Context, result *appintegration.DrainResult) {
	if result == nil {
		return
	}
	m.drains.Inc(ctx, AttrDrainStatus.String(string(result.Status)))
	m.entriesSynced.Add(ctx, result.Synced)
	m.entriesFailed.Add(ctx, result.Failed)
	m.entriesStuck.Add(ctx, int64(result.Stuck))
	m.outstandingSize.Record(ctx, int64(result.Selected))
}

// RecordLine implements SyncRecorder.
func (m *SyncMetrics) RecordLine(ctx context.Context, outcome appintegration.LineOutcome) {
	m.lineActions.Inc(ctx, AttrLineAction.String(string(outcome.Action)))
	if outcome.Mirrored {
		m.linesMirrored.Inc(ctx)
	}
}

// RecordPageRetry implements SyncRecorder.
func (m *SyncMetrics) RecordPageRetry(ctx context.Context, reason string) {
	m.pageRetries.Inc(ctx, attribute.String("reason", reason))
}

// RecordCycle records a finished scheduler cycle.
func (m *SyncMetrics) RecordCycle(ctx context.Context, cycleType, status string, d time.Duration) {
	attrs := []attribute.KeyValue{AttrCycleType.String(cycleType), AttrCycleStatus.String(status)}
	m.cycles.Inc(ctx, attrs...)
	m.cycleDuration.RecordDuration(ctx, d, attrs...)
}
