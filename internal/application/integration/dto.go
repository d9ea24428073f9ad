package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Outbound drain results
// ---------------------------------------------------------------------------

// DrainStatus is the outcome of one drainBatch call
type DrainStatus string

const (
	// DrainStatusEmpty means nothing was due
	DrainStatusEmpty DrainStatus = "EMPTY"
	// DrainStatusSynced means the marketplace accepted the batch
	DrainStatusSynced DrainStatus = "SYNCED"
	// DrainStatusFailed means the batch was rejected and every entry's attempt count grew
	DrainStatusFailed DrainStatus = "FAILED"
	// DrainStatusAborted means no credential could be obtained; nothing was attempted
	DrainStatusAborted DrainStatus = "ABORTED"
)

// DrainResult summarizes one drainBatch call
type DrainResult struct {
	Status   DrainStatus `json:"status"`
	Selected int         `json:"selected"`
	// Synced counts entries confirmed synced
	Synced int64 `json:"synced"`
	// Superseded counts entries retargeted while the request was in flight; they stay outstanding
	Superseded int64 `json:"superseded"`
	// Failed counts entries whose attempt count was incremented
	Failed int64 `json:"failed"`
	// Stuck counts entries that reached the attempt ceiling in this call
	Stuck int    `json:"stuck"`
	Error string `json:"error,omitempty"`
	// Attempted lists the selected entry ids, for callers draining several batches
	Attempted  []uuid.UUID `json:"-"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
}

// ---------------------------------------------------------------------------
// Inbound reconciliation results
// ---------------------------------------------------------------------------

// LineAction is the decision taken for one remote order line
type LineAction string

const (
	LineActionDecremented      LineAction = "DECREMENTED"
	LineActionProductNotFound  LineAction = "PRODUCT_NOT_FOUND"
	LineActionSkippedStale     LineAction = "SKIPPED_STALE"
	LineActionSkippedCancelled LineAction = "SKIPPED_CANCELLED"
	LineActionUnchanged        LineAction = "UNCHANGED"
	LineActionRestored         LineAction = "RESTORED"
	LineActionStatusChanged    LineAction = "STATUS_CHANGED"
	LineActionFailed           LineAction = "FAILED"
)

// LineOutcome is the result of reconciling one line
type LineOutcome struct {
	OrderID    string     `json:"order_id"`
	LineItemID string     `json:"line_item_id"`
	SKU        string     `json:"sku"`
	Action     LineAction `json:"action"`
	// Mirrored is true when the quantity change was queued for a marketplace push
	Mirrored bool   `json:"mirrored"`
	Error    string `json:"error,omitempty"`
}

// LineFailure records a line that could not be reconciled
type LineFailure struct {
	OrderID    string `json:"order_id"`
	LineItemID string `json:"line_item_id"`
	Error      string `json:"error"`
}

// ReconcileSummary aggregates one inbound run
type ReconcileSummary struct {
	Orders     int                `json:"orders"`
	Lines      int                `json:"lines"`
	Actions    map[LineAction]int `json:"actions"`
	Failures   []LineFailure      `json:"failures,omitempty"`
	FetchError string             `json:"fetch_error,omitempty"`
}

// NewReconcileSummary creates an empty summary
func NewReconcileSummary() *ReconcileSummary {
	return &ReconcileSummary{Actions: make(map[LineAction]int)}
}

func (s *ReconcileSummary) add(outcome LineOutcome) {
	s.Lines++
	s.Actions[outcome.Action]++
	if outcome.Action == LineActionFailed {
		s.Failures = append(s.Failures, LineFailure{
			OrderID:    outcome.OrderID,
			LineItemID: outcome.LineItemID,
			Error:      outcome.Error,
		})
	}
}

// ---------------------------------------------------------------------------
// Metrics hook
// ---------------------------------------------------------------------------

// SyncRecorder receives sync outcomes for metrics
type SyncRecorder interface {
	RecordDrain(ctx context.Context, result *DrainResult)
	RecordLine(ctx context.Context, outcome LineOutcome)
	RecordPageRetry(ctx context.Context, reason string)
}

type noopRecorder struct{}

func (noopRecorder) RecordDrain(context.Context, *DrainResult) {}
func (noopRecorder) RecordLine(context.Context, LineOutcome) {}
func (noopRecorder) RecordPageRetry(context.Context, string) {}
