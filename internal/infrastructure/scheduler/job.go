package scheduler

import (
	"time"

	appintegration "github.com/OsbanCerejo/inventoz-sub000/internal/application/integration"
	"github.com/google/uuid"
)

// CycleType identifies one of the two independent sync directions
type CycleType string

const (
	// CycleTypeInbound pulls marketplace orders and reconciles local stock
	CycleTypeInbound CycleType = "inbound"
	// CycleTypeOutbound drains the ledger to the marketplace
	CycleTypeOutbound CycleType = "outbound"
)

// CycleStatus is the lifecycle state of a sync cycle
type CycleStatus string

const (
	CycleStatusRunning   CycleStatus = "RUNNING"
	CycleStatusSucceeded CycleStatus = "SUCCEEDED"
	// CycleStatusPartial means the cycle finished but some lines or batches failed
	CycleStatusPartial CycleStatus = "PARTIAL"
	CycleStatusFailed  CycleStatus = "FAILED"
	// CycleStatusAborted means no marketplace credential could be obtained
	CycleStatusAborted CycleStatus = "ABORTED"
)

// OutboundSummary aggregates the drain batches of one outbound cycle
type OutboundSummary struct {
	Batches    int   `json:"batches"`
	Selected   int   `json:"selected"`
	Synced     int64 `json:"synced"`
	Superseded int64 `json:"superseded"`
	Failed     int64 `json:"failed"`
	Stuck      int   `json:"stuck"`
	// LastStatus is the status of the final drain call
	LastStatus appintegration.DrainStatus `json:"last_status,omitempty"`
}

func (s *OutboundSummary) add(result *appintegration.DrainResult) {
	s.LastStatus = result.Status
	if result.Status == appintegration.DrainStatusEmpty || result.Status == appintegration.DrainStatusAborted {
		return
	}
	s.Batches++
	s.Selected += result.Selected
	s.Synced += result.Synced
	s.Superseded += result.Superseded
	s.Failed += result.Failed
	s.Stuck += result.Stuck
}

// SyncCycleJob records one run of a sync cycle
type SyncCycleJob struct {
	ID          uuid.UUID                        `json:"id"`
	Type        CycleType                        `json:"type"`
	Status      CycleStatus                      `json:"status"`
	WindowStart *time.Time                       `json:"window_start,omitempty"`
	WindowEnd   *time.Time                       `json:"window_end,omitempty"`
	StartedAt   time.Time                        `json:"started_at"`
	CompletedAt *time.Time                       `json:"completed_at,omitempty"`
	Error       string                           `json:"error,omitempty"`
	Inbound     *appintegration.ReconcileSummary `json:"inbound,omitempty"`
	Outbound    *OutboundSummary                 `json:"outbound,omitempty"`
}

// newInboundJob creates a running inbound job over [start, end)
func newInboundJob(start, end, now time.Time) *SyncCycleJob {
	return &SyncCycleJob{
		ID:          uuid.New(),
		Type:        CycleTypeInbound,
		Status:      CycleStatusRunning,
		WindowStart: &start,
		WindowEnd:   &end,
		StartedAt:   now,
	}
}

// newOutboundJob creates a running outbound job
func newOutboundJob(now time.Time) *SyncCycleJob {
	return &SyncCycleJob{
		ID:        uuid.New(),
		Type:      CycleTypeOutbound,
		Status:    CycleStatusRunning,
		StartedAt: now,
		Outbound:  &OutboundSummary{},
	}
}

// finish sets the terminal status
func (j *SyncCycleJob) finish(status CycleStatus, errMsg string, now time.Time) {
	j.Status = status
	j.Error = errMsg
	j.CompletedAt = &now
}

// Duration returns the run time, or zero while running
func (j *SyncCycleJob) Duration() time.Duration {
	if j.CompletedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(j.StartedAt)
}

// IsTerminal reports whether the job has finished
func (j *SyncCycleJob) IsTerminal() bool {
	return j.Status != CycleStatusRunning
}

// clone returns a copy that shares no mutable state with j
func (j *SyncCycleJob) clone() SyncCycleJob {
	c := *j
	if j.Outbound != nil {
		o := *j.Outbound
		c.Outbound = &o
	}
	if j.Inbound != nil {
		in := *j.Inbound
		in.Actions = make(map[appintegration.LineAction]int, len(j.Inbound.Actions))
		for k, v := range j.Inbound.Actions {
			in.Actions[k] = v
		}
		in.Failures = append([]appintegration.LineFailure(nil), j.Inbound.Failures...)
		c.Inbound = &in
	}
	return c
}
