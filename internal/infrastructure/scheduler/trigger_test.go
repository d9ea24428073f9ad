package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingRunner struct {
	inbound  atomic.Int32
	outbound atomic.Int32
	start    time.Time
	end      time.Time
}

func (r *countingRunner) TriggerInboundCycle(_ context.Context, start, end time.Time) (*SyncCycleJob, error) {
	r.inbound.Add(1)
	if start != r.start || end != r.end {
		return nil, ErrInvalidWindow
	}
	return newInboundJob(start, end, time.Now()), nil
}

func (r *countingRunner) TriggerOutboundCycle(context.Context) (*SyncCycleJob, error) {
	if r.outbound.Add(1) > 1 {
		return nil, ErrCycleRunning
	}
	return newOutboundJob(time.Now()), nil
}

func (r *countingRunner) NextInboundWindow() (time.Time, time.Time) {
	return r.start, r.end
}

func TestSyncTrigger_FiresBothLoops(t *testing.T) {
	now := time.Now()
	runner := &countingRunner{start: now.Add(-time.Hour), end: now}
	trigger := NewSyncTrigger(SyncTriggerConfig{
		InboundInterval:  10 * time.Millisecond,
		OutboundInterval: 5 * time.Millisecond,
		RunOnStart:       true,
	}, runner, zap.NewNop())

	require.NoError(t, trigger.Start(context.Background()))
	assert.True(t, trigger.IsRunning())
	// second start is a no-op
	require.NoError(t, trigger.Start(context.Background()))

	require.Eventually(t, func() bool {
		return runner.inbound.Load() >= 2 && runner.outbound.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, trigger.Stop(ctx))
	assert.False(t, trigger.IsRunning())

	inbound := runner.inbound.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, inbound, runner.inbound.Load(), "no cycles after stop")
}

func TestSyncTrigger_RunOnStartDisabled(t *testing.T) {
	runner := &countingRunner{}
	trigger := NewSyncTrigger(SyncTriggerConfig{
		InboundInterval:  time.Hour,
		OutboundInterval: time.Hour,
	}, runner, nil)

	require.NoError(t, trigger.Start(context.Background()))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, trigger.Stop(context.Background()))

	assert.Zero(t, runner.inbound.Load())
	assert.Zero(t, runner.outbound.Load())
}

func TestSyncTrigger_InvalidConfig(t *testing.T) {
	trigger := NewSyncTrigger(SyncTriggerConfig{InboundInterval: time.Minute}, &countingRunner{}, nil)
	assert.ErrorIs(t, trigger.Start(context.Background()), ErrInvalidConfig)
	assert.False(t, trigger.IsRunning())
	assert.NoError(t, trigger.Stop(context.Background()))
}
