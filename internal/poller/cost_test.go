package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celestiaorg/descgen/internal/types"
	"github.com/celestiaorg/descgen/pkg/api/v1/client/mock"
)

func estimatedJob(id string, cost float64, tokens int64) types.Job {
	return types.Job{
		ID:                   id,
		Status:               types.JobStatusProcessing,
		TotalCostEstimate:    &cost,
		EstimatedTokensTotal: &tokens,
	}
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("poller did not finish")
	}
}

// The estimate never appears: three attempts, a timeout, and no fourth fetch.
func TestCost_TimesOutAfterMaxAttempts(t *testing.T) {
	mockClient := &mock.MockClient{
		GetJobFn: scriptedStatuses(types.JobStatusProcessing),
	}
	p := NewCost(mockClient, "job-1", CostOptions{Interval: fastInterval, MaxAttempts: 3})
	p.Start(context.Background())
	waitDone(t, p.Done())

	snap := p.Snapshot()
	assert.True(t, snap.TimedOut)
	assert.False(t, snap.Resolved)
	assert.Equal(t, 3, snap.Attempts)
	assert.ErrorIs(t, snap.Err, ErrEstimationTimedOut)
	assert.Equal(t, StateTerminal, snap.State)

	time.Sleep(10 * fastInterval)
	assert.Equal(t, 3, mockClient.GetJobCount())
}

func TestCost_ResolvesWhenEstimateAppears(t *testing.T) {
	var calls int32
	mockClient := &mock.MockClient{
		GetJobFn: func(_ context.Context, id string) (types.Job, error) {
			if atomic.AddInt32(&calls, 1) < 3 {
				return types.Job{ID: id, Status: types.JobStatusPending}, nil
			}
			return estimatedJob(id, 1.5, 4200), nil
		},
	}
	p := NewCost(mockClient, "job-1", CostOptions{Interval: fastInterval, MaxAttempts: 10})

	var updates int32
	p.OnUpdate(func(CostSnapshot) { atomic.AddInt32(&updates, 1) })
	p.Start(context.Background())
	waitDone(t, p.Done())

	snap := p.Snapshot()
	assert.True(t, snap.Resolved)
	assert.False(t, snap.TimedOut)
	assert.NoError(t, snap.Err)
	assert.Equal(t, 3, snap.Attempts)
	cost, ok := snap.TotalCostEstimate()
	require.True(t, ok)
	assert.InDelta(t, 1.5, cost, 1e-9)
	assert.Equal(t, int64(4200), *snap.Job.EstimatedTokensTotal)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&updates) == 3 }, waitFor, tick)

	time.Sleep(10 * fastInterval)
	assert.Equal(t, 3, mockClient.GetJobCount())
}

func TestCost_SnapshotIsIsolated(t *testing.T) {
	mockClient := &mock.MockClient{
		GetJobFn: func(_ context.Context, id string) (types.Job, error) {
			return estimatedJob(id, 1.5, 4200), nil
		},
	}
	p := NewCost(mockClient, "job-1", CostOptions{Interval: fastInterval, MaxAttempts: 3})
	p.Start(context.Background())
	waitDone(t, p.Done())

	snap := p.Snapshot()
	require.NotNil(t, snap.Job)
	*snap.Job.TotalCostEstimate = 42
	*snap.Job.EstimatedTokensTotal = 42

	cost, ok := p.Snapshot().TotalCostEstimate()
	require.True(t, ok)
	assert.InDelta(t, 1.5, cost, 1e-9)
	assert.Equal(t, int64(4200), *p.Snapshot().Job.EstimatedTokensTotal)
}

// A known job that already carries the estimate resolves without any fetch.
func TestCost_InitialEstimateSkipsNetwork(t *testing.T) {
	mockClient := &mock.MockClient{}
	initial := estimatedJob("job-1", 0.8, 1000)
	p := NewCost(mockClient, "job-1", CostOptions{Interval: fastInterval, Initial: &initial})

	var updates int32
	p.OnUpdate(func(CostSnapshot) { atomic.AddInt32(&updates, 1) })
	p.Start(context.Background())
	waitDone(t, p.Done())

	snap := p.Snapshot()
	assert.True(t, snap.Resolved)
	assert.Zero(t, snap.Attempts)
	assert.Zero(t, mockClient.GetJobCount())
	assert.Equal(t, int32(1), atomic.LoadInt32(&updates))

	// The caller's value is copied
	*initial.TotalCostEstimate = 99
	cost, _ := p.Snapshot().TotalCostEstimate()
	assert.InDelta(t, 0.8, cost, 1e-9)
}

func TestCost_InitialWithoutEstimatePolls(t *testing.T) {
	mockClient := &mock.MockClient{
		GetJobFn: func(_ context.Context, id string) (types.Job, error) {
			return estimatedJob(id, 2, 10), nil
		},
	}
	initial := types.Job{ID: "job-1", Status: types.JobStatusPending}
	p := NewCost(mockClient, "job-1", CostOptions{Interval: fastInterval, Initial: &initial})
	p.Start(context.Background())
	waitDone(t, p.Done())

	assert.Equal(t, 1, mockClient.GetJobCount())
	assert.True(t, p.Snapshot().Resolved)
}

// Failed fetches count as attempts and are superseded by later results.
func TestCost_FailuresCountAsAttempts(t *testing.T) {
	boom := errors.New("connection refused")
	mockClient := &mock.MockClient{
		GetJobFn: func(_ context.Context, _ string) (types.Job, error) {
			return types.Job{}, boom
		},
	}
	p := NewCost(mockClient, "job-1", CostOptions{Interval: fastInterval, MaxAttempts: 2})

	var mu sync.Mutex
	var errs []error
	p.OnUpdate(func(s CostSnapshot) {
		mu.Lock()
		defer mu.Unlock()
		errs = append(errs, s.Err)
	})
	p.Start(context.Background())
	waitDone(t, p.Done())

	snap := p.Snapshot()
	assert.Equal(t, 2, snap.Attempts)
	assert.True(t, snap.TimedOut)
	assert.ErrorIs(t, snap.Err, ErrEstimationTimedOut)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(errs) == 2
	}, waitFor, tick)
	mu.Lock()
	defer mu.Unlock()
	assert.ErrorIs(t, errs[0], boom)
	assert.ErrorIs(t, errs[1], ErrEstimationTimedOut)
}

func TestCost_SetEnabled(t *testing.T) {
	mockClient := &mock.MockClient{
		GetJobFn: scriptedStatuses(types.JobStatusProcessing),
	}
	p := NewCost(mockClient, "job-1", CostOptions{Interval: fastInterval, MaxAttempts: 3, Disabled: true})

	p.Start(context.Background())
	time.Sleep(5 * fastInterval)
	assert.Zero(t, mockClient.GetJobCount(), "a disabled poller does not fetch")
	assert.Equal(t, StateIdle, p.State())

	p.SetEnabled(true)
	waitDone(t, p.Done())
	assert.Equal(t, 3, p.Snapshot().Attempts)

	p.SetEnabled(false)
	p.SetEnabled(true)
	require.Eventually(t, func() bool {
		s := p.Snapshot()
		return s.State == StateTerminal && s.Attempts == 3 && mockClient.GetJobCount() == 6
	}, waitFor, tick, "re-enabling starts a fresh lifecycle")
}

func TestCost_DisableStopsPolling(t *testing.T) {
	mockClient := &mock.MockClient{
		GetJobFn: scriptedStatuses(types.JobStatusProcessing),
	}
	p := NewCost(mockClient, "job-1", CostOptions{Interval: fastInterval, MaxAttempts: 1000})
	p.Start(context.Background())
	require.Eventually(t, func() bool { return mockClient.GetJobCount() >= 2 }, waitFor, tick)

	p.SetEnabled(false)
	after := mockClient.GetJobCount()
	time.Sleep(10 * fastInterval)
	assert.LessOrEqual(t, mockClient.GetJobCount(), after+1)

	snap := p.Snapshot()
	assert.False(t, snap.Enabled)
	assert.Equal(t, StateStopped, snap.State)
	assert.False(t, snap.TimedOut)
}

func TestCost_DisabledChannel(t *testing.T) {
	isClosed := func(ch <-chan struct{}) bool {
		select {
		case <-ch:
			return true
		default:
			return false
		}
	}
	mockClient := &mock.MockClient{
		GetJobFn: scriptedStatuses(types.JobStatusProcessing),
	}

	off := NewCost(mockClient, "job-1", CostOptions{Interval: longInterval, Disabled: true})
	assert.True(t, isClosed(off.Disabled()))

	p := NewCost(mockClient, "job-2", CostOptions{Interval: longInterval, MaxAttempts: 3})
	assert.False(t, isClosed(p.Disabled()))
	p.Start(context.Background())
	defer p.Stop()

	disabled := p.Disabled()
	p.SetEnabled(false)
	assert.True(t, isClosed(disabled), "a channel taken before disabling is released")
	assert.True(t, isClosed(p.Disabled()))

	p.SetEnabled(true)
	assert.False(t, isClosed(p.Disabled()))
}

// Progress and cost pollers of the same job keep separate timers and state.
func TestPollersAreIndependent(t *testing.T) {
	mockClient := &mock.MockClient{
		GetJobFn: scriptedStatuses(types.JobStatusProcessing),
	}
	progress := NewProgress(mockClient, "job-1", ProgressOptions{Interval: fastInterval})
	cost := NewCost(mockClient, "job-1", CostOptions{Interval: fastInterval, MaxAttempts: 2})

	progress.Start(context.Background())
	cost.Start(context.Background())
	waitDone(t, cost.Done())

	assert.Equal(t, StateTerminal, cost.State())
	assert.True(t, progress.State().Running(), "cost timeout does not stop progress")

	progress.Stop()
	assert.Equal(t, StateStopped, progress.State())
	assert.Equal(t, 2, cost.Snapshot().Attempts)
}
