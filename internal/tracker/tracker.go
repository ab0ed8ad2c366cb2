// Package tracker binds a progress poller and a cost estimation poller to the
// job currently being watched and publishes their updates as events.
package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/celestiaorg/descgen/internal/events"
	"github.com/celestiaorg/descgen/internal/logger"
	"github.com/celestiaorg/descgen/internal/poller"
	"github.com/celestiaorg/descgen/internal/types"
	"github.com/celestiaorg/descgen/pkg/api/v1/client"
)

// ErrNotAttached is returned by operations that need a job when none is attached
var ErrNotAttached = errors.New("no job attached")

// Options configures the pollers created by Attach
type Options struct {
	PollInterval    time.Duration
	CostInterval    time.Duration
	CostMaxAttempts int
	CostDisabled    bool
	EventBuffer     int
}

// Snapshot is the combined view of both pollers
type Snapshot struct {
	JobID    string                  `json:"jobId"`
	Progress poller.ProgressSnapshot `json:"progress"`
	Cost     poller.CostSnapshot     `json:"cost"`
}

// Tracker watches at most one job at a time
type Tracker struct {
	client client.Client
	opts   Options
	bus    *events.Bus
	cancel context.CancelFunc

	mu       sync.Mutex
	progress *poller.Progress
	cost     *poller.Cost

	// activeMu is held while publishing, so no event of a detached job is
	// published once Detach returns
	activeMu sync.RWMutex
	active   *poller.Progress
}

// New creates a tracker and starts its event bus
func New(c client.Client, opts Options) *Tracker {
	ctx, cancel := context.WithCancel(context.Background())
	bus := events.NewBus(opts.EventBuffer)
	bus.Start(ctx)

	return &Tracker{
		client: c,
		opts:   opts,
		bus:    bus,
		cancel: cancel,
	}
}

// Bus returns the bus lifecycle events are published on
func (t *Tracker) Bus() *events.Bus {
	return t.bus
}

// Attach starts watching jobID. Pollers bound to a previous job are stopped
// first; attaching the job already watched is a no-op.
func (t *Tracker) Attach(ctx context.Context, jobID string, initial *types.Job) error {
	if jobID == "" {
		return errors.New("job id is required")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.progress != nil && t.progress.JobID() == jobID {
		return nil
	}
	t.detachLocked()

	progress := poller.NewProgress(t.client, jobID, poller.ProgressOptions{
		Interval: t.opts.PollInterval,
	})
	cost := poller.NewCost(t.client, jobID, poller.CostOptions{
		Interval:    t.opts.CostInterval,
		MaxAttempts: t.opts.CostMaxAttempts,
		Disabled:    t.opts.CostDisabled,
		Initial:     initial,
	})
	progress.OnUpdate(func(s poller.ProgressSnapshot) {
		t.activeMu.RLock()
		defer t.activeMu.RUnlock()
		if t.active == progress {
			t.publishProgress(s)
		}
	})
	cost.OnUpdate(func(s poller.CostSnapshot) {
		t.activeMu.RLock()
		defer t.activeMu.RUnlock()
		if t.active == progress {
			t.publishCost(s)
		}
	})

	t.progress, t.cost = progress, cost
	t.setActive(progress)
	progress.Start(ctx)
	cost.Start(ctx)

	logger.InfoWithFields("Tracking job", map[string]interface{}{"job_id": jobID})
	return nil
}

// Detach stops both pollers and forgets the job
func (t *Tracker) Detach() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.detachLocked()
}

func (t *Tracker) detachLocked() {
	if t.progress == nil {
		return
	}
	logger.DebugWithFields("Stopped tracking job", map[string]interface{}{"job_id": t.progress.JobID()})
	t.progress.Stop()
	t.cost.Stop()
	t.progress, t.cost = nil, nil
	t.setActive(nil)
}

func (t *Tracker) setActive(p *poller.Progress) {
	t.activeMu.Lock()
	defer t.activeMu.Unlock()
	t.active = p
}

// JobID returns the attached job, or "" when none is
func (t *Tracker) JobID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.progress == nil {
		return ""
	}
	return t.progress.JobID()
}

func (t *Tracker) pollers() (*poller.Progress, *poller.Cost, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.progress == nil {
		return nil, nil, ErrNotAttached
	}
	return t.progress, t.cost, nil
}

// Cancel requests cancellation of the attached job. It returns once the
// server accepted the request; use Wait to observe the terminal status.
func (t *Tracker) Cancel(ctx context.Context) error {
	progress, _, err := t.pollers()
	if err != nil {
		return err
	}
	return progress.Cancel(ctx)
}

// Refresh requests an out-of-cycle progress fetch
func (t *Tracker) Refresh() bool {
	progress, _, err := t.pollers()
	if err != nil {
		return false
	}
	return progress.Refresh()
}

// SetCostEnabled turns cost estimation polling off and on
func (t *Tracker) SetCostEnabled(enabled bool) error {
	_, cost, err := t.pollers()
	if err != nil {
		return err
	}
	cost.SetEnabled(enabled)
	return nil
}

// Snapshot returns the combined view of the attached job
func (t *Tracker) Snapshot() (Snapshot, error) {
	progress, cost, err := t.pollers()
	if err != nil {
		return Snapshot{}, err
	}
	return snapshotOf(progress, cost), nil
}

func snapshotOf(progress *poller.Progress, cost *poller.Cost) Snapshot {
	return Snapshot{
		JobID:    progress.JobID(),
		Progress: progress.Snapshot(),
		Cost:     cost.Snapshot(),
	}
}

// Wait blocks until the job is terminal and the cost estimate resolved or
// timed out. A disabled cost poller is not waited for, including one disabled
// while Wait is blocked.
func (t *Tracker) Wait(ctx context.Context) (Snapshot, error) {
	progress, cost, err := t.pollers()
	if err != nil {
		return Snapshot{}, err
	}

	select {
	case <-progress.Done():
	case <-ctx.Done():
		return snapshotOf(progress, cost), ctx.Err()
	}

	select {
	case <-cost.Done():
	case <-cost.Disabled():
	case <-ctx.Done():
		return snapshotOf(progress, cost), ctx.Err()
	}

	return snapshotOf(progress, cost), nil
}

// Close detaches the job and stops the event bus
func (t *Tracker) Close() {
	t.Detach()
	t.cancel()
}

func (t *Tracker) publishProgress(s poller.ProgressSnapshot) {
	event := events.Event{
		Type:    events.EventJobUpdated,
		JobID:   s.JobID,
		Job:     s.Job,
		Summary: &s.Summary,
	}
	if s.Err != nil {
		event.Type = events.EventJobPollFailed
		event.Err = s.Err
	}
	t.bus.Publish(event)

	if s.State == poller.StateTerminal {
		event.Type = events.EventJobTerminal
		t.bus.Publish(event)
	}
}

func (t *Tracker) publishCost(s poller.CostSnapshot) {
	event := events.Event{
		JobID: s.JobID,
		Job:   s.Job,
		Err:   s.Err,
	}
	switch {
	case s.Resolved:
		event.Type = events.EventCostResolved
	case s.TimedOut:
		event.Type = events.EventCostTimedOut
	case s.Err != nil:
		event.Type = events.EventCostPollFailed
	default:
		return
	}
	t.bus.Publish(event)
}
