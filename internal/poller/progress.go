package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/celestiaorg/descgen/internal/logger"
	"github.com/celestiaorg/descgen/internal/types"
	"github.com/celestiaorg/descgen/pkg/api/v1/client"
)

// ErrAlreadyTerminal is returned when cancelling a job whose last observed
// status is terminal
var ErrAlreadyTerminal = errors.New("job is already in a terminal state")

// CancelError wraps a rejected cancel request
type CancelError struct {
	JobID string
	Err   error
}

func (e *CancelError) Error() string {
	return fmt.Sprintf("cancel job %s: %v", e.JobID, e.Err)
}

func (e *CancelError) Unwrap() error {
	return e.Err
}

// ProgressOptions configures a progress poller
type ProgressOptions struct {
	// Interval is the delay between cycles, DefaultInterval when zero
	Interval time.Duration
}

// ProgressSnapshot is a consistent copy of the progress poller's view
type ProgressSnapshot struct {
	JobID     string            `json:"jobId"`
	State     State             `json:"-"`
	Job       *types.Job        `json:"job,omitempty"`
	Items     []types.JobItem   `json:"items"`
	Summary   types.ItemSummary `json:"summary"`
	Err       error             `json:"-"`
	Cycles    int               `json:"cycles"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Terminal reports whether the last observed job status is terminal
func (s ProgressSnapshot) Terminal() bool {
	return s.Job != nil && s.Job.Status.IsTerminal()
}

// Progress polls a job and its items until the job reaches a terminal status
type Progress struct {
	client client.Client
	jobID  string
	d      *driver

	// guarded by d.mu
	job       *types.Job
	items     []types.JobItem
	err       error
	cycles    int
	updatedAt time.Time

	observersMu sync.RWMutex
	observers   []func(ProgressSnapshot)
}

// NewProgress creates a progress poller for jobID. It does nothing until Start.
func NewProgress(c client.Client, jobID string, opts ProgressOptions) *Progress {
	p := &Progress{
		client: c,
		jobID:  jobID,
	}
	p.d = newDriver(opts.Interval, p.fetch, p.emit)
	return p
}

// JobID returns the job this poller is bound to
func (p *Progress) JobID() string {
	return p.jobID
}

// OnUpdate registers fn to be called after every applied cycle
func (p *Progress) OnUpdate(fn func(ProgressSnapshot)) {
	p.observersMu.Lock()
	defer p.observersMu.Unlock()
	p.observers = append(p.observers, fn)
}

// Start fetches immediately and then every interval. Calling Start on a
// running poller is a no-op.
func (p *Progress) Start(ctx context.Context) {
	if p.d.start(ctx) {
		logger.DebugWithFields("Progress polling started", map[string]interface{}{
			"job_id":   p.jobID,
			"interval": p.d.interval.String(),
		})
	}
}

// Stop cancels the pending cycle. An in-flight response is discarded.
func (p *Progress) Stop() {
	p.d.stop()
}

// Refresh requests an out-of-cycle fetch. It returns false when the poller is
// not running.
func (p *Progress) Refresh() bool {
	return p.d.triggerRefresh()
}

// Done is closed once a terminal status has been observed
func (p *Progress) Done() <-chan struct{} {
	return p.d.doneChan()
}

// State returns the current lifecycle state
func (p *Progress) State() State {
	return p.d.currentState()
}

// Cancel sends one cancel request for the job. The new status is only learned
// from the server, through the fetch that follows a successful request. When
// the poller is not running that fetch happens before Cancel returns.
func (p *Progress) Cancel(ctx context.Context) error {
	p.d.mu.Lock()
	terminal := p.job != nil && p.job.Status.IsTerminal()
	p.d.mu.Unlock()
	if terminal {
		return ErrAlreadyTerminal
	}

	if err := p.client.CancelJob(ctx, p.jobID); err != nil {
		logger.WarnWithFields("Cancel request failed", map[string]interface{}{
			"job_id": p.jobID,
			"error":  err.Error(),
		})
		return &CancelError{JobID: p.jobID, Err: err}
	}

	logger.InfoWithFields("Cancel request accepted", map[string]interface{}{"job_id": p.jobID})
	if !p.Refresh() {
		p.d.fetchOnce(ctx)
	}
	return nil
}

// Snapshot returns the current view
func (p *Progress) Snapshot() ProgressSnapshot {
	p.d.mu.Lock()
	defer p.d.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Progress) snapshotLocked() ProgressSnapshot {
	s := ProgressSnapshot{
		JobID:     p.jobID,
		State:     p.d.state,
		Err:       p.err,
		Cycles:    p.cycles,
		UpdatedAt: p.updatedAt,
		Items:     types.CloneItems(p.items),
	}
	if s.Items == nil {
		s.Items = []types.JobItem{}
	}
	if p.job != nil {
		job := p.job.Clone()
		s.Job = &job
	}
	s.Summary = types.SummarizeItems(s.Items)
	return s
}

func (p *Progress) fetch(ctx context.Context) func() bool {
	var (
		job   types.Job
		items []types.JobItem
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if job, err = p.client.GetJob(gctx, p.jobID); err != nil {
			return fmt.Errorf("get job: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if items, err = p.client.ListJobItems(gctx, p.jobID); err != nil {
			return fmt.Errorf("list job items: %w", err)
		}
		return nil
	})
	err := g.Wait()

	return func() bool {
		p.cycles++
		p.updatedAt = time.Now()

		// A partial result is never applied
		if err != nil {
			p.err = err
			logger.WarnWithFields("Progress poll failed", map[string]interface{}{
				"job_id": p.jobID,
				"cycle":  p.cycles,
				"error":  err.Error(),
			})
			return false
		}

		p.err = nil
		job = job.Clone()
		p.job = &job
		p.items = types.CloneItems(items)
		logger.DebugWithFields("Progress poll applied", map[string]interface{}{
			"job_id":   p.jobID,
			"cycle":    p.cycles,
			"status":   job.Status,
			"progress": job.Progress,
			"items":    len(items),
		})
		return job.Status.IsTerminal()
	}
}

func (p *Progress) emit() {
	p.observersMu.RLock()
	observers := append([]func(ProgressSnapshot){}, p.observers...)
	p.observersMu.RUnlock()
	if len(observers) == 0 {
		return
	}

	snap := p.Snapshot()
	for _, fn := range observers {
		fn(snap)
	}
}
