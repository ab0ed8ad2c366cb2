package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/celestiaorg/descgen/internal/logger"
	"github.com/celestiaorg/descgen/internal/types"
	"github.com/celestiaorg/descgen/pkg/api/v1/client"
)

// DefaultMaxAttempts bounds the number of cost estimation fetches
const DefaultMaxAttempts = 30

// ErrEstimationTimedOut is reported when the attempt bound is reached before
// the estimate became available
var ErrEstimationTimedOut = errors.New("cost estimation timed out")

// CostOptions configures a cost estimation poller
type CostOptions struct {
	// Interval is the delay between attempts, DefaultInterval when zero
	Interval time.Duration
	// MaxAttempts bounds the number of fetches, DefaultMaxAttempts when zero
	MaxAttempts int
	// Disabled keeps the poller from fetching until SetEnabled(true)
	Disabled bool
	// Initial is a job value already known to the caller
	Initial *types.Job
}

// CostSnapshot is a consistent copy of the cost poller's view
type CostSnapshot struct {
	JobID       string     `json:"jobId"`
	State       State      `json:"-"`
	Enabled     bool       `json:"enabled"`
	Job         *types.Job `json:"job,omitempty"`
	Resolved    bool       `json:"resolved"`
	TimedOut    bool       `json:"timedOut"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"maxAttempts"`
	Err         error      `json:"-"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// TotalCostEstimate returns the estimate once resolved
func (s CostSnapshot) TotalCostEstimate() (float64, bool) {
	if !s.Resolved || s.Job == nil || s.Job.TotalCostEstimate == nil {
		return 0, false
	}
	return *s.Job.TotalCostEstimate, true
}

// Cost polls a job until both estimate fields are present or the attempt
// bound is reached. It shares no state with a Progress poller of the same job.
type Cost struct {
	client      client.Client
	jobID       string
	maxAttempts int
	d           *driver

	// guarded by d.mu
	enabled   bool
	off       chan struct{}
	parent    context.Context
	job       *types.Job
	resolved  bool
	timedOut  bool
	attempts  int
	err       error
	updatedAt time.Time

	observersMu sync.RWMutex
	observers   []func(CostSnapshot)
}

// NewCost creates a cost estimation poller for jobID
func NewCost(c client.Client, jobID string, opts CostOptions) *Cost {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	p := &Cost{
		client:      c,
		jobID:       jobID,
		maxAttempts: maxAttempts,
		enabled:     !opts.Disabled,
		off:         make(chan struct{}),
	}
	if opts.Disabled {
		close(p.off)
	}
	if opts.Initial != nil {
		job := opts.Initial.Clone()
		p.job = &job
	}
	p.d = newDriver(opts.Interval, p.fetch, p.emit)
	return p
}

// JobID returns the job this poller is bound to
func (p *Cost) JobID() string {
	return p.jobID
}

// OnUpdate registers fn to be called after every attempt and on resolution
func (p *Cost) OnUpdate(fn func(CostSnapshot)) {
	p.observersMu.Lock()
	defer p.observersMu.Unlock()
	p.observers = append(p.observers, fn)
}

// Start begins a new lifecycle with the attempt counter reset. A known job
// that already carries the estimate resolves without any fetch.
func (p *Cost) Start(ctx context.Context) {
	p.d.mu.Lock()
	p.parent = ctx
	if !p.enabled || p.d.state.Running() {
		p.d.mu.Unlock()
		return
	}

	p.attempts = 0
	p.timedOut = false
	p.err = nil

	if p.job.CostEstimated() {
		p.resolved = true
		p.d.gen++
		p.d.finishLocked()
		p.d.mu.Unlock()
		logger.DebugWithFields("Cost estimate already known", map[string]interface{}{"job_id": p.jobID})
		p.emit()
		return
	}

	p.resolved = false
	p.d.startLocked(ctx)
	p.d.mu.Unlock()

	logger.DebugWithFields("Cost polling started", map[string]interface{}{
		"job_id":       p.jobID,
		"interval":     p.d.interval.String(),
		"max_attempts": p.maxAttempts,
	})
}

// Stop cancels the pending attempt. An in-flight response is discarded.
func (p *Cost) Stop() {
	p.d.stop()
}

// SetEnabled turns polling off and on. Enabling starts a fresh lifecycle.
func (p *Cost) SetEnabled(enabled bool) {
	p.d.mu.Lock()
	if p.enabled == enabled {
		p.d.mu.Unlock()
		return
	}
	p.enabled = enabled
	parent := p.parent
	if !enabled {
		p.d.stopLocked()
		close(p.off)
		p.d.mu.Unlock()
		return
	}
	p.off = make(chan struct{})
	p.d.mu.Unlock()

	p.Start(parent)
}

// Done is closed once the estimate resolved or the attempt bound was reached
func (p *Cost) Done() <-chan struct{} {
	return p.d.doneChan()
}

// Disabled is closed while estimation is turned off
func (p *Cost) Disabled() <-chan struct{} {
	p.d.mu.Lock()
	defer p.d.mu.Unlock()
	return p.off
}

// State returns the current lifecycle state
func (p *Cost) State() State {
	return p.d.currentState()
}

// Snapshot returns the current view
func (p *Cost) Snapshot() CostSnapshot {
	p.d.mu.Lock()
	defer p.d.mu.Unlock()

	s := CostSnapshot{
		JobID:       p.jobID,
		State:       p.d.state,
		Enabled:     p.enabled,
		Resolved:    p.resolved,
		TimedOut:    p.timedOut,
		Attempts:    p.attempts,
		MaxAttempts: p.maxAttempts,
		Err:         p.err,
		UpdatedAt:   p.updatedAt,
	}
	if p.job != nil {
		job := p.job.Clone()
		s.Job = &job
	}
	return s
}

func (p *Cost) fetch(ctx context.Context) func() bool {
	job, err := p.client.GetJob(ctx, p.jobID)

	return func() bool {
		p.attempts++
		p.updatedAt = time.Now()
		fields := map[string]interface{}{
			"job_id":  p.jobID,
			"attempt": p.attempts,
		}

		if err != nil {
			p.err = err
			fields["error"] = err.Error()
			logger.WarnWithFields("Cost poll failed", fields)
		} else {
			p.err = nil
			job = job.Clone()
			p.job = &job
			if job.CostEstimated() {
				p.resolved = true
				fields["total_cost_estimate"] = *job.TotalCostEstimate
				fields["estimated_tokens_total"] = *job.EstimatedTokensTotal
				logger.InfoWithFields("Cost estimate resolved", fields)
				return true
			}
		}

		if p.attempts >= p.maxAttempts {
			p.timedOut = true
			p.err = ErrEstimationTimedOut
			logger.WarnWithFields("Cost estimation timed out", fields)
			return true
		}
		return false
	}
}

func (p *Cost) emit() {
	p.observersMu.RLock()
	observers := append([]func(CostSnapshot){}, p.observers...)
	p.observersMu.RUnlock()
	if len(observers) == 0 {
		return
	}

	snap := p.Snapshot()
	for _, fn := range observers {
		fn(snap)
	}
}
