// Package poller keeps a local view of a server-side job in sync by fetching
// it on a fixed interval until a stop condition holds.
package poller

import (
	"context"
	"sync"
	"time"
)

// DefaultInterval is the delay between two fetch cycles
const DefaultInterval = 2 * time.Second

// State is the lifecycle state of a poller
type State int

// Poller states
const (
	// StateIdle means the poller was never started
	StateIdle State = iota
	// StateFetching means a fetch cycle is in flight
	StateFetching
	// StateWaiting means the next cycle is scheduled
	StateWaiting
	// StateTerminal means the stop condition holds and no cycle will run
	StateTerminal
	// StateStopped means the poller was torn down before reaching its stop condition
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateWaiting:
		return "waiting"
	case StateTerminal:
		return "terminal"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Running reports whether a lifecycle is active
func (s State) Running() bool {
	return s == StateFetching || s == StateWaiting
}

// fetchFunc performs the network part of a cycle. The returned apply func is
// run under the driver lock only if the cycle is still current, and reports
// whether the stop condition now holds.
type fetchFunc func(ctx context.Context) (apply func() bool)

// driver runs strictly sequential fetch cycles. Every Start opens a new
// generation; results of an older generation are discarded.
type driver struct {
	interval time.Duration
	fetch    fetchFunc
	notify   func()

	mu      sync.Mutex
	state   State
	gen     uint64
	cancel  context.CancelFunc
	refresh chan struct{}
	done    chan struct{}
	settled bool
}

func newDriver(interval time.Duration, fetch fetchFunc, notify func()) *driver {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &driver{
		interval: interval,
		fetch:    fetch,
		notify:   notify,
		state:    StateIdle,
		done:     make(chan struct{}),
	}
}

// startLocked opens a new generation and runs its first cycle immediately.
// It returns false when a lifecycle is already running.
func (d *driver) startLocked(parent context.Context) bool {
	if d.state.Running() {
		return false
	}
	if parent == nil {
		parent = context.Background()
	}

	d.gen++
	ctx, cancel := context.WithCancel(parent)
	d.cancel = cancel
	d.refresh = make(chan struct{}, 1)
	if d.settled {
		d.done = make(chan struct{})
		d.settled = false
	}
	d.state = StateFetching

	go d.run(ctx, d.gen, d.refresh)
	return true
}

func (d *driver) start(parent context.Context) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.startLocked(parent)
}

func (d *driver) run(ctx context.Context, gen uint64, refresh <-chan struct{}) {
	for {
		if !d.enter(gen) {
			return
		}

		apply := d.fetch(ctx)

		finished, current := d.apply(gen, apply)
		if !current || !d.emit(gen) {
			return
		}
		if finished {
			return
		}

		timer := time.NewTimer(d.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-refresh:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (d *driver) enter(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen {
		return false
	}
	d.state = StateFetching
	return true
}

func (d *driver) apply(gen uint64, apply func() bool) (finished, current bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen {
		return false, false
	}
	finished = apply()
	if gen != d.gen {
		return false, false
	}
	if finished {
		d.finishLocked()
		return true, true
	}
	d.state = StateWaiting
	return false, true
}

// emit notifies observers unless the generation was stopped after its result
// was applied. It reports whether gen is still current.
func (d *driver) emit(gen uint64) bool {
	d.mu.Lock()
	current := gen == d.gen
	d.mu.Unlock()
	if current {
		d.notify()
	}
	return current
}

// fetchOnce runs a single cycle outside of any lifecycle. It is used when a
// running loop is not available to pick up a refresh request.
func (d *driver) fetchOnce(ctx context.Context) {
	d.mu.Lock()
	gen := d.gen
	d.mu.Unlock()

	apply := d.fetch(ctx)

	d.mu.Lock()
	if gen != d.gen || d.state.Running() {
		d.mu.Unlock()
		return
	}
	if apply() {
		d.finishLocked()
	}
	d.mu.Unlock()
	d.emit(gen)
}

// finishLocked moves to StateTerminal and releases Done waiters
func (d *driver) finishLocked() {
	d.state = StateTerminal
	if !d.settled {
		close(d.done)
		d.settled = true
	}
	if d.cancel != nil {
		d.cancel()
	}
}

// stopLocked invalidates the running generation. A response arriving after
// this point is never applied.
func (d *driver) stopLocked() {
	d.gen++
	if d.cancel != nil {
		d.cancel()
	}
	if d.state != StateTerminal {
		d.state = StateStopped
	}
}

func (d *driver) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

// triggerRefresh asks for an out-of-cycle fetch. Requests made while a fetch
// is in flight collapse into a single fetch right after it.
func (d *driver) triggerRefresh() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.state.Running() {
		return false
	}
	select {
	case d.refresh <- struct{}{}:
	default:
	}
	return true
}

func (d *driver) currentState() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *driver) doneChan() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.done
}
