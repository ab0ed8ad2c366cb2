// Package events provides job lifecycle event handling
package events

import (
	"context"
	"sync"
	"time"

	"github.com/celestiaorg/descgen/internal/logger"
	"github.com/celestiaorg/descgen/internal/types"
)

// EventType represents the type of job lifecycle event
type EventType string

const (
	// EventJobUpdated is emitted after every applied progress cycle
	EventJobUpdated EventType = "job_updated"
	// EventJobTerminal is emitted once when the job reaches a terminal status
	EventJobTerminal EventType = "job_terminal"
	// EventJobPollFailed is emitted when a progress cycle fails
	EventJobPollFailed EventType = "job_poll_failed"
	// EventCostResolved is emitted once the cost estimate is known
	EventCostResolved EventType = "cost_resolved"
	// EventCostTimedOut is emitted when the cost estimate never arrived
	EventCostTimedOut EventType = "cost_timed_out"
	// EventCostPollFailed is emitted when a cost attempt fails
	EventCostPollFailed EventType = "cost_poll_failed"
	// EventChannelSize is the default buffer size for the event channel
	EventChannelSize = 100
)

// Event represents a job lifecycle event
type Event struct {
	Type    EventType          // The type of event
	JobID   string             // The job ID
	Job     *types.Job         // The last observed job, if any
	Summary *types.ItemSummary // The item summary for progress events
	Err     error              // The failure for *_failed and timeout events
	Time    time.Time          // When the event was published
}

// Handler is a function that handles an event
type Handler func(context.Context, Event) error

// Bus dispatches events to subscribers in publish order. Each tracker owns its
// own bus.
type Bus struct {
	handlersMu sync.RWMutex
	handlers   map[EventType][]Handler
	eventChan  chan Event
}

// NewBus creates a bus buffering up to size events
func NewBus(size int) *Bus {
	if size <= 0 {
		size = EventChannelSize
	}
	return &Bus{
		handlers:  make(map[EventType][]Handler),
		eventChan: make(chan Event, size),
	}
}

// Subscribe registers a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.handlersMu.Lock()
	defer b.handlersMu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	logger.Debugf("📝 Registered handler for event type: %s", eventType)
}

// SubscribeAll registers a handler for every event type
func (b *Bus) SubscribeAll(handler Handler) {
	for _, t := range []EventType{
		EventJobUpdated, EventJobTerminal, EventJobPollFailed,
		EventCostResolved, EventCostTimedOut, EventCostPollFailed,
	} {
		b.Subscribe(t, handler)
	}
}

// Publish queues an event. It never blocks; when the buffer is full the event
// is dropped.
func (b *Bus) Publish(event Event) bool {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}
	select {
	case b.eventChan <- event:
		logger.Debugf("📢 Published event: %s (Job: %s)", event.Type, event.JobID)
		return true
	default:
		logger.Warnf("Event buffer full, dropping %s for job %s", event.Type, event.JobID)
		return false
	}
}

// Start starts the event processing loop
func (b *Bus) Start(ctx context.Context) {
	go b.processEvents(ctx)
	logger.Debug("🎯 Started event processing loop")
}

// processEvents runs handlers sequentially so subscribers observe events in
// the order they were published
func (b *Bus) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			logger.Debug("🛑 Stopping event processing loop")
			return
		case event := <-b.eventChan:
			b.handlersMu.RLock()
			eventHandlers := append([]Handler(nil), b.handlers[event.Type]...)
			b.handlersMu.RUnlock()

			for _, h := range eventHandlers {
				if err := h(ctx, event); err != nil {
					logger.Errorf("❌ Failed to handle event %s for job %s: %v", event.Type, event.JobID, err)
				}
			}
		}
	}
}
