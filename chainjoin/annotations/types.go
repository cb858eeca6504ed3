// Package annotations provides a low-overhead event system for tracking
// chain execution: relation loading, index builds, per-stage counters and
// query completion.
package annotations

import (
	"sync"
	"time"
)

// Event name constants following hierarchical naming pattern
const (
	// Query lifecycle
	QueryInvoked  = "query/invoked"
	QueryCompiled = "query/compiled"
	QueryComplete = "query/completed"

	// Relation operations
	RelationLoaded  = "relation/loaded"
	RelationIndexed = "relation/indexed"

	// Stage execution
	StageComplete = "stage/complete"

	// Parallel driving scan
	BatchComplete = "batch/complete"

	// Errors
	ErrorInput         = "error/input"
	ErrorConfiguration = "error/configuration"
)

// Event represents a single annotation event during query execution.
type Event struct {
	Name    string                 // Event name using hierarchical constants above
	Start   time.Time              // Start timestamp
	End     time.Time              // End timestamp
	Latency time.Duration          // Duration (End - Start)
	Data    map[string]interface{} // Event-specific data
}

// Handler processes annotation events as they occur.
type Handler func(event Event)

// Collector accumulates events during query execution. A nil *Collector
// is valid and records nothing.
type Collector struct {
	enabled bool
	handler Handler
	events  []Event
	mu      sync.Mutex
}

// NewCollector creates a new annotation collector. Events are recorded
// even without a handler so callers can inspect them afterwards.
func NewCollector(handler Handler) *Collector {
	return &Collector{
		enabled: true,
		handler: handler,
		events:  make([]Event, 0, 32),
	}
}

// Enabled reports whether events are being recorded
func (c *Collector) Enabled() bool {
	return c != nil && c.enabled
}

// Add records a new event.
// Thread-safe for concurrent access.
func (c *Collector) Add(event Event) {
	if !c.Enabled() {
		return
	}

	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()

	// Call handler outside the lock to avoid deadlocks
	if c.handler != nil {
		c.handler(event)
	}
}

// AddTiming records an event that started at start and ends now.
func (c *Collector) AddTiming(name string, start time.Time, data map[string]interface{}) {
	if !c.Enabled() {
		return
	}

	end := time.Now()
	c.Add(Event{
		Name:    name,
		Start:   start,
		End:     end,
		Latency: end.Sub(start),
		Data:    data,
	})
}

// Events returns a copy of all collected events.
func (c *Collector) Events() []Event {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	eventsCopy := make([]Event, len(c.events))
	copy(eventsCopy, c.events)
	return eventsCopy
}

// Find returns the collected events with the given name
func (c *Collector) Find(name string) []Event {
	var out []Event
	for _, e := range c.Events() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// Reset clears the collector for reuse.
func (c *Collector) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = c.events[:0]
}
