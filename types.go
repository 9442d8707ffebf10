package xrelay

import (
	"time"
)

// EventType enumerates lifecycle events for the Observer pattern.
type EventType string

const (
	RoutineStart  EventType = "routine_start"
	RoutineDone   EventType = "routine_done"
	RoutineFailed EventType = "routine_failed"
	RoutinePanic  EventType = "routine_panic"
	Connect       EventType = "connect"
	Deliver       EventType = "deliver"
	Disconnect    EventType = "disconnect"
	RouteError    EventType = "route_error"
)

// Event carries telemetry for observers. Identities are rendered with %v.
type Event struct {
	Type        EventType
	RunID       string
	Routine     string
	Index       int
	Source      string
	Destination string
	At          time.Time
	Duration    time.Duration
	Err         error

	// Internal: attached for async dispatch
	observers []Observer
}

// PoolStats returns telemetry about the observer pool.
type PoolStats struct {
	Dropped      uint64 // Events dropped due to full buffer
	Processed    uint64 // Events successfully processed
	ActiveEvents int    // Current queue depth
	Workers      int    // Number of dispatch goroutines
	BufferSize   int    // Channel capacity
}

// ManagerStats is a snapshot of a Manager's counters.
type ManagerStats struct {
	Launched  uint64
	Succeeded uint64
	Failed    uint64
	Panicked  uint64
}

// MediatorStats is a snapshot of a Mediator's counters.
type MediatorStats struct {
	Connected    uint64
	Delivered    uint64
	Failed       uint64
	Disconnected uint64
}
