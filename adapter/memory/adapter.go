package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trickstertwo/xrelay"
)

// Config controls the in-memory recorder.
type Config struct {
	// Capacity is the number of most recent events kept (default: 1024).
	Capacity int
	// Types restricts recording to the listed event types (default: all).
	Types []xrelay.EventType
}

// ConfigFromMap converts a generic map to Config with defaults.
func ConfigFromMap(cfg map[string]any) Config {
	getInt := func(k string, d int) int {
		switch v := cfg[k].(type) {
		case int:
			return v
		case int32:
			return int(v)
		case int64:
			return int(v)
		case float64:
			return int(v)
		default:
			return d
		}
	}

	c := Config{Capacity: maxInt(1, getInt("capacity", 1024))}
	switch v := cfg["types"].(type) {
	case []string:
		for _, t := range v {
			c.Types = append(c.Types, xrelay.EventType(t))
		}
	case []xrelay.EventType:
		c.Types = append(c.Types, v...)
	}
	return c
}

// Recorder implements xrelay.Observer by keeping a bounded history of events
// in memory (dev/testing).
type Recorder struct {
	cfg   Config
	allow map[xrelay.EventType]bool

	mu     sync.Mutex
	events []xrelay.Event
	counts map[xrelay.EventType]int
	notify chan struct{}

	evicted atomic.Uint64
}

var _ xrelay.Observer = (*Recorder)(nil)

// NewRecorder creates an empty recorder.
func NewRecorder(cfg Config) *Recorder {
	if cfg.Capacity < 1 {
		cfg.Capacity = 1024
	}
	r := &Recorder{
		cfg:    cfg,
		counts: make(map[xrelay.EventType]int),
		notify: make(chan struct{}),
	}
	if len(cfg.Types) > 0 {
		r.allow = make(map[xrelay.EventType]bool, len(cfg.Types))
		for _, t := range cfg.Types {
			r.allow[t] = true
		}
	}
	return r
}

// OnEvent records e, evicting the oldest event when full.
func (r *Recorder) OnEvent(e xrelay.Event) {
	if r.allow != nil && !r.allow[e.Type] {
		return
	}

	r.mu.Lock()
	if len(r.events) == r.cfg.Capacity {
		r.events = append(r.events[:0], r.events[1:]...)
		r.evicted.Add(1)
	}
	r.events = append(r.events, e)
	r.counts[e.Type]++
	// wake waiters
	close(r.notify)
	r.notify = make(chan struct{})
	r.mu.Unlock()
}

// Events returns a copy of the recorded history, oldest first.
func (r *Recorder) Events() []xrelay.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]xrelay.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many events of type t were recorded since the last Reset,
// including evicted ones.
func (r *Recorder) Count(t xrelay.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[t]
}

// WaitFor blocks until at least n events of type t were recorded or ctx ends.
func (r *Recorder) WaitFor(ctx context.Context, t xrelay.EventType, n int) error {
	for {
		r.mu.Lock()
		if r.counts[t] >= n {
			r.mu.Unlock()
			return nil
		}
		ch := r.notify
		r.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Reset clears history and counters.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.counts = make(map[xrelay.EventType]int)
	r.mu.Unlock()
	r.evicted.Store(0)
}

// Stats returns recorder telemetry.
type Stats struct {
	Recorded int
	Evicted  uint64
	Oldest   time.Time
}

// Stats returns current recorder metrics.
func (r *Recorder) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Stats{Recorded: len(r.events), Evicted: r.evicted.Load()}
	if len(r.events) > 0 {
		s.Oldest = r.events[0].At
	}
	return s
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
