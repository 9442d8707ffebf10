package xrelay

import (
	"context"
	"strconv"
	"sync"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// ObserverFunc is an Adapter that lets a plain function satisfy Observer.
type ObserverFunc func(e Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

// LoggingObserver is an Adapter that emits lifecycle events via xlog.
type LoggingObserver struct {
	Logger *xlog.Logger
}

func (o LoggingObserver) OnEvent(e Event) {
	if o.Logger == nil {
		return
	}
	ev := o.Logger.With(
		xlog.Str("type", string(e.Type)),
		xlog.Str("run_id", e.RunID),
	)
	switch e.Type {
	case RoutineStart, RoutineDone, RoutineFailed, RoutinePanic:
		ev = ev.With(
			xlog.Str("routine", e.Routine),
			xlog.Str("index", strconv.Itoa(e.Index)),
		)
	default:
		ev = ev.With(
			xlog.Str("source", e.Source),
			xlog.Str("destination", e.Destination),
		)
	}
	if e.Duration > 0 {
		ev = ev.With(xlog.Dur("duration", e.Duration))
	}
	switch e.Type {
	case RoutineFailed, RouteError:
		ev.Warn().Err(e.Err).Msg("xrelay event")
	case RoutinePanic:
		ev.Error().Err(e.Err).Msg("xrelay event")
	default:
		ev.Debug().Msg("xrelay event")
	}
}

// notifier holds the observer set shared by Manager and Mediator.
// Without a pool, observers are called synchronously on the emitting goroutine.
type notifier struct {
	clock       xclock.Clock
	pool        *ObserverPool
	observersMu sync.RWMutex
	observers   []Observer
}

// AddObserver registers an observer (thread-safe).
func (n *notifier) AddObserver(obs Observer) {
	if obs == nil {
		return
	}
	n.observersMu.Lock()
	n.observers = append(n.observers, obs)
	n.observersMu.Unlock()
}

// RemoveObserver removes an observer.
func (n *notifier) RemoveObserver(obs Observer) {
	if obs == nil {
		return
	}
	n.observersMu.Lock()
	defer n.observersMu.Unlock()

	for i, o := range n.observers {
		if sameObserver(o, obs) {
			n.observers = append(n.observers[:i], n.observers[i+1:]...)
			break
		}
	}
}

func (n *notifier) notify(e Event) {
	n.observersMu.RLock()
	if len(n.observers) == 0 {
		n.observersMu.RUnlock()
		return
	}
	observers := make([]Observer, len(n.observers))
	copy(observers, n.observers)
	n.observersMu.RUnlock()

	if e.At.IsZero() && n.clock != nil {
		e.At = n.clock.Now()
	}

	if n.pool != nil {
		n.pool.Notify(e, observers)
		return
	}
	for _, o := range observers {
		safeObserve(o, e)
	}
}

// PoolStats reports the observer pool counters; zero when no pool is configured.
func (n *notifier) PoolStats() PoolStats {
	if n.pool == nil {
		return PoolStats{}
	}
	return n.pool.Stats()
}

func (n *notifier) closePool(ctx context.Context) error {
	if n.pool == nil {
		return nil
	}
	return n.pool.Close(ctx)
}

// sameObserver compares observers without panicking on uncomparable
// dynamic types such as ObserverFunc.
func sameObserver(a, b Observer) (same bool) {
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}

// safeObserve shields the emitter from observer panics.
func safeObserve(o Observer, e Event) {
	if o == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	o.OnEvent(e)
}
