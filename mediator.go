package xrelay

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// Mediator redirects messages between connected identities. It is itself a
// Routine: add it to the Manager after every Connect call.
//
// All deliveries go through one registry mutex that is held across the
// (possibly blocking) channel send. This keeps the registry stable during
// delivery at the cost of serializing every redirect: one slow consumer with a
// full inbound channel stalls routing for everybody until it reads, closes, or
// the run's context ends.
type Mediator[E comparable, M any] struct {
	*notifier

	logger *xlog.Logger
	clock  xclock.Clock
	cfg    MediatorConfig

	mu    sync.Mutex
	sends []*sendTunnel[E, M]
	recvs []*recvTunnel[E, M]

	// frozen is the registry snapshot published by Run; lookups from
	// Connector.Send read it without taking mu.
	frozen  atomic.Pointer[[]*sendTunnel[E, M]]
	running atomic.Bool
	halt    chan struct{}
	metrics mediatorMetrics
}

type mediatorMetrics struct {
	connected    atomic.Uint64
	delivered    atomic.Uint64
	failed       atomic.Uint64
	disconnected atomic.Uint64
}

// NewMediator returns a Mediator with no connections.
func NewMediator[E comparable, M any](opts ...Option) *Mediator[E, M] {
	s := newSettings(opts)
	return &Mediator[E, M]{
		notifier: s.newNotifier(),
		logger:   s.logger,
		clock:    s.clock,
		cfg:      s.mediator,
		halt:     make(chan struct{}),
	}
}

// Name implements Named.
func (m *Mediator[E, M]) Name() string { return "Mediator" }

// Connect registers identity and returns the Connector bound to it.
// It must be called before Run; concurrent calls are safe.
func (m *Mediator[E, M]) Connect(identity E) (*Connector[E, M], error) {
	m.mu.Lock()
	if m.running.Load() {
		m.mu.Unlock()
		return nil, ErrMediatorRunning
	}
	if lookupTunnel(m.sends, identity) != nil {
		m.mu.Unlock()
		return nil, &AlreadyConnectedError[E]{Identity: identity}
	}

	toConnector := make(chan messagePoint[E, M], m.cfg.ChannelCapacity)
	toMediator := make(chan messagePoint[E, M], m.cfg.ChannelCapacity)
	dropped := make(chan struct{})

	m.sends = append(m.sends, &sendTunnel[E, M]{
		destination: identity,
		tx:          toConnector,
		dropped:     dropped,
		alive:       true,
	})
	m.recvs = append(m.recvs, &recvTunnel[E, M]{
		source:  identity,
		index:   len(m.recvs),
		rx:      toMediator,
		dropped: dropped,
	})
	m.mu.Unlock()
	m.metrics.connected.Add(1)

	src := fmt.Sprint(identity)
	m.logger.Debug().Str("identity", src).Msg("xrelay: connected")
	m.notify(Event{Type: Connect, Source: src})

	return &Connector[E, M]{
		identity: identity,
		tx:       toMediator,
		rx:       toConnector,
		done:     dropped,
		mediator: m,
	}, nil
}

// Run spawns one forwarder per connected identity and waits for all of them.
// The first forwarder failure cancels the rest and is returned. When Run
// returns every connector observes end-of-stream and further sends fail.
func (m *Mediator[E, M]) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.running.Load() {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	snapshot := make([]*sendTunnel[E, M], len(m.sends))
	copy(snapshot, m.sends)
	m.frozen.Store(&snapshot)
	m.running.Store(true)
	recvs := m.recvs
	m.mu.Unlock()

	defer m.stop()

	if len(recvs) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, len(recvs))
	for _, rt := range recvs {
		go func(rt *recvTunnel[E, M]) {
			errs <- m.guard(ctx, rt)
		}(rt)
	}

	var first error
	for range recvs {
		if err := <-errs; err != nil && first == nil {
			first = err
			cancel()
		}
	}
	return first
}

// guard runs a forwarder, reporting a panic as a TaskExecutionError.
func (m *Mediator[E, M]) guard(ctx context.Context, rt *recvTunnel[E, M]) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &TaskExecutionError{
				Routine: fmt.Sprintf("forwarder %v", rt.source),
				Index:   rt.index,
				Value:   v,
				Stack:   debug.Stack(),
			}
			m.metrics.failed.Add(1)
			m.notify(Event{Type: RouteError, Source: fmt.Sprint(rt.source), Err: err})
		}
	}()
	return m.forward(ctx, rt)
}

// forward blocks on one recv tunnel and redirects every message point. Once the
// connector is closed it drains what was already queued, then disconnects.
func (m *Mediator[E, M]) forward(ctx context.Context, rt *recvTunnel[E, M]) error {
	for {
		select {
		case mp := <-rt.rx:
			if err := m.redirect(ctx, rt.source, mp); err != nil {
				return err
			}
		case <-rt.dropped:
			for {
				select {
				case mp := <-rt.rx:
					if err := m.redirect(ctx, rt.source, mp); err != nil {
						return err
					}
				default:
					return m.disconnect(rt.source)
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// redirect delivers one message point to its destination's tunnel.
func (m *Mediator[E, M]) redirect(ctx context.Context, source E, mp messagePoint[E, M]) error {
	start := m.clock.Now()
	err := m.deliver(ctx, source, mp)

	e := Event{
		Type:        Deliver,
		Source:      fmt.Sprint(source),
		Destination: fmt.Sprint(mp.destination),
		Duration:    m.clock.Since(start),
		Err:         err,
	}
	if err != nil {
		m.metrics.failed.Add(1)
		e.Type = RouteError
	} else {
		m.metrics.delivered.Add(1)
	}
	m.notify(e)
	return err
}

func (m *Mediator[E, M]) deliver(ctx context.Context, source E, mp messagePoint[E, M]) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := lookupTunnel(m.sends, mp.destination)
	if st == nil {
		return &TargetUnreachableError[E]{Target: mp.destination}
	}
	if st.closed() {
		return &ChannelClosedError[E]{From: source, To: mp.destination}
	}

	select {
	case st.tx <- mp:
		return nil
	case <-st.dropped:
		return &ChannelClosedError[E]{From: source, To: mp.destination}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// disconnect retires identity after its connector closed and its queue drained.
// Any tunnel left without a live identity that could still feed it is sealed,
// so its connector reads end-of-stream instead of blocking forever.
func (m *Mediator[E, M]) disconnect(identity E) error {
	m.mu.Lock()
	if st := lookupTunnel(m.sends, identity); st != nil {
		st.alive = false
	}
	live := 0
	for _, st := range m.sends {
		if st.alive {
			live++
		}
	}
	for _, st := range m.sends {
		if !st.alive || live == 1 {
			st.seal()
		}
	}
	m.mu.Unlock()

	m.metrics.disconnected.Add(1)
	src := fmt.Sprint(identity)
	m.logger.Debug().Str("identity", src).Msg("xrelay: disconnected")
	m.notify(Event{Type: Disconnect, Source: src})

	if m.cfg.FailOnDisconnect {
		return &TargetUnreachableError[E]{Target: identity}
	}
	return nil
}

// stop releases blocked senders and seals every tunnel.
func (m *Mediator[E, M]) stop() {
	close(m.halt)

	m.mu.Lock()
	for _, st := range m.sends {
		st.seal()
	}
	m.mu.Unlock()
}

// reachable validates a destination on behalf of Connector.Send. Before Run
// the registry is still open, so every destination passes and the forwarder
// resolves it at redirect time.
func (m *Mediator[E, M]) reachable(source, destination E) error {
	snapshot := m.frozen.Load()
	if snapshot == nil {
		return nil
	}

	st := lookupTunnel(*snapshot, destination)
	if st == nil {
		return &TargetUnreachableError[E]{Target: destination}
	}
	if st.closed() {
		return &ChannelClosedError[E]{From: source, To: destination}
	}
	return nil
}

// Started reports whether Run has been called and the registry is frozen.
func (m *Mediator[E, M]) Started() bool { return m.running.Load() }

func (m *Mediator[E, M]) halted() bool {
	select {
	case <-m.halt:
		return true
	default:
		return false
	}
}

// Stats returns the mediator's counters.
func (m *Mediator[E, M]) Stats() MediatorStats {
	return MediatorStats{
		Connected:    m.metrics.connected.Load(),
		Delivered:    m.metrics.delivered.Load(),
		Failed:       m.metrics.failed.Load(),
		Disconnected: m.metrics.disconnected.Load(),
	}
}

// Close drains the observer pool, if one was configured.
func (m *Mediator[E, M]) Close(ctx context.Context) error {
	return m.closePool(ctx)
}
