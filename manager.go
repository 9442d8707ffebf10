package xrelay

import (
	"context"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// Manager runs a batch of routines concurrently and surfaces the first failure
// in registration order.
//
// Run is a single attempt: there are no retries, and routines still running
// when Run returns early are neither cancelled nor awaited. Done reports when
// they have all finished.
type Manager struct {
	*notifier

	logger      *xlog.Logger
	clock       xclock.Clock
	middlewares []Middleware

	mu      sync.Mutex
	idle    []idleRoutine
	ran     atomic.Bool
	runID   string
	done    chan struct{}
	metrics managerMetrics
}

type managerMetrics struct {
	launched  atomic.Uint64
	succeeded atomic.Uint64
	failed    atomic.Uint64
	panicked  atomic.Uint64
}

type idleRoutine struct {
	routine Routine
	name    string
	index   int
}

// NewManager returns an empty Manager.
func NewManager(opts ...Option) *Manager {
	s := newSettings(opts)
	return &Manager{
		notifier:    s.newNotifier(),
		logger:      s.logger,
		clock:       s.clock,
		middlewares: s.middlewares,
		runID:       uuid.NewString(),
		done:        make(chan struct{}),
	}
}

// AddRoutine registers r as idle and returns the manager for chaining.
// Nothing runs until Run. It panics on a nil routine or after Run.
func (m *Manager) AddRoutine(r Routine) *Manager {
	if r == nil {
		panic("xrelay: AddRoutine called with nil Routine")
	}
	if m.ran.Load() {
		panic("xrelay: AddRoutine called after Run")
	}
	name := NameOf(r)
	r = Chain(r, m.middlewares...)

	m.mu.Lock()
	m.idle = append(m.idle, idleRoutine{routine: r, name: name, index: len(m.idle)})
	m.mu.Unlock()
	return m
}

// RunID identifies this manager's run in events and logs.
func (m *Manager) RunID() string { return m.runID }

// Run launches every idle routine on its own goroutine, then joins them in
// registration order. The first failure is returned immediately.
//
// If ctx ends while joining, Run returns ctx.Err(). The routines receive ctx
// (with the manager's logger, clock and their name injected) and are expected
// to observe it themselves.
func (m *Manager) Run(ctx context.Context) error {
	if !m.ran.CompareAndSwap(false, true) {
		return ErrAlreadyRun
	}

	m.mu.Lock()
	idle := m.idle
	m.idle = nil
	m.mu.Unlock()

	var wg sync.WaitGroup
	results := make([]<-chan error, len(idle))
	for i, r := range idle {
		wg.Add(1)
		results[i] = m.launch(ctx, r, &wg)
	}
	go func() {
		wg.Wait()
		close(m.done)
	}()

	for i, res := range results {
		select {
		case err := <-res:
			if err != nil {
				m.logger.Warn().
					Str("run_id", m.runID).
					Str("routine", idle[i].name).
					Err(err).
					Msg("xrelay: manager stopping on first failure")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// launch starts r and returns the channel carrying its classified result.
func (m *Manager) launch(ctx context.Context, r idleRoutine, wg *sync.WaitGroup) <-chan error {
	result := make(chan error, 1)
	m.metrics.launched.Add(1)

	rctx := InjectAll(ctx, r.name, m.logger, m.clock)
	go func() {
		defer wg.Done()

		start := m.clock.Now()
		m.notify(Event{Type: RoutineStart, RunID: m.runID, Routine: r.name, Index: r.index})
		m.logger.Debug().
			Str("run_id", m.runID).
			Str("routine", r.name).
			Str("index", strconv.Itoa(r.index)).
			Msg("xrelay: routine started")

		err := m.execute(rctx, r)
		duration := m.clock.Since(start)

		e := Event{RunID: m.runID, Routine: r.name, Index: r.index, Duration: duration, Err: err}
		switch err.(type) {
		case nil:
			m.metrics.succeeded.Add(1)
			e.Type = RoutineDone
		case *TaskExecutionError:
			m.metrics.panicked.Add(1)
			e.Type = RoutinePanic
		default:
			m.metrics.failed.Add(1)
			e.Type = RoutineFailed
		}
		m.notify(e)

		result <- err
	}()
	return result
}

// execute runs one routine, converting a panic into a TaskExecutionError and
// a returned error into a RoutineError.
func (m *Manager) execute(ctx context.Context, r idleRoutine) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &TaskExecutionError{Routine: r.name, Index: r.index, Value: v, Stack: debug.Stack()}
		}
	}()

	if rerr := r.routine.Run(ctx); rerr != nil {
		return &RoutineError{Routine: r.name, Index: r.index, Err: rerr}
	}
	return nil
}

// Done is closed once every launched routine has returned, including those
// left running after Run returned a failure.
func (m *Manager) Done() <-chan struct{} { return m.done }

// Stats returns the manager's counters.
func (m *Manager) Stats() ManagerStats {
	return ManagerStats{
		Launched:  m.metrics.launched.Load(),
		Succeeded: m.metrics.succeeded.Load(),
		Failed:    m.metrics.failed.Load(),
		Panicked:  m.metrics.panicked.Load(),
	}
}

// Close drains the observer pool, if one was configured.
func (m *Manager) Close(ctx context.Context) error {
	return m.closePool(ctx)
}
