package xrelay

import (
	"context"
	"sync"
	"sync/atomic"
)

// ObserverPool dispatches events to observers on a fixed set of goroutines so
// a slow observer never stalls a routine or a forwarder. When the buffer is
// full the event is dropped and counted.
type ObserverPool struct {
	eventCh   chan *Event
	workers   int
	stop      chan struct{}
	wg        sync.WaitGroup
	closed    atomic.Bool
	dropped   atomic.Uint64
	processed atomic.Uint64
}

// NewObserverPool starts workers dispatch goroutines over a buffer of bufferSize events.
// Non-positive values fall back to 4 workers and 1024 slots.
func NewObserverPool(workers, bufferSize int) *ObserverPool {
	if workers < 1 {
		workers = 4
	}
	if bufferSize < 1 {
		bufferSize = 1024
	}

	op := &ObserverPool{
		eventCh: make(chan *Event, bufferSize),
		workers: workers,
		stop:    make(chan struct{}),
	}

	for i := 0; i < workers; i++ {
		op.wg.Add(1)
		go op.worker()
	}

	return op
}

// Notify queues e for every observer in observers. It never blocks.
func (op *ObserverPool) Notify(e Event, observers []Observer) {
	if len(observers) == 0 || op.closed.Load() {
		return
	}

	e.observers = make([]Observer, len(observers))
	copy(e.observers, observers)

	select {
	case op.eventCh <- &e:
	default:
		op.dropped.Add(1)
	}
}

func (op *ObserverPool) worker() {
	defer op.wg.Done()
	for {
		select {
		case e := <-op.eventCh:
			op.dispatch(e)
		case <-op.stop:
			// drain what was queued before Close
			for {
				select {
				case e := <-op.eventCh:
					op.dispatch(e)
				default:
					return
				}
			}
		}
	}
}

func (op *ObserverPool) dispatch(e *Event) {
	if e == nil {
		return
	}
	for _, obs := range e.observers {
		safeObserve(obs, *e)
	}
	op.processed.Add(1)
}

// Close stops accepting events and waits for queued ones to be dispatched or ctx to end.
func (op *ObserverPool) Close(ctx context.Context) error {
	if op.closed.Swap(true) {
		return nil
	}
	close(op.stop)

	done := make(chan struct{})
	go func() {
		op.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ErrObserverPoolShutdownTimeout
	}
}

// Stats returns current pool statistics.
func (op *ObserverPool) Stats() PoolStats {
	return PoolStats{
		Dropped:      op.dropped.Load(),
		Processed:    op.processed.Load(),
		ActiveEvents: len(op.eventCh),
		Workers:      op.workers,
		BufferSize:   cap(op.eventCh),
	}
}
