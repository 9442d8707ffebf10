package xrelay

import (
	"context"
	"sync"
)

// Connector is the handle one routine uses to talk through a Mediator.
// It is owned by a single routine: Send and Close must not be called concurrently.
type Connector[E comparable, M any] struct {
	identity  E
	tx        chan<- messagePoint[E, M]
	rx        <-chan messagePoint[E, M]
	done      chan struct{}
	closeOnce sync.Once
	mediator  *Mediator[E, M]
}

// Identity returns the identity this connector was registered under.
func (c *Connector[E, M]) Identity() E { return c.identity }

// Send enqueues payload for destination, tagged with this connector's identity.
// It blocks while the outbound channel is full. Once the mediator runs, unknown
// or closed destinations are rejected here; before that they surface from Run.
func (c *Connector[E, M]) Send(ctx context.Context, destination E, payload M) error {
	if c.isClosed() || c.mediator.halted() {
		return &ChannelClosedError[E]{From: c.identity, To: destination}
	}
	if err := c.mediator.reachable(c.identity, destination); err != nil {
		return err
	}

	return c.enqueue(ctx, messagePoint[E, M]{
		destination: destination,
		envelope:    Message[E, M]{Source: c.identity, Payload: payload},
	})
}

func (c *Connector[E, M]) enqueue(ctx context.Context, mp messagePoint[E, M]) error {
	select {
	case c.tx <- mp:
		// halt may have closed while tx still had room; nothing forwards it now.
		if c.mediator.halted() {
			return &ChannelClosedError[E]{From: c.identity, To: mp.destination}
		}
		return nil
	case <-c.mediator.halt:
		return &ChannelClosedError[E]{From: c.identity, To: mp.destination}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recv blocks until a message arrives. It returns false on end-of-stream,
// after Close, or when ctx ends; check ctx.Err() to tell them apart.
func (c *Connector[E, M]) Recv(ctx context.Context) (Message[E, M], bool) {
	var zero Message[E, M]
	if c.isClosed() {
		return zero, false
	}
	select {
	case mp, ok := <-c.rx:
		if !ok {
			return zero, false
		}
		return mp.envelope, true
	case <-c.done:
		return zero, false
	case <-ctx.Done():
		return zero, false
	}
}

// TryRecv returns a queued message without blocking: ErrEmpty when none is
// queued, ErrDisconnected after end-of-stream or Close.
func (c *Connector[E, M]) TryRecv() (Message[E, M], error) {
	var zero Message[E, M]
	if c.isClosed() {
		return zero, ErrDisconnected
	}
	select {
	case mp, ok := <-c.rx:
		if !ok {
			return zero, ErrDisconnected
		}
		return mp.envelope, nil
	default:
		return zero, ErrEmpty
	}
}

// Close drops the connector. Messages already sent are still delivered; the
// identity is then retired and later sends to it fail with ChannelClosedError.
// Close is idempotent.
func (c *Connector[E, M]) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

func (c *Connector[E, M]) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
