package xrelay_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trickstertwo/xrelay"
	"github.com/trickstertwo/xrelay/adapter/memory"
)

// startMediator runs m on its own goroutine, waits until its registry is
// frozen, and returns the channel carrying Run's result.
func startMediator[E comparable, M any](ctx context.Context, m *xrelay.Mediator[E, M]) <-chan error {
	errCh := make(chan error, 1)
	go func() { errCh <- m.Run(ctx) }()
	for !m.Started() {
		time.Sleep(time.Millisecond)
	}
	return errCh
}

func waitRun(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for mediator Run to return")
		return nil
	}
}

// drain reads until end-of-stream.
func drain[E comparable, M any](ctx context.Context, c *xrelay.Connector[E, M]) []xrelay.Message[E, M] {
	var out []xrelay.Message[E, M]
	for {
		msg, ok := c.Recv(ctx)
		if !ok {
			return out
		}
		out = append(out, msg)
	}
}

func TestMediator_DeliversInOrderWithSource(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	med := xrelay.NewMediator[string, int](xrelay.WithChannelCapacity(4))
	a, err := med.Connect("A")
	require.NoError(t, err)
	b, err := med.Connect("B")
	require.NoError(t, err)

	runErr := startMediator(ctx, med)

	const n = 200
	go func() {
		for i := 0; i < n; i++ {
			if err := a.Send(ctx, "B", i); err != nil {
				return
			}
		}
		_ = a.Close()
	}()

	got := drain(ctx, b)
	require.Len(t, got, n)
	for i, msg := range got {
		assert.Equal(t, "A", msg.Source)
		assert.Equal(t, i, msg.Payload)
	}

	require.NoError(t, b.Close())
	require.NoError(t, waitRun(t, runErr))
	assert.Equal(t, uint64(n), med.Stats().Delivered)
}

func TestMediator_ProducerConsumer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	med := xrelay.NewMediator[string, int]()
	producer, err := med.Connect("Producer")
	require.NoError(t, err)
	consumer, err := med.Connect("Consumer")
	require.NoError(t, err)

	runErr := startMediator(ctx, med)

	for i := 1; i <= 4; i++ {
		require.NoError(t, producer.Send(ctx, "Consumer", i))
	}
	require.NoError(t, producer.Close())

	var payloads []int
	for _, msg := range drain(ctx, consumer) {
		assert.Equal(t, "Producer", msg.Source)
		payloads = append(payloads, msg.Payload)
	}
	assert.Equal(t, []int{1, 2, 3, 4}, payloads)
	assert.NoError(t, ctx.Err(), "consumer must see end-of-stream, not a timeout")

	require.NoError(t, consumer.Close())
	require.NoError(t, waitRun(t, runErr))
}

func TestMediator_RoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	med := xrelay.NewMediator[string, string]()
	a, err := med.Connect("A")
	require.NoError(t, err)
	b, err := med.Connect("B")
	require.NoError(t, err)

	runErr := startMediator(ctx, med)

	require.NoError(t, a.Send(ctx, "B", "ping"))

	msg, ok := b.Recv(ctx)
	require.True(t, ok)
	assert.Equal(t, "A", msg.Source)
	assert.Equal(t, "ping", msg.Payload)
	require.NoError(t, b.Send(ctx, msg.Source, "pong"))

	reply, ok := a.Recv(ctx)
	require.True(t, ok)
	assert.Equal(t, "B", reply.Source)
	assert.Equal(t, "pong", reply.Payload)

	require.NoError(t, a.Close())
	require.NoError(t, b.Close())
	require.NoError(t, waitRun(t, runErr))
}

func TestMediator_UnknownTarget(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	med := xrelay.NewMediator[string, int]()
	a, err := med.Connect("A")
	require.NoError(t, err)

	runErr := startMediator(ctx, med)

	err = a.Send(ctx, "Z", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, xrelay.ErrTargetUnreachable)

	var tu *xrelay.TargetUnreachableError[string]
	require.ErrorAs(t, err, &tu)
	assert.Equal(t, "Z", tu.Target)
	assert.Equal(t, "target Z is disconnected or hasn't been registered", err.Error())

	require.NoError(t, a.Close())
	require.NoError(t, waitRun(t, runErr))
}

func TestMediator_DroppedTarget(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	med := xrelay.NewMediator[string, int]()
	a, err := med.Connect("A")
	require.NoError(t, err)
	b, err := med.Connect("B")
	require.NoError(t, err)
	c, err := med.Connect("C")
	require.NoError(t, err)

	runErr := startMediator(ctx, med)

	require.NoError(t, b.Close())

	err = a.Send(ctx, "B", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, xrelay.ErrChannelClosed)

	var cc *xrelay.ChannelClosedError[string]
	require.ErrorAs(t, err, &cc)
	assert.Equal(t, "A", cc.From)
	assert.Equal(t, "B", cc.To)
	assert.Equal(t, "channel between A and B is closed", err.Error())

	require.NoError(t, a.Close())
	require.NoError(t, c.Close())
	require.NoError(t, waitRun(t, runErr))
}

func TestMediator_DuplicateConnect(t *testing.T) {
	med := xrelay.NewMediator[int, string]()
	_, err := med.Connect(7)
	require.NoError(t, err)

	_, err = med.Connect(7)
	assert.ErrorIs(t, err, xrelay.ErrAlreadyConnected)

	var ac *xrelay.AlreadyConnectedError[int]
	require.ErrorAs(t, err, &ac)
	assert.Equal(t, 7, ac.Identity)
}

func TestMediator_NoConnections(t *testing.T) {
	med := xrelay.NewMediator[string, int]()
	require.NoError(t, med.Run(context.Background()))

	_, err := med.Connect("late")
	assert.ErrorIs(t, err, xrelay.ErrMediatorRunning)

	assert.ErrorIs(t, med.Run(context.Background()), xrelay.ErrAlreadyRunning)
}

func TestMediator_TryRecv(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	med := xrelay.NewMediator[string, int]()
	a, err := med.Connect("A")
	require.NoError(t, err)
	b, err := med.Connect("B")
	require.NoError(t, err)

	runErr := startMediator(ctx, med)

	_, err = b.TryRecv()
	assert.ErrorIs(t, err, xrelay.ErrEmpty)

	require.NoError(t, a.Send(ctx, "B", 42))
	require.NoError(t, a.Close())

	var got []int
	assert.Eventually(t, func() bool {
		msg, err := b.TryRecv()
		switch {
		case err == nil:
			got = append(got, msg.Payload)
			return false
		case errors.Is(err, xrelay.ErrDisconnected):
			return true
		default:
			return false
		}
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, []int{42}, got)

	require.NoError(t, b.Close())
	require.NoError(t, waitRun(t, runErr))

	_, err = b.TryRecv()
	assert.ErrorIs(t, err, xrelay.ErrDisconnected)
}

func TestMediator_FailOnDisconnect(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	med := xrelay.NewMediator[string, int](xrelay.WithFailOnDisconnect())
	a, err := med.Connect("A")
	require.NoError(t, err)
	b, err := med.Connect("B")
	require.NoError(t, err)

	runErr := startMediator(ctx, med)
	require.NoError(t, a.Close())

	err = waitRun(t, runErr)
	var tu *xrelay.TargetUnreachableError[string]
	require.ErrorAs(t, err, &tu)
	assert.Equal(t, "A", tu.Target)

	// Run returned: B observes end-of-stream and sends fail.
	_, ok := b.Recv(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, b.Send(ctx, "A", 1), xrelay.ErrChannelClosed)
}

func TestMediator_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	med := xrelay.NewMediator[string, int]()
	a, err := med.Connect("A")
	require.NoError(t, err)

	runErr := startMediator(ctx, med)
	cancel()

	assert.ErrorIs(t, waitRun(t, runErr), context.Canceled)
	assert.ErrorIs(t, a.Send(context.Background(), "A", 1), xrelay.ErrChannelClosed)
}

func TestMediator_SendBlocksUntilContextEnds(t *testing.T) {
	med := xrelay.NewMediator[string, int](xrelay.WithChannelCapacity(1))
	a, err := med.Connect("A")
	require.NoError(t, err)
	_, err = med.Connect("B")
	require.NoError(t, err)

	// Not running: the outbound channel fills up after one message.
	require.NoError(t, a.Send(context.Background(), "B", 1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, a.Send(ctx, "B", 2), context.DeadlineExceeded)
}

func TestMediator_SendAfterClose(t *testing.T) {
	med := xrelay.NewMediator[string, int]()
	a, err := med.Connect("A")
	require.NoError(t, err)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	assert.ErrorIs(t, a.Send(context.Background(), "A", 1), xrelay.ErrChannelClosed)
	_, ok := a.Recv(context.Background())
	assert.False(t, ok)
}

func TestMediator_Events(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rec, opt := memory.Use(memory.Config{})
	med := xrelay.NewMediator[string, int](opt)

	producer, err := med.Connect("Producer")
	require.NoError(t, err)
	consumer, err := med.Connect("Consumer")
	require.NoError(t, err)

	runErr := startMediator(ctx, med)
	for i := 0; i < 3; i++ {
		require.NoError(t, producer.Send(ctx, "Consumer", i))
	}
	require.NoError(t, producer.Close())
	drain(ctx, consumer)
	require.NoError(t, consumer.Close())
	require.NoError(t, waitRun(t, runErr))

	assert.Equal(t, 2, rec.Count(xrelay.Connect))
	assert.Equal(t, 3, rec.Count(xrelay.Deliver))
	assert.Equal(t, 2, rec.Count(xrelay.Disconnect))
	assert.Equal(t, 0, rec.Count(xrelay.RouteError))

	for _, e := range rec.Events() {
		assert.False(t, e.At.IsZero())
		if e.Type == xrelay.Deliver {
			assert.Equal(t, "Producer", e.Source)
			assert.Equal(t, "Consumer", e.Destination)
		}
	}

	stats := med.Stats()
	assert.Equal(t, uint64(2), stats.Connected)
	assert.Equal(t, uint64(3), stats.Delivered)
	assert.Equal(t, uint64(2), stats.Disconnected)
}

func TestMediator_Name(t *testing.T) {
	med := xrelay.NewMediator[string, int]()
	assert.Equal(t, "Mediator", xrelay.NameOf(med))
}

func TestMediator_SendBeforePeerConnects(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	med := xrelay.NewMediator[string, int]()
	a, err := med.Connect("A")
	require.NoError(t, err)

	// B is not registered yet; the message waits for the forwarder.
	require.NoError(t, a.Send(ctx, "B", 1))

	b, err := med.Connect("B")
	require.NoError(t, err)

	runErr := startMediator(ctx, med)
	require.NoError(t, a.Close())

	got := drain(ctx, b)
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].Source)
	assert.Equal(t, 1, got[0].Payload)

	require.NoError(t, b.Close())
	require.NoError(t, waitRun(t, runErr))
}

func TestMediator_UnknownTargetFailsRun(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rec, opt := memory.Use(memory.Config{})
	med := xrelay.NewMediator[string, int](opt)
	a, err := med.Connect("A")
	require.NoError(t, err)

	require.NoError(t, a.Send(ctx, "Z", 1))

	err = waitRun(t, startMediator(ctx, med))
	var tu *xrelay.TargetUnreachableError[string]
	require.ErrorAs(t, err, &tu)
	assert.Equal(t, "Z", tu.Target)

	// One failure, one RouteError event: the logging observer is its only log sink.
	assert.Equal(t, 1, rec.Count(xrelay.RouteError))
	assert.Equal(t, uint64(1), med.Stats().Failed)
}

func TestMediator_DestinationClosesWithQueuedMessages(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	med := xrelay.NewMediator[string, int](xrelay.WithChannelCapacity(1))
	a, err := med.Connect("A")
	require.NoError(t, err)
	b, err := med.Connect("B")
	require.NoError(t, err)

	runErr := startMediator(ctx, med)

	// B's inbound channel holds one message; the forwarder blocks on the second.
	for i := 1; i <= 3; i++ {
		require.NoError(t, a.Send(ctx, "B", i))
	}
	require.NoError(t, b.Close())

	err = waitRun(t, runErr)
	assert.ErrorIs(t, err, xrelay.ErrChannelClosed)
	var cc *xrelay.ChannelClosedError[string]
	require.ErrorAs(t, err, &cc)
	assert.Equal(t, "A", cc.From)
	assert.Equal(t, "B", cc.To)

	require.NoError(t, a.Close())
}
