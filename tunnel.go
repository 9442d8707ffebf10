package xrelay

import "sync/atomic"

// sendTunnel is the registry entry for one connected identity: the
// mediator's outbound end of the channel that identity's Connector drains.
//
// Sends on tx and the close that seals it both happen under the mediator's
// registry mutex, so a sealed tunnel is never written to.
type sendTunnel[E comparable, M any] struct {
	destination E
	tx          chan messagePoint[E, M]
	// dropped is closed by the destination's Connector.Close.
	dropped <-chan struct{}
	// alive is cleared once the identity's forwarder drained and exited. Guarded by the registry mutex.
	alive bool
	// sealed is set when tx was closed (end-of-stream for the destination).
	sealed atomic.Bool
}

func (t *sendTunnel[E, M]) isDropped() bool {
	select {
	case <-t.dropped:
		return true
	default:
		return false
	}
}

// closed reports whether delivery to this tunnel can no longer succeed.
func (t *sendTunnel[E, M]) closed() bool {
	return t.sealed.Load() || t.isDropped()
}

// seal closes tx. Callers hold the registry mutex.
func (t *sendTunnel[E, M]) seal() {
	if t.sealed.Swap(true) {
		return
	}
	close(t.tx)
}

// recvTunnel is the mediator's private inbound end for one identity.
type recvTunnel[E comparable, M any] struct {
	source  E
	index   int
	rx      <-chan messagePoint[E, M]
	dropped <-chan struct{}
}

// lookupTunnel returns the first tunnel tagged with destination, or nil. O(n).
func lookupTunnel[E comparable, M any](tunnels []*sendTunnel[E, M], destination E) *sendTunnel[E, M] {
	for _, t := range tunnels {
		if t.destination == destination {
			return t
		}
	}
	return nil
}
