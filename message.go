package xrelay

// Message is the envelope a Connector receives: the payload tagged with the
// identity that sent it.
type Message[E comparable, M any] struct {
	// Source is the identity of the sending Connector.
	Source E
	// Payload is the application message, opaque to the mediator.
	Payload M
}

// messagePoint is the unit moved through the mediator's channels. The
// destination is stripped before the envelope reaches the peer.
type messagePoint[E comparable, M any] struct {
	destination E
	envelope    Message[E, M]
}
