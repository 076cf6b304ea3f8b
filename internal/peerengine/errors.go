package peerengine

import "errors"

// Sentinel errors returned synchronously by application-visible calls,
// per §7's error-handling policy. Decode/sequencing errors are never
// returned this way — they're logged and swallowed inside the engine.
var (
	// ErrInvalidArgument covers an out-of-range APP sub-command. The
	// payload's size is not checked by the send calls.
	ErrInvalidArgument = errors.New("peerengine: invalid argument")

	// ErrNotConnected is returned when a send is attempted on a peer
	// that hasn't reached RUN (e.g. client send before connected).
	ErrNotConnected = errors.New("peerengine: not connected")

	// ErrInvalidAck is surfaced internally when an inbound ACK
	// advances past the highest sequence we've ever sent; the
	// carrying packet is rejected in full and state is left
	// unchanged.
	ErrInvalidAck = errors.New("peerengine: ack advances past highest sent sequence")

	// ErrDead is returned by any send attempted on a peer that has
	// already transitioned to DEAD.
	ErrDead = errors.New("peerengine: peer is dead")

	// ErrQueueFull is returned when a send would push the outbound
	// queue past config.Config.PeerInboxDepth — backpressure against a
	// stalled or unresponsive remote instead of unbounded growth.
	ErrQueueFull = errors.New("peerengine: send queue at capacity")
)
