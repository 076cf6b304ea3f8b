package peerengine

// LinkInfo is a snapshot of a peer's link-quality state, exposed to
// applications as the `link_info` callback payload (§6).
type LinkInfo struct {
	State      State
	SRTT       int64 // milliseconds
	RTO        int64 // milliseconds
	QueueDepth int
	OutAcked   uint16
	OutRel     uint16
	InRel      uint16
}

// Hooks is the application-visible callback surface (§6). A nil field
// is simply not invoked. The peer engine itself invokes OnNew when its
// handshake completes and OnDropped when it dies. The server demux
// installs the application's hooks on every peer it creates (wrapping
// OnDropped); the client shell adapts OnNew to `connected` and
// OnDropped to `server_lost`.
//
// Every hook runs synchronously from the same HandleInbound/onTimer
// call that raised it, matching §6's "all callbacks execute on the
// event-loop thread" — but only after that call has released the
// peer's lock, so a hook is free to call back into this same Peer
// (e.g. handle_packet replying with SendReliable) without deadlocking.
type Hooks struct {
	OnNew      func(p *Peer)
	OnDropped  func(p *Peer)
	OnApp      func(p *Peer, subCommand uint8, data []byte)
	OnLinkInfo func(p *Peer, info LinkInfo)
}
