// Package netio defines the injected seams between the peer engine and
// the outside world: a socket-like endpoint, a millisecond clock, and
// a one-shot timer source. None of these are the core per §1 ("the
// socket I/O layer... the event-loop integration" are external
// collaborators) — this package only declares the interfaces the core
// depends on, plus a real UDP-backed implementation for production use.
package netio

import "net"

// Endpoint is the minimal non-blocking UDP socket contract the engine
// needs: write a datagram to a destination, and know the local
// address it's bound to. Reading is push-based — the owner (server
// demux or client shell) pumps ReadFrom itself and dispatches decoded
// packets to the right peer, so it isn't part of this interface.
type Endpoint interface {
	WriteTo(b []byte, addr net.Addr) (int, error)
	LocalAddr() net.Addr
	Close() error
}

// udpEndpoint adapts *net.UDPConn to Endpoint.
type udpEndpoint struct {
	conn *net.UDPConn
}

// NewUDPEndpoint binds a UDP socket at laddr (use ":0" for an
// ephemeral port) in the given network ("udp", "udp4", or "udp6").
func NewUDPEndpoint(network, laddr string) (Endpoint, *net.UDPConn, error) {
	addr, err := net.ResolveUDPAddr(network, laddr)
	if err != nil {
		return nil, nil, err
	}
	conn, err := net.ListenUDP(network, addr)
	if err != nil {
		return nil, nil, err
	}
	return &udpEndpoint{conn: conn}, conn, nil
}

func (e *udpEndpoint) WriteTo(b []byte, addr net.Addr) (int, error) {
	return e.conn.WriteTo(b, addr)
}

func (e *udpEndpoint) LocalAddr() net.Addr {
	return e.conn.LocalAddr()
}

func (e *udpEndpoint) Close() error {
	return e.conn.Close()
}
