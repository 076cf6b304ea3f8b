// Package server implements the address-keyed peer demultiplexer
// (§4.4): one endpoint shared by many peer engines, each bound to a
// distinct remote address.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/ardatrace/rudp/internal/config"
	"github.com/ardatrace/rudp/internal/netio"
	"github.com/ardatrace/rudp/internal/peerengine"
	"github.com/ardatrace/rudp/internal/protocol"
	"github.com/ardatrace/rudp/internal/util"
)

// recvBufSize is the scratch buffer size for one inbound datagram,
// comfortably above any payload this transport produces.
const recvBufSize = 2048

// recvBufPool bounds the scratch-buffer churn of the receive loop.
// The original `rudp_endpoint` caps its free-list at 10 buffers and
// frees the surplus; sync.Pool is the idiomatic Go substitute, letting
// the GC reclaim unused buffers instead of a hand-kept bound.
var recvBufPool = sync.Pool{
	New: func() any { return make([]byte, recvBufSize) },
}

// Demux owns a UDP endpoint and the collection of peer engines
// reachable through it, keyed by remote address.
type Demux struct {
	mu    sync.Mutex
	peers map[string]*peerengine.Peer

	endpoint  netio.Endpoint
	clock     netio.Clock
	scheduler netio.Scheduler
	cfg       config.Config
	hooks     peerengine.Hooks
}

// NewDemux constructs an empty Demux. hooks are installed on every peer
// the demux creates; OnDropped is wrapped to remove the peer from the
// address table before the caller's handler runs.
func NewDemux(endpoint netio.Endpoint, clock netio.Clock, scheduler netio.Scheduler, cfg config.Config, hooks peerengine.Hooks) *Demux {
	d := &Demux{
		peers:     make(map[string]*peerengine.Peer),
		endpoint:  endpoint,
		clock:     clock,
		scheduler: scheduler,
		cfg:       cfg,
	}
	d.hooks = wrapDroppedHook(d, hooks)
	return d
}

func wrapDroppedHook(d *Demux, hooks peerengine.Hooks) peerengine.Hooks {
	userDropped := hooks.OnDropped
	hooks.OnDropped = func(p *peerengine.Peer) {
		d.mu.Lock()
		delete(d.peers, addrKey(p.RemoteAddr()))
		d.mu.Unlock()
		if userDropped != nil {
			userDropped(p)
		}
	}
	return hooks
}

// HandleDatagram routes one already-read datagram to its peer,
// constructing a new NEW-state peer on an unrecognized source address
// per §4.4 step 2-3.
func (d *Demux) HandleDatagram(raw []byte, addr net.Addr) {
	pkt, err := protocol.Decode(raw)
	if err != nil {
		util.LogWarning("demux: malformed packet from %s: %v", addr, err)
		return
	}

	key := addrKey(addr)

	d.mu.Lock()
	if peer, ok := d.peers[key]; ok {
		d.mu.Unlock()
		peer.HandleInbound(pkt)
		return
	}

	if pkt.Command != protocol.CmdConnReq {
		d.mu.Unlock()
		util.LogDebug("demux: dropping 0x%02x from unknown peer %s (not CONN_REQ)", pkt.Command, addr)
		return
	}

	peer := peerengine.NewServerPeer(addr, d.endpoint, d.clock, d.scheduler, d.cfg, d.hooks)
	d.peers[key] = peer
	d.mu.Unlock()

	peer.HandleInbound(pkt)
}

// Peers returns a snapshot of the currently tracked peers.
func (d *Demux) Peers() []*peerengine.Peer {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*peerengine.Peer, 0, len(d.peers))
	for _, p := range d.peers {
		out = append(out, p)
	}
	return out
}

// Len reports the number of peers currently tracked.
func (d *Demux) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.peers)
}

// Run pumps conn.ReadFromUDP in a loop, handing each datagram to
// HandleDatagram, until ctx is cancelled or the socket errors out.
// conn must be the same *net.UDPConn backing the Demux's endpoint.
func (d *Demux) Run(ctx context.Context, conn *net.UDPConn) error {
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		buf := recvBufPool.Get().([]byte)
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			recvBufPool.Put(buf)
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("server: read: %w", err)
			}
		}
		d.HandleDatagram(buf[:n], addr)
		recvBufPool.Put(buf)
	}
}

// addrKey canonicalizes a net.Addr into a family-aware comparison key
// per §4.4: IPv4 compares family+4-byte address+port, IPv6 compares
// family+16-byte address+port, scope ID ignored.
func addrKey(addr net.Addr) string {
	udp, ok := addr.(*net.UDPAddr)
	if !ok {
		return addr.String()
	}
	if ip4 := udp.IP.To4(); ip4 != nil {
		return fmt.Sprintf("4:%x:%d", []byte(ip4), udp.Port)
	}
	return fmt.Sprintf("6:%x:%d", []byte(udp.IP.To16()), udp.Port)
}
