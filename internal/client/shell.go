// Package client implements the single-peer shell (§4.5): resolve a
// server address, bind an ephemeral local UDP socket, drive the
// CONN_REQ/CONN_RSP handshake, and forward every inbound datagram to
// the one peer engine the shell owns.
package client

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

const recvBufSize = 2048

// Hooks is the client-facing callback surface (§6): connected(),
// server_lost(), handle_packet(sub_command, data, len), link_info(info).
// Unlike peerengine.Hooks, none of these carry a *Peer — the shell only
// ever has one.
type Hooks struct {
	Connected  func()
	ServerLost func()
	OnApp      func(subCommand uint8, data []byte)
	OnLinkInfo func(info peerengine.LinkInfo)
}

// Shell holds exactly one peer engine plus one endpoint, re-bindable
// after a drop so Connect can be called again (§4.5, and the original
// source's reconnect-after-drop reset).
type Shell struct {
	mu sync.Mutex

	clock     netio.Clock
	scheduler netio.Scheduler
	cfg       config.Config
	hooks     Hooks

	endpoint netio.Endpoint
	conn     *net.UDPConn
	peer     *peerengine.Peer
}

// NewShell constructs an unbound Shell. Call Connect to establish a
// peer association.
func NewShell(clock netio.Clock, scheduler netio.Scheduler, cfg config.Config, hooks Hooks) *Shell {
	return &Shell{clock: clock, scheduler: scheduler, cfg: cfg, hooks: hooks}
}

// Connect resolves remoteAddr, binds an ephemeral local port in the
// matching address family, and constructs the peer engine in
// CONNECTING, which enqueues the reliable CONN_REQ (§4.5).
func (s *Shell) Connect(network, remoteAddr string) error {
	addr, err := net.ResolveUDPAddr(network, remoteAddr)
	if err != nil {
		return fmt.Errorf("client: resolve %s: %w", remoteAddr, err)
	}

	localNet := "udp4"
	if addr.IP.To4() == nil {
		localNet = "udp6"
	}
	endpoint, conn, err := netio.NewUDPEndpoint(localNet, ":0")
	if err != nil {
		return fmt.Errorf("client: bind ephemeral port: %w", err)
	}

	s.mu.Lock()
	s.endpoint = endpoint
	s.conn = conn
	s.peer = peerengine.NewClientPeer(addr, endpoint, s.clock, s.scheduler, s.cfg, s.peerHooks())
	s.mu.Unlock()

	util.LogInfo("client: connecting to %s from %s", addr, conn.LocalAddr())
	return nil
}

// peerHooks adapts the shell's public Hooks to peerengine.Hooks,
// wrapping OnDropped to reset the shell to its unbound state so a
// fresh Connect can follow.
func (s *Shell) peerHooks() peerengine.Hooks {
	return peerengine.Hooks{
		OnNew: func(p *peerengine.Peer) {
			if s.hooks.Connected != nil {
				s.hooks.Connected()
			}
		},
		OnDropped: func(p *peerengine.Peer) {
			s.mu.Lock()
			if s.conn != nil {
				s.conn.Close()
			}
			s.endpoint, s.conn, s.peer = nil, nil, nil
			s.mu.Unlock()
			if s.hooks.ServerLost != nil {
				s.hooks.ServerLost()
			}
		},
		OnApp: func(p *peerengine.Peer, sub uint8, data []byte) {
			if s.hooks.OnApp != nil {
				s.hooks.OnApp(sub, data)
			}
		},
		OnLinkInfo: func(p *peerengine.Peer, info peerengine.LinkInfo) {
			if s.hooks.OnLinkInfo != nil {
				s.hooks.OnLinkInfo(info)
			}
		},
	}
}

// HandleDatagram forwards a decoded datagram to the shell's peer,
// ignoring the source address (§4.5, §9's "client address acceptance"
// note — preserved for wire compatibility).
func (s *Shell) HandleDatagram(raw []byte) {
	s.mu.Lock()
	peer := s.peer
	s.mu.Unlock()
	if peer == nil {
		return
	}

	pkt, err := protocol.Decode(raw)
	if err != nil {
		util.LogWarning("client: malformed packet: %v", err)
		return
	}
	peer.HandleInbound(pkt)
}

// SendReliable forwards to the active peer's SendReliable, or
// ErrNotConnected if no peer is currently bound.
func (s *Shell) SendReliable(subCommand uint8, payload []byte) error {
	s.mu.Lock()
	peer := s.peer
	s.mu.Unlock()
	if peer == nil {
		return peerengine.ErrNotConnected
	}
	return peer.SendReliable(subCommand, payload)
}

// SendUnreliable forwards to the active peer's SendUnreliable, or
// ErrNotConnected if no peer is currently bound.
func (s *Shell) SendUnreliable(subCommand uint8, payload []byte) error {
	s.mu.Lock()
	peer := s.peer
	s.mu.Unlock()
	if peer == nil {
		return peerengine.ErrNotConnected
	}
	return peer.SendUnreliable(subCommand, payload)
}

// Close tears down the active peer (sending CLOSE) and the local
// socket, leaving the shell unbound.
func (s *Shell) Close() {
	s.mu.Lock()
	peer, conn := s.peer, s.conn
	s.endpoint, s.conn, s.peer = nil, nil, nil
	s.mu.Unlock()

	if peer != nil {
		peer.Close()
	}
	if conn != nil {
		conn.Close()
	}
}

// State reports the current peer's lifecycle state, or StateDead if
// unbound.
func (s *Shell) State() peerengine.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.peer == nil {
		return peerengine.StateDead
	}
	return s.peer.State()
}

// Run pumps the bound socket's ReadFromUDP in a loop, forwarding every
// datagram to HandleDatagram, until ctx is cancelled or the socket
// errors out. Must be called after Connect.
func (s *Shell) Run(ctx context.Context) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("client: Run called before Connect")
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, recvBufSize)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("client: read: %w", err)
			}
		}
		s.HandleDatagram(buf[:n])
	}
}
