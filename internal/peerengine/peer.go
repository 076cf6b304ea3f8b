// Package peerengine implements the per-peer protocol state machine:
// handshake, sequencing, acknowledgement, RTT-adaptive retransmission
// and keep-alive (§4.3). A Peer is driven from two directions only —
// HandleInbound for a decoded datagram, and its own timer firing — and
// serializes the two with a single mutex in place of the single
// cooperative thread the engine was originally specified against
// (§5's Go-native concurrency decision).
package peerengine

import (
	"net"
	"sync"
	"time"

	"github.com/ardatrace/rudp/internal/config"
	"github.com/ardatrace/rudp/internal/netio"
	"github.com/ardatrace/rudp/internal/protocol"
	"github.com/ardatrace/rudp/internal/rqueue"
	"github.com/ardatrace/rudp/internal/util"
)

const maxAppSubCommand = 0xFF - protocol.CmdAppBase

// seqClass is the inbound classification of §4.3.3.
type seqClass int

const (
	classSequenced seqClass = iota
	classRetransmitted
	classUnsequenced
)

// Peer is one protocol association with a single remote address.
type Peer struct {
	mu sync.Mutex

	role       Role
	remoteAddr net.Addr
	endpoint   netio.Endpoint
	clock      netio.Clock
	scheduler  netio.Scheduler
	cfg        config.Config
	hooks      Hooks

	timer netio.Timer

	state State

	inRel, inUnrel             uint16
	outRel, outUnrel, outAcked uint16

	srtt, rttvar, rto int64 // milliseconds

	lastOutTime  int64
	dropDeadline int64
	mustAck      bool

	queue *rqueue.Queue

	// pending accumulates hook invocations raised while mu is held, so
	// they can run after it's released (§6 callbacks must be able to
	// call back into this same Peer, e.g. handle_packet replying with
	// send_reliable).
	pending []func()
}

func newPeer(role Role, remoteAddr net.Addr, endpoint netio.Endpoint, clock netio.Clock, scheduler netio.Scheduler, cfg config.Config, hooks Hooks) *Peer {
	now := clock.NowMillis()
	p := &Peer{
		role:         role,
		remoteAddr:   remoteAddr,
		endpoint:     endpoint,
		clock:        clock,
		scheduler:    scheduler,
		cfg:          cfg,
		hooks:        hooks,
		srtt:         cfg.InitialSRTT.Milliseconds(),
		rttvar:       cfg.InitialRTTVar.Milliseconds(),
		rto:          cfg.MaxRTO.Milliseconds(),
		dropDeadline: now + cfg.DropTimeout.Milliseconds(),
		queue:        rqueue.New(),
	}
	util.Stats.AddPeer()
	return p
}

// NewServerPeer constructs a peer in state NEW, as created by the
// demux on receipt of a CONN_REQ from an unknown source (§4.3.1).
func NewServerPeer(remoteAddr net.Addr, endpoint netio.Endpoint, clock netio.Clock, scheduler netio.Scheduler, cfg config.Config, hooks Hooks) *Peer {
	p := newPeer(RoleServer, remoteAddr, endpoint, clock, scheduler, cfg, hooks)
	p.state = StateNew
	p.rearm(clock.NowMillis())
	return p
}

// NewClientPeer constructs a peer in state CONNECTING and enqueues
// the reliable CONN_REQ that drives the handshake (§4.5).
func NewClientPeer(remoteAddr net.Addr, endpoint netio.Endpoint, clock netio.Clock, scheduler netio.Scheduler, cfg config.Config, hooks Hooks) *Peer {
	p := newPeer(RoleClient, remoteAddr, endpoint, clock, scheduler, cfg, hooks)
	p.state = StateConnecting
	p.enqueueReliable(protocol.CmdConnReq, protocol.EncodeConnReqPayload())
	p.rearm(clock.NowMillis())
	return p
}

// RemoteAddr returns the peer's remote socket address. Immutable
// after construction.
func (p *Peer) RemoteAddr() net.Addr {
	return p.remoteAddr
}

// State returns the peer's current lifecycle state.
func (p *Peer) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// LinkInfo reports a snapshot of link-quality state for the
// `link_info` callback surface (§6).
func (p *Peer) LinkInfo() LinkInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.linkInfoLocked()
}

func (p *Peer) linkInfoLocked() LinkInfo {
	return LinkInfo{
		State:      p.state,
		SRTT:       p.srtt,
		RTO:        p.rto,
		QueueDepth: p.queue.Len(),
		OutAcked:   p.outAcked,
		OutRel:     p.outRel,
		InRel:      p.inRel,
	}
}

// SendReliable enqueues an application sub-command for in-order,
// acknowledged delivery (§4.2).
func (p *Peer) SendReliable(subCommand uint8, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkSendable(subCommand); err != nil {
		return err
	}
	p.enqueueReliable(protocol.CmdAppBase+subCommand, payload)
	p.rearm(p.clock.NowMillis())
	return nil
}

// SendUnreliable enqueues an application sub-command for best-effort,
// unordered-duplicate-suppressed delivery (§4.2).
func (p *Peer) SendUnreliable(subCommand uint8, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkSendable(subCommand); err != nil {
		return err
	}
	p.enqueueUnreliable(protocol.CmdAppBase+subCommand, payload)
	p.rearm(p.clock.NowMillis())
	return nil
}

func (p *Peer) checkSendable(subCommand uint8) error {
	if p.state == StateDead {
		return ErrDead
	}
	if p.state != StateRun {
		return ErrNotConnected
	}
	if subCommand > maxAppSubCommand {
		return ErrInvalidArgument
	}
	if p.queue.Len() >= p.cfg.PeerInboxDepth {
		return ErrQueueFull
	}
	return nil
}

// Close sends a single best-effort CLOSE datagram bypassing the send
// queue and tears the peer down immediately, without waiting for an
// acknowledgement (§4.3.6). It does not invoke OnDropped — the caller
// already knows it initiated the close.
func (p *Peer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateDead {
		return
	}
	p.outUnrel++
	raw := protocol.Encode(&protocol.Packet{
		Header: protocol.Header{
			Command:    protocol.CmdClose,
			Reliable:   p.outRel,
			Unreliable: p.outUnrel,
		},
	})
	if _, err := p.endpoint.WriteTo(raw, p.remoteAddr); err != nil {
		util.LogWarning("peer %s: close send failed: %v", p.remoteAddr, err)
	} else {
		util.Stats.AddSent(len(raw))
	}
	p.die()
}

func (p *Peer) die() {
	if p.state == StateDead {
		return
	}
	p.state = StateDead
	if p.timer != nil {
		p.timer.Stop()
	}
	util.Stats.RemovePeer()
}

// HandleInbound processes one decoded datagram already addressed to
// this peer: ACK processing (§4.3.2), inbound sequencing (§4.3.3), and
// command dispatch.
func (p *Peer) HandleInbound(pkt *protocol.Packet) {
	pending := p.withLock(func() {
		if p.state == StateDead {
			return
		}
		now := p.clock.NowMillis()
		util.Stats.AddRecv(protocol.HeaderSize + len(pkt.Payload))

		if pkt.Flags&protocol.FlagAck != 0 {
			if err := p.processAck(pkt.ReliableAck); err != nil {
				util.LogWarning("peer %s: %v", p.remoteAddr, err)
				return
			}
		}

		switch p.classify(pkt) {
		case classSequenced:
			p.dropDeadline = now + p.cfg.DropTimeout.Milliseconds()
			p.dispatch(pkt, now)
			if pkt.Flags&protocol.FlagReliable != 0 {
				p.scheduleAck()
			}
		case classRetransmitted:
			p.dropDeadline = now + p.cfg.DropTimeout.Milliseconds()
			p.scheduleAck()
		case classUnsequenced:
			switch {
			case p.state == StateNew && pkt.Command == protocol.CmdConnReq:
				p.dropDeadline = now + p.cfg.DropTimeout.Milliseconds()
				p.handleConnReq(pkt, now)
			case p.state == StateConnecting && pkt.Command == protocol.CmdConnRsp:
				p.dropDeadline = now + p.cfg.DropTimeout.Milliseconds()
				p.handleConnRsp(pkt, now)
			default:
				util.LogDebug("peer %s: dropping unsequenced command 0x%02x", p.remoteAddr, pkt.Command)
			}
		}

		p.rearm(now)
	})
	runPending(pending)
}

// withLock runs fn with mu held, then hands back whatever hooks fn
// queued via queueHook — captured before mu is released, so the
// caller can safely invoke them without holding the lock.
func (p *Peer) withLock(fn func()) []func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn()
	pending := p.pending
	p.pending = nil
	return pending
}

func (p *Peer) queueHook(fn func()) {
	p.pending = append(p.pending, fn)
}

func runPending(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}

// scheduleAck implements the "must_ack=1, and give it a carrier if
// the queue is empty" rule of §4.3.3. Safe to call more than once per
// inbound packet — re-setting must_ack is idempotent (§9).
func (p *Peer) scheduleAck() {
	if p.queue.Empty() {
		p.enqueueUnreliable(protocol.CmdNOOP, nil)
	}
	p.mustAck = true
}

// processAck applies §4.3.2. Returns ErrInvalidAck when the whole
// carrying packet must be rejected.
func (p *Peer) processAck(ack uint16) error {
	ackDelta := protocol.SeqDelta(ack, p.outAcked)
	if ackDelta < 0 {
		return nil // stale ack, ignore silently
	}
	advDelta := protocol.SeqDelta(ack, p.outRel)
	if advDelta > 0 {
		return ErrInvalidAck
	}
	p.outAcked = ack
	p.queue.TrimAckedPrefix(func(e *rqueue.Entry) bool {
		return e.Reliable() && e.Retransmitted() && !protocol.SeqAfter(e.Header.Reliable, ack)
	})
	return nil
}

// classify implements §4.3.3, mutating in_rel/in_unrel on a SEQUENCED
// verdict.
func (p *Peer) classify(pkt *protocol.Packet) seqClass {
	if pkt.Flags&protocol.FlagReliable != 0 {
		switch {
		case pkt.Reliable == p.inRel:
			return classRetransmitted
		case pkt.Reliable == p.inRel+1:
			p.inRel = pkt.Reliable
			p.inUnrel = 0
			return classSequenced
		default:
			return classUnsequenced
		}
	}

	if pkt.Reliable != p.inRel {
		return classUnsequenced
	}
	if !protocol.SeqAfter(pkt.Unreliable, p.inUnrel) {
		return classUnsequenced
	}
	p.inUnrel = pkt.Unreliable
	return classSequenced
}

func (p *Peer) dispatch(pkt *protocol.Packet, now int64) {
	switch pkt.Command {
	case protocol.CmdConnReq:
		if p.role == RoleServer && p.state == StateNew {
			p.handleConnReq(pkt, now)
		}
	case protocol.CmdConnRsp:
		if p.role == RoleClient && p.state == StateConnecting {
			p.handleConnRsp(pkt, now)
		}
	case protocol.CmdClose:
		p.handleClose()
	case protocol.CmdPing:
		if p.state == StateRun {
			p.handlePing(pkt)
		}
	case protocol.CmdPong:
		if p.state == StateRun {
			p.handlePong(pkt, now)
		}
	case protocol.CmdNOOP:
		// pure ACK carrier, nothing else to do
	default:
		if pkt.IsApp() {
			if p.state == StateRun {
				p.handleApp(pkt)
			}
		} else {
			util.LogDebug("peer %s: unhandled command 0x%02x", p.remoteAddr, pkt.Command)
		}
	}
}

func (p *Peer) handleConnReq(pkt *protocol.Packet, now int64) {
	p.inRel = pkt.Reliable
	p.inUnrel = 0
	p.state = StateRun
	p.dropDeadline = now + p.cfg.DropTimeout.Milliseconds()
	p.enqueueUnreliable(protocol.CmdConnRsp, protocol.EncodeConnRspPayload(true))
	p.scheduleAck()
	if p.hooks.OnNew != nil {
		p.queueHook(func() { p.hooks.OnNew(p) })
	}
}

func (p *Peer) handleConnRsp(pkt *protocol.Packet, now int64) {
	// CONN_RSP travels unreliable, so classify() never touches in_rel
	// for it; adopt both fields from the packet directly, matching
	// what classify() would have set had it arrived in order.
	p.inRel = pkt.Reliable
	p.inUnrel = pkt.Unreliable

	accepted := len(pkt.Payload) >= 4 && protocol.ConnRspAccepted(pkt.Payload)
	if !accepted {
		p.die()
		if p.hooks.OnDropped != nil {
			p.queueHook(func() { p.hooks.OnDropped(p) })
		}
		return
	}

	p.state = StateRun
	p.dropDeadline = now + p.cfg.DropTimeout.Milliseconds()
	// CONN_RSP travels unreliable, so no ack is owed for it directly;
	// must_ack stays unset, and this side's packets carry no ACK until a
	// reliable packet from the remote has been accepted.
	if p.hooks.OnNew != nil {
		p.queueHook(func() { p.hooks.OnNew(p) })
	}
}

func (p *Peer) handlePing(pkt *protocol.Packet) {
	if pkt.Flags&protocol.FlagRetransmitted != 0 {
		return // still ACKed by the caller; no PONG, avoids skewing RTT
	}
	echo := append([]byte(nil), pkt.Payload...)
	p.enqueueUnreliable(protocol.CmdPong, echo)
}

func (p *Peer) handlePong(pkt *protocol.Packet, now int64) {
	if len(pkt.Payload) < 8 {
		return
	}
	rtt := now - protocol.PingPongTimestamp(pkt.Payload)
	if rtt < 0 {
		rtt = 0
	}
	diff := p.srtt - rtt
	if diff < 0 {
		diff = -diff
	}
	p.rttvar = (3*p.rttvar + diff) / 4
	p.srtt = (7*p.srtt + rtt) / 8
	p.rto = p.srtt
	if maxRTO := p.cfg.MaxRTO.Milliseconds(); p.rto > maxRTO {
		p.rto = maxRTO
	}
	if p.hooks.OnLinkInfo != nil {
		info := p.linkInfoLocked()
		p.queueHook(func() { p.hooks.OnLinkInfo(p, info) })
	}
}

func (p *Peer) handleClose() {
	p.die()
	if p.hooks.OnDropped != nil {
		p.queueHook(func() { p.hooks.OnDropped(p) })
	}
}

func (p *Peer) handleApp(pkt *protocol.Packet) {
	if p.hooks.OnApp != nil {
		sub, data := pkt.AppSubCommand(), pkt.Payload
		p.queueHook(func() { p.hooks.OnApp(p, sub, data) })
	}
}

func (p *Peer) enqueueReliable(cmd uint8, payload []byte) {
	p.outRel++
	p.outUnrel = 0
	p.queue.Push(&rqueue.Entry{
		Header: protocol.Header{
			Command:  cmd,
			Flags:    protocol.FlagReliable,
			Reliable: p.outRel,
		},
		Payload: payload,
	})
}

func (p *Peer) enqueueUnreliable(cmd uint8, payload []byte) {
	p.outUnrel++
	p.queue.Push(&rqueue.Entry{
		Header: protocol.Header{
			Command:    cmd,
			Reliable:   p.outRel,
			Unreliable: p.outUnrel,
		},
		Payload: payload,
	})
}

// onTimer is the Scheduler callback: re-take the lock and run one
// service cycle.
func (p *Peer) onTimer() {
	pending := p.withLock(func() {
		if p.state == StateDead {
			return
		}
		p.service(p.clock.NowMillis())
	})
	runPending(pending)
}

// service implements §4.3.4's per-cycle algorithm.
func (p *Peer) service(now int64) {
	if now > p.dropDeadline {
		p.die()
		if p.hooks.OnDropped != nil {
			p.queueHook(func() { p.hooks.OnDropped(p) })
		}
		return
	}

	if p.queue.Empty() && now-p.lastOutTime > p.cfg.ActionTimeout.Milliseconds() {
		p.enqueueReliable(protocol.CmdPing, protocol.EncodeTimestampPayload(now))
	}

	p.runSendQueue(now)
	p.rearm(now)
}

func (p *Peer) runSendQueue(now int64) {
	p.queue.ServiceWalk(func(e *rqueue.Entry) (remove, stop bool) {
		wasSentBefore := e.Retransmitted()
		p.transmitEntry(e, now)

		switch {
		case e.Reliable() && wasSentBefore:
			p.rto *= 2
			if maxRTO := p.cfg.MaxRTO.Milliseconds(); p.rto > maxRTO {
				p.rto = maxRTO
			}
			util.Stats.AddRetransmit()
			return false, true
		case e.Reliable():
			e.Header.Flags |= protocol.FlagRetransmitted
			return false, false
		default:
			return true, false
		}
	})
}

func (p *Peer) transmitEntry(e *rqueue.Entry, now int64) {
	hdr := e.Header
	if p.mustAck {
		hdr.Flags |= protocol.FlagAck
		hdr.ReliableAck = p.inRel
	}
	raw := protocol.Encode(&protocol.Packet{Header: hdr, Payload: e.Payload})
	if _, err := p.endpoint.WriteTo(raw, p.remoteAddr); err != nil {
		util.LogWarning("peer %s: write failed: %v", p.remoteAddr, err)
	} else {
		util.Stats.AddSent(len(raw))
	}
	p.lastOutTime = now
}

// nextWake computes the next service-timer deadline per §4.3.4.
func (p *Peer) nextWake(now int64) int64 {
	var wake int64
	switch head := p.queue.Head(); {
	case head == nil:
		wake = now + p.cfg.ActionTimeout.Milliseconds()
	case head.Retransmitted():
		wake = p.lastOutTime + p.rto
	default:
		wake = now + 1
	}
	if wake > p.dropDeadline {
		wake = p.dropDeadline
	}
	if wake < now+1 {
		wake = now + 1
	}
	return wake
}

func (p *Peer) rearm(now int64) {
	if p.state == StateDead {
		if p.timer != nil {
			p.timer.Stop()
		}
		return
	}
	delay := time.Duration(p.nextWake(now)-now) * time.Millisecond
	if delay < time.Millisecond {
		delay = time.Millisecond
	}
	if p.timer == nil {
		p.timer = p.scheduler.AfterFunc(delay, p.onTimer)
		return
	}
	p.timer.Reset(delay)
}
