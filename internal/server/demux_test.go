package server

import (
	"net"
	"testing"

	"github.com/ardatrace/rudp/internal/config"
	"github.com/ardatrace/rudp/internal/netio"
	"github.com/ardatrace/rudp/internal/peerengine"
	"github.com/ardatrace/rudp/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEndpoint struct {
	addr net.Addr
	sent []*protocol.Packet
}

func newFakeEndpoint(addr net.Addr) *fakeEndpoint { return &fakeEndpoint{addr: addr} }

func (e *fakeEndpoint) WriteTo(b []byte, _ net.Addr) (int, error) {
	pkt, err := protocol.Decode(b)
	if err != nil {
		return 0, err
	}
	e.sent = append(e.sent, pkt)
	return len(b), nil
}

func (e *fakeEndpoint) LocalAddr() net.Addr { return e.addr }
func (e *fakeEndpoint) Close() error        { return nil }

func (e *fakeEndpoint) drain() []*protocol.Packet {
	out := e.sent
	e.sent = nil
	return out
}

func testClientAddr() net.Addr { return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 5000} }

func newTestDemux(hooks peerengine.Hooks) (*Demux, *fakeEndpoint, *netio.FakeClock) {
	clock := netio.NewFakeClock(0)
	sched := netio.NewFakeScheduler()
	ep := newFakeEndpoint(&net.UDPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 9000})
	d := NewDemux(ep, clock, sched, config.Default(), hooks)
	return d, ep, clock
}

func connReqDatagram() []byte {
	return protocol.Encode(&protocol.Packet{
		Header:  protocol.Header{Command: protocol.CmdConnReq, Flags: protocol.FlagReliable, Reliable: 1},
		Payload: protocol.EncodeConnReqPayload(),
	})
}

func TestUnknownAddressWithConnReqCreatesPeer(t *testing.T) {
	var newCount int
	d, _, _ := newTestDemux(peerengine.Hooks{OnNew: func(p *peerengine.Peer) { newCount++ }})

	d.HandleDatagram(connReqDatagram(), testClientAddr())
	require.Equal(t, 1, d.Len())
	assert.Equal(t, 1, newCount)

	peers := d.Peers()
	require.Len(t, peers, 1)
	assert.Equal(t, peerengine.StateRun, peers[0].State())
	assert.Equal(t, 1, peers[0].LinkInfo().QueueDepth) // CONN_RSP queued, awaiting the peer's own timer
}

func TestUnknownAddressNonConnReqIsDropped(t *testing.T) {
	d, _, _ := newTestDemux(peerengine.Hooks{})

	appPkt := protocol.Encode(&protocol.Packet{
		Header: protocol.Header{Command: protocol.CmdAppBase + 1, Reliable: 1, Flags: protocol.FlagReliable},
	})
	d.HandleDatagram(appPkt, testClientAddr())

	assert.Equal(t, 0, d.Len())
}

func TestKnownAddressRoutesToExistingPeer(t *testing.T) {
	var appCount int
	d, _, _ := newTestDemux(peerengine.Hooks{
		OnApp: func(p *peerengine.Peer, sub uint8, data []byte) { appCount++ },
	})

	addr := testClientAddr()
	d.HandleDatagram(connReqDatagram(), addr)
	peers := d.Peers()
	require.Len(t, peers, 1)

	appPkt := protocol.Encode(&protocol.Packet{
		Header:  protocol.Header{Command: protocol.CmdAppBase + 2, Flags: protocol.FlagReliable, Reliable: 2},
		Payload: []byte("hi"),
	})
	d.HandleDatagram(appPkt, addr)

	assert.Equal(t, 1, appCount)
	assert.Equal(t, 1, d.Len())
}

func TestPeerDropRemovesFromTable(t *testing.T) {
	var droppedCount int
	d, _, _ := newTestDemux(peerengine.Hooks{
		OnDropped: func(p *peerengine.Peer) { droppedCount++ },
	})

	addr := testClientAddr()
	d.HandleDatagram(connReqDatagram(), addr)
	require.Equal(t, 1, d.Len())

	peers := d.Peers()
	closePkt := protocol.Encode(&protocol.Packet{
		Header: protocol.Header{Command: protocol.CmdClose, Reliable: peers[0].LinkInfo().InRel, Unreliable: 1},
	})
	d.HandleDatagram(closePkt, addr)

	assert.Equal(t, 1, droppedCount)
	assert.Equal(t, 0, d.Len())
}

func TestAddrKeyIgnoresPointerIdentity(t *testing.T) {
	a := &net.UDPAddr{IP: net.IPv4(192, 168, 1, 1), Port: 4000}
	b := &net.UDPAddr{IP: net.IPv4(192, 168, 1, 1), Port: 4000}
	assert.Equal(t, addrKey(a), addrKey(b))

	c := &net.UDPAddr{IP: net.IPv4(192, 168, 1, 2), Port: 4000}
	assert.NotEqual(t, addrKey(a), addrKey(c))
}
