package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	testCases := []struct {
		name string
		pkt  *Packet
	}{
		{
			name: "NOOP with no payload",
			pkt:  &Packet{Header: Header{Command: CmdNOOP, Reliable: 1, Unreliable: 2}},
		},
		{
			name: "CLOSE with no payload",
			pkt:  &Packet{Header: Header{Command: CmdClose, Flags: 0, Reliable: 10}},
		},
		{
			name: "APP with small payload",
			pkt: &Packet{
				Header:  Header{Command: CmdAppBase + 3, Flags: FlagReliable, Reliable: 42},
				Payload: []byte("hello"),
			},
		},
		{
			name: "APP with large payload",
			pkt: &Packet{
				Header:  Header{Command: CmdAppBase, Reliable: 999},
				Payload: make([]byte, 16*1024),
			},
		},
		{
			name: "APP with empty payload",
			pkt:  &Packet{Header: Header{Command: CmdAppBase + 1, Reliable: 555}},
		},
		{
			name: "CONN_REQ",
			pkt:  &Packet{Header: Header{Command: CmdConnReq, Flags: FlagReliable, Reliable: 1}, Payload: make([]byte, 4)},
		},
		{
			name: "PING",
			pkt:  &Packet{Header: Header{Command: CmdPing, Flags: FlagReliable}, Payload: make([]byte, 8)},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			encoded := Encode(tc.pkt)
			decoded, err := Decode(encoded)
			require.NoError(t, err)

			assert.Equal(t, tc.pkt.Command, decoded.Command)
			assert.Equal(t, tc.pkt.Flags, decoded.Flags)
			assert.Equal(t, tc.pkt.ReliableAck, decoded.ReliableAck)
			assert.Equal(t, tc.pkt.Reliable, decoded.Reliable)
			assert.Equal(t, tc.pkt.Unreliable, decoded.Unreliable)
			if len(tc.pkt.Payload) == 0 {
				assert.Empty(t, decoded.Payload)
			} else {
				assert.True(t, bytes.Equal(tc.pkt.Payload, decoded.Payload))
			}
		})
	}
}

func TestDecodeTooShort(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"1 byte", []byte{0x01}},
		{"7 bytes (one less than HeaderSize)", make([]byte, 7)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed))
		})
	}
}

func TestDecodeRejectsShortTypedPayload(t *testing.T) {
	testCases := []struct {
		name    string
		command uint8
		payload int
	}{
		{"CONN_REQ with 3 bytes", CmdConnReq, 3},
		{"CONN_RSP with 0 bytes", CmdConnRsp, 0},
		{"PING with 7 bytes", CmdPing, 7},
		{"PONG with 4 bytes", CmdPong, 4},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			raw := make([]byte, HeaderSize+tc.payload)
			raw[0] = tc.command
			_, err := Decode(raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed))
		})
	}
}

func TestDecodeRejectsPayloadOnNoPayloadCommands(t *testing.T) {
	for _, cmd := range []uint8{CmdNOOP, CmdClose} {
		raw := make([]byte, HeaderSize+1)
		raw[0] = cmd
		_, err := Decode(raw)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMalformed))
	}
}

func TestDecodePreservesPayload(t *testing.T) {
	original := &Packet{
		Header:  Header{Command: CmdAppBase, Reliable: 10},
		Payload: []byte("original"),
	}
	encoded := Encode(original)
	decoded, err := Decode(encoded)
	require.NoError(t, err)

	encoded[HeaderSize] = 0xFF

	assert.Equal(t, []byte("original"), decoded.Payload)
}

func TestAppSubCommand(t *testing.T) {
	pkt := &Packet{Header: Header{Command: CmdAppBase + 7}}
	assert.True(t, pkt.IsApp())
	assert.Equal(t, uint8(7), pkt.AppSubCommand())

	ctrl := &Packet{Header: Header{Command: CmdPing}}
	assert.False(t, ctrl.IsApp())
}

func TestConnRspAcceptedRoundTrip(t *testing.T) {
	raw := Encode(&Packet{
		Header:  Header{Command: CmdConnRsp, Flags: FlagAck, ReliableAck: 3, Reliable: 5},
		Payload: EncodeConnRspPayload(true),
	})
	pkt, err := Decode(raw)
	require.NoError(t, err)
	assert.True(t, ConnRspAccepted(pkt.Payload))

	raw = Encode(&Packet{
		Header:  Header{Command: CmdConnRsp, Flags: FlagAck, ReliableAck: 3, Reliable: 5},
		Payload: EncodeConnRspPayload(false),
	})
	pkt, err = Decode(raw)
	require.NoError(t, err)
	assert.False(t, ConnRspAccepted(pkt.Payload))
}

func TestPingPongTimestampRoundTrip(t *testing.T) {
	raw := Encode(&Packet{
		Header:  Header{Command: CmdPing, Flags: FlagReliable, Reliable: 1},
		Payload: EncodeTimestampPayload(1234567890),
	})
	pkt, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(1234567890), PingPongTimestamp(pkt.Payload))
}

func TestSeqDeltaWrap(t *testing.T) {
	assert.True(t, SeqAfter(0x0000, 0xFFFF))
	assert.False(t, SeqAfter(0xFFFF, 0x0000))
	assert.True(t, SeqAfterOrEqual(5, 5))
	assert.Equal(t, int16(1), SeqDelta(0, 0xFFFF))
}
