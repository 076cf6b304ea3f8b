package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrMalformed is returned by Decode when the datagram is shorter than
// the fixed header, or shorter than the minimum payload the command
// requires. The codec performs no semantic validation beyond
// structure.
var ErrMalformed = errors.New("protocol: malformed packet")

// Encode serializes a Packet into a byte slice ready for transmission.
// The header fields are written in network byte order; the payload is
// copied verbatim after the header.
func Encode(pkt *Packet) []byte {
	buf := make([]byte, HeaderSize+len(pkt.Payload))
	buf[0] = pkt.Command
	buf[1] = pkt.Flags
	binary.BigEndian.PutUint16(buf[2:4], pkt.ReliableAck)
	binary.BigEndian.PutUint16(buf[4:6], pkt.Reliable)
	binary.BigEndian.PutUint16(buf[6:8], pkt.Unreliable)
	if len(pkt.Payload) > 0 {
		copy(buf[HeaderSize:], pkt.Payload)
	}
	return buf
}

// Decode parses a byte slice into a Packet. It fails with
// ErrMalformed when the total length is less than HeaderSize or does
// not meet the minimum payload length the command requires.
func Decode(data []byte) (*Packet, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes (need at least %d)", ErrMalformed, len(data), HeaderSize)
	}

	pkt := &Packet{
		Header: Header{
			Command:     data[0],
			Flags:       data[1],
			ReliableAck: binary.BigEndian.Uint16(data[2:4]),
			Reliable:    binary.BigEndian.Uint16(data[4:6]),
			Unreliable:  binary.BigEndian.Uint16(data[6:8]),
		},
	}

	payload := data[HeaderSize:]
	if need := minPayloadLen(pkt.Command); len(payload) < need {
		return nil, fmt.Errorf("%w: command 0x%02x needs %d payload bytes, got %d",
			ErrMalformed, pkt.Command, need, len(payload))
	}
	if (pkt.Command == CmdNOOP || pkt.Command == CmdClose) && len(payload) != 0 {
		return nil, fmt.Errorf("%w: command 0x%02x takes no payload, got %d bytes",
			ErrMalformed, pkt.Command, len(payload))
	}

	if len(payload) > 0 {
		pkt.Payload = make([]byte, len(payload))
		copy(pkt.Payload, payload)
	}

	return pkt, nil
}

// EncodeConnReqPayload returns CONN_REQ's 4 zero opaque bytes (§4.1).
func EncodeConnReqPayload() []byte {
	return make([]byte, 4)
}

// EncodeConnRspPayload builds the 4-byte big-endian accepted field
// carried by a CONN_RSP.
func EncodeConnRspPayload(accepted bool) []byte {
	payload := make([]byte, 4)
	if accepted {
		binary.BigEndian.PutUint32(payload, 1)
	}
	return payload
}

// ConnRspAccepted decodes the 4-byte accepted field of a CONN_RSP
// payload. Nonzero means accepted.
func ConnRspAccepted(payload []byte) bool {
	return binary.BigEndian.Uint32(payload) != 0
}

// EncodeTimestampPayload builds the 8-byte millisecond timestamp
// carried by a PING/PONG payload.
func EncodeTimestampPayload(timestampMs int64) []byte {
	payload := make([]byte, 8)
	binary.BigEndian.PutUint64(payload, uint64(timestampMs))
	return payload
}

// PingPongTimestamp decodes the 8-byte millisecond timestamp carried
// by a PING/PONG payload.
func PingPongTimestamp(payload []byte) int64 {
	return int64(binary.BigEndian.Uint64(payload))
}
