package rqueue

import (
	"testing"

	"github.com/ardatrace/rudp/internal/protocol"
	"github.com/stretchr/testify/assert"
)

func reliableEntry(seq uint16, retransmitted bool) *Entry {
	flags := protocol.FlagReliable
	if retransmitted {
		flags |= protocol.FlagRetransmitted
	}
	return &Entry{Header: protocol.Header{Flags: flags, Reliable: seq}}
}

func TestFIFOOrder(t *testing.T) {
	q := New()
	q.Push(reliableEntry(1, false))
	q.Push(reliableEntry(2, false))
	q.Push(reliableEntry(3, false))

	assert.Equal(t, uint16(1), q.Head().Header.Reliable)
	e := q.PopHead()
	assert.Equal(t, uint16(1), e.Header.Reliable)
	assert.Equal(t, uint16(2), q.Head().Header.Reliable)
}

func TestTrimAckedPrefixStopsAtFirstFailure(t *testing.T) {
	q := New()
	q.Push(reliableEntry(1, true))
	q.Push(reliableEntry(2, true))
	q.Push(reliableEntry(3, false)) // not yet transmitted — must never be dropped
	q.Push(reliableEntry(4, true))

	ack := uint16(2)
	q.TrimAckedPrefix(func(e *Entry) bool {
		return e.Reliable() && e.Retransmitted() && !protocol.SeqAfter(e.Header.Reliable, ack)
	})

	assert.Equal(t, 2, q.Len())
	assert.Equal(t, uint16(3), q.Head().Header.Reliable)
}

func TestEmptyQueue(t *testing.T) {
	q := New()
	assert.True(t, q.Empty())
	assert.Nil(t, q.Head())
	assert.Nil(t, q.PopHead())
}

func TestEachStopsEarly(t *testing.T) {
	q := New()
	q.Push(reliableEntry(1, false))
	q.Push(reliableEntry(2, false))
	q.Push(reliableEntry(3, false))

	var seen []uint16
	q.Each(func(e *Entry) bool {
		seen = append(seen, e.Header.Reliable)
		return e.Header.Reliable < 2
	})

	assert.Equal(t, []uint16{1, 2}, seen)
}
