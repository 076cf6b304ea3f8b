// Package rqueue implements the per-peer outbound send queue (§4.2):
// a strict FIFO of packets awaiting first transmission or
// acknowledgement.
package rqueue

import "github.com/ardatrace/rudp/internal/protocol"

// Entry is one queued outbound packet plus the bookkeeping the peer
// engine needs to decide when to (re)transmit or drop it.
type Entry struct {
	Header  protocol.Header
	Payload []byte
}

// Reliable reports whether this entry carries the RELIABLE flag.
func (e *Entry) Reliable() bool {
	return e.Header.Flags&protocol.FlagReliable != 0
}

// Retransmitted reports whether this entry has already been sent at
// least once (and so would be a retransmit on its next send).
func (e *Entry) Retransmitted() bool {
	return e.Header.Flags&protocol.FlagRetransmitted != 0
}

// Queue is a FIFO of outbound entries. Enqueue order is strictly the
// order of insertion; Queue never reorders entries (§4.2).
type Queue struct {
	entries []*Entry
}

// New returns an empty Queue.
func New() *Queue {
	return &Queue{}
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	return len(q.entries)
}

// Empty reports whether the queue has no entries.
func (q *Queue) Empty() bool {
	return len(q.entries) == 0
}

// Head returns the first entry without removing it, or nil if empty.
func (q *Queue) Head() *Entry {
	if len(q.entries) == 0 {
		return nil
	}
	return q.entries[0]
}

// Push appends an entry to the tail of the queue.
func (q *Queue) Push(e *Entry) {
	q.entries = append(q.entries, e)
}

// PopHead removes and returns the first entry, or nil if empty.
func (q *Queue) PopHead() *Entry {
	if len(q.entries) == 0 {
		return nil
	}
	e := q.entries[0]
	q.entries = q.entries[1:]
	return e
}

// Each calls fn for every entry from head to tail. fn returns false to
// stop the walk early (mirrors §4.3.4's "stop the walk" rule and
// §4.3.2's ack-trim rule, both of which only ever touch a queue
// prefix).
func (q *Queue) Each(fn func(*Entry) bool) {
	for _, e := range q.entries {
		if !fn(e) {
			return
		}
	}
}

// TrimAckedPrefix drops entries from the head while pred returns
// true, stopping at the first entry pred rejects — §4.3.2's ack-walk
// rule: "Stop at the first entry that fails any of these predicates".
func (q *Queue) TrimAckedPrefix(pred func(*Entry) bool) {
	i := 0
	for i < len(q.entries) && pred(q.entries[i]) {
		i++
	}
	q.entries = q.entries[i:]
}

// ServiceWalk visits entries from head to tail, in order, exactly
// once each. visit returns whether its entry should be removed from
// the queue and whether the walk should stop immediately afterward —
// the shape a single service cycle needs (§4.3.4): unreliable entries
// are removed after transmit, a reliable entry's first transmission
// is kept and the walk continues, and a reliable retransmission halts
// the walk without removing anything.
func (q *Queue) ServiceWalk(visit func(e *Entry) (remove, stop bool)) {
	i := 0
	for i < len(q.entries) {
		remove, stop := visit(q.entries[i])
		if remove {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
		} else {
			i++
		}
		if stop {
			return
		}
	}
}
