// Package buffers implements the rendezvous and backpressure machinery
// between the gateway and the network: an unordered receive buffer
// that pairs up arrivals and requests by record id regardless of which
// comes first, and a bounded send buffer that gives each channel a
// fixed outstanding-message window.
//
// Grounded on original_source/src/helpers/buffers/receive.rs: that
// file's ReceiveBuffer keeps a map from RecordId to either a
// "Requested" waiter or a "Received" payload and panics if either slot
// is filled twice. Go has no catchable panic-as-control-flow
// equivalent worth reaching for here, so a duplicate fill returns a
// coreerr.UsageError instead — same fatal severity, idiomatic shape.
package buffers

import (
	"context"
	"strconv"
	"sync"

	"github.com/luxfi/ipa-helper/internal/coreerr"
	"github.com/luxfi/ipa-helper/pkg/ids"
)

type slotState int

const (
	slotEmpty slotState = iota
	slotRequested
	slotReceived
)

type slot struct {
	state slotState
	ch    chan []byte
	data  []byte
}

// ReceiveBuffer pairs inbound message arrivals with the record ids a
// caller is waiting on, for one (role, step) channel. The caller and
// the network can arrive in either order.
type ReceiveBuffer struct {
	mu    sync.Mutex
	slots map[ids.RecordId]*slot
}

// NewReceiveBuffer constructs an empty buffer.
func NewReceiveBuffer() *ReceiveBuffer {
	return &ReceiveBuffer{slots: make(map[ids.RecordId]*slot)}
}

// Request registers interest in record and returns a channel that
// yields exactly one payload once it arrives (or immediately, if it
// already has). Requesting the same record twice without an
// intervening Deliver is a usage violation.
func (b *ReceiveBuffer) Request(record ids.RecordId) (<-chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.slots[record]
	if !ok {
		s = &slot{state: slotRequested, ch: make(chan []byte, 1)}
		b.slots[record] = s
		return s.ch, nil
	}

	switch s.state {
	case slotReceived:
		ch := make(chan []byte, 1)
		ch <- s.data
		delete(b.slots, record)
		return ch, nil
	case slotRequested:
		return nil, coreerr.NewUsageError("duplicate receive request for record " + recordString(record))
	default:
		return nil, coreerr.NewUsageError("receive buffer in inconsistent state for record " + recordString(record))
	}
}

// Deliver hands payload to whichever caller is (or will be) waiting on
// record. Delivering the same record twice without an intervening
// Request is a usage violation, mirroring the Rust original's panic on
// a duplicate Received slot.
func (b *ReceiveBuffer) Deliver(record ids.RecordId, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.slots[record]
	if !ok {
		b.slots[record] = &slot{state: slotReceived, data: payload}
		return nil
	}

	switch s.state {
	case slotRequested:
		s.ch <- payload
		delete(b.slots, record)
		return nil
	case slotReceived:
		return coreerr.NewUsageError("duplicate message delivery for record " + recordString(record))
	default:
		return coreerr.NewUsageError("receive buffer in inconsistent state for record " + recordString(record))
	}
}

// Idle reports whether the buffer currently holds no pending requests
// or undelivered messages, the condition check_idle_and_reset checks
// for on the gateway side before recycling a channel.
func (b *ReceiveBuffer) Idle() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.slots) == 0
}

// Waiting returns the record ids with an outstanding (unfulfilled)
// request, supplementing get_waiting_messages from
// original_source/src/helpers/gateway/receive.rs for diagnostics and
// tests.
func (b *ReceiveBuffer) Waiting() []ids.RecordId {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ids.RecordId, 0, len(b.slots))
	for r, s := range b.slots {
		if s.state == slotRequested {
			out = append(out, r)
		}
	}
	return out
}

// UnorderedReceiver adds context cancellation on top of ReceiveBuffer
// for callers that want to block on a single record's arrival.
type UnorderedReceiver struct {
	buf *ReceiveBuffer
}

// NewUnorderedReceiver wraps buf.
func NewUnorderedReceiver(buf *ReceiveBuffer) *UnorderedReceiver {
	return &UnorderedReceiver{buf: buf}
}

// Receive blocks until record's payload arrives or ctx is done.
func (r *UnorderedReceiver) Receive(ctx context.Context, record ids.RecordId) ([]byte, error) {
	ch, err := r.buf.Request(record)
	if err != nil {
		return nil, err
	}
	select {
	case payload := <-ch:
		return payload, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func recordString(r ids.RecordId) string {
	return strconv.FormatUint(uint64(r), 10)
}
