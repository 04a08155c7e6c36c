package buffers

import (
	"context"
	"sync"

	"github.com/luxfi/ipa-helper/internal/coreerr"
	"github.com/luxfi/ipa-helper/pkg/ids"
)

// SendBuffer bounds how many outstanding (reserved but not yet handed
// off to the transport) messages one channel may have in flight,
// giving the gateway's SendingEnd backpressure instead of
// unbounded buffering (spec.md §5, Concurrency & Resource Model: "each
// channel has a fixed window of outstanding messages"), and enforces
// spec.md §4.E's per-channel send ordering: a record is only admitted
// to the transport once it is contiguous with this channel's current
// sent-frontier, so concurrent senders racing on out-of-order
// RecordIds still hand the network a contiguous, ordered stream.
type SendBuffer struct {
	slots chan struct{}

	mu       sync.Mutex
	frontier ids.RecordId
	waiting  map[ids.RecordId]chan struct{}
}

// NewSendBuffer builds a buffer that allows window outstanding sends
// before Reserve blocks, with its sent-frontier starting at record 0.
func NewSendBuffer(window int) *SendBuffer {
	if window <= 0 {
		window = 1
	}
	return &SendBuffer{
		slots:   make(chan struct{}, window),
		waiting: make(map[ids.RecordId]chan struct{}),
	}
}

// Reserve blocks until a send slot is free or ctx is done. Callers
// must call Release once the corresponding message has actually been
// handed off to the transport.
func (b *SendBuffer) Reserve(ctx context.Context) error {
	select {
	case b.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot previously taken by Reserve.
func (b *SendBuffer) Release() {
	select {
	case <-b.slots:
	default:
	}
}

// InFlight returns the number of slots currently reserved, for tests
// and idle checks.
func (b *SendBuffer) InFlight() int {
	return len(b.slots)
}

// Admit blocks until record is contiguous with this channel's
// sent-frontier (every lower RecordId on this channel has already
// been admitted), then advances the frontier past it and returns.
// Callers emit to the transport only after Admit returns, so two
// goroutines racing to send RecordId 3 and RecordId 0 concurrently
// still reach the wire in record order (spec.md §4.E, §8 scenario 6).
// Admitting the same record twice is a usage violation.
func (b *SendBuffer) Admit(ctx context.Context, record ids.RecordId) error {
	for {
		b.mu.Lock()
		if record < b.frontier {
			b.mu.Unlock()
			return coreerr.NewUsageError("record " + recordString(record) + " already sent on this channel")
		}
		if record == b.frontier {
			b.frontier++
			b.wakeLocked(b.frontier)
			b.mu.Unlock()
			return nil
		}
		ch, ok := b.waiting[record]
		if !ok {
			ch = make(chan struct{})
			b.waiting[record] = ch
		}
		b.mu.Unlock()

		select {
		case <-ch:
			// frontier advanced; loop back and recheck.
		case <-ctx.Done():
			b.mu.Lock()
			delete(b.waiting, record)
			b.mu.Unlock()
			return ctx.Err()
		}
	}
}

// wakeLocked wakes whichever goroutine is waiting for record, if any.
// Callers must hold b.mu.
func (b *SendBuffer) wakeLocked(record ids.RecordId) {
	if ch, ok := b.waiting[record]; ok {
		close(ch)
		delete(b.waiting, record)
	}
}
