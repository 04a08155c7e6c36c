package gateway

import (
	"sync"

	"github.com/zeebo/blake3"

	"github.com/luxfi/ipa-helper/internal/buffers"
	"github.com/luxfi/ipa-helper/pkg/ids"
)

// shardCount fixes the number of stripes the receiver table is split
// across. original_source/src/helpers/gateway/receive.rs backs
// GatewayReceivers with a DashMap — Go has no direct pack equivalent
// of a sharded concurrent map, so this strikes the same balance by
// hand: fine-grained locking keyed by a hash of the channel, instead
// of one mutex guarding the whole table.
const shardCount = 16

// receiverTable is a striped map from ids.ChannelId to
// *buffers.ReceiveBuffer, built once per query.
type receiverTable struct {
	shards [shardCount]receiverShard
}

type receiverShard struct {
	mu   sync.Mutex
	data map[ids.ChannelId]*buffers.ReceiveBuffer
}

func newReceiverTable() *receiverTable {
	t := &receiverTable{}
	for i := range t.shards {
		t.shards[i].data = make(map[ids.ChannelId]*buffers.ReceiveBuffer)
	}
	return t
}

func shardFor(channel ids.ChannelId) int {
	h := blake3.Sum256([]byte(channel.String()))
	var idx uint64
	for _, b := range h[:8] {
		idx = idx<<8 | uint64(b)
	}
	return int(idx % shardCount)
}

// getOrCreate returns the receive buffer for channel, creating it on
// first use.
func (t *receiverTable) getOrCreate(channel ids.ChannelId) *buffers.ReceiveBuffer {
	s := &t.shards[shardFor(channel)]
	s.mu.Lock()
	defer s.mu.Unlock()
	buf, ok := s.data[channel]
	if !ok {
		buf = buffers.NewReceiveBuffer()
		s.data[channel] = buf
	}
	return buf
}

// idle reports whether every channel's receive buffer is idle
// (check_idle_and_reset from original_source/src/helpers/gateway/
// receive.rs).
func (t *receiverTable) idle() bool {
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		for _, buf := range s.data {
			if !buf.Idle() {
				s.mu.Unlock()
				return false
			}
		}
		s.mu.Unlock()
	}
	return true
}

// waiting returns every channel with an outstanding request, the
// get_waiting_messages diagnostic original_source exposes.
func (t *receiverTable) waiting() map[ids.ChannelId][]ids.RecordId {
	out := make(map[ids.ChannelId][]ids.RecordId)
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		for ch, buf := range s.data {
			if w := buf.Waiting(); len(w) > 0 {
				out[ch] = w
			}
		}
		s.mu.Unlock()
	}
	return out
}
