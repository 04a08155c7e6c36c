package transport

import (
	"context"
	"sync"

	"github.com/luxfi/ipa-helper/pkg/ids"
)

// InMemoryNetwork wires up one Transport per ring member, all sharing
// in-process channels instead of sockets. It supplements
// original_source's InMemoryNetwork test fixture (processor.rs's test
// module) as a real, usable transport rather than a test-only stub:
// nothing stops a single-process deployment (e.g. an integration test
// running all three helpers) from using it directly.
type InMemoryNetwork struct {
	mu    sync.Mutex
	nodes map[ids.HelperIdentity]*inMemoryTransport
}

// NewInMemoryNetwork builds a network connecting exactly the given
// identities.
func NewInMemoryNetwork(members [3]ids.HelperIdentity) *InMemoryNetwork {
	net := &InMemoryNetwork{nodes: make(map[ids.HelperIdentity]*inMemoryTransport, 3)}
	for _, id := range members {
		net.nodes[id] = &inMemoryTransport{
			self:    id,
			net:     net,
			inboxes: make(map[Command]chan Envelope),
		}
	}
	return net
}

// For returns the Transport view a given ring member uses to send and
// receive.
func (n *InMemoryNetwork) For(id ids.HelperIdentity) Transport {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.nodes[id]
}

type inMemoryTransport struct {
	self ids.HelperIdentity
	net  *InMemoryNetwork

	mu      sync.Mutex
	inboxes map[Command]chan Envelope
}

func (t *inMemoryTransport) inbox(cmd Command) chan Envelope {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, ok := t.inboxes[cmd]
	if !ok {
		ch = make(chan Envelope, 256)
		t.inboxes[cmd] = ch
	}
	return ch
}

func (t *inMemoryTransport) Send(ctx context.Context, to ids.HelperIdentity, env Envelope) error {
	t.net.mu.Lock()
	dst, ok := t.net.nodes[to]
	t.net.mu.Unlock()
	if !ok {
		return &UnknownPeerError{Peer: to}
	}
	inbox := dst.inbox(env.Command)
	select {
	case inbox <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *inMemoryTransport) Subscribe(ctx context.Context, cmd Command) <-chan Envelope {
	src := t.inbox(cmd)
	out := make(chan Envelope)
	go func() {
		defer close(out)
		for {
			select {
			case env, ok := <-src:
				if !ok {
					return
				}
				select {
				case out <- env:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// UnknownPeerError reports a Send to an identity the network wasn't
// built with.
type UnknownPeerError struct {
	Peer ids.HelperIdentity
}

func (e *UnknownPeerError) Error() string {
	return "transport: unknown peer " + string(e.Peer)
}
