// Package gateway implements the per-query channel fabric spec.md
// §4.F/§4.G describe: a façade vending SendingEnd/ReceivingEnd handles
// keyed by (role, step), backed by a receive-side rendezvous table and
// send-side backpressure windows.
//
// Grounded on original_source/src/helpers/gateway/receive.rs
// (GatewayReceivers, check_idle_and_reset, get_waiting_messages) and
// src/helpers/buffers/receive.rs for the underlying rendezvous.
package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/luxfi/ipa-helper/internal/buffers"
	"github.com/luxfi/ipa-helper/internal/coreerr"
	"github.com/luxfi/ipa-helper/internal/telemetry"
	"github.com/luxfi/ipa-helper/internal/transport"
	"github.com/luxfi/ipa-helper/pkg/ids"
)

// Config fixes the send window a query's gateway uses (spec.md §5).
// ReceiveWindow is carried but not read: receive buffers are unbounded.
type Config struct {
	SendWindow    int
	ReceiveWindow int
}

// Gateway is the per-query channel façade. One Gateway is created when
// a query enters Running and torn down when the query completes or is
// removed.
type Gateway struct {
	queryId   ids.QueryId
	self      ids.HelperIdentity
	roles     ids.RoleAssignment
	transport transport.Transport
	cfg       Config
	log       *telemetry.Logger

	receivers *receiverTable

	sendMu  sync.RWMutex
	senders map[ids.ChannelId]*buffers.SendBuffer

	cancel context.CancelFunc
}

// New builds a Gateway for one query and starts its inbound dispatch
// loop, which demultiplexes Records envelopes addressed to this query
// into the right channel's receive buffer.
func New(ctx context.Context, queryId ids.QueryId, self ids.HelperIdentity, roles ids.RoleAssignment, t transport.Transport, cfg Config, log *telemetry.Logger) *Gateway {
	dispatchCtx, cancel := context.WithCancel(ctx)
	g := &Gateway{
		queryId:   queryId,
		self:      self,
		roles:     roles,
		transport: t,
		cfg:       cfg,
		log:       log,
		receivers: newReceiverTable(),
		senders:   make(map[ids.ChannelId]*buffers.SendBuffer),
		cancel:    cancel,
	}
	go g.dispatch(dispatchCtx)
	return g
}

func (g *Gateway) dispatch(ctx context.Context) {
	inbound := g.transport.Subscribe(ctx, transport.CommandRecords)
	for env := range inbound {
		if env.QueryId != g.queryId {
			continue
		}
		buf := g.receivers.getOrCreate(env.Channel)
		if err := buf.Deliver(env.Record, env.Payload); err != nil && g.log != nil {
			g.log.Error("gateway: dropping malformed delivery", err)
		}
	}
}

// Close stops the dispatch loop. Callers should call this when the
// owning query is removed (spec.md §4.C, RemoveQuery drop-guard
// semantics).
func (g *Gateway) Close() {
	g.cancel()
}

// Idle reports whether every channel this gateway has touched is
// currently idle.
func (g *Gateway) Idle() bool {
	return g.receivers.idle()
}

// Waiting returns the outstanding receive requests across every
// channel, for diagnostics.
func (g *Gateway) Waiting() map[ids.ChannelId][]ids.RecordId {
	return g.receivers.waiting()
}

func (g *Gateway) sendBufferFor(channel ids.ChannelId) *buffers.SendBuffer {
	g.sendMu.RLock()
	sb, ok := g.senders[channel]
	g.sendMu.RUnlock()
	if ok {
		return sb
	}

	g.sendMu.Lock()
	defer g.sendMu.Unlock()
	if sb, ok = g.senders[channel]; ok {
		return sb
	}
	sb = buffers.NewSendBuffer(g.cfg.SendWindow)
	g.senders[channel] = sb
	return sb
}

// SendingEnd returns the handle used to send records to peer on
// channel.
func (g *Gateway) SendingEnd(channel ids.ChannelId, peer ids.HelperIdentity) *SendingEnd {
	return &SendingEnd{
		gw:      g,
		channel: channel,
		peer:    peer,
		buf:     g.sendBufferFor(channel),
	}
}

// ReceivingEnd returns the handle used to receive records from
// channel, where the peer is implied by channel.Role.
func (g *Gateway) ReceivingEnd(channel ids.ChannelId) *ReceivingEnd {
	return &ReceivingEnd{
		recv: buffers.NewUnorderedReceiver(g.receivers.getOrCreate(channel)),
	}
}

// SendingEnd is the handle a protocol round uses to push outbound
// records on one channel (spec.md §4.F).
type SendingEnd struct {
	gw      *Gateway
	channel ids.ChannelId
	peer    ids.HelperIdentity
	buf     *buffers.SendBuffer
}

// Send transmits payload as record on this channel, blocking while the
// channel's send window is full or while record is not yet contiguous
// with this channel's sent-frontier (spec.md §4.E).
func (s *SendingEnd) Send(ctx context.Context, record ids.RecordId, payload []byte) error {
	// Admit first: it only blocks on ordering (every lower RecordId
	// must be admitted first), which always eventually resolves on
	// its own. Reserving the capacity slot first could deadlock a
	// full window of out-of-order callers all waiting on each other's
	// turn to admit.
	if err := s.buf.Admit(ctx, record); err != nil {
		return fmt.Errorf("gateway: admitting record %d: %w", record, err)
	}

	if err := s.buf.Reserve(ctx); err != nil {
		return fmt.Errorf("gateway: reserving send slot: %w", err)
	}
	defer s.buf.Release()

	env := transport.Envelope{
		QueryId: s.gw.queryId,
		Command: transport.CommandRecords,
		Channel: s.channel,
		Record:  record,
		Payload: payload,
	}
	if err := s.gw.transport.Send(ctx, s.peer, env); err != nil {
		return coreerr.NewTransportError(s.peer, err)
	}
	return nil
}

// ReceivingEnd is the handle a protocol round uses to pull inbound
// records on one channel (spec.md §4.G).
type ReceivingEnd struct {
	recv *buffers.UnorderedReceiver
}

// Receive blocks until record arrives on this channel or ctx is done.
func (r *ReceivingEnd) Receive(ctx context.Context, record ids.RecordId) ([]byte, error) {
	payload, err := r.recv.Receive(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("gateway: receiving record %d: %w", record, err)
	}
	return payload, nil
}
