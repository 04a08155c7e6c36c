package query

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/ipa-helper/internal/coreerr"
	"github.com/luxfi/ipa-helper/internal/gateway"
	"github.com/luxfi/ipa-helper/internal/telemetry"
	"github.com/luxfi/ipa-helper/internal/transport"
	"github.com/luxfi/ipa-helper/pkg/executor"
	"github.com/luxfi/ipa-helper/pkg/ids"
)

// runningHolder carries the executor.RunningQuery handle once a query
// reaches Running; kept out of Entry's exported surface since only the
// Processor that created it ever touches it.
type runningHolder struct {
	rq executor.RunningQuery
}

// prepareAck is the wire payload a follower sends back to a
// coordinator in response to CommandPrepareQuery: ok, or the error
// that made it reject the query (spec.md §4.H, prepare(); §6's "peer
// responses: ok or a typed PrepareQueryError").
type prepareAck struct {
	QueryId ids.QueryId
	From    ids.HelperIdentity
	Err     string
}

// ackKey identifies one outstanding prepare acknowledgement a
// coordinator is waiting on, for one peer of one query.
type ackKey struct {
	id   ids.QueryId
	peer ids.HelperIdentity
}

// Processor is the single entry point for every query lifecycle
// operation a helper performs: originating a new query, accepting one
// a peer originated, accepting input records, reporting status, and
// retrieving the finished result. Grounded on
// original_source/src/query/processor.rs's Processor struct and its
// new_query/prepare/receive_inputs/query_status/complete methods.
type Processor struct {
	self      ids.HelperIdentity
	registry  *Registry
	transport transport.Transport
	gwCfg     gateway.Config
	log       *telemetry.Logger
	executor  executor.Executor

	runningMu sync.Mutex
	running   map[ids.QueryId]*runningHolder

	ackMu   sync.Mutex
	ackWait map[ackKey]chan prepareAck
}

// NewProcessor builds a Processor and starts its inbound dispatch
// loops, which answer peers' CommandPrepareQuery requests (calling
// Prepare and acknowledging the result) and deliver CommandPrepareAck
// replies back to whichever NewQuery call is waiting on them. Both
// loops stop when ctx is done. exec may be nil for deployments that
// drive protocol rounds directly against the gateway (as the executor
// package's own tests do) rather than through the Executor interface.
func NewProcessor(ctx context.Context, self ids.HelperIdentity, t transport.Transport, gwCfg gateway.Config, log *telemetry.Logger, exec executor.Executor) *Processor {
	p := &Processor{
		self:      self,
		registry:  NewRegistry(),
		transport: t,
		gwCfg:     gwCfg,
		log:       log,
		executor:  exec,
		running:   make(map[ids.QueryId]*runningHolder),
		ackWait:   make(map[ackKey]chan prepareAck),
	}
	go p.dispatchPrepareRequests(ctx)
	go p.dispatchPrepareAcks(ctx)
	return p
}

// Registry exposes the underlying registry for status/diagnostic
// callers that need entries this Processor doesn't otherwise surface.
func (p *Processor) Registry() *Registry { return p.registry }

// dispatchPrepareRequests answers inbound CommandPrepareQuery
// envelopes from peers: it runs Prepare and sends the result back to
// req.Origin as a CommandPrepareAck, mirroring
// original_source/src/query/processor.rs's PrepareQueryCallback.
func (p *Processor) dispatchPrepareRequests(ctx context.Context) {
	inbound := p.transport.Subscribe(ctx, transport.CommandPrepareQuery)
	for env := range inbound {
		var req transport.PrepareQueryRequest
		if err := cbor.Unmarshal(env.Payload, &req); err != nil {
			if p.log != nil {
				p.log.Error("query: decoding prepare request", err)
			}
			continue
		}

		ack := prepareAck{QueryId: req.QueryId, From: p.self}
		if err := p.Prepare(ctx, req); err != nil {
			ack.Err = err.Error()
		}

		payload, err := cbor.Marshal(ack)
		if err != nil {
			if p.log != nil {
				p.log.Error("query: encoding prepare ack", err)
			}
			continue
		}
		ackEnv := transport.Envelope{QueryId: req.QueryId, Command: transport.CommandPrepareAck, Payload: payload}
		if err := p.transport.Send(ctx, req.Origin, ackEnv); err != nil && p.log != nil {
			p.log.Error("query: sending prepare ack", err)
		}
	}
}

// dispatchPrepareAcks delivers inbound CommandPrepareAck envelopes to
// whichever NewQuery call registered a waiter for that (query, peer)
// pair.
func (p *Processor) dispatchPrepareAcks(ctx context.Context) {
	inbound := p.transport.Subscribe(ctx, transport.CommandPrepareAck)
	for env := range inbound {
		var ack prepareAck
		if err := cbor.Unmarshal(env.Payload, &ack); err != nil {
			if p.log != nil {
				p.log.Error("query: decoding prepare ack", err)
			}
			continue
		}

		key := ackKey{id: ack.QueryId, peer: ack.From}
		p.ackMu.Lock()
		ch, ok := p.ackWait[key]
		if ok {
			delete(p.ackWait, key)
		}
		p.ackMu.Unlock()
		if ok {
			ch <- ack
		}
	}
}

func (p *Processor) registerAck(id ids.QueryId, peer ids.HelperIdentity) chan prepareAck {
	ch := make(chan prepareAck, 1)
	p.ackMu.Lock()
	p.ackWait[ackKey{id: id, peer: peer}] = ch
	p.ackMu.Unlock()
	return ch
}

func (p *Processor) clearAck(id ids.QueryId, peer ids.HelperIdentity) {
	p.ackMu.Lock()
	delete(p.ackWait, ackKey{id: id, peer: peer})
	p.ackMu.Unlock()
}

// NewQuery originates a query: it assigns roles (this helper always
// becomes H1, the coordinator), inserts a Preparing entry, and asks
// the other two ring members to prepare the same query id, awaiting
// each one's acknowledgement. If any peer rejects (e.g. WrongTarget)
// or is unreachable, the partial entry is rolled back (RemoveGuard) so
// a retry with the same id doesn't spuriously see AlreadyRunning
// (spec.md §4.H; §7's Transport error path; §8 scenario 2).
func (p *Processor) NewQuery(ctx context.Context, id ids.QueryId, ring [3]ids.HelperIdentity, field string) (*Entry, error) {
	others := p.self.Others(ring)
	roles, err := ids.NewRoleAssignment(p.self, others[0], others[1])
	if err != nil {
		return nil, fmt.Errorf("query: building role assignment: %w", err)
	}

	entry, err := p.registry.Insert(id, roles, field)
	if err != nil {
		return nil, err
	}
	guard := NewRemoveGuard(p.registry, id)
	defer guard.Close()

	req := transport.PrepareQueryRequest{QueryId: id, Roles: roles, Field: field, Origin: p.self}
	payload, err := cbor.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("query: encoding prepare request: %w", err)
	}

	// Broadcast concurrently and await each peer's acknowledgement: if
	// either peer rejects or is unreachable, the group fails fast and
	// the guard above rolls the entry back, mirroring
	// original_source/src/query/processor.rs's try_join over both
	// prepare calls.
	g, gctx := errgroup.WithContext(ctx)
	for _, peer := range others {
		peer := peer
		waiter := p.registerAck(id, peer)
		g.Go(func() error {
			env := transport.Envelope{QueryId: id, Command: transport.CommandPrepareQuery, Payload: payload}
			if err := p.transport.Send(gctx, peer, env); err != nil {
				p.clearAck(id, peer)
				return coreerr.NewTransportError(peer, err)
			}
			select {
			case ack := <-waiter:
				if ack.Err != "" {
					return coreerr.NewTransportError(peer, errors.New(ack.Err))
				}
				return nil
			case <-gctx.Done():
				p.clearAck(id, peer)
				return coreerr.NewTransportError(peer, gctx.Err())
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := entry.transition(StateAwaitingInputs); err != nil {
		return nil, err
	}
	guard.Commit()
	if p.log != nil {
		p.log.ForQuery(string(id)).Transition(StatePreparing.String(), StateAwaitingInputs.String())
	}
	return entry, nil
}

// Prepare accepts a query a peer originated: it rejects with
// WrongTarget if the role req.Roles assigns this helper is H1 (only a
// coordinator calls NewQuery on itself; a follower receiving a prepare
// naming it H1 indicates a role-assignment bug upstream), rejects with
// AlreadyRunning if req.QueryId already has a not-yet-Completed entry,
// and otherwise
// inserts the entry and advances it straight to AwaitingInputs
// (spec.md §4.H, prepare()). This call does no peer I/O.
func (p *Processor) Prepare(ctx context.Context, req transport.PrepareQueryRequest) error {
	if role, ok := req.Roles.Role(p.self); ok && role == ids.H1 {
		return coreerr.NewWrongTarget(p.self)
	}

	entry, err := p.registry.Insert(req.QueryId, req.Roles, req.Field)
	if err != nil {
		return err
	}
	guard := NewRemoveGuard(p.registry, req.QueryId)
	defer guard.Close()

	if err := entry.transition(StateAwaitingInputs); err != nil {
		return err
	}
	guard.Commit()
	return nil
}

// ReceiveInputs accepts this helper's share of a query's input
// records, builds its gateway, and — if an Executor was configured —
// starts the protocol run (spec.md §4.H, receive_inputs()).
func (p *Processor) ReceiveInputs(ctx context.Context, id ids.QueryId, records io.Reader, keys executor.KeyRegistry) error {
	entry, err := p.registry.Get(id)
	if err != nil {
		return err
	}
	if err := entry.transition(StateRunning); err != nil {
		return err
	}

	gw := gateway.New(ctx, id, p.self, entry.Roles(), p.transport, p.gwCfg, p.log)
	entry.setGateway(gw)
	if p.log != nil {
		p.log.ForQuery(string(id)).Transition(StateAwaitingInputs.String(), StateRunning.String())
	}

	if p.executor == nil {
		return nil
	}

	cfg := executor.Config{QueryId: id, Roles: entry.Roles(), Field: entry.field, Self: p.self}
	rq, err := p.executor.Execute(ctx, cfg, keys, gw, records)
	if err != nil {
		return coreerr.NewProtocolError(err)
	}

	p.runningMu.Lock()
	p.running[id] = &runningHolder{rq: rq}
	p.runningMu.Unlock()
	return nil
}

// Status reports id's current lifecycle stage. If the query is
// Running, it first polls the executor handle once, without blocking,
// and upgrades the entry to Completed if the handle reports it's
// done — spec.md §4.H's "under the lock, take out the state; if it is
// Running, non-blockingly poll the handle once and upgrade to
// Completed(result) if ready" (§8 scenario 5).
func (p *Processor) Status(id ids.QueryId) (State, error) {
	entry, err := p.registry.Get(id)
	if err != nil {
		return 0, err
	}

	if entry.State() == StateRunning {
		p.pollRunning(id, entry)
	}

	return entry.State(), nil
}

// pollRunning implements the non-blocking half of query_status: if the
// executor handle for id reports StatusCompleted, its result is taken
// via a Wait call that cannot actually block (the handle already says
// it's done) and stored on the entry, which transitions to Completed.
func (p *Processor) pollRunning(id ids.QueryId, entry *Entry) {
	p.runningMu.Lock()
	holder, ok := p.running[id]
	p.runningMu.Unlock()
	if !ok || holder.rq.Status() != executor.StatusCompleted {
		return
	}

	result, err := holder.rq.Wait(context.Background())
	if err != nil {
		return
	}
	if err := entry.transition(StateCompleted); err != nil {
		return
	}
	entry.setResult(result)
	if p.log != nil {
		p.log.ForQuery(string(id)).Transition(StateRunning.String(), StateCompleted.String())
	}

	p.runningMu.Lock()
	delete(p.running, id)
	p.runningMu.Unlock()
}

// Complete blocks until id's executor run finishes and returns its
// result (spec.md §4.H, complete()). A Running entry is first swapped
// to AwaitingCompletion and wrapped in a drop-guard, so that if ctx is
// canceled or the executor fails mid-wait, the registry entry is
// still removed rather than left dangling in AwaitingCompletion
// (spec.md §5's cancellation guarantee). If the entry already carries
// a result — because Status already observed completion — it is
// returned directly without waiting again.
func (p *Processor) Complete(ctx context.Context, id ids.QueryId) (executor.Result, error) {
	entry, err := p.registry.Get(id)
	if err != nil {
		return executor.Result{}, err
	}

	if result, ok := entry.Result(); ok {
		p.registry.Remove(id)
		return result, nil
	}

	if state := entry.State(); state != StateRunning {
		return executor.Result{}, coreerr.NewInvalidState(state.String(), StateCompleted.String())
	}

	if err := entry.transition(StateAwaitingCompletion); err != nil {
		return executor.Result{}, err
	}
	if p.log != nil {
		p.log.ForQuery(string(id)).Transition(StateRunning.String(), StateAwaitingCompletion.String())
	}

	p.runningMu.Lock()
	holder, ok := p.running[id]
	p.runningMu.Unlock()
	if !ok {
		return executor.Result{}, coreerr.NewUsageError("query has no running executor to complete")
	}

	// Disarmed on a successful completion (which removes the entry
	// itself, after the result is safely stored); otherwise runs on
	// return and removes the AwaitingCompletion entry.
	guard := NewRemoveGuard(p.registry, id)
	defer guard.Close()

	result, err := holder.rq.Wait(ctx)
	if err != nil {
		return executor.Result{}, coreerr.NewProtocolError(err)
	}

	if err := entry.transition(StateCompleted); err != nil {
		return executor.Result{}, err
	}
	entry.setResult(result)
	if p.log != nil {
		p.log.ForQuery(string(id)).Transition(StateAwaitingCompletion.String(), StateCompleted.String())
	}
	guard.Commit()

	p.runningMu.Lock()
	delete(p.running, id)
	p.runningMu.Unlock()
	p.registry.Remove(id)

	return result, nil
}
