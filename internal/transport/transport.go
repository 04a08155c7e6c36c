// Package transport defines the wire-facing boundary the query layer
// calls out through: sending and receiving CBOR-encoded envelopes
// between the three helpers, plus the callback shape a concrete
// transport uses to hand inbound control commands back up to the
// query processor (mirrors original_source's TransportCallbacks /
// PrepareQueryCallback).
package transport

import (
	"context"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/luxfi/ipa-helper/pkg/ids"
)

// Command names the kind of control message an envelope carries.
// Records envelopes carry protocol payload traffic; the other two are
// query lifecycle control messages a helper can receive from a peer
// that originated a new_query call.
type Command uint8

const (
	// CommandPrepareQuery asks this helper to join a query another
	// helper originated (spec.md §4.C, prepare()).
	CommandPrepareQuery Command = iota
	// CommandQueryInput delivers this helper's share of the input
	// records for a query already in AwaitingInputs (spec.md §4.C,
	// receive_inputs()).
	CommandQueryInput
	// CommandRecords carries protocol-level share traffic between two
	// helpers on a specific (role, step) channel (spec.md §4.F/§4.G).
	CommandRecords
	// CommandPrepareAck carries a follower's acknowledgement of a
	// CommandPrepareQuery back to its originator — ok, or the error
	// that made it reject the query (spec.md §4.H, prepare()'s
	// WrongTarget/AlreadyRunning responses; §6's "peer responses: ok or
	// a typed PrepareQueryError").
	CommandPrepareAck
)

func (c Command) String() string {
	switch c {
	case CommandPrepareQuery:
		return "PrepareQuery"
	case CommandQueryInput:
		return "QueryInput"
	case CommandRecords:
		return "Records"
	case CommandPrepareAck:
		return "PrepareAck"
	default:
		return fmt.Sprintf("Command(%d)", c)
	}
}

// Envelope is the unit of wire traffic between two helpers.
type Envelope struct {
	QueryId ids.QueryId
	Command Command
	Channel ids.ChannelId // zero value for PrepareQuery/QueryInput
	Record  ids.RecordId
	Payload []byte
}

// Encode serializes an envelope with CBOR, the wire codec the teacher
// uses for every protocol message (pkg/protocol/handler.go).
func (e Envelope) Encode() ([]byte, error) {
	buf, err := cbor.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("transport: encoding envelope: %w", err)
	}
	return buf, nil
}

// Decode parses an envelope previously produced by Encode.
func Decode(buf []byte) (Envelope, error) {
	var e Envelope
	if err := cbor.Unmarshal(buf, &e); err != nil {
		return Envelope{}, fmt.Errorf("transport: decoding envelope: %w", err)
	}
	return e, nil
}

// Transport is the boundary the gateway and query processor send
// through and receive from. A concrete implementation owns actual
// network I/O (or, for tests, an in-memory switchboard); this package
// only fixes the shape.
type Transport interface {
	// Send delivers env to the named peer. It returns once the
	// transport has accepted the payload for delivery, not once the
	// peer has processed it.
	Send(ctx context.Context, to ids.HelperIdentity, env Envelope) error

	// Subscribe returns a channel of inbound envelopes matching cmd,
	// addressed to this helper. The channel is closed when ctx is
	// done.
	Subscribe(ctx context.Context, cmd Command) <-chan Envelope
}

// PrepareQueryRequest is the payload the originating helper sends when
// asking a peer to join a new query (spec.md §4.C, prepare()).
type PrepareQueryRequest struct {
	QueryId ids.QueryId
	Roles   ids.RoleAssignment
	Field   string
	// Origin is the coordinator that sent this request, so the
	// follower's acknowledgement (CommandPrepareAck) knows where to go.
	Origin ids.HelperIdentity
}

// QueryInputRequest delivers one helper's share of a query's input
// records.
type QueryInputRequest struct {
	QueryId ids.QueryId
	Records []byte
}

// Callbacks is the shape for handing inbound control traffic back to
// the owning query.Processor, mirroring
// original_source/src/query/processor.rs's TransportCallbacks /
// PrepareQueryCallback fixture. InMemoryNetwork does not use it:
// query.Processor reads PrepareQuery traffic through Subscribe.
type Callbacks struct {
	PrepareQuery func(ctx context.Context, req PrepareQueryRequest) error
	QueryInput   func(ctx context.Context, req QueryInputRequest) error
}
