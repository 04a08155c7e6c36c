// Package coreerr defines the error taxonomy spec.md §7 describes:
// State, Transport, Protocol, Usage, and NotFound. These are kinds, not
// a single enum — each wraps whatever the failing layer produced so
// callers can still inspect and %w-unwrap the original cause.
package coreerr

import (
	"errors"
	"fmt"

	"github.com/luxfi/ipa-helper/pkg/ids"
)

// StateError reports an illegal QueryState transition. It is
// recoverable: the caller can retry later, or choose a different
// operation (spec.md §7).
type StateError struct {
	From string
	To   string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("coreerr: invalid state transition from %s to %s", e.From, e.To)
}

// NewInvalidState builds the StateError carried by an illegal
// transition attempt.
func NewInvalidState(from, to string) *StateError {
	return &StateError{From: from, To: to}
}

// ErrAlreadyRunning is returned whenever a state insert finds an
// existing, not-yet-Completed entry for a query id.
var ErrAlreadyRunning = errors.New("coreerr: query is already running")

// WrongTargetError is a State-class error: a follower received a
// PrepareQuery naming it H1, the coordinator role (spec.md §4.H,
// prepare()). A correct coordinator never sends itself a follower
// prepare request, so this always indicates a role-assignment bug on
// the sender's side.
type WrongTargetError struct {
	Identity ids.HelperIdentity
}

func (e *WrongTargetError) Error() string {
	return fmt.Sprintf("coreerr: %s was assigned H1 in a prepare request it received as a follower", e.Identity)
}

// NewWrongTarget builds the WrongTargetError prepare() returns when
// self's assigned role is H1.
func NewWrongTarget(self ids.HelperIdentity) *WrongTargetError {
	return &WrongTargetError{Identity: self}
}

// TransportError wraps a peer-unreachable or peer-rejected failure.
// For new_query, the caller can retry once the peer recovers.
type TransportError struct {
	Peer ids.HelperIdentity
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("coreerr: transport failure talking to %s: %v", e.Peer, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NewTransportError wraps an underlying transport failure.
func NewTransportError(peer ids.HelperIdentity, err error) *TransportError {
	return &TransportError{Peer: peer, Err: err}
}

// ProtocolError reports that the executor failed during computation.
// It is terminal for the query; it surfaces through complete().
type ProtocolError struct {
	Err error
}

func (e *ProtocolError) Error() string { return fmt.Sprintf("coreerr: protocol failure: %v", e.Err) }
func (e *ProtocolError) Unwrap() error { return e.Err }

// NewProtocolError wraps an executor failure.
func NewProtocolError(err error) *ProtocolError { return &ProtocolError{Err: err} }

// UsageError reports a caller bug: a duplicate receive request,
// out-of-order send, or payload-size mismatch. These are fatal for the
// query — the core surfaces them rather than swallowing them
// (spec.md §7).
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return fmt.Sprintf("coreerr: usage violation: %s", e.Msg) }

// NewUsageError builds a UsageError with the given description.
func NewUsageError(msg string) *UsageError { return &UsageError{Msg: msg} }

// NotFoundError reports an operation referencing an unknown QueryId.
type NotFoundError struct {
	QueryId ids.QueryId
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("coreerr: no such query %q", e.QueryId)
}

// NewNotFound builds a NotFoundError for the given query id.
func NewNotFound(id ids.QueryId) *NotFoundError { return &NotFoundError{QueryId: id} }

// IsFatal reports whether err, per spec.md §7, should be treated as
// fatal for the owning query rather than retried (Usage and Protocol
// errors are; State, Transport, and NotFound are recoverable/caller
// errors the caller may act on differently).
func IsFatal(err error) bool {
	var usage *UsageError
	var protocol *ProtocolError
	return errors.As(err, &usage) || errors.As(err, &protocol)
}
