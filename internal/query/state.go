// Package query implements the query lifecycle state machine spec.md
// §4.C describes: Preparing -> AwaitingInputs -> Running ->
// (AwaitingCompletion) -> Completed, a registry keyed by QueryId with
// drop-guard rollback, and the Processor that drives new_query,
// prepare, receive_inputs, query_status, and complete.
//
// Grounded on original_source/src/query/processor.rs: its Processor
// struct and queries: RunningQueries field, and the
// remove_query_on_drop guard its tests exercise when prepare fails
// partway through the ring.
package query

import (
	"fmt"

	"github.com/luxfi/ipa-helper/internal/coreerr"
	"github.com/luxfi/ipa-helper/pkg/ids"
)

// ErrAlreadyRunning re-exports coreerr.ErrAlreadyRunning for callers
// that only import this package.
var ErrAlreadyRunning = coreerr.ErrAlreadyRunning

// State names one stage of a query's lifecycle.
type State int

const (
	StatePreparing State = iota
	StateAwaitingInputs
	StateRunning
	StateAwaitingCompletion
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StatePreparing:
		return "Preparing"
	case StateAwaitingInputs:
		return "AwaitingInputs"
	case StateRunning:
		return "Running"
	case StateAwaitingCompletion:
		return "AwaitingCompletion"
	case StateCompleted:
		return "Completed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// legalTransitions is the transition table spec.md §4.C fixes: a query
// may only move forward, one stage at a time, except that Running can
// go directly to Completed for queries whose executor finishes
// synchronously (skipping the AwaitingCompletion poll stage).
var legalTransitions = map[State]map[State]bool{
	StatePreparing:          {StateAwaitingInputs: true},
	StateAwaitingInputs:     {StateRunning: true},
	StateRunning:            {StateAwaitingCompletion: true, StateCompleted: true},
	StateAwaitingCompletion: {StateCompleted: true},
	StateCompleted:          {},
}

// CanTransition reports whether moving from `from` to `to` is legal.
func CanTransition(from, to State) bool {
	next, ok := legalTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// Id identifies one in-flight query.
type Id = ids.QueryId
