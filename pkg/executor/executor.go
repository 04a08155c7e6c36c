// Package executor defines the opaque boundary spec.md's component I
// describes: the query processor treats protocol execution as a black
// box it starts and polls, never as something it implements itself.
package executor

import (
	"context"
	"io"

	"github.com/luxfi/ipa-helper/internal/gateway"
	"github.com/luxfi/ipa-helper/pkg/ids"
)

// Config carries the parameters a query needs to start an executor:
// which field it runs over, the role assignment for this query, and
// which ring member this Execute call is running as.
type Config struct {
	QueryId ids.QueryId
	Roles   ids.RoleAssignment
	Field   string
	Self    ids.HelperIdentity
}

// KeyRegistry is threaded through unexamined, as an opaque handle.
// spec.md's Non-goals exclude key management and HPKE machinery; a
// real deployment would pass a concrete registry type here, but this
// module has no reason to open it.
type KeyRegistry interface{}

// Executor starts a protocol run given everything it needs to talk to
// its peers, and returns a handle the processor can poll or cancel.
// Concrete executors (the actual MPC circuits) live outside this
// module's scope; spec.md treats Execute's argument list as the full
// contract.
type Executor interface {
	Execute(ctx context.Context, cfg Config, keys KeyRegistry, gw *gateway.Gateway, input io.Reader) (RunningQuery, error)
}

// Status is the lifecycle stage of a RunningQuery, independent of
// (but reported alongside) the owning query.QueryState.
type Status int

const (
	StatusRunning Status = iota
	StatusCompleted
	StatusFailed
)

// RunningQuery is the handle the processor polls for completion and
// can cancel; it never inspects execution internals.
type RunningQuery interface {
	// Status reports the current lifecycle stage without blocking.
	Status() Status

	// Wait blocks until the run finishes (successfully, with an
	// error, or because ctx was canceled) and returns its result.
	Wait(ctx context.Context) (Result, error)

	// Cancel requests the run stop; Wait still must be called to
	// observe the outcome.
	Cancel()
}

// Result is what a finished protocol run hands back to complete()
// (spec.md §4.C).
type Result struct {
	Output []byte
}
