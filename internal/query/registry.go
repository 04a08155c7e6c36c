package query

import (
	"sync"

	"github.com/luxfi/ipa-helper/internal/coreerr"
	"github.com/luxfi/ipa-helper/internal/gateway"
	"github.com/luxfi/ipa-helper/pkg/executor"
	"github.com/luxfi/ipa-helper/pkg/ids"
)

// Entry is one query's registry record: its lifecycle state plus
// everything a running query needs torn down when it's removed.
type Entry struct {
	mu      sync.Mutex
	state   State
	roles   ids.RoleAssignment
	field   string
	gateway *gateway.Gateway
	result  *executor.Result
}

// State returns the entry's current lifecycle state.
func (e *Entry) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// transition moves the entry to `to` if legal, else returns a
// StateError.
func (e *Entry) transition(to State) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !CanTransition(e.state, to) {
		return coreerr.NewInvalidState(e.state.String(), to.String())
	}
	e.state = to
	return nil
}

func (e *Entry) setGateway(gw *gateway.Gateway) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gateway = gw
}

// Gateway returns the entry's gateway, or nil before it reaches
// Running.
func (e *Entry) Gateway() *gateway.Gateway {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gateway
}

// Roles returns the role assignment this query was prepared with.
func (e *Entry) Roles() ids.RoleAssignment {
	return e.roles
}

// setResult stores the executor's result on the entry once the query
// reaches Completed, so a later Complete call (or one that only
// observed completion through Status) can return it without waiting
// on the executor handle again.
func (e *Entry) setResult(r executor.Result) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.result = &r
}

// Result returns the entry's stored result and true, or a zero Result
// and false if the query hasn't completed yet.
func (e *Entry) Result() (executor.Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.result == nil {
		return executor.Result{}, false
	}
	return *e.result, true
}

// Registry holds every in-flight query, keyed by QueryId. It has no
// singleton restriction: distinct QueryIds may be Preparing, Running,
// etc. simultaneously (see DESIGN.md's Open Question decision) — only
// re-using the same id while its entry has not reached Completed is
// rejected.
type Registry struct {
	mu      sync.Mutex
	entries map[ids.QueryId]*Entry
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[ids.QueryId]*Entry)}
}

// Insert creates a new Preparing entry for id. It returns
// coreerr.ErrAlreadyRunning if id already has an entry that is not
// Completed; a Completed entry is replaced (its gateway closed).
func (r *Registry) Insert(id ids.QueryId, roles ids.RoleAssignment, field string) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, exists := r.entries[id]; exists {
		if old.State() != StateCompleted {
			return nil, coreerr.ErrAlreadyRunning
		}
		if gw := old.Gateway(); gw != nil {
			gw.Close()
		}
	}
	e := &Entry{state: StatePreparing, roles: roles, field: field}
	r.entries[id] = e
	return e, nil
}

// Get returns the entry for id, or a NotFoundError.
func (r *Registry) Get(id ids.QueryId) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, coreerr.NewNotFound(id)
	}
	return e, nil
}

// Remove deletes id's entry, closing its gateway if it has one. It is
// idempotent: removing an id with no entry is a no-op, matching the
// Rust original's remove_query_on_drop semantics (the guard always
// runs, whether or not anything needs cleaning up).
func (r *Registry) Remove(id ids.QueryId) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	r.mu.Unlock()

	if ok {
		if gw := e.Gateway(); gw != nil {
			gw.Close()
		}
	}
}

// RemoveGuard rolls an Insert back unless Commit is called, mirroring
// original_source/src/query/processor.rs's remove_query_on_drop: if
// prepare() fails partway through contacting the ring, the
// originating helper's partially-created entry must not linger,
// or a retry with the same QueryId would spuriously see
// AlreadyRunning.
type RemoveGuard struct {
	reg       *Registry
	id        ids.QueryId
	committed bool
}

// NewRemoveGuard wraps a freshly inserted entry with rollback-on-close
// semantics.
func NewRemoveGuard(reg *Registry, id ids.QueryId) *RemoveGuard {
	return &RemoveGuard{reg: reg, id: id}
}

// Commit disarms the guard: Close will no longer remove the entry.
func (g *RemoveGuard) Commit() {
	g.committed = true
}

// Close removes the entry unless Commit was called first. Callers
// should `defer guard.Close()` immediately after a successful Insert.
func (g *RemoveGuard) Close() {
	if !g.committed {
		g.reg.Remove(g.id)
	}
}
