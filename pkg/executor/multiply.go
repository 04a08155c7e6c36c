package executor

import (
	"context"
	"fmt"
	"io"

	"github.com/luxfi/ipa-helper/internal/gateway"
	"github.com/luxfi/ipa-helper/pkg/field"
	"github.com/luxfi/ipa-helper/pkg/ids"
	"github.com/luxfi/ipa-helper/pkg/share"
)

// multiplyGate is the fixed channel step this executor's single round
// runs on; a real circuit would derive one per gate in the protocol
// graph (spec.md §4.A's GateString), this executor has exactly one.
const multiplyGate ids.GateString = "mul/0"

// Multiply exercises the gateway, share, and query layers end to end
// with the textbook three-party replicated-share multiplication round
// (spec.md §8, scenarios 4 and 5) over Fp31. It is illustrative, not a
// hardened malicious-security circuit: the cross-term each helper
// computes locally is sent to its left neighbor as-is, with no
// correlated masking. A production circuit would derive that masking
// from the PRSS machinery spec.md's Non-goals place out of scope.
type Multiply struct {
	// Inputs holds this helper's replicated shares of the two operand
	// vectors; len(A) must equal len(B).
	Inputs func() (a, b []share.Share[field.Fp], err error)
}

// NewMultiply builds a Multiply executor bound to a fixed input
// source.
func NewMultiply(inputs func() (a, b []share.Share[field.Fp], err error)) *Multiply {
	return &Multiply{Inputs: inputs}
}

// Execute implements Executor: it derives this helper's ring
// neighbors from cfg.Roles and cfg.Self (right is the next role in
// H1->H2->H3->H1 order, left is the previous one — the same ordering
// RunRound's channel tagging assumes), runs the round to completion,
// and hands back an already-finished RunningQuery. The round runs
// synchronously inside Execute rather than on a background goroutine,
// since it's one gateway exchange, not a long-lived computation.
func (m *Multiply) Execute(ctx context.Context, cfg Config, _ KeyRegistry, gw *gateway.Gateway, _ io.Reader) (RunningQuery, error) {
	selfRole, ok := cfg.Roles.Role(cfg.Self)
	if !ok {
		return nil, fmt.Errorf("executor: %q is not part of this query's role assignment", cfg.Self)
	}
	right, ok := cfg.Roles.Identity(nextRole(selfRole))
	if !ok {
		return nil, fmt.Errorf("executor: role assignment has no right neighbor for %q", cfg.Self)
	}
	left, ok := cfg.Roles.Identity(prevRole(selfRole))
	if !ok {
		return nil, fmt.Errorf("executor: role assignment has no left neighbor for %q", cfg.Self)
	}

	a, b, err := m.Inputs()
	if err != nil {
		return nil, fmt.Errorf("executor: loading multiply inputs: %w", err)
	}

	out, err := RunRound(ctx, gw, cfg.Roles, cfg.Self, right, left, a, b)
	if err != nil {
		return nil, err
	}

	payload := make([]byte, 0, len(out)*2)
	for _, s := range out {
		payload = append(payload, s.Bytes()...)
	}
	return &finishedRun{result: Result{Output: payload}}, nil
}

// nextRole and prevRole walk the fixed H1->H2->H3->H1 ring order
// RunRound's channel tagging assumes: a helper's right neighbor holds
// the next role, its left neighbor the previous one.
func nextRole(r ids.Role) ids.Role { return ids.Role((uint8(r) + 1) % 3) }
func prevRole(r ids.Role) ids.Role { return ids.Role((uint8(r) + 2) % 3) }

// finishedRun wraps a result that's already available by the time
// Execute returns, satisfying RunningQuery for executors (like
// Multiply) with no async work left to poll.
type finishedRun struct {
	result Result
}

func (f *finishedRun) Status() Status { return StatusCompleted }

func (f *finishedRun) Wait(ctx context.Context) (Result, error) { return f.result, nil }

func (f *finishedRun) Cancel() {}

// RunRound runs one helper's side of the multiplication round.
//
// Protocol (per record i, with a=(a0,a1) and b=(b0,b1) held locally as
// this helper's two replicated components, a0/b0 shared with the left
// neighbor and a1/b1 with the right neighbor):
//
//	local = a0*b0 + a0*b1 + a1*b0
//
// summed across all three helpers, local_0+local_1+local_2 equals the
// product of the two full secrets. Each helper sends its local value,
// tagged with its own role so the receiver can tell who it came from,
// to its left neighbor, and listens for the corresponding value its
// right neighbor sends the same way; the result is a fresh replicated
// share of the product in share.Share's (a_i, a_{i+1}) layout (Left:
// my own local value, Right: what I received from the right).
func RunRound(ctx context.Context, gw *gateway.Gateway, roles ids.RoleAssignment, self, right, left ids.HelperIdentity, a, b []share.Share[field.Fp]) ([]share.Share[field.Fp], error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("executor: mismatched input lengths %d vs %d", len(a), len(b))
	}

	selfRole, ok := roles.Role(self)
	if !ok {
		return nil, fmt.Errorf("executor: %q is not part of this query's role assignment", self)
	}
	rightRole, ok := roles.Role(right)
	if !ok {
		return nil, fmt.Errorf("executor: %q is not part of this query's role assignment", right)
	}

	// I send on the channel tagged with my own role (my left neighbor
	// will be listening for exactly that tag), and listen on the
	// channel tagged with my right neighbor's role (since that's the
	// tag they send under).
	sender := gw.SendingEnd(ids.ChannelId{Role: selfRole, Step: multiplyGate}, left)
	receiver := gw.ReceivingEnd(ids.ChannelId{Role: rightRole, Step: multiplyGate})

	out := make([]share.Share[field.Fp], len(a))
	for i := range a {
		local := a[i].Left.Mul(b[i].Left).
			Add(a[i].Left.Mul(b[i].Right)).
			Add(a[i].Right.Mul(b[i].Left)).(field.Fp)

		if err := sender.Send(ctx, ids.RecordId(i), local.Bytes()); err != nil {
			return nil, fmt.Errorf("executor: sending record %d: %w", i, err)
		}

		payload, err := receiver.Receive(ctx, ids.RecordId(i))
		if err != nil {
			return nil, fmt.Errorf("executor: receiving record %d: %w", i, err)
		}
		fromRight := field.FpFromBytes(31, payload)

		out[i] = share.Share[field.Fp]{Left: local, Right: fromRight}
	}
	return out, nil
}
