// Package ids defines the stable identifiers shared by every helper in the
// ring: who the three parties are, which query a message belongs to, and
// which wire within a query a record travels on.
package ids

import (
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
)

// HelperIdentity is the opaque, stable name of one of the three MPC
// parties. The ring has exactly three members for the lifetime of this
// process; membership does not change dynamically.
type HelperIdentity string

// Others returns the remaining two identities in `all`, in ring order
// (right first, then left), excluding h itself.
func (h HelperIdentity) Others(all [3]HelperIdentity) [2]HelperIdentity {
	var out [2]HelperIdentity
	idx := 0
	for i := 0; i < 3; i++ {
		if all[i] == h {
			out[0] = all[(i+1)%3]
			out[1] = all[(i+2)%3]
			return out
		}
		idx++
	}
	panic(fmt.Sprintf("ids: %q is not a member of the ring %v", h, all))
}

// Role is one of H1 (coordinator), H2, or H3 (followers). Roles are
// assigned per-query; the helper that accepts the external request
// always becomes H1.
type Role uint8

const (
	H1 Role = iota
	H2
	H3
)

func (r Role) String() string {
	switch r {
	case H1:
		return "H1"
	case H2:
		return "H2"
	case H3:
		return "H3"
	default:
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
}

// AllRoles lists the three roles in ring order.
var AllRoles = [3]Role{H1, H2, H3}

// RoleAssignment is a bijection between HelperIdentity and Role for one
// query. It must hold exactly three pairs.
type RoleAssignment struct {
	byRole     map[Role]HelperIdentity
	byIdentity map[HelperIdentity]Role
}

// NewRoleAssignment builds the canonical assignment for a query: self is
// always H1 (the coordinator), right becomes H2 and left becomes H3,
// matching the order others() returns them in.
func NewRoleAssignment(self HelperIdentity, right, left HelperIdentity) (RoleAssignment, error) {
	return assignmentFromPairs([3]pair{
		{self, H1},
		{right, H2},
		{left, H3},
	})
}

type pair struct {
	id   HelperIdentity
	role Role
}

func assignmentFromPairs(pairs [3]pair) (RoleAssignment, error) {
	ra := RoleAssignment{
		byRole:     make(map[Role]HelperIdentity, 3),
		byIdentity: make(map[HelperIdentity]Role, 3),
	}
	for _, p := range pairs {
		if _, exists := ra.byRole[p.role]; exists {
			return RoleAssignment{}, fmt.Errorf("ids: duplicate role %s in assignment", p.role)
		}
		if _, exists := ra.byIdentity[p.id]; exists {
			return RoleAssignment{}, fmt.Errorf("ids: duplicate identity %q in assignment", p.id)
		}
		ra.byRole[p.role] = p.id
		ra.byIdentity[p.id] = p.role
	}
	if len(ra.byRole) != 3 || len(ra.byIdentity) != 3 {
		return RoleAssignment{}, fmt.Errorf("ids: assignment must cover exactly three roles and identities")
	}
	return ra, nil
}

// Role returns the role assigned to id. The second return value is false
// if id is not part of this assignment.
func (ra RoleAssignment) Role(id HelperIdentity) (Role, bool) {
	r, ok := ra.byIdentity[id]
	return r, ok
}

// Identity returns the identity assigned to role.
func (ra RoleAssignment) Identity(role Role) (HelperIdentity, bool) {
	id, ok := ra.byRole[role]
	return id, ok
}

// Equal reports whether two assignments map every role to the same
// identity.
func (ra RoleAssignment) Equal(other RoleAssignment) bool {
	if len(ra.byRole) != len(other.byRole) {
		return false
	}
	for role, id := range ra.byRole {
		if other.byRole[role] != id {
			return false
		}
	}
	return true
}

// wirePair is RoleAssignment's on-wire shape: its real fields are two
// unexported maps (kept unexported so callers can only build one
// through the checked constructor), so it needs its own CBOR
// marshaling to cross the network at all.
type wirePair struct {
	Identity HelperIdentity
	Role     Role
}

// MarshalCBOR implements cbor.Marshaler.
func (ra RoleAssignment) MarshalCBOR() ([]byte, error) {
	pairs := make([]wirePair, 0, len(ra.byRole))
	for role, id := range ra.byRole {
		pairs = append(pairs, wirePair{Identity: id, Role: role})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Role < pairs[j].Role })
	return cbor.Marshal(pairs)
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (ra *RoleAssignment) UnmarshalCBOR(data []byte) error {
	var pairs []wirePair
	if err := cbor.Unmarshal(data, &pairs); err != nil {
		return err
	}
	ra.byRole = make(map[Role]HelperIdentity, len(pairs))
	ra.byIdentity = make(map[HelperIdentity]Role, len(pairs))
	for _, p := range pairs {
		ra.byRole[p.Role] = p.Identity
		ra.byIdentity[p.Identity] = p.Role
	}
	return nil
}

// QueryId uniquely identifies one in-flight query, chosen by the
// coordinator that accepted it from the report collector.
type QueryId string

// GateString is an opaque hierarchical identifier naming a point in the
// protocol circuit, e.g. "mul/bit3/reveal". Two operations using
// different gate strings are independent channels.
type GateString string

// ChannelId names one directional wire between helpers at a protocol
// step: the peer role on the other end, and the gate identifying the
// step. Same ChannelId means same wire, and records on it are ordered;
// different ChannelIds are independent.
type ChannelId struct {
	Role Role
	Step GateString
}

func (c ChannelId) String() string {
	return fmt.Sprintf("%s/%s", c.Role, c.Step)
}

// RecordId is a monotonically increasing, non-negative, per-channel
// record index. The k-th record sent on a channel equals the k-th
// record received.
type RecordId uint32

// SortedIdentities returns a copy of ids sorted for deterministic
// iteration, for callers that would otherwise iterate a map of
// identities in random order.
func SortedIdentities(in []HelperIdentity) []HelperIdentity {
	out := make([]HelperIdentity, len(in))
	copy(out, in)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
