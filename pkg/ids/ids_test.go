package ids_test

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/luxfi/ipa-helper/pkg/ids"
	"github.com/stretchr/testify/require"
)

func TestOthersRingOrder(t *testing.T) {
	all := [3]ids.HelperIdentity{"a", "b", "c"}
	others := ids.HelperIdentity("a").Others(all)
	require.Equal(t, [2]ids.HelperIdentity{"b", "c"}, others)

	others = ids.HelperIdentity("c").Others(all)
	require.Equal(t, [2]ids.HelperIdentity{"a", "b"}, others)
}

func TestNewRoleAssignmentIsBijection(t *testing.T) {
	ra, err := ids.NewRoleAssignment("self", "right", "left")
	require.NoError(t, err)

	role, ok := ra.Role("self")
	require.True(t, ok)
	require.Equal(t, ids.H1, role)

	role, ok = ra.Role("right")
	require.True(t, ok)
	require.Equal(t, ids.H2, role)

	role, ok = ra.Role("left")
	require.True(t, ok)
	require.Equal(t, ids.H3, role)

	id, ok := ra.Identity(ids.H1)
	require.True(t, ok)
	require.Equal(t, ids.HelperIdentity("self"), id)
}

func TestRoleAssignmentEqual(t *testing.T) {
	a, err := ids.NewRoleAssignment("x", "y", "z")
	require.NoError(t, err)
	b, err := ids.NewRoleAssignment("x", "y", "z")
	require.NoError(t, err)
	c, err := ids.NewRoleAssignment("x", "z", "y")
	require.NoError(t, err)

	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
}

func TestRoleAssignmentCBORRoundTrip(t *testing.T) {
	ra, err := ids.NewRoleAssignment("self", "right", "left")
	require.NoError(t, err)

	buf, err := cbor.Marshal(ra)
	require.NoError(t, err)

	var got ids.RoleAssignment
	require.NoError(t, cbor.Unmarshal(buf, &got))
	require.True(t, ra.Equal(got))

	id, ok := got.Identity(ids.H2)
	require.True(t, ok)
	require.Equal(t, ids.HelperIdentity("right"), id)
}
