package share_test

import (
	"math/rand"
	"testing"

	"github.com/luxfi/ipa-helper/pkg/field"
	"github.com/luxfi/ipa-helper/pkg/share"
	"github.com/stretchr/testify/require"
)

func randGf32(rng *rand.Rand) func() field.Value {
	return func() field.Value {
		return field.Gf32(rng.Uint32())
	}
}

// mirrors the Rust original's test_local_operations: build malicious
// shares of several values under one randomization constant r, run an
// arithmetic expression over them, and check both the x component and
// the rx component reconstruct correctly (spec.md invariant I6).
func TestMaliciousShareArithmeticCommutesWithMAC(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	a := field.NewFp31(4)
	b := field.NewFp31(5)
	// Fp embeds into itself, so the MAC constant and the rx shares live
	// in Fp31 as well.
	r := field.NewFp31(7)
	randFp31Value := func() field.Value { return field.NewFp31(uint64(rng.Intn(31))) }

	aX := share.ShareOf3(a, func() field.Fp { return field.NewFp31(uint64(rng.Intn(31))) })
	bX := share.ShareOf3(b, func() field.Fp { return field.NewFp31(uint64(rng.Intn(31))) })

	ra := field.Value(r).Mul(a.ToExtended())
	rb := field.Value(r).Mul(b.ToExtended())

	aRX := share.ShareOf3(ra, randFp31Value)
	bRX := share.ShareOf3(rb, randFp31Value)

	var malicious [3]share.MaliciousShare[field.Fp]
	var maliciousB [3]share.MaliciousShare[field.Fp]
	for i := 0; i < 3; i++ {
		malicious[i] = share.NewMaliciousShare(aX[i], aRX[i])
		maliciousB[i] = share.NewMaliciousShare(bX[i], bRX[i])
	}

	var sum [3]share.MaliciousShare[field.Fp]
	for i := 0; i < 3; i++ {
		sum[i] = malicious[i].Add(maliciousB[i])
	}

	var xShares [3]share.Share[field.Fp]
	var rxShares [3]share.Share[field.Value]
	for i := 0; i < 3; i++ {
		xShares[i] = sum[i].Downgrade().UnsafeAccessWithoutValidation()
		rxShares[i] = sum[i].RX()
	}

	reconstructedX := share.Reconstruct(xShares)
	reconstructedRX := rxShares[0].Left.Add(rxShares[1].Left).Add(rxShares[2].Left)

	require.True(t, a.Add(b).(field.Fp).Equal(reconstructedX))

	validator := share.NewValidator(r)
	require.True(t, validator.CheckMAC(reconstructedX, reconstructedRX))
}

func TestDowngradeSlicePreservesOuterWrapperOnly(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	a := field.NewFp31(1)
	aX := share.ShareOf3(a, func() field.Fp { return field.NewFp31(uint64(rng.Intn(31))) })
	aRX := share.ShareOf3(field.Value(field.Gf32(1)), randGf32(rng))

	shares := make([]share.MaliciousShare[field.Fp], 3)
	for i := 0; i < 3; i++ {
		shares[i] = share.NewMaliciousShare(aX[i], aRX[i])
	}

	wrapped := share.DowngradeSlice(shares)
	plain := wrapped.UnsafeAccessWithoutValidation()
	require.Len(t, plain, 3)
}
