package field_test

import (
	"testing"

	"github.com/luxfi/ipa-helper/pkg/field"
	"github.com/stretchr/testify/require"
)

func TestFp31Arithmetic(t *testing.T) {
	a := field.NewFp31(4)
	b := field.NewFp31(5)

	require.Equal(t, uint64(20), a.Mul(b).(field.Fp).Uint64())
	require.Equal(t, uint64(9), a.Add(b).(field.Fp).Uint64())
	require.True(t, a.Sub(a).(field.Fp).IsZero())
	require.Equal(t, uint64(27), a.Neg().(field.Fp).Uint64()) // -4 mod 31 == 27
}

func TestFpSerializationRoundTrip(t *testing.T) {
	a := field.NewFp(257, 2, 200)
	buf := a.Bytes()
	require.Len(t, buf, 2)
	back := field.FpFromBytes(257, buf)
	require.True(t, a.Equal(back))
}

func TestGf2ToExtendedEmbedsLSB(t *testing.T) {
	zero := field.Gf2(false)
	one := field.Gf2(true)

	require.Equal(t, field.Gf32(0), zero.ToExtended())
	require.Equal(t, field.Gf32(1), one.ToExtended())
}

func TestGf32FieldLaws(t *testing.T) {
	a := field.Gf32(7)
	b := field.Gf32(300)
	c := field.Gf32(65536)

	// Commutativity.
	require.Equal(t, a.Mul(b), b.Mul(a))
	require.Equal(t, a.Add(b), b.Add(a))

	// Distributivity: a*(b+c) == a*b + a*c.
	lhs := a.Mul(b.Add(c))
	rhs := a.Mul(b).Add(a.Mul(c))
	require.Equal(t, lhs, rhs)

	// Additive identity and inverse (XOR is self-inverse in GF(2^n)).
	require.True(t, a.Add(a).(field.Gf32).IsZero())
	require.Equal(t, a, a.Add(field.Gf32(0)))
}

func TestGf32SerializationRoundTrip(t *testing.T) {
	v := field.Gf32(0xDEADBEEF)
	buf := v.Bytes()
	require.Len(t, buf, 4)
	require.Equal(t, v, field.Gf32FromBytes(buf))
}
