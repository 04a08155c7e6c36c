// Package share implements the replicated secret-share algebra: the
// semi-honest share pair (left, right) a helper holds, and — in
// malicious.go — the MAC-augmented malicious share and its downgrade
// discipline.
package share

import "github.com/luxfi/ipa-helper/pkg/field"

// Share is one helper's replicated piece of a secret value v: across
// the three helpers, helper i holds (a_i, a_{i+1 mod 3}) where
// a_0+a_1+a_2 = v.
type Share[V field.Value] struct {
	Left  V
	Right V
}

// Add returns the component-wise sum of two shares.
func (s Share[V]) Add(other Share[V]) Share[V] {
	return Share[V]{
		Left:  s.Left.Add(other.Left).(V),
		Right: s.Right.Add(other.Right).(V),
	}
}

// Sub returns the component-wise difference of two shares.
func (s Share[V]) Sub(other Share[V]) Share[V] {
	return Share[V]{
		Left:  s.Left.Sub(other.Left).(V),
		Right: s.Right.Sub(other.Right).(V),
	}
}

// Neg returns the component-wise negation of a share.
func (s Share[V]) Neg() Share[V] {
	return Share[V]{Left: s.Left.Neg().(V), Right: s.Right.Neg().(V)}
}

// MulScalar returns the share scaled by a plaintext field element
// known to all helpers (e.g. a public constant in the circuit).
func (s Share[V]) MulScalar(scalar V) Share[V] {
	return Share[V]{
		Left:  s.Left.Mul(scalar).(V),
		Right: s.Right.Mul(scalar).(V),
	}
}

// Bytes serializes left||right at their fixed field width.
func (s Share[V]) Bytes() []byte {
	l := s.Left.Bytes()
	r := s.Right.Bytes()
	out := make([]byte, 0, len(l)+len(r))
	out = append(out, l...)
	out = append(out, r...)
	return out
}

// ShareOf3 produces the three replicated shares of v, given a source of
// independent random field elements of the same concrete type as v.
// helper i's piece is (a_i, a_{i+1 mod 3}) with a_0+a_1+a_2 == v.
func ShareOf3[V field.Value](v V, randElement func() V) [3]Share[V] {
	a0 := randElement()
	a1 := randElement()
	a2 := v.Sub(a0).Sub(a1).(V)

	return [3]Share[V]{
		{Left: a0, Right: a1},
		{Left: a1, Right: a2},
		{Left: a2, Right: a0},
	}
}

// Reconstruct recombines the three replicated shares of a value
// produced by ShareOf3 (or any valid replicated sharing) back into the
// plaintext value: a_0 + a_1 + a_2.
func Reconstruct[V field.Value](shares [3]Share[V]) V {
	sum := shares[0].Left.Add(shares[1].Left).Add(shares[2].Left)
	return sum.(V)
}
