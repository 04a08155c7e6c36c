package share

import "github.com/luxfi/ipa-helper/pkg/field"

// MaliciousShare pairs a semi-honest share x with a share rx of r*x in
// the extension field, where r is a randomization constant shared
// (but not known in full to any single helper) across the whole
// computation. Arithmetic on MaliciousShare commutes with the
// extension-field MAC: reconstructing the x component of E(shares)
// equals E(values), and reconstructing the rx component equals
// r * E(values) (spec.md invariant I6).
type MaliciousShare[V field.Extendable] struct {
	x  Share[V]
	rx Share[field.Value]
}

// NewMaliciousShare builds a malicious share from its plain share and
// its MAC share. Callers are expected to have produced rx as a share
// of r*x using the same randomization constant as every other
// malicious share in the computation; this constructor does not and
// cannot check that invariant locally — only a validator, with
// visibility across all parties' shares, can.
func NewMaliciousShare[V field.Extendable](x Share[V], rx Share[field.Value]) MaliciousShare[V] {
	return MaliciousShare[V]{x: x, rx: rx}
}

// X returns the semi-honest share wrapped so that it cannot be
// observed without first being run through a validator.
func (m MaliciousShare[V]) X() UnauthorizedDowngradeWrapper[Share[V]] {
	return newDowngradeWrapper(m.x)
}

// Downgrade consumes the malicious share and releases its plain share,
// still behind the wrapper. This mirrors the Rust original's
// `downgrade()`: it performs no validation itself, it only releases
// the x component — validation is the separate, external collaborator
// spec.md §4.B refers to.
func (m MaliciousShare[V]) Downgrade() UnauthorizedDowngradeWrapper[Share[V]] {
	return newDowngradeWrapper(m.x)
}

// RX returns the MAC share directly; it carries no information about
// the plaintext value on its own and needs no downgrade gate.
func (m MaliciousShare[V]) RX() Share[field.Value] {
	return m.rx
}

// Add returns the component-wise sum of two malicious shares: x
// components add in V, rx components add in the extension field.
func (m MaliciousShare[V]) Add(other MaliciousShare[V]) MaliciousShare[V] {
	return MaliciousShare[V]{x: m.x.Add(other.x), rx: addExtension(m.rx, other.rx)}
}

// Sub returns the component-wise difference of two malicious shares.
func (m MaliciousShare[V]) Sub(other MaliciousShare[V]) MaliciousShare[V] {
	return MaliciousShare[V]{x: m.x.Sub(other.x), rx: subExtension(m.rx, other.rx)}
}

// Neg returns the component-wise negation of a malicious share.
func (m MaliciousShare[V]) Neg() MaliciousShare[V] {
	return MaliciousShare[V]{x: m.x.Neg(), rx: negExtension(m.rx)}
}

// MulScalar scales a malicious share by a public field element known
// to every helper. The x component scales by the element directly;
// the rx component scales by the element's embedding into the
// extension field, per spec.md §4.B ("the scalar for rx is
// scalar.to_extended()").
func (m MaliciousShare[V]) MulScalar(scalar V) MaliciousShare[V] {
	extended := scalar.ToExtended()
	return MaliciousShare[V]{
		x:  m.x.MulScalar(scalar),
		rx: Share[field.Value]{Left: m.rx.Left.Mul(extended), Right: m.rx.Right.Mul(extended)},
	}
}

// Bytes serializes a malicious share as x-bytes || rx-bytes, with
// widths determined by V's and the extension field's fixed width
// (spec.md §6, "On-wire share encoding").
func (m MaliciousShare[V]) Bytes() []byte {
	out := append([]byte{}, m.x.Bytes()...)
	out = append(out, m.rx.Bytes()...)
	return out
}

func addExtension(a, b Share[field.Value]) Share[field.Value] {
	return Share[field.Value]{Left: a.Left.Add(b.Left), Right: a.Right.Add(b.Right)}
}

func subExtension(a, b Share[field.Value]) Share[field.Value] {
	return Share[field.Value]{Left: a.Left.Sub(b.Left), Right: a.Right.Sub(b.Right)}
}

func negExtension(a Share[field.Value]) Share[field.Value] {
	return Share[field.Value]{Left: a.Left.Neg(), Right: a.Right.Neg()}
}

// DowngradePair downgrades two malicious shares together, preserving
// the wrapper at the outermost layer only — spec.md §4.B: "Collection
// downgrades (pairs, bit-decomposed vectors, vectors) are defined and
// preserve the wrapper at the outermost layer only."
func DowngradePair[A, B any](a UnauthorizedDowngradeWrapper[A], b UnauthorizedDowngradeWrapper[B]) UnauthorizedDowngradeWrapper[[2]any] {
	return newDowngradeWrapper([2]any{a.UnsafeAccessWithoutValidation(), b.UnsafeAccessWithoutValidation()})
}

// DowngradeSlice downgrades every malicious share in shares and
// collects the results under a single outer wrapper.
func DowngradeSlice[V field.Extendable](shares []MaliciousShare[V]) UnauthorizedDowngradeWrapper[[]Share[V]] {
	out := make([]Share[V], len(shares))
	for i, s := range shares {
		out[i] = s.Downgrade().UnsafeAccessWithoutValidation()
	}
	return newDowngradeWrapper(out)
}
