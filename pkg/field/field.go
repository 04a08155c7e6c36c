// Package field provides the prime-field and GF(2) element types the
// share and malicious-share layers build on. The modular arithmetic
// itself is delegated to saferith, the numeric library this module
// treats as the external field-arithmetic primitive spec.md scopes out;
// this package's own job is the element type, fixed-width
// serialization, and the GF(2) -> GF(2^32) embedding used by the
// malicious-share MAC.
package field

// Value is any field element this module can put in a replicated
// share: it supports the linear operations a share needs (add,
// subtract, negate, scalar-multiply) and fixed-width serialization.
type Value interface {
	Add(Value) Value
	Sub(Value) Value
	Neg() Value
	Mul(Value) Value
	Equal(Value) bool
	IsZero() bool
	Bytes() []byte
	// Zero returns the additive identity of the same concrete type and
	// width as the receiver, so callers that only hold a Value can
	// still produce a matching zero for accumulation.
	Zero() Value
}

// Extendable is implemented by fields with a defined embedding into a
// larger extension field, used to mix a small field (GF(2)) with a
// larger MAC field (GF(2^32)) in the malicious-share construction.
// Prime fields embed into themselves: ExtensionZero and ToExtended are
// identities.
type Extendable interface {
	Value
	ExtensionZero() Value
	ToExtended() Value
}
