package field

import (
	"fmt"
	"math/big"

	"github.com/cronokirby/saferith"
)

// Fp is an element of a prime field Z/pZ. The modulus is carried
// alongside the value so a lone Fp remains self-describing; operations
// between elements of different moduli panic rather than silently
// reducing modulo the wrong prime.
type Fp struct {
	modulus *saferith.Modulus
	width   int // fixed serialized byte width for this modulus
	value   *saferith.Nat
}

// fp31Modulus is the toy 5-bit prime field (modulus 31) used throughout
// the test suite and the Multiply executor (spec.md scenario 4).
var fp31Modulus = saferith.ModulusFromUint64(31)

// NewFp31 constructs an Fp element modulo 31.
func NewFp31(v uint64) Fp {
	return newFp(fp31Modulus, 1, v%31)
}

// NewFp constructs an Fp element modulo p with the given fixed
// serialization width in bytes.
func NewFp(p uint64, width int, v uint64) Fp {
	return newFp(saferith.ModulusFromUint64(p), width, v)
}

func newFp(m *saferith.Modulus, width int, v uint64) Fp {
	n := new(saferith.Nat).SetUint64(v)
	n = n.Mod(n, m)
	return Fp{modulus: m, width: width, value: n}
}

func (f Fp) sameField(other Fp) {
	if f.modulus.Big().Cmp(other.modulus.Big()) != 0 {
		panic("field: operands belong to different prime fields")
	}
}

// Add returns f + other mod p.
func (f Fp) Add(other Value) Value {
	o := other.(Fp)
	f.sameField(o)
	r := new(saferith.Nat).ModAdd(f.value, o.value, f.modulus)
	return Fp{modulus: f.modulus, width: f.width, value: r}
}

// Sub returns f - other mod p.
func (f Fp) Sub(other Value) Value {
	o := other.(Fp)
	f.sameField(o)
	r := new(saferith.Nat).ModSub(f.value, o.value, f.modulus)
	return Fp{modulus: f.modulus, width: f.width, value: r}
}

// Neg returns -f mod p.
func (f Fp) Neg() Value {
	zero := new(saferith.Nat).SetUint64(0)
	r := new(saferith.Nat).ModSub(zero, f.value, f.modulus)
	return Fp{modulus: f.modulus, width: f.width, value: r}
}

// Mul returns f * other mod p.
func (f Fp) Mul(other Value) Value {
	o := other.(Fp)
	f.sameField(o)
	r := new(saferith.Nat).ModMul(f.value, o.value, f.modulus)
	return Fp{modulus: f.modulus, width: f.width, value: r}
}

// Equal reports whether f and other represent the same residue in the
// same field.
func (f Fp) Equal(other Value) bool {
	o, ok := other.(Fp)
	if !ok {
		return false
	}
	return f.modulus.Big().Cmp(o.modulus.Big()) == 0 && f.value.Big().Cmp(o.value.Big()) == 0
}

// IsZero reports whether f is the additive identity.
func (f Fp) IsZero() bool {
	return f.value.Big().Sign() == 0
}

// Zero returns the additive identity for f's field and width.
func (f Fp) Zero() Value {
	return Fp{modulus: f.modulus, width: f.width, value: new(saferith.Nat).SetUint64(0)}
}

// Bytes serializes f to its fixed width, big-endian, zero-padded.
func (f Fp) Bytes() []byte {
	buf := make([]byte, f.width)
	b := f.value.Big().Bytes()
	if len(b) > f.width {
		panic(fmt.Sprintf("field: value overflows fixed width %d", f.width))
	}
	copy(buf[f.width-len(b):], b)
	return buf
}

// Uint64 returns the value as a uint64, for tests and the CLI's
// printed multiply result.
func (f Fp) Uint64() uint64 {
	return f.value.Big().Uint64()
}

// FpFromBytes deserializes a big-endian fixed-width Fp element modulo p.
func FpFromBytes(p uint64, buf []byte) Fp {
	v := new(big.Int).SetBytes(buf)
	m := saferith.ModulusFromUint64(p)
	n := new(saferith.Nat).SetBig(v, len(buf)*8)
	n = n.Mod(n, m)
	return Fp{modulus: m, width: len(buf), value: n}
}
