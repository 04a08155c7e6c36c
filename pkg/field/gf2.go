package field

// Gf2 is a single bit, the field GF(2). Addition and subtraction are
// XOR; multiplication is AND; negation is the identity.
type Gf2 bool

func (g Gf2) bit() uint32 {
	if g {
		return 1
	}
	return 0
}

func (g Gf2) Add(other Value) Value { return g ^ other.(Gf2) }
func (g Gf2) Sub(other Value) Value { return g ^ other.(Gf2) }
func (g Gf2) Neg() Value            { return g }
func (g Gf2) Mul(other Value) Value { return g && other.(Gf2) }
func (g Gf2) Equal(other Value) bool {
	o, ok := other.(Gf2)
	return ok && g == o
}
func (g Gf2) IsZero() bool { return !bool(g) }
func (g Gf2) Zero() Value  { return Gf2(false) }
func (g Gf2) Bytes() []byte {
	if g {
		return []byte{1}
	}
	return []byte{0}
}

// ExtensionZero returns the additive identity of Gf32, the field Gf2
// embeds into.
func (g Gf2) ExtensionZero() Value { return Gf32(0) }

// ToExtended embeds a single bit into Gf32 by placing it in the
// least-significant position: f(1) = 0...01, f(0) = 0...00. This is
// the field-extension step the malicious-share MAC (§4.B) relies on to
// mix a GF(2) wire value with a GF(2^32) randomization constant.
func (g Gf2) ToExtended() Value { return Gf32(g.bit()) }

// Gf2FromByte reads a single GF(2) element from its one-byte wire
// encoding (any nonzero byte is treated as 1).
func Gf2FromByte(b byte) Gf2 { return Gf2(b != 0) }

// Gf32 is GF(2^32): addition is XOR, multiplication is carry-less
// polynomial multiplication reduced modulo the field's defining
// irreducible polynomial, reductionPoly. This implementation is the
// extension field malicious shares authenticate against (§4.B); it is
// not tuned for side-channel resistance, matching spec.md's framing of
// field arithmetic as infrastructure the core consumes rather than
// hardens.
type Gf32 uint32

// reductionPoly is x^32 + x^7 + x^3 + x^2 + 1, represented with the
// degree-32 term implicit (its low 32 bits are the reduction mask
// applied whenever a carry-less product overflows 32 bits).
const reductionPoly uint64 = 0x8D

func (g Gf32) Add(other Value) Value { return g ^ other.(Gf32) }
func (g Gf32) Sub(other Value) Value { return g ^ other.(Gf32) }
func (g Gf32) Neg() Value            { return g }

func (g Gf32) Mul(other Value) Value {
	o := other.(Gf32)
	a, b := uint64(g), uint64(o)
	var product uint64
	for b != 0 {
		if b&1 != 0 {
			product ^= a
		}
		a <<= 1
		b >>= 1
	}
	// Reduce modulo the degree-32 polynomial: for every bit set above
	// position 31, fold it back in using the low-degree terms of the
	// reduction polynomial.
	for bit := uint(63); bit >= 32; bit-- {
		if product&(1<<bit) != 0 {
			product ^= reductionPoly << (bit - 32)
		}
	}
	return Gf32(uint32(product))
}

func (g Gf32) Equal(other Value) bool {
	o, ok := other.(Gf32)
	return ok && g == o
}
func (g Gf32) IsZero() bool { return g == 0 }
func (g Gf32) Zero() Value  { return Gf32(0) }
func (g Gf32) Bytes() []byte {
	return []byte{byte(g >> 24), byte(g >> 16), byte(g >> 8), byte(g)}
}

// ExtensionZero and ToExtended satisfy Extendable for prime/extension
// fields that are already maximal: Gf32 embeds into itself.
func (g Gf32) ExtensionZero() Value { return Gf32(0) }
func (g Gf32) ToExtended() Value    { return g }

// Gf32FromBytes deserializes a big-endian 4-byte GF(2^32) element.
func Gf32FromBytes(buf []byte) Gf32 {
	return Gf32(uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3]))
}

// ToExtended on Fp: prime fields embed into themselves (spec.md §4.A:
// "prime fields embed into themselves").
func (f Fp) ExtensionZero() Value { return f.Zero() }
func (f Fp) ToExtended() Value    { return f }
