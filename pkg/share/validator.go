package share

import (
	"errors"

	"github.com/luxfi/ipa-helper/pkg/field"
)

// ErrMACMismatch is returned by Validator.Validate when the
// reconstructed rx does not equal r times the reconstructed x.
var ErrMACMismatch = errors.New("share: malicious-share MAC check failed")

// Validator is the external collaborator spec.md §4.B refers to: the
// only caller allowed to assert that a malicious share's MAC has been
// checked. The real IPA malicious-security compiler validates by
// revealing a combination of every party's shares across the network
// and comparing against the accumulated r * x; that reveal protocol
// belongs to the executor (spec.md's component I), which is opaque to
// this module. What belongs here is the local half of the check this
// module can perform without any network access: given the
// reconstructed x and rx values (however the caller obtained them) and
// the shared randomization constant r, confirm rx == r * x.
type Validator struct {
	r field.Value
}

// NewValidator creates a validator bound to the computation's shared
// randomization constant.
func NewValidator(r field.Value) *Validator {
	return &Validator{r: r}
}

// CheckMAC reports whether rx is consistent with r*x for the
// reconstructed (not per-share) values, i.e. whether reconstructing
// the x component of a malicious-share expression and multiplying by r
// equals reconstructing its rx component (spec.md invariant I6).
func (v *Validator) CheckMAC(x, rxReconstructed field.Value) bool {
	expected := v.r.Mul(ToExtendedValue(x))
	return expected.Equal(rxReconstructed)
}

// Validate downgrades a malicious share once its MAC has been checked
// against the reconstructed values the caller supplies. This is the
// single sanctioned path from a malicious share to its plain share
// this package exposes beyond the unchecked Downgrade/X accessors —
// callers that want the discipline spec.md describes should route
// through here instead of calling Downgrade directly.
func (v *Validator) Validate(m MaliciousShare[field.Fp], x, rxReconstructed field.Value) (Share[field.Fp], error) {
	if !v.CheckMAC(x, rxReconstructed) {
		return Share[field.Fp]{}, ErrMACMismatch
	}
	return m.Downgrade().UnsafeAccessWithoutValidation(), nil
}

// ToExtendedValue is a convenience shim so Validator can call
// ToExtended through the field.Value interface without re-asserting
// field.Extendable at every call site.
func ToExtendedValue(v field.Value) field.Value {
	if e, ok := v.(field.Extendable); ok {
		return e.ToExtended()
	}
	return v
}
