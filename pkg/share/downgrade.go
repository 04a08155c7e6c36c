package share

// UnauthorizedDowngradeWrapper holds a value released from a malicious
// share before it has been run through a validator. The wrapped field
// is unexported and this package exposes no public constructor for it
// outside of MaliciousShare's own downgrade methods, so the only way
// to produce one is to go through this module — a caller cannot
// fabricate a wrapper and skip validation.
//
// The wrapper carries no must-use enforcement the way the Rust
// original's #[must_use] attribute does (Go has no equivalent
// annotation); the loud accessor name below is this module's
// substitute: an unused or careless unwrap should stand out in review.
type UnauthorizedDowngradeWrapper[T any] struct {
	inner T
}

func newDowngradeWrapper[T any](v T) UnauthorizedDowngradeWrapper[T] {
	return UnauthorizedDowngradeWrapper[T]{inner: v}
}

// UnsafeAccessWithoutValidation releases the wrapped value without
// having proven the malicious share it came from was ever validated.
// Calling this outside of a validator's own bookkeeping is the bug
// this wrapper exists to make visible in code review.
func (w UnauthorizedDowngradeWrapper[T]) UnsafeAccessWithoutValidation() T {
	return w.inner
}

// MapDowngradeWrapper transforms the contents of a wrapper while
// preserving the wrapper at the outermost layer — used to downgrade a
// pair or slice of malicious shares without exposing any individual
// element's plain share ahead of the others.
func MapDowngradeWrapper[T, U any](w UnauthorizedDowngradeWrapper[T], f func(T) U) UnauthorizedDowngradeWrapper[U] {
	return newDowngradeWrapper(f(w.inner))
}
