// Package marcherr declares the sentinel error kinds shared across the
// canonical encoder, object store, graph builder, and interpreter.
// Callers use errors.Is against these values rather than matching on
// concrete types.
package marcherr

import "errors"

// Structural
var (
	ErrInvalidCanonicalForm = errors.New("invalid canonical form")
	ErrCorruptObject        = errors.New("corrupt object")
	ErrUnknownKind          = errors.New("unknown object kind")
	ErrReservedNodeKind     = errors.New("reserved node kind")
)

// Resolution
var (
	ErrNotFound       = errors.New("not found")
	ErrUnknownSymbol  = errors.New("unknown symbol")
	ErrAmbiguousSymbol = errors.New("ambiguous symbol")
)

// Compile-time
var (
	ErrStackUnderflow     = errors.New("stack underflow")
	ErrTypeMismatch       = errors.New("type mismatch")
	ErrMissingToken       = errors.New("missing token")
	ErrDuplicateExport    = errors.New("duplicate export")
	ErrGuardRejectsEffect = errors.New("guard rejects effect")
)

// Runtime
var (
	ErrArgumentCountMismatch = errors.New("argument count mismatch")
	ErrDivByZero             = errors.New("division by zero")
	ErrExecutionTrap         = errors.New("execution trap")
	ErrGuardFailedNoDeopt    = errors.New("guard failed, no deopt target")
	ErrGlobalNotFound        = errors.New("global not found")
	ErrUnknownPrim           = errors.New("unknown primitive")
	ErrUnknownWord           = errors.New("unknown word")
)

// IO
var (
	ErrStoreIO = errors.New("store io error")
)
