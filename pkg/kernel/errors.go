package kernel

import (
	"errors"
	"fmt"
)

// Read path errors. Every error returned by a Reader, cursor or view wraps
// exactly one of these, so callers branch with errors.Is or KindOf.
var (
	// ErrEntityNotFound: the id does not resolve to a live record visible in
	// the statement snapshot. Callers usually treat it as "no match".
	ErrEntityNotFound = errors.New("entity not found")

	// ErrIndexNotFound: no index is built over the requested schema.
	ErrIndexNotFound = errors.New("index not found")

	// ErrIndexBroken: the index reports a failed or corrupt state.
	ErrIndexBroken = errors.New("index broken")

	// ErrUnsupportedSeek: the predicate shape cannot be answered by the index.
	// A seek is never downgraded to a scan.
	ErrUnsupportedSeek = errors.New("unsupported seek")

	// ErrConstraintViolation: a uniqueness-constrained index holds more than
	// one live entry for a value. Signals corruption; never swallow it.
	ErrConstraintViolation = errors.New("constraint violation detected")

	// ErrIllegalState: an operation was invoked on a cursor, view or
	// sequence in the wrong state.
	ErrIllegalState = errors.New("illegal state")
)

var (
	// ErrCursorUnbound is returned by operations that need a positioned cursor.
	ErrCursorUnbound = fmt.Errorf("%w: cursor is not positioned", ErrIllegalState)

	// ErrStaleView is returned by a view whose cursor has since moved.
	ErrStaleView = fmt.Errorf("%w: view invalidated by reposition", ErrIllegalState)

	// ErrSequenceConsumed is returned when a lazy id sequence is iterated twice.
	ErrSequenceConsumed = fmt.Errorf("%w: sequence already consumed", ErrIllegalState)
)

// Kind is the closed classification of read path errors.
type Kind uint8

const (
	KindNone Kind = iota
	KindEntityNotFound
	KindIndexNotFound
	KindIndexBroken
	KindUnsupportedSeek
	KindConstraintViolation
	KindIllegalState
	// KindOther covers failures of the underlying store (I/O, decoding).
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "None"
	case KindEntityNotFound:
		return "EntityNotFound"
	case KindIndexNotFound:
		return "IndexNotFound"
	case KindIndexBroken:
		return "IndexBroken"
	case KindUnsupportedSeek:
		return "UnsupportedSeek"
	case KindConstraintViolation:
		return "ConstraintViolationDetected"
	case KindIllegalState:
		return "IllegalState"
	default:
		return "Other"
	}
}

// KindOf classifies err. A nil error is KindNone.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrEntityNotFound):
		return KindEntityNotFound
	case errors.Is(err, ErrIndexNotFound):
		return KindIndexNotFound
	case errors.Is(err, ErrIndexBroken):
		return KindIndexBroken
	case errors.Is(err, ErrUnsupportedSeek):
		return KindUnsupportedSeek
	case errors.Is(err, ErrConstraintViolation):
		return KindConstraintViolation
	case errors.Is(err, ErrIllegalState):
		return KindIllegalState
	default:
		return KindOther
	}
}
