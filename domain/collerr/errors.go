// Package collerr defines the error-kind taxonomy shared across collex's
// core packages.
package collerr

import (
	"errors"
	"fmt"
)

// Kind classifies a core error so callers can branch on errors.Is without
// parsing messages.
type Kind int

const (
	// Internal marks an unexpected invariant violation.
	Internal Kind = iota
	// NotFound marks a missing collection, column, or model id.
	NotFound
	// AlreadyExists marks a create-over-existing conflict.
	AlreadyExists
	// CorruptState marks an unparseable manifest or incompatible index file.
	CorruptState
	// InvalidOperation marks a precondition violation (e.g. re-import).
	InvalidOperation
	// IncompatibleModel marks a model manifest version/variant mismatch.
	IncompatibleModel
	// IOError marks a filesystem or network failure.
	IOError
	// BackendError marks a tokenizer or inference runtime failure.
	BackendError
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case AlreadyExists:
		return "already_exists"
	case CorruptState:
		return "corrupt_state"
	case InvalidOperation:
		return "invalid_operation"
	case IncompatibleModel:
		return "incompatible_model"
	case IOError:
		return "io_error"
	case BackendError:
		return "backend_error"
	default:
		return "internal"
	}
}

// sentinel is the comparable value each Kind's errors.Is check targets.
type sentinel struct{ kind Kind }

func (s sentinel) Error() string { return s.kind.String() }

var sentinels = map[Kind]error{
	Internal:          sentinel{Internal},
	NotFound:          sentinel{NotFound},
	AlreadyExists:     sentinel{AlreadyExists},
	CorruptState:      sentinel{CorruptState},
	InvalidOperation:  sentinel{InvalidOperation},
	IncompatibleModel: sentinel{IncompatibleModel},
	IOError:           sentinel{IOError},
	BackendError:      sentinel{BackendError},
}

// CoreError wraps an underlying cause with a Kind and an operation label.
type CoreError struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *CoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *CoreError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, collerr.NotFound) style checks work by comparing
// against the Kind's sentinel.
func (e *CoreError) Is(target error) bool {
	s, ok := target.(sentinel)
	return ok && s.kind == e.Kind
}

// New builds a CoreError for op/message with no wrapped cause.
func New(kind Kind, op, message string) error {
	return &CoreError{Kind: kind, Op: op, Message: message}
}

// Wrap builds a CoreError for op/message wrapping cause.
func Wrap(kind Kind, op, message string, cause error) error {
	return &CoreError{Kind: kind, Op: op, Message: message, Cause: cause}
}

// Is reports whether err (or anything it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	return errors.Is(err, sentinels[kind])
}

// ErrNotFound, etc. expose the sentinels directly for errors.Is(err, collerr.ErrNotFound).
var (
	ErrNotFound          = sentinels[NotFound]
	ErrAlreadyExists     = sentinels[AlreadyExists]
	ErrCorruptState      = sentinels[CorruptState]
	ErrInvalidOperation  = sentinels[InvalidOperation]
	ErrIncompatibleModel = sentinels[IncompatibleModel]
	ErrIOError           = sentinels[IOError]
	ErrBackendError      = sentinels[BackendError]
	ErrInternal          = sentinels[Internal]
)
