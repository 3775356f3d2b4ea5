package app

import (
	"errors"
	"fmt"

	"github.com/inkwell-md/inkwell/internal/tabs"
)

// Shell errors.
var (
	// ErrNoActiveTab indicates no tab is currently active.
	ErrNoActiveTab = errors.New("no active tab")

	// ErrNoFilePath indicates a save was requested for a draft that has
	// never been bound to a file. Frontends catch it and prompt for a
	// path.
	ErrNoFilePath = errors.New("document has no file path")

	// ErrInitialization indicates a bootstrap failure.
	ErrInitialization = errors.New("initialization failed")

	// ErrShutdown indicates the shell has already shut down.
	ErrShutdown = errors.New("application shut down")

	// ErrTabNotFound re-exports the tab store sentinel.
	ErrTabNotFound = tabs.ErrTabNotFound

	// ErrCloseVetoed re-exports the tab store sentinel.
	ErrCloseVetoed = tabs.ErrCloseVetoed
)

// OperationError carries the operation and target of a failure.
type OperationError struct {
	Op     string // operation name, e.g. "save", "open"
	Target string // target, e.g. a file path or tab name
	Err    error
}

// NewOperationError creates an OperationError.
func NewOperationError(op, target string, err error) *OperationError {
	return &OperationError{Op: op, Target: target, Err: err}
}

func (e *OperationError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Op
	if e.Target != "" {
		msg = fmt.Sprintf("%s %s", e.Op, e.Target)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches both the wrapper instance and the wrapped error.
func (e *OperationError) Is(target error) bool {
	if e == nil {
		return false
	}
	if t, ok := target.(*OperationError); ok {
		return e == t
	}
	return errors.Is(e.Err, target)
}

// WrapError wraps err with a formatted message. Returns nil for nil err.
func WrapError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
