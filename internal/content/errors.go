package content

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound               = errors.New("content not found")
	ErrConflict               = errors.New("conflict")
	ErrValidation             = errors.New("validation failed")
	ErrForbidden              = errors.New("forbidden")
	ErrInvalidTransition      = errors.New("invalid state transition")
	ErrConcurrentModification = errors.New("concurrent modification")
)

// StateDeleted is reported as the current state of a soft-deleted item.
const StateDeleted = "deleted"

// TransitionError reports an operation attempted from a state that does not
// allow it. To is the state the operation would have led to.
type TransitionError struct {
	Operation Operation
	From      string
	To        string
	Reason    string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("cannot %s from %s", e.Operation, e.From)
	if e.To != "" {
		msg += " to " + e.To
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

func transitionError(op Operation, item Item, reason string) error {
	from := string(item.Status)
	if item.IsDeleted {
		from = StateDeleted
	}
	return &TransitionError{Operation: op, From: from, To: targetState(op, item), Reason: reason}
}

// Validationf, Conflictf and Forbiddenf wrap a formatted message in the
// matching error kind.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

func Forbiddenf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}
