package broker

import (
	"fmt"
	"runtime/debug"
)

// NotReadyError signals a command invoked before the broker has a
// resolvable document or a located record. It is a client-correctable
// condition, distinct from NotFound and from hard failures.
type NotReadyError struct {
	Kind string
	Name string
}

func (e *NotReadyError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s broker is not ready: no resolvable manifest or record for %q", e.Kind, e.Name)
	}
	return fmt.Sprintf("%s broker is not ready: no resolvable manifest or record", e.Kind)
}

// NotFoundError signals that a named resource does not exist for the
// tenant.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

// NotImplementedError signals a command that is structurally
// inapplicable to a kind. It is always raised deliberately, never a bug
// signal.
type NotImplementedError struct {
	Kind    string
	Command string
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("%s does not implement %s", e.Kind, e.Command)
}

// PermissionError signals a command restricted to staff or admin users.
type PermissionError struct {
	Kind    string
	Command string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s %s requires staff permission", e.Kind, e.Command)
}

// Error is the generic broker failure: a persistence or unexpected
// internal error, wrapped with its cause and a stack trace for operator
// diagnosis.
type Error struct {
	Msg   string
	Err   error
	Stack string
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps an internal failure, capturing the stack at the point
// of wrapping.
func NewError(err error, format string, args ...any) *Error {
	return &Error{
		Msg:   fmt.Sprintf(format, args...),
		Err:   err,
		Stack: string(debug.Stack()),
	}
}
