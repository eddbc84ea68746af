package reservation

import (
	"errors"
	"fmt"
)

// Kind classifies a core error so callers (the HTTP layer) can map it to a
// response without parsing messages.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindInvalidTransition Kind = "invalid_transition"
	KindPermission        Kind = "permission"
	KindTransient         Kind = "transient"
	// KindInternal is an unclassified storage failure. Its cause is for logs,
	// not for callers.
	KindInternal Kind = "internal"
)

// Error is the single error type returned by the core.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrConflict) works
// regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Msg == "" && t.Op == ""
}

var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrPermission        = &Error{Kind: KindPermission}
	ErrTransient         = &Error{Kind: KindTransient}
	ErrInternal          = &Error{Kind: KindInternal}
)

// KindOf returns the kind of a core error, or "" for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func validationErr(format string, args ...any) error {
	return newError(KindValidation, format, args...)
}

func conflictErr(format string, args ...any) error {
	return newError(KindConflict, format, args...)
}

func permissionErr(format string, args ...any) error {
	return newError(KindPermission, format, args...)
}

func invalidTransitionErr(format string, args ...any) error {
	return newError(KindInvalidTransition, format, args...)
}

// NotFound is exported for store implementations.
func NotFound(object, id string) error {
	return newError(KindNotFound, "%s %q not found", object, id)
}

// Conflict is exported for store implementations that detect duplicates
// through constraints.
func Conflict(format string, args ...any) error {
	return conflictErr(format, args...)
}

func withOp(op string, err error) error {
	var e *Error
	if errors.As(err, &e) && e.Op == "" {
		cp := *e
		cp.Op = op
		return &cp
	}
	return err
}
