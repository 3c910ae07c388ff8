package eeipc

import (
	"errors"
	"fmt"
	"io"

	"github.com/ehrlich-b/eeipc/internal/reply"
)

// Error is the structured error every Driver method returns on
// failure: which operation failed, a coarse category for callers that
// want to switch on failure kind, and the underlying cause.
type Error struct {
	Op    string // operation that failed, e.g. "Tick", "PlanFragment"
	Code  ErrorCode
	Msg   string
	Inner error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("eeipc: %s: %s (%s)", e.Op, e.Msg, e.Code)
	}
	return fmt.Sprintf("eeipc: %s: %s", e.Op, e.Code)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is supports errors.Is against another *Error or an ErrorCode value,
// both compared by Code rather than by identity.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if code, ok := target.(ErrorCode); ok {
		return e.Code == code
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// ErrorCode categorizes what went wrong, separate from the Go error
// chain a caller can still walk with errors.Unwrap.
type ErrorCode string

func (c ErrorCode) Error() string { return string(c) }

const (
	// CodeTransportClosed means the socket to the EE closed or failed
	// mid I/O — the process is gone or the connection was reset.
	CodeTransportClosed ErrorCode = "transport closed"
	// CodeProtocolViolation means the EE sent bytes that don't match
	// any reply shape this driver understands.
	CodeProtocolViolation ErrorCode = "protocol violation"
	// CodeEEException means the EE reported a typed exception for the
	// command just issued.
	CodeEEException ErrorCode = "ee exception"
	// CodeGenericEEError means the EE reported failure with no
	// exception payload attached.
	CodeGenericEEError ErrorCode = "generic ee error"
	// CodeEECrash means the EE reported a fatal crash; the coordinator
	// has already been notified by the time this code surfaces.
	CodeEECrash ErrorCode = "ee crash"
	// CodeInstrumentationError means a memory checker wrapping the EE
	// reported leaks or errors at shutdown.
	CodeInstrumentationError ErrorCode = "instrumentation error"
	// CodeNotImplemented means the operation has no EE counterpart in
	// this driver and was rejected before touching the socket.
	CodeNotImplemented ErrorCode = "not implemented"
)

// WrapError classifies inner (typically returned by internal/reply)
// into a *Error tagged with op, preserving it as the wrapped cause.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if e, ok := inner.(*Error); ok {
		return &Error{Op: op, Code: e.Code, Msg: e.Msg, Inner: e}
	}

	var ee *reply.EEException
	if errors.As(inner, &ee) {
		return &Error{Op: op, Code: CodeEEException, Msg: ee.Error(), Inner: inner}
	}
	var generic *reply.GenericEEError
	if errors.As(inner, &generic) {
		return &Error{Op: op, Code: CodeGenericEEError, Msg: generic.Error(), Inner: inner}
	}
	var crash *reply.CrashError
	if errors.As(inner, &crash) {
		return &Error{Op: op, Code: CodeEECrash, Msg: crash.Error(), Inner: inner}
	}
	if errors.Is(inner, io.EOF) || errors.Is(inner, io.ErrUnexpectedEOF) || errors.Is(inner, io.ErrClosedPipe) {
		return &Error{Op: op, Code: CodeTransportClosed, Msg: inner.Error(), Inner: inner}
	}

	return &Error{Op: op, Code: CodeProtocolViolation, Msg: inner.Error(), Inner: inner}
}

// notImplementedError builds the error NotImplemented operations
// return without ever touching the socket.
func notImplementedError(op string) *Error {
	return &Error{Op: op, Code: CodeNotImplemented, Msg: "no EE counterpart for this operation"}
}

// IsCode reports whether err is (or wraps) an *Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
