package timssdr

import (
	"errors"
	"fmt"

	"github.com/harshaampar/timssdr/internal/engine"
)

// ErrorCode mirrors the original driver's timssdr_error enum: a small,
// stable set of high-level outcomes an application can branch on without
// string-matching Msg.
type ErrorCode string

const (
	ErrCodeSuccess             ErrorCode = "success"
	ErrCodeTrue                ErrorCode = "true"
	ErrCodeInvalidParam        ErrorCode = "invalid parameter"
	ErrCodeNotFound            ErrorCode = "device not found"
	ErrCodeTransport           ErrorCode = "transport error"
	ErrCodeNotLastDevice       ErrorCode = "not the last open device"
	ErrCodeNoMem               ErrorCode = "out of memory"
	ErrCodeThread              ErrorCode = "event pump could not be started"
	ErrCodeBusy                ErrorCode = "device busy"
	ErrCodeOther               ErrorCode = "other error"
	ErrCodeStreamingThreadErr  ErrorCode = "streaming thread error"
	ErrCodeStreamingStopped    ErrorCode = "streaming stopped"
	ErrCodeStreamingExitCalled ErrorCode = "exit already called"
)

// Error is a structured error carrying the failed operation, the device it
// applies to (if any), the error's category, and the underlying cause.
type Error struct {
	Op    string
	DevID uint32
	Code  ErrorCode
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Op == "" {
		return fmt.Sprintf("timssdr: %s", msg)
	}
	return fmt.Sprintf("timssdr: %s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Inner }

func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

func newErr(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

func newDeviceErr(op string, devID uint32, code ErrorCode, msg string) *Error {
	return &Error{Op: op, DevID: devID, Code: code, Msg: msg}
}

// wrapEngineErr maps an internal/engine sentinel error onto the public
// taxonomy. Errors the engine did not originate (transport failures
// surfaced from internal/bulkusb) fall through to ErrCodeTransport.
func wrapEngineErr(op string, err error) *Error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, engine.ErrBusy):
		return newErr(op, ErrCodeBusy, err.Error())
	case errors.Is(err, engine.ErrAlreadyOpen):
		return newErr(op, ErrCodeBusy, err.Error())
	case errors.Is(err, engine.ErrNotStreaming):
		return newErr(op, ErrCodeStreamingStopped, err.Error())
	case errors.Is(err, engine.ErrInvalidParam):
		return newErr(op, ErrCodeInvalidParam, err.Error())
	default:
		return &Error{Op: op, Code: ErrCodeTransport, Msg: err.Error(), Inner: err}
	}
}

// Exported sentinel errors for the common cases callers compare directly,
// matching the root-level ErrDeviceNotFound-style constants a caller would
// expect from a small device library.
var (
	ErrInvalidParameters = &Error{Code: ErrCodeInvalidParam, Msg: string(ErrCodeInvalidParam)}
	ErrDeviceNotFound    = &Error{Code: ErrCodeNotFound, Msg: string(ErrCodeNotFound)}
	ErrNotLastDevice     = &Error{Code: ErrCodeNotLastDevice, Msg: string(ErrCodeNotLastDevice)}
	ErrStreamingStopped  = &Error{Code: ErrCodeStreamingStopped, Msg: string(ErrCodeStreamingStopped)}
	ErrExitCalled        = &Error{Code: ErrCodeStreamingExitCalled, Msg: string(ErrCodeStreamingExitCalled)}
)

// IsCode reports whether err is a *Error carrying code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// ErrorName returns the human-readable name of a code, mirroring the
// original's timssdr_error_name().
func ErrorName(code ErrorCode) string {
	return string(code)
}
