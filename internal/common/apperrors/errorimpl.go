package apperrors

import (
	"errors"
	"net/http"
	"strings"
)

// appError is the concrete implementation behind Error.
type appError struct {
	msg        string  // primary error message
	base       error   // base error for errors.Is/As compatibility
	causes     []error // additional wrapped errors
	statuscode int     // HTTP status code
}

func (e *appError) Error() string {
	return e.msg
}

// ErrorAll returns the primary message followed by every attached cause.
func (e *appError) ErrorAll() string {
	if len(e.causes) == 0 {
		return e.msg
	}
	var b strings.Builder
	b.WriteString(e.msg)
	for _, err := range e.causes {
		if err == e.base {
			continue
		}
		b.WriteString("; ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap returns the base error for compatibility with errors.Is / errors.As.
func (e *appError) Unwrap() error {
	return e.base
}

// UnwrapAll returns all attached causes in the order they were added.
func (e *appError) UnwrapAll() []error {
	return e.causes
}

// New derives a fresh error from the receiver. The derived error matches the
// receiver under errors.Is and inherits its status code, but starts a new
// message with no causes.
func (e *appError) New(msg string) Error {
	return &appError{
		msg:        msg,
		base:       e,
		statuscode: e.statuscode,
	}
}

// Msg re-messages the receiver, keeping it in the chain.
func (e *appError) Msg(msg string) Error {
	return &appError{
		msg:        msg,
		base:       e,
		causes:     append([]error{e}, e.causes...),
		statuscode: e.statuscode,
	}
}

// MsgErr re-messages the receiver and attaches additional causes.
func (e *appError) MsgErr(msg string, errs ...error) Error {
	return &appError{
		msg:        msg,
		base:       e,
		causes:     append([]error{e}, errs...),
		statuscode: e.statuscode,
	}
}

// Err attaches additional causes without changing the message.
func (e *appError) Err(errs ...error) Error {
	return &appError{
		msg:        e.msg,
		base:       e,
		causes:     append([]error{e}, errs...),
		statuscode: e.statuscode,
	}
}

// SetStatusCode returns a copy of the receiver with the given status code.
func (e *appError) SetStatusCode(code int) Error {
	cp := *e
	cp.statuscode = code
	return &cp
}

// StatusCode returns the HTTP status code associated with the error.
func (e *appError) StatusCode() int {
	return e.statuscode
}

// Is reports whether target matches the base error or any attached cause,
// so sentinels wired in through Err and MsgErr stay matchable.
func (e *appError) Is(target error) bool {
	if target == nil {
		return false
	}
	if errors.Is(e.base, target) {
		return true
	}
	for _, c := range e.causes {
		if errors.Is(c, target) {
			return true
		}
	}
	return false
}

// New creates a root-level error with the given message. The status code
// defaults to http.StatusInternalServerError until overridden.
func New(msg string) Error {
	return &appError{
		msg:        msg,
		statuscode: http.StatusInternalServerError,
	}
}
