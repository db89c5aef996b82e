// Package apperrors provides typed application errors with support for
// wrapping, status codes, and message refinement. Errors form chains that
// remain compatible with errors.Is and errors.As, so a sentinel declared at
// package level can be matched anywhere downstream regardless of how many
// times it was re-messaged along the way.
package apperrors

// Error is the interface implemented by all application errors. It extends
// the standard error interface with chaining helpers; every helper returns a
// new Error derived from the receiver, leaving the receiver untouched.
type Error interface {
	error
	Unwrap() error // support for errors.Is / errors.As

	New(msg string) Error                  // derives a fresh error using the receiver as template
	Msg(msg string) Error                  // re-messages the receiver, wrapping it
	MsgErr(msg string, err ...error) Error // re-messages and attaches additional causes
	Err(err ...error) Error                // attaches additional causes, keeping the message
	SetStatusCode(int) Error               // sets the HTTP status code
	StatusCode() int                       // returns the HTTP status code
	ErrorAll() string                      // message including all attached causes
	UnwrapAll() []error                    // all attached causes in order
}
