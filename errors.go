package main

import "fmt"

// Error kinds, used as the envelope tag returned to the MCP caller.
const (
	KindValidation = "validation"
	KindAuth       = "auth"
	KindAPI        = "api"
	KindDatabase   = "database"
)

// OpError is the uniform error envelope every operation failure is shaped
// into before it crosses the transport boundary.
type OpError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	cause   error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *OpError) Unwrap() error { return e.cause }

func validationErr(format string, args ...any) *OpError {
	return &OpError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func authErr(format string, args ...any) *OpError {
	return &OpError{Kind: KindAuth, Message: fmt.Sprintf(format, args...)}
}

func authWrap(err error, format string, args ...any) *OpError {
	return &OpError{Kind: KindAuth, Message: fmt.Sprintf(format, args...) + ": " + err.Error(), cause: err}
}

func apiErr(format string, args ...any) *OpError {
	return &OpError{Kind: KindAPI, Message: fmt.Sprintf(format, args...)}
}

// dbErr wraps a driver/transport failure, preserving the server's message.
func dbErr(err error) *OpError {
	return &OpError{Kind: KindDatabase, Message: err.Error(), cause: err}
}

// asEnvelope shapes any error into an OpError. Errors that are already
// envelopes pass through; everything else is treated as a driver failure.
func asEnvelope(err error) *OpError {
	if oe, ok := err.(*OpError); ok {
		return oe
	}
	return dbErr(err)
}
