package remote

import (
	"errors"
	"fmt"

	"connectrpc.com/connect"
)

// Error is a failed call to the service of record.
type Error struct {
	// Procedure is the full Connect procedure name that failed.
	Procedure string

	// Code is the Connect status code. Transport failures report CodeUnavailable
	// or CodeUnknown depending on what the HTTP client returned.
	Code connect.Code

	// Message is the service's error message without the code prefix.
	Message string

	err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Procedure, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.err
}

// CodeOf returns the Connect code carried by err, or CodeUnknown.
func CodeOf(err error) connect.Code {
	var remoteErr *Error
	if errors.As(err, &remoteErr) {
		return remoteErr.Code
	}
	return connect.CodeOf(err)
}

func wrapError(procedure string, err error) error {
	if err == nil {
		return nil
	}
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return &Error{
			Procedure: procedure,
			Code:      connectErr.Code(),
			Message:   connectErr.Message(),
			err:       err,
		}
	}
	return &Error{
		Procedure: procedure,
		Code:      connect.CodeOf(err),
		Message:   err.Error(),
		err:       err,
	}
}
