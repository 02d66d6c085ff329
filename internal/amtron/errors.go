package amtron

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

type FetchErrorKind string

const (
	FetchTimeout           FetchErrorKind = "timeout"
	FetchConnectionRefused FetchErrorKind = "connection_refused"
	FetchAuthFailure       FetchErrorKind = "auth_failure"
	FetchUnreachable       FetchErrorKind = "unreachable"
)

// FetchError is a transient failure talking to the charger. It never
// escalates beyond the poll cycle that observed it.
type FetchError struct {
	Kind FetchErrorKind
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed (%s): %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// classifyFetchErr maps a transport error from the device to a FetchError kind.
func classifyFetchErr(err error) *FetchError {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &FetchError{Kind: FetchTimeout, Err: err}
	case errors.As(err, &netErr) && netErr.Timeout():
		return &FetchError{Kind: FetchTimeout, Err: err}
	case errors.Is(err, syscall.ECONNREFUSED):
		return &FetchError{Kind: FetchConnectionRefused, Err: err}
	default:
		return &FetchError{Kind: FetchUnreachable, Err: err}
	}
}

type ParseErrorKind string

const (
	ParseUnrecognizedFormat ParseErrorKind = "unrecognized_format"
)

// ParseError means the response as a whole was not recognizable as a
// dashboard payload. Individual missing fields are not errors; they yield
// absent readings instead.
type ParseError struct {
	Kind ParseErrorKind
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse failed (%s): %v", e.Kind, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
