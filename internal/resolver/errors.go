package resolver

import (
	"errors"
	"fmt"
)

// ErrClosed is returned when invoking through a closed proxy.
var ErrClosed = errors.New("resolver proxy is closed")

// InvocationError reports that a resolver could not produce a result: the
// worker was unreachable, failed, timed out, or answered with something
// other than one JSON value.
type InvocationError struct {
	Resolver string
	// Status is the worker's HTTP status when it was not 2xx, otherwise 0.
	Status int
	Err    error
}

// Error implements the error interface.
func (e *InvocationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("invoke resolver %q: worker status %d: %v", e.Resolver, e.Status, e.Err)
	}
	return fmt.Sprintf("invoke resolver %q: %v", e.Resolver, e.Err)
}

// Unwrap returns the underlying error.
func (e *InvocationError) Unwrap() error { return e.Err }

// IsInvocation returns true if the error is an InvocationError.
// Uses errors.As to handle wrapped errors.
func IsInvocation(err error) bool {
	var ie *InvocationError
	return errors.As(err, &ie)
}
