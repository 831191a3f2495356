package search

import (
	"errors"
	"fmt"
)

// SearchError reports an unsupported or malformed search request: unknown
// entity type or field, a construct the index cannot express, an invalid
// limit, or a cursor that does not belong to the query.
type SearchError struct {
	Message string
	Err     error
}

// Error implements the error interface.
func (e *SearchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error, if any.
func (e *SearchError) Unwrap() error { return e.Err }

// IsSearch returns true if the error is a SearchError.
// Uses errors.As to handle wrapped errors.
func IsSearch(err error) bool {
	var se *SearchError
	return errors.As(err, &se)
}

func searchErrorf(format string, args ...any) *SearchError {
	return &SearchError{Message: fmt.Sprintf(format, args...)}
}
