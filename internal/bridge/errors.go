package bridge

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/roach88/devbridge/internal/registry"
	"github.com/roach88/devbridge/internal/resolver"
	"github.com/roach88/devbridge/internal/scalar"
	"github.com/roach88/devbridge/internal/search"
	"github.com/roach88/devbridge/internal/store"
)

// ErrorKind classifies a failed request in the protocol's error body.
type ErrorKind string

// Error kinds. OutcomeOK is not an error kind but shares the label space
// of the request counter.
const (
	KindBadRequest         ErrorKind = "bad_request"
	KindConflict           ErrorKind = "conflict"
	KindStorage            ErrorKind = "storage"
	KindSearch             ErrorKind = "search"
	KindConfiguration      ErrorKind = "configuration"
	KindResolverInvocation ErrorKind = "resolver_invocation"
	KindInternal           ErrorKind = "internal"

	OutcomeOK = "ok"
)

// ErrorBody is the JSON body of every failed request.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one failure. Only the fields relevant to Kind are set.
type ErrorDetail struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`

	// Operation identifies the offending statement of a conflict.
	Operation *ConflictOperation `json:"operation,omitempty"`
	// Code is the SQLite result code of a storage failure, when known.
	Code string `json:"code,omitempty"`
	// ResolverName names the resolver of a failed invocation.
	ResolverName string `json:"resolver_name,omitempty"`
}

// ConflictOperation is the tagged operation that violated uniqueness.
type ConflictOperation struct {
	Index int          `json:"index"`
	SQL   string       `json:"sql"`
	Field string       `json:"field,omitempty"`
	Value scalar.Value `json:"value,omitempty"`
}

// badRequest marks a request whose body could not be decoded.
type badRequest struct {
	err error
}

func (e *badRequest) Error() string { return fmt.Sprintf("malformed request body: %v", e.err) }
func (e *badRequest) Unwrap() error { return e.err }

// classify maps an error to its HTTP status and protocol body.
//
// Storage and configuration failures carry internal detail (SQL text,
// file paths); their message is generic and the cause is logged instead.
func classify(err error, logger *slog.Logger) (int, ErrorDetail) {
	var (
		br   *badRequest
		ce   *store.ConflictError
		se   *store.StorageError
		srch *search.SearchError
		cfg  *registry.ConfigurationError
		ie   *resolver.InvocationError
	)

	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest, ErrorDetail{Kind: KindBadRequest, Message: br.Error()}

	case errors.As(err, &ce):
		op := &ConflictOperation{Index: ce.Index, SQL: ce.Operation.SQL}
		if c := ce.Operation.Constraint; c != nil {
			op.Field = c.Field
			op.Value = c.Value
		}
		return http.StatusConflict, ErrorDetail{
			Kind:      KindConflict,
			Message:   fmt.Sprintf("operation %d violates a uniqueness constraint", ce.Index),
			Operation: op,
		}

	case errors.As(err, &se):
		logger.Error("storage failure", "op", se.Op, "code", se.Code, "error", se.Err)
		return http.StatusInternalServerError, ErrorDetail{
			Kind:    KindStorage,
			Message: "storage failure during " + se.Op,
			Code:    se.Code,
		}

	case errors.As(err, &srch):
		return http.StatusBadRequest, ErrorDetail{Kind: KindSearch, Message: srch.Error()}

	case errors.As(err, &cfg):
		logger.Error("registry configuration error", "error", cfg)
		return http.StatusInternalServerError, ErrorDetail{
			Kind:    KindConfiguration,
			Message: "the search registry is missing or invalid",
		}

	case errors.As(err, &ie):
		return http.StatusInternalServerError, ErrorDetail{
			Kind:         KindResolverInvocation,
			Message:      ie.Error(),
			ResolverName: ie.Resolver,
		}

	default:
		logger.Error("unclassified request failure", "error", err)
		return http.StatusInternalServerError, ErrorDetail{Kind: KindInternal, Message: "internal error"}
	}
}
