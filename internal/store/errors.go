package store

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// ErrLocked is returned by Open when another process holds the store's lock.
var ErrLocked = errors.New("store is locked by another bridge")

// StartupError reports that the store's directory could not be prepared.
// The bridge cannot start without it.
type StartupError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *StartupError) Error() string {
	return fmt.Sprintf("prepare database directory %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying I/O error.
func (e *StartupError) Unwrap() error { return e.Err }

// StorageError is a failure of the relational store itself: connectivity,
// malformed SQL, or a generic execution failure. Err is the driver error,
// unmodified.
type StorageError struct {
	// Op names the failed step ("query", "begin", "exec", "commit", ...).
	Op string

	// Code is the SQLite primary result code name, empty when the failure
	// did not come from SQLite.
	Code string

	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the driver error.
func (e *StorageError) Unwrap() error { return e.Err }

// ConflictError is a uniqueness violation raised by a mutation operation
// tagged with a unique constraint. Index is the operation's position in
// the batch.
type ConflictError struct {
	Index     int
	Operation MutationOperation
	Err       error
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if c := e.Operation.Constraint; c != nil && c.Field != "" {
		return fmt.Sprintf("operation %d violates uniqueness of %s: %v", e.Index, c.Field, e.Err)
	}
	return fmt.Sprintf("operation %d violates a uniqueness constraint: %v", e.Index, e.Err)
}

// Unwrap returns the driver error.
func (e *ConflictError) Unwrap() error { return e.Err }

// IsConflict returns true if the error is a ConflictError.
// Uses errors.As to handle wrapped errors.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsStorage returns true if the error is a StorageError.
// Uses errors.As to handle wrapped errors.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

func newStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Code: resultCode(err), Err: err}
}

// isUniqueViolation reports whether err is a SQLite UNIQUE or PRIMARY KEY
// constraint failure.
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == sqlite3.ErrConstraint &&
		(se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}

var resultCodeNames = map[sqlite3.ErrNo]string{
	sqlite3.ErrError:      "SQLITE_ERROR",
	sqlite3.ErrInternal:   "SQLITE_INTERNAL",
	sqlite3.ErrPerm:       "SQLITE_PERM",
	sqlite3.ErrAbort:      "SQLITE_ABORT",
	sqlite3.ErrBusy:       "SQLITE_BUSY",
	sqlite3.ErrLocked:     "SQLITE_LOCKED",
	sqlite3.ErrNomem:      "SQLITE_NOMEM",
	sqlite3.ErrReadonly:   "SQLITE_READONLY",
	sqlite3.ErrInterrupt:  "SQLITE_INTERRUPT",
	sqlite3.ErrIoErr:      "SQLITE_IOERR",
	sqlite3.ErrCorrupt:    "SQLITE_CORRUPT",
	sqlite3.ErrFull:       "SQLITE_FULL",
	sqlite3.ErrCantOpen:   "SQLITE_CANTOPEN",
	sqlite3.ErrSchema:     "SQLITE_SCHEMA",
	sqlite3.ErrTooBig:     "SQLITE_TOOBIG",
	sqlite3.ErrConstraint: "SQLITE_CONSTRAINT",
	sqlite3.ErrMismatch:   "SQLITE_MISMATCH",
	sqlite3.ErrMisuse:     "SQLITE_MISUSE",
	sqlite3.ErrRange:      "SQLITE_RANGE",
	sqlite3.ErrNotADB:     "SQLITE_NOTADB",
}

func resultCode(err error) string {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return ""
	}
	if name, ok := resultCodeNames[se.Code]; ok {
		return name
	}
	return fmt.Sprintf("SQLITE_%d", int(se.Code))
}
