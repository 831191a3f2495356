package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Clean stop
	ExitFailure      = 1 // The bridge failed while serving
	ExitCommandError = 2 // The bridge could not start (bad project dir, store directory, lock, port)
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int    // ExitFailure or ExitCommandError
	Message string
	Err     error // optional
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitSuccess for nil and ExitFailure if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Notice is one lifecycle line written for the process that supervises
// the bridge, in JSON format one object per line.
type Notice struct {
	Event string `json:"event"`           // "ready", "reload", "stopped", "warning"
	Addr  string `json:"addr,omitempty"`  // listen address, for "ready"
	Path  string `json:"path,omitempty"`  // changed file, for "reload"
	Error string `json:"error,omitempty"` // failure text, for "stopped"
	Hint  string `json:"hint,omitempty"`
}

// OutputFormatter writes notices as JSON lines or human-readable text.
// Safe for concurrent use.
type OutputFormatter struct {
	Format string // "json" | "text"
	Writer io.Writer

	mu sync.Mutex
}

// Notify writes one notice.
func (f *OutputFormatter) Notify(n Notice) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(n)
	}

	var err error
	switch n.Event {
	case "ready":
		_, err = fmt.Fprintf(f.Writer, "Bridge listening on http://%s\n", n.Addr)
	case "reload":
		_, err = fmt.Fprintf(f.Writer, "Detected change in %s, restarting...\n", n.Path)
	case "stopped":
		if n.Error != "" {
			_, err = fmt.Fprintf(f.Writer, "Bridge stopped: %s\n", n.Error)
		} else {
			_, err = fmt.Fprintln(f.Writer, "Bridge stopped.")
		}
	case "warning":
		_, err = fmt.Fprintf(f.Writer, "Warning: %s\n", n.Error)
		if err == nil && n.Hint != "" {
			_, err = fmt.Fprintf(f.Writer, "  %s\n", n.Hint)
		}
	default:
		_, err = fmt.Fprintf(f.Writer, "%s\n", n.Event)
	}
	return err
}
