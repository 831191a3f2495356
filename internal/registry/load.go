package registry

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cuejson "cuelang.org/go/encoding/json"
)

//go:embed schema.cue
var schemaCUE string

// ConfigurationError reports a registry that is missing, unreadable or
// malformed.
type ConfigurationError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("registry %s: %s", e.Path, cueerrors.Details(e.Err, nil))
}

// Unwrap returns the underlying error.
func (e *ConfigurationError) Unwrap() error { return e.Err }

// IsConfiguration returns true if the error is a ConfigurationError.
// Uses errors.As to handle wrapped errors.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// compileSchema builds the registry definition in a fresh context.
// A cue.Context must not be shared between concurrent searches.
func compileSchema(ctx *cue.Context) (cue.Value, error) {
	v := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return cue.Value{}, err
	}
	return v.LookupPath(cue.ParsePath("#VersionedRegistry")), nil
}

// Load reads, validates and decodes the registry at path.
// Every failure is a *ConfigurationError.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigurationError{Path: path, Err: err}
	}
	reg, err := Parse(path, data)
	if err != nil {
		return nil, &ConfigurationError{Path: path, Err: err}
	}
	return reg, nil
}

// Parse validates data against the registry schema and decodes it.
// filename is used for error positions only.
func Parse(filename string, data []byte) (*Registry, error) {
	ctx := cuecontext.New()
	def, err := compileSchema(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile registry schema: %w", err)
	}

	expr, err := cuejson.Extract(filename, data)
	if err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	value := def.Unify(ctx.BuildExpr(expr))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}

	var versioned VersionedRegistry
	if err := value.Decode(&versioned); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &versioned.Registry, nil
}
