package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/devbridge/internal/scalar"
)

// Operation is a parameterized statement. Variables bind positionally to
// the template's placeholders and are never interpolated into SQL.
type Operation struct {
	SQL       string        `json:"sql"`
	Variables scalar.Values `json:"variables"`
}

// ConstraintKind names a constraint an operation may be tagged with.
type ConstraintKind string

// ConstraintUnique marks an operation whose failure on a uniqueness
// violation is reported as a conflict.
const ConstraintUnique ConstraintKind = "unique"

// Constraint describes the constraint a mutation operation enforces.
// Field and Value are carried for diagnostics only.
type Constraint struct {
	Kind  ConstraintKind `json:"constraint"`
	Field string         `json:"field,omitempty"`
	Value scalar.Value   `json:"value,omitempty"`
}

// UnmarshalJSON decodes a constraint and rejects unknown kinds.
func (c *Constraint) UnmarshalJSON(data []byte) error {
	var raw struct {
		Kind  ConstraintKind  `json:"constraint"`
		Field string          `json:"field"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Kind != ConstraintUnique {
		return fmt.Errorf("unknown constraint %q", raw.Kind)
	}

	out := Constraint{Kind: raw.Kind, Field: raw.Field}
	if len(raw.Value) > 0 {
		v, err := scalar.Decode(raw.Value)
		if err != nil {
			return fmt.Errorf("constraint value: %w", err)
		}
		out.Value = v
	}
	*c = out
	return nil
}

// MutationOperation is one statement of a mutation batch, optionally
// tagged with a constraint.
type MutationOperation struct {
	Operation
	Constraint *Constraint `json:"kind,omitempty"`
}

// Unique reports whether the operation is tagged with a unique constraint.
func (m MutationOperation) Unique() bool {
	return m.Constraint != nil && m.Constraint.Kind == ConstraintUnique
}

// Mutation is an ordered, all-or-nothing batch of operations.
type Mutation struct {
	Mutations []MutationOperation `json:"mutations"`
}
