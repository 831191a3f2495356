// Package registry loads the versioned schema registry written by the
// external schema compiler.
//
// The bridge never caches the registry: every search request loads and
// validates it afresh so edits made by the compiler are picked up
// immediately.
package registry

import "sort"

// FieldType is the declared type of a searchable field.
type FieldType string

const (
	FieldString      FieldType = "String"
	FieldEmail       FieldType = "Email"
	FieldURL         FieldType = "URL"
	FieldPhoneNumber FieldType = "PhoneNumber"
	FieldIPAddress   FieldType = "IPAddress"
	FieldDate        FieldType = "Date"
	FieldDateTime    FieldType = "DateTime"
	FieldInt         FieldType = "Int"
	FieldFloat       FieldType = "Float"
	FieldTimestamp   FieldType = "Timestamp"
	FieldBoolean     FieldType = "Boolean"
)

// IsText reports whether values of this type are free text eligible for
// full-text matching.
func (t FieldType) IsText() bool {
	switch t {
	case FieldString, FieldEmail, FieldURL, FieldPhoneNumber:
		return true
	}
	return false
}

// IsNumeric reports whether values of this type are numbers.
func (t FieldType) IsNumeric() bool {
	switch t {
	case FieldInt, FieldFloat, FieldTimestamp:
		return true
	}
	return false
}

// VersionedRegistry is the on-disk envelope.
type VersionedRegistry struct {
	Version  string   `json:"version"`
	Registry Registry `json:"registry"`
}

// Registry is the part of the compiled schema the bridge reads.
type Registry struct {
	SearchConfig SearchConfig `json:"search_config"`
}

// SearchConfig lists the searchable entity types.
type SearchConfig struct {
	Indexes map[string]Index `json:"indexes"`
}

// Index describes the searchable fields of one entity type.
type Index struct {
	Schema Schema `json:"schema"`
}

// Schema maps field names to their declaration.
type Schema struct {
	Fields map[string]Field `json:"fields"`
}

// Field is a single searchable field declaration.
type Field struct {
	Type     FieldType `json:"type"`
	Nullable bool      `json:"nullable"`
}

// Index returns the search index declaration of an entity type.
func (r *Registry) Index(entityType string) (Index, bool) {
	idx, ok := r.SearchConfig.Indexes[entityType]
	return idx, ok
}

// FieldNames returns the declared field names in sorted order.
func (s Schema) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
