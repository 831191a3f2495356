package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/blevesearch/bleve/v2"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/devbridge/internal/registry"
	"github.com/roach88/devbridge/internal/scalar"
	"github.com/roach88/devbridge/internal/store"
)

// batchSize bounds the number of documents buffered per bleve batch.
const batchSize = 500

// EntitySource streams the current records of one entity type.
// *store.Store implements it.
type EntitySource interface {
	StreamEntities(ctx context.Context, entityType string, fn func(store.Entity) error) error
}

// Index is a private in-memory index over one snapshot of an entity type.
// Read-only once built. Close it when the request is done.
type Index struct {
	schema   *Schema
	index    bleve.Index
	ordinals map[string]int64
}

// Build creates an in-memory index for schema and populates it with every
// record src streams for the schema's entity type.
//
// A document value whose type disagrees with its declared field type is
// indexed as null.
func Build(ctx context.Context, src EntitySource, schema *Schema, logger *slog.Logger) (*Index, error) {
	idx, err := bleve.NewMemOnly(schema.mapping)
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}

	ix := &Index{schema: schema, index: idx, ordinals: make(map[string]int64)}
	batch := idx.NewBatch()

	err = src.StreamEntities(ctx, schema.EntityType, func(e store.Entity) error {
		values, err := scalar.DecodeObject(e.Document)
		if err != nil {
			return &SearchError{Message: fmt.Sprintf("record %s has a malformed document", e.ID), Err: err}
		}

		doc, mismatched := schema.document(values)
		for _, name := range mismatched {
			logger.Debug("indexing mismatched value as null",
				"entity_type", schema.EntityType, "id", e.ID, "field", name)
		}

		if err := batch.Index(e.ID, doc); err != nil {
			return fmt.Errorf("index record %s: %w", e.ID, err)
		}
		ix.ordinals[e.ID] = e.Ordinal

		if batch.Size() >= batchSize {
			if err := idx.Batch(batch); err != nil {
				return fmt.Errorf("flush batch: %w", err)
			}
			batch.Reset()
		}
		return nil
	})
	if err == nil && batch.Size() > 0 {
		err = idx.Batch(batch)
	}
	if err != nil {
		idx.Close()
		return nil, err
	}

	return ix, nil
}

// Close releases the index.
func (ix *Index) Close() error {
	return ix.index.Close()
}

// DocCount returns the number of indexed records.
func (ix *Index) DocCount() int {
	return len(ix.ordinals)
}

// document converts a record's values into a bleve document following the
// schema. Returns the names of fields whose value had the wrong type.
func (s *Schema) document(values map[string]scalar.Value) (map[string]any, []string) {
	doc := make(map[string]any, len(s.Fields)+1)
	var nulls, mismatched []string

	for _, f := range s.Fields {
		v, ok := values[f.Name]
		if !ok || scalar.IsNull(v) {
			nulls = append(nulls, f.Name)
			continue
		}

		indexed, ok := indexValue(f.Type, v)
		if !ok {
			nulls = append(nulls, f.Name)
			mismatched = append(mismatched, f.Name)
			continue
		}
		doc[f.DocKey] = indexed
		if f.TokenizedDocKey != "" {
			doc[f.TokenizedDocKey] = Tokenize(indexed.(string))
		}
	}

	if len(nulls) > 0 {
		doc[nullField] = nulls
	}
	return doc, mismatched
}

// indexValue converts v to the representation its field type is indexed
// with: NFC string for text and keyword types, float64 for numbers, bool
// for booleans.
func indexValue(t registry.FieldType, v scalar.Value) (any, bool) {
	switch {
	case t.IsNumeric():
		return scalar.AsFloat(v)
	case t == registry.FieldBoolean:
		b, ok := v.(scalar.Bool)
		return bool(b), ok
	default:
		s, ok := v.(scalar.String)
		return normalizeKeyword(string(s)), ok
	}
}

// normalizeKeyword puts exact-match strings into NFC, the form query
// fingerprints are computed over. Indexed values and query operands both
// pass through it.
func normalizeKeyword(s string) string {
	return norm.NFC.String(s)
}
