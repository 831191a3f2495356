package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/roach88/devbridge/internal/registry"
)

const (
	// nullField lists, per document, the schema fields that are null or
	// absent. GraphQL reserves the "__" prefix, so it cannot collide.
	nullField = "__null"

	tokenizedSuffix = "__tokens"
)

// IndexedField maps a logical field to its physical index fields.
type IndexedField struct {
	Name string
	// DocKey is the exact-match field.
	DocKey string
	// TokenizedDocKey is the full-text companion field, empty for
	// non-text types.
	TokenizedDocKey string
	Type            registry.FieldType
}

// Schema is the index layout derived for one entity type.
type Schema struct {
	EntityType string
	// Fields are in sorted name order.
	Fields  []IndexedField
	byName  map[string]IndexedField
	mapping *mapping.IndexMappingImpl
}

// Field looks up an indexed field by logical name.
func (s *Schema) Field(name string) (IndexedField, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// TokenizedFields returns every field with a full-text companion.
func (s *Schema) TokenizedFields() []IndexedField {
	var out []IndexedField
	for _, f := range s.Fields {
		if f.TokenizedDocKey != "" {
			out = append(out, f)
		}
	}
	return out
}

// DeriveSchema builds the index layout of one entity type from its
// registry declaration.
//
// Every field is indexed verbatim with the keyword analyzer: tokenized
// companions receive tokens already normalized by Tokenize, so the index
// never applies language-specific analysis.
func DeriveSchema(entityType string, idx registry.Index) *Schema {
	doc := bleve.NewDocumentStaticMapping()

	s := &Schema{
		EntityType: entityType,
		byName:     make(map[string]IndexedField, len(idx.Schema.Fields)),
	}
	for _, name := range idx.Schema.FieldNames() {
		decl := idx.Schema.Fields[name]
		f := IndexedField{Name: name, DocKey: name, Type: decl.Type}

		switch {
		case decl.Type.IsText():
			f.TokenizedDocKey = name + tokenizedSuffix
			doc.AddFieldMappingsAt(f.DocKey, keywordField())
			doc.AddFieldMappingsAt(f.TokenizedDocKey, keywordField())
		case decl.Type.IsNumeric():
			doc.AddFieldMappingsAt(f.DocKey, numericField())
		case decl.Type == registry.FieldBoolean:
			doc.AddFieldMappingsAt(f.DocKey, booleanField())
		default:
			doc.AddFieldMappingsAt(f.DocKey, keywordField())
		}

		s.Fields = append(s.Fields, f)
		s.byName[name] = f
	}
	doc.AddFieldMappingsAt(nullField, keywordField())

	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = keyword.Name
	im.DefaultMapping = doc
	im.IndexDynamic = false
	im.StoreDynamic = false
	im.DocValuesDynamic = false
	s.mapping = im
	return s
}

func keywordField() *mapping.FieldMapping {
	fm := bleve.NewKeywordFieldMapping()
	fm.Store = false
	fm.IncludeInAll = false
	fm.IncludeTermVectors = false
	return fm
}

func numericField() *mapping.FieldMapping {
	fm := bleve.NewNumericFieldMapping()
	fm.Store = false
	fm.IncludeInAll = false
	return fm
}

func booleanField() *mapping.FieldMapping {
	fm := bleve.NewBooleanFieldMapping()
	fm.Store = false
	fm.IncludeInAll = false
	return fm
}
