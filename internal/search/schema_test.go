package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/devbridge/internal/registry"
	"github.com/roach88/devbridge/internal/scalar"
)

func TestDeriveSchema(t *testing.T) {
	s := DeriveSchema("Todo", todoIndex)

	assert.Equal(t, "Todo", s.EntityType)
	require.Len(t, s.Fields, 6)
	assert.Equal(t, "done", s.Fields[0].Name, "fields in sorted order")

	title, ok := s.Field("title")
	require.True(t, ok)
	assert.Equal(t, IndexedField{Name: "title", DocKey: "title", TokenizedDocKey: "title__tokens", Type: registry.FieldString}, title)

	priority, ok := s.Field("priority")
	require.True(t, ok)
	assert.Empty(t, priority.TokenizedDocKey)

	var tokenized []string
	for _, f := range s.TokenizedFields() {
		tokenized = append(tokenized, f.Name)
	}
	assert.Equal(t, []string{"email", "title"}, tokenized)
}

func TestSchema_Document(t *testing.T) {
	s := DeriveSchema("Todo", todoIndex)

	doc, mismatched := s.document(map[string]scalar.Value{
		"title":    scalar.String("Buy Milk"),
		"priority": scalar.String("high"),
		"weight":   scalar.Int(2),
		"done":     scalar.Bool(true),
		"email":    scalar.Null{},
		"extra":    scalar.String("ignored"),
	})

	assert.Equal(t, []string{"priority"}, mismatched)
	assert.Equal(t, map[string]any{
		"title":         "Buy Milk",
		"title__tokens": []string{"buy", "milk"},
		"weight":        float64(2),
		"done":          true,
		"__null":        []string{"due", "email", "priority"},
	}, doc)
}
