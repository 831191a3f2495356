package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/devbridge/internal/registry"
	"github.com/roach88/devbridge/internal/store"
)

// memorySource is an EntitySource over a fixed slice of records.
type memorySource struct {
	entityType string
	entities   []store.Entity
}

func (m *memorySource) StreamEntities(_ context.Context, entityType string, fn func(store.Entity) error) error {
	if entityType != m.entityType {
		return nil
	}
	for _, e := range m.entities {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func (m *memorySource) add(id string, doc map[string]any) {
	data, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	m.entities = append(m.entities, store.Entity{
		Ordinal:  int64(len(m.entities) + 1),
		ID:       id,
		Document: data,
	})
}

var todoIndex = registry.Index{Schema: registry.Schema{Fields: map[string]registry.Field{
	"title":    {Type: registry.FieldString},
	"email":    {Type: registry.FieldEmail},
	"priority": {Type: registry.FieldInt},
	"weight":   {Type: registry.FieldFloat},
	"done":     {Type: registry.FieldBoolean},
	"due":      {Type: registry.FieldDate},
}}}

func todoRegistry() *registry.Registry {
	return &registry.Registry{SearchConfig: registry.SearchConfig{
		Indexes: map[string]registry.Index{"Todo": todoIndex},
	}}
}

func staticRegistry(reg *registry.Registry) RegistryLoader {
	return func() (*registry.Registry, error) { return reg, nil }
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSearcher(src EntitySource) *Searcher {
	return NewSearcher(staticRegistry(todoRegistry()), src, 100, discardLogger())
}

// sampleTodos is a small fixed data set exercising every field type.
func sampleTodos() *memorySource {
	src := &memorySource{entityType: "Todo"}
	src.add("todo_1", map[string]any{"title": "Buy milk", "priority": 1, "weight": 0.5, "done": false, "due": "2023-01-10", "email": "ann@example.com"})
	src.add("todo_2", map[string]any{"title": "Buy bread and milk", "priority": 2, "weight": 1.5, "done": true, "due": "2023-02-01"})
	src.add("todo_3", map[string]any{"title": "Write report", "priority": 3, "done": false, "due": "2023-03-15", "email": "bob@example.com"})
	src.add("todo_4", map[string]any{"title": "Call Bob", "priority": "high", "done": true})
	src.add("todo_5", map[string]any{"priority": 5})
	return src
}

func search(t *testing.T, s *Searcher, entityType, query string, limit int, cursor *string) (*Response, error) {
	t.Helper()
	return s.Search(context.Background(), Request{
		EntityType: entityType,
		Query:      json.RawMessage(query),
		Pagination: Pagination{Limit: limit, Cursor: cursor},
	})
}

func mustSearch(t *testing.T, s *Searcher, query string, limit int, cursor *string) *Response {
	t.Helper()
	resp, err := search(t, s, "Todo", query, limit, cursor)
	require.NoError(t, err)
	return resp
}

func hitIDs(hits []Hit) []string {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return ids
}

func manyTodos(n int) *memorySource {
	src := &memorySource{entityType: "Todo"}
	for i := range n {
		title := "task"
		// Vary term frequency so relevance scores differ between records.
		for range i % 4 {
			title += " task"
		}
		src.add(fmt.Sprintf("todo_%02d", i), map[string]any{"title": title + " number", "priority": i % 3})
	}
	return src
}
