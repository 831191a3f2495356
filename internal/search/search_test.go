package search

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/blevesearch/bleve/v2/search/searcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/devbridge/internal/project"
	"github.com/roach88/devbridge/internal/registry"
	"github.com/roach88/devbridge/internal/scalar"
	"github.com/roach88/devbridge/internal/store"
)

func TestSearch_Filters(t *testing.T) {
	s := newTestSearcher(sampleTodos())

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"match all", `{}`, []string{"todo_1", "todo_2", "todo_3", "todo_4", "todo_5"}},
		{"eq string is exact", `{"filter":{"eq":{"field":"title","value":"Buy milk"}}}`, []string{"todo_1"}},
		{"eq string does not tokenize", `{"filter":{"eq":{"field":"title","value":"milk"}}}`, []string{}},
		{"eq int", `{"filter":{"eq":{"field":"priority","value":2}}}`, []string{"todo_2"}},
		{"eq int matches float", `{"filter":{"eq":{"field":"weight","value":1.5}}}`, []string{"todo_2"}},
		{"eq bool", `{"filter":{"eq":{"field":"done","value":true}}}`, []string{"todo_2", "todo_4"}},
		{"eq null", `{"filter":{"eq":{"field":"email","value":null}}}`, []string{"todo_2", "todo_4", "todo_5"}},
		{"in", `{"filter":{"in":{"field":"priority","values":[1,3]}}}`, []string{"todo_1", "todo_3"}},
		{"numeric range", `{"filter":{"range":{"field":"priority","gt":1,"lte":5}}}`, []string{"todo_2", "todo_3", "todo_5"}},
		{"date range", `{"filter":{"range":{"field":"due","gte":"2023-02-01"}}}`, []string{"todo_2", "todo_3"}},
		{"is_null", `{"filter":{"is_null":{"field":"title"}}}`, []string{"todo_5"}},
		{"mismatched value indexed as null", `{"filter":{"is_null":{"field":"priority"}}}`, []string{"todo_4"}},
		{"not", `{"filter":{"not":{"eq":{"field":"done","value":false}}}}`, []string{"todo_2", "todo_4", "todo_5"}},
		{"and", `{"filter":{"and":[{"eq":{"field":"done","value":false}},{"range":{"field":"priority","gte":2}}]}}`, []string{"todo_3"}},
		{"or", `{"filter":{"or":[{"eq":{"field":"priority","value":1}},{"is_null":{"field":"done"}}]}}`, []string{"todo_1", "todo_5"}},
		{"regex", `{"filter":{"regex":{"field":"title","pattern":"Buy.*"}}}`, []string{"todo_1", "todo_2"}},
		{"regex on email", `{"filter":{"regex":{"field":"email","pattern":"bob@.*"}}}`, []string{"todo_3"}},
		{"regex alternation spans the whole value", `{"filter":{"regex":{"field":"title","pattern":"Buy|Buy milk"}}}`, []string{"todo_1"}},
		{"regex prefix branch first", `{"filter":{"regex":{"field":"title","pattern":"Call|Call Bob|Write"}}}`, []string{"todo_4"}},
		{"regex does not match a prefix", `{"filter":{"regex":{"field":"title","pattern":"Buy"}}}`, []string{}},
		{"ordinal desc", `{"sort":{"by":"ordinal","order":"desc"}}`, []string{"todo_5", "todo_4", "todo_3", "todo_2", "todo_1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := mustSearch(t, s, tt.query, 100, nil)
			ids := hitIDs(resp.Hits)
			if tt.name != "ordinal desc" && tt.name != "match all" {
				assert.ElementsMatch(t, tt.want, ids)
			} else {
				assert.Equal(t, tt.want, ids)
			}
			assert.Equal(t, len(tt.want), resp.Info.TotalHits)
			assert.Nil(t, resp.Pagination.NextCursor)
		})
	}
}

func TestSearch_TextClauses(t *testing.T) {
	s := newTestSearcher(sampleTodos())

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"or operator", `{"text":[{"value":"milk report"}]}`, []string{"todo_1", "todo_2", "todo_3"}},
		{"and operator", `{"text":[{"value":"bread MILK","operator":"and"}]}`, []string{"todo_2"}},
		{"restricted fields", `{"text":[{"value":"bob","fields":["email"]}]}`, []string{"todo_3"}},
		{"all tokenized fields", `{"text":[{"value":"bob"}]}`, []string{"todo_3", "todo_4"}},
		{"no tokens matches nothing", `{"text":[{"value":"   "}]}`, []string{}},
		{"text and filter", `{"text":[{"value":"milk"}],"filter":{"eq":{"field":"done","value":true}}}`, []string{"todo_2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := mustSearch(t, s, tt.query, 100, nil)
			assert.ElementsMatch(t, tt.want, hitIDs(resp.Hits))
		})
	}
}

func TestSearch_RelevanceOrdersByScoreThenOrdinal(t *testing.T) {
	s := newTestSearcher(manyTodos(8))

	resp := mustSearch(t, s, `{"text":[{"value":"task"}]}`, 100, nil)
	require.Len(t, resp.Hits, 8)

	for i := 1; i < len(resp.Hits); i++ {
		prev, cur := resp.Hits[i-1], resp.Hits[i]
		require.GreaterOrEqual(t, prev.Score, cur.Score)
		if prev.Score == cur.Score {
			assert.Less(t, prev.ID, cur.ID, "ties broken by ordinal")
		}
	}
}

func TestSearch_PaginationMatchesSinglePage(t *testing.T) {
	queries := map[string]string{
		"relevance":    `{"text":[{"value":"task number"}]}`,
		"match all":    `{}`,
		"filtered":     `{"filter":{"in":{"field":"priority","values":[0,2]}},"text":[{"value":"task"}]}`,
		"ordinal desc": `{"sort":{"by":"ordinal","order":"desc"}}`,
	}
	s := newTestSearcher(manyTodos(23))

	for name, query := range queries {
		t.Run(name, func(t *testing.T) {
			const limit = 4

			whole := mustSearch(t, s, query, 2*limit, nil)
			require.Len(t, whole.Hits, 2*limit)

			page1 := mustSearch(t, s, query, limit, nil)
			require.NotNil(t, page1.Pagination.NextCursor)
			page2 := mustSearch(t, s, query, limit, page1.Pagination.NextCursor)

			assert.Equal(t, whole.Hits, append(page1.Hits, page2.Hits...))
		})
	}
}

func TestSearch_CursorWalkCoversEverything(t *testing.T) {
	s := newTestSearcher(manyTodos(23))
	query := `{"text":[{"value":"task"}]}`

	all := mustSearch(t, s, query, 100, nil)
	require.Len(t, all.Hits, 23)

	var walked []Hit
	var cursor *string
	pages := 0
	for {
		resp := mustSearch(t, s, query, 5, cursor)
		walked = append(walked, resp.Hits...)
		pages++
		assert.Equal(t, 23, resp.Info.TotalHits)
		if resp.Pagination.NextCursor == nil {
			break
		}
		cursor = resp.Pagination.NextCursor
	}

	assert.Equal(t, 5, pages)
	assert.Equal(t, all.Hits, walked, "no duplicates and no gaps")
}

func TestSearch_LastPageHasNoCursor(t *testing.T) {
	s := newTestSearcher(manyTodos(4))

	resp := mustSearch(t, s, `{}`, 4, nil)
	assert.Len(t, resp.Hits, 4)
	assert.Nil(t, resp.Pagination.NextCursor)
}

func TestSearch_CursorRejectedForDifferentQuery(t *testing.T) {
	s := newTestSearcher(manyTodos(10))

	page1 := mustSearch(t, s, `{"text":[{"value":"task"}]}`, 3, nil)
	require.NotNil(t, page1.Pagination.NextCursor)

	_, err := search(t, s, "Todo", `{"text":[{"value":"number"}]}`, 3, page1.Pagination.NextCursor)
	require.Error(t, err)
	assert.True(t, IsSearch(err))
	assert.ErrorContains(t, err, "different query")
}

func TestSearch_Errors(t *testing.T) {
	s := newTestSearcher(sampleTodos())
	garbage := "not-a-cursor!"

	tests := []struct {
		name       string
		entityType string
		query      string
		limit      int
		cursor     *string
	}{
		{"zero limit", "Todo", `{}`, 0, nil},
		{"limit above max", "Todo", `{}`, 101, nil},
		{"unknown entity", "User", `{}`, 10, nil},
		{"unknown field", "Todo", `{"filter":{"eq":{"field":"color","value":"red"}}}`, 10, nil},
		{"type mismatch", "Todo", `{"filter":{"eq":{"field":"priority","value":"high"}}}`, 10, nil},
		{"empty and", "Todo", `{"filter":{"and":[]}}`, 10, nil},
		{"empty in", "Todo", `{"filter":{"in":{"field":"priority","values":[]}}}`, 10, nil},
		{"unbounded range", "Todo", `{"filter":{"range":{"field":"priority"}}}`, 10, nil},
		{"gt and gte", "Todo", `{"filter":{"range":{"field":"priority","gt":1,"gte":1}}}`, 10, nil},
		{"boolean range", "Todo", `{"filter":{"range":{"field":"done","gt":false}}}`, 10, nil},
		{"bad regex", "Todo", `{"filter":{"regex":{"field":"title","pattern":"("}}}`, 10, nil},
		{"regex on number", "Todo", `{"filter":{"regex":{"field":"priority","pattern":"1"}}}`, 10, nil},
		{"text on non-text field", "Todo", `{"text":[{"value":"1","fields":["priority"]}]}`, 10, nil},
		{"unknown text operator", "Todo", `{"text":[{"value":"x","operator":"xor"}]}`, 10, nil},
		{"unknown sort", "Todo", `{"sort":{"by":"title"}}`, 10, nil},
		{"relevance ascending", "Todo", `{"sort":{"by":"relevance","order":"asc"}}`, 10, nil},
		{"malformed filter", "Todo", `{"filter":{"near":{}}}`, 10, nil},
		{"malformed cursor", "Todo", `{}`, 10, &garbage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := search(t, s, tt.entityType, tt.query, tt.limit, tt.cursor)
			require.Error(t, err)
			assert.True(t, IsSearch(err), "got %T: %v", err, err)
		})
	}
}

func TestSearch_RegistryErrorPropagates(t *testing.T) {
	cfgErr := &registry.ConfigurationError{Path: "registry.json", Err: errors.New("boom")}
	s := NewSearcher(func() (*registry.Registry, error) { return nil, cfgErr }, sampleTodos(), 0, discardLogger())

	_, err := search(t, s, "Todo", `{}`, 10, nil)
	assert.True(t, registry.IsConfiguration(err))
	assert.False(t, IsSearch(err))
}

func TestSearch_EmptyEntity(t *testing.T) {
	s := newTestSearcher(&memorySource{entityType: "Todo"})

	resp := mustSearch(t, s, `{"text":[{"value":"anything"}]}`, 10, nil)
	assert.Empty(t, resp.Hits)
	assert.NotNil(t, resp.Hits, "hits encode as [] rather than null")
	assert.Equal(t, 0, resp.Info.TotalHits)
}

func TestSearch_MalformedDocument(t *testing.T) {
	src := &memorySource{entityType: "Todo", entities: []store.Entity{{Ordinal: 1, ID: "todo_1", Document: []byte("{")}}}
	s := newTestSearcher(src)

	_, err := search(t, s, "Todo", `{}`, 10, nil)
	assert.True(t, IsSearch(err))
}

func TestSearch_OverStore(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "database"), project.StoreConfig{PoolSize: 2, BusyTimeout: time.Second})
	require.NoError(t, err)
	defer st.Close()

	insert := func(id, doc string) store.MutationOperation {
		return store.MutationOperation{Operation: store.Operation{
			SQL:       "INSERT INTO records (pk, sk, entity_type, document) VALUES (?, ?, 'Todo', ?)",
			Variables: scalar.Values{scalar.String(id), scalar.String(id), scalar.String(doc)},
		}}
	}
	require.NoError(t, st.Mutate(ctx, store.Mutation{Mutations: []store.MutationOperation{
		insert("todo_1", `{"title":"Buy milk","priority":1}`),
		insert("todo_2", `{"title":"Walk the dog","priority":2}`),
	}}))

	s := NewSearcher(staticRegistry(todoRegistry()), st, 0, discardLogger())

	resp := mustSearch(t, s, `{"text":[{"value":"dog"}]}`, 10, nil)
	assert.Equal(t, []string{"todo_2"}, hitIDs(resp.Hits))

	// A write between requests is visible to the next search.
	require.NoError(t, st.Mutate(ctx, store.Mutation{Mutations: []store.MutationOperation{
		insert("todo_3", `{"title":"Feed the dog","priority":3}`),
	}}))
	resp = mustSearch(t, s, `{"text":[{"value":"dog"}]}`, 10, nil)
	assert.ElementsMatch(t, []string{"todo_2", "todo_3"}, hitIDs(resp.Hits))
}

func TestSearch_KeywordsCompareInNFC(t *testing.T) {
	const (
		composed   = "caf\u00e9"
		decomposed = "cafe\u0301"
	)
	src := &memorySource{entityType: "Todo"}
	src.add("todo_1", map[string]any{"title": composed})
	src.add("todo_2", map[string]any{"title": decomposed})
	src.add("todo_3", map[string]any{"title": composed})
	src.add("todo_4", map[string]any{"title": "cafe"})
	s := newTestSearcher(src)

	eq := func(value string) string {
		return `{"filter":{"eq":{"field":"title","value":"` + value + `"}},"sort":{"by":"ordinal","order":"asc"}}`
	}

	whole := mustSearch(t, s, eq(composed), 10, nil)
	assert.Equal(t, []string{"todo_1", "todo_2", "todo_3"}, hitIDs(whole.Hits))
	assert.Equal(t, whole.Hits, mustSearch(t, s, eq(decomposed), 10, nil).Hits)

	// A cursor issued for one spelling resumes the other without gaps.
	page1 := mustSearch(t, s, eq(decomposed), 1, nil)
	require.NotNil(t, page1.Pagination.NextCursor)
	page2 := mustSearch(t, s, eq(composed), 2, page1.Pagination.NextCursor)
	assert.Equal(t, whole.Hits, append(page1.Hits, page2.Hits...))

	regex := mustSearch(t, s, `{"filter":{"regex":{"field":"title","pattern":"cafe\u0301|tea"}}}`, 10, nil)
	assert.ElementsMatch(t, []string{"todo_1", "todo_2", "todo_3"}, hitIDs(regex.Hits))
}

func TestSearch_ClauseLimitIsSearchError(t *testing.T) {
	prev := searcher.DisjunctionMaxClauseCount
	searcher.DisjunctionMaxClauseCount = 1
	t.Cleanup(func() { searcher.DisjunctionMaxClauseCount = prev })

	s := newTestSearcher(sampleTodos())

	_, err := search(t, s, "Todo", `{"filter":{"regex":{"field":"title","pattern":"Buy.*"}}}`, 10, nil)
	require.Error(t, err)
	assert.True(t, IsSearch(err), "got %T: %v", err, err)
}
