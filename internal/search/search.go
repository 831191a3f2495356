package search

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/samber/mo"

	"github.com/roach88/devbridge/internal/registry"
)

// DefaultMaxLimit is the largest page size accepted when the Searcher is
// not configured otherwise.
const DefaultMaxLimit = 1000

// Request is a search over one entity type.
type Request struct {
	EntityType string `json:"entity_type"`
	// Query is parsed by Search so malformed queries become search errors.
	Query      json.RawMessage `json:"query"`
	Pagination Pagination      `json:"pagination"`
}

// Pagination selects one page of results.
type Pagination struct {
	Cursor *string `json:"cursor,omitempty"`
	Limit  int     `json:"limit"`
}

// Response is one page of hits.
type Response struct {
	Hits       []Hit          `json:"hits"`
	Info       Info           `json:"info"`
	Pagination PaginationInfo `json:"pagination"`
}

// Hit identifies one matching record.
type Hit struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Info describes the whole result set.
type Info struct {
	TotalHits int `json:"total_hits"`
}

// PaginationInfo carries the cursor of the next page, nil on the last page.
type PaginationInfo struct {
	NextCursor *string `json:"next_cursor,omitempty"`
}

// RegistryLoader returns the current registry.
type RegistryLoader func() (*registry.Registry, error)

// Searcher executes search requests. It holds no index state: every call
// loads the registry and builds its own index.
type Searcher struct {
	loadRegistry RegistryLoader
	source       EntitySource
	maxLimit     int
	logger       *slog.Logger
}

// NewSearcher creates a Searcher reading records from source.
// maxLimit <= 0 selects DefaultMaxLimit.
func NewSearcher(loadRegistry RegistryLoader, source EntitySource, maxLimit int, logger *slog.Logger) *Searcher {
	if maxLimit <= 0 {
		maxLimit = DefaultMaxLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{
		loadRegistry: loadRegistry,
		source:       source,
		maxLimit:     maxLimit,
		logger:       logger,
	}
}

// Search runs req against a fresh snapshot of the entity type's records.
//
// Errors are a *registry.ConfigurationError when the registry cannot be
// loaded, a *SearchError for anything wrong with the request, and a
// *store.StorageError when records cannot be read.
func (s *Searcher) Search(ctx context.Context, req Request) (*Response, error) {
	if req.Pagination.Limit < 1 || req.Pagination.Limit > s.maxLimit {
		return nil, searchErrorf("limit must be between 1 and %d, got %d", s.maxLimit, req.Pagination.Limit)
	}

	var q Query
	if len(req.Query) > 0 {
		if err := json.Unmarshal(req.Query, &q); err != nil {
			return nil, &SearchError{Message: "malformed query", Err: err}
		}
	} else if err := q.UnmarshalJSON([]byte("{}")); err != nil {
		return nil, err
	}
	if err := validateSort(q.Sort); err != nil {
		return nil, err
	}

	fingerprint, err := Fingerprint(req.EntityType, q)
	if err != nil {
		return nil, &SearchError{Message: "query cannot be fingerprinted", Err: err}
	}

	cursor := mo.None[Cursor]()
	if req.Pagination.Cursor != nil {
		c, err := DecodeCursor(*req.Pagination.Cursor)
		if err != nil {
			return nil, err
		}
		if c.Fingerprint != fingerprint {
			return nil, searchErrorf("cursor was issued for a different query")
		}
		cursor = mo.Some(c)
	}

	reg, err := s.loadRegistry()
	if err != nil {
		return nil, err
	}
	decl, ok := reg.Index(req.EntityType)
	if !ok {
		return nil, searchErrorf("entity type %q is not searchable", req.EntityType)
	}
	schema := DeriveSchema(req.EntityType, decl)

	bq, err := translator{schema: schema}.translate(q)
	if err != nil {
		return nil, err
	}
	if v, ok := bq.(query.ValidatableQuery); ok {
		if err := v.Validate(); err != nil {
			return nil, &SearchError{Message: "query cannot be executed", Err: err}
		}
	}

	ix, err := Build(ctx, s.source, schema, s.logger)
	if err != nil {
		return nil, err
	}
	defer ix.Close()

	hits, err := ix.execute(ctx, bq, q.Sort)
	if err != nil {
		return nil, err
	}

	resp, err := paginate(hits, cursor, req.Pagination.Limit, q.Sort, fingerprint)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("search",
		"entity_type", req.EntityType,
		"indexed", ix.DocCount(),
		"total_hits", resp.Info.TotalHits,
		"returned", len(resp.Hits),
		"resumed", cursor.IsPresent(),
	)
	return resp, nil
}

func validateSort(s Sort) error {
	switch s.By {
	case SortRelevance:
		if s.Order != OrderDesc {
			return searchErrorf("relevance sort only supports order %q", OrderDesc)
		}
	case SortOrdinal:
		if s.Order != OrderAsc && s.Order != OrderDesc {
			return searchErrorf("unsupported sort order %q", s.Order)
		}
	default:
		return searchErrorf("unsupported sort %q", s.By)
	}
	return nil
}

// rankedHit is a hit with its tie-break ordinal.
type rankedHit struct {
	id      string
	score   float64
	ordinal int64
}

// execute returns every matching record in total order.
func (ix *Index) execute(ctx context.Context, q query.Query, s Sort) ([]rankedHit, error) {
	size := ix.DocCount()
	if size == 0 {
		return nil, nil
	}

	req := bleve.NewSearchRequestOptions(q, size, 0, false)
	res, err := ix.index.SearchInContext(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("execute search: %w", err)
		}
		// The index was built for this request alone, so a failing search
		// is a query the engine refuses, such as a term expansion over the
		// clause limit.
		return nil, &SearchError{Message: "query cannot be executed", Err: err}
	}

	hits := make([]rankedHit, 0, len(res.Hits))
	for _, m := range res.Hits {
		hits = append(hits, rankedHit{id: m.ID, score: m.Score, ordinal: ix.ordinals[m.ID]})
	}
	slices.SortFunc(hits, comparator(s))
	return hits, nil
}

// comparator orders hits for a sort mode. Ordinals are unique per record,
// so the order is total.
func comparator(s Sort) func(a, b rankedHit) int {
	if s.By == SortOrdinal {
		if s.Order == OrderDesc {
			return func(a, b rankedHit) int { return cmp.Compare(b.ordinal, a.ordinal) }
		}
		return func(a, b rankedHit) int { return cmp.Compare(a.ordinal, b.ordinal) }
	}
	return func(a, b rankedHit) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.ordinal, b.ordinal)
	}
}

// paginate cuts one page out of the ordered hits, resuming strictly after
// the cursor position when one is given.
func paginate(hits []rankedHit, cursor mo.Option[Cursor], limit int, s Sort, fingerprint string) (*Response, error) {
	start := 0
	if c, ok := cursor.Get(); ok {
		pos := rankedHit{score: c.Score, ordinal: c.Ordinal}
		cmpHits := comparator(s)
		start = sort.Search(len(hits), func(i int) bool {
			return cmpHits(pos, hits[i]) < 0
		})
	}
	end := min(start+limit, len(hits))

	page := hits[start:end]
	resp := &Response{
		Hits: make([]Hit, len(page)),
		Info: Info{TotalHits: len(hits)},
	}
	for i, h := range page {
		resp.Hits[i] = Hit{ID: h.id, Score: h.score}
	}

	if end < len(hits) {
		last := page[len(page)-1]
		token, err := Cursor{Score: last.score, Ordinal: last.ordinal, Fingerprint: fingerprint}.Encode()
		if err != nil {
			return nil, err
		}
		resp.Pagination.NextCursor = &token
	}
	return resp, nil
}
