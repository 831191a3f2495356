// Package search is the bridge's full-text search subsystem.
//
// Each request derives an index schema from the registry, builds a private
// in-memory bleve index from the current records of one entity type,
// translates the structured query into bleve queries, and returns one page
// of hits with a resumable cursor. The index is discarded after the
// response; nothing is cached between requests.
//
// Hits are totally ordered (relevance score, then record ordinal), which
// is what makes cursor pagination free of duplicates and gaps.
package search
