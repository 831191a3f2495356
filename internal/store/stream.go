package store

import (
	"context"
)

// Entity is one node record as seen by the search indexer.
type Entity struct {
	// Ordinal is the row's insertion order; stable for the row's lifetime.
	Ordinal int64
	// ID is the record's partition key.
	ID string
	// Document is the raw JSON document column.
	Document []byte
}

// StreamEntities calls fn for every node record (pk = sk) of entityType in
// ordinal order. The rows come from a single statement, so fn observes one
// consistent snapshot. Returning an error from fn stops the stream and
// returns that error unwrapped.
func (s *Store) StreamEntities(ctx context.Context, entityType string, fn func(Entity) error) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rowid, pk, document
		FROM records
		WHERE entity_type = ? AND pk = sk
		ORDER BY rowid ASC
	`, entityType)
	if err != nil {
		return newStorageError("stream entities", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e Entity
		if err := rows.Scan(&e.Ordinal, &e.ID, &e.Document); err != nil {
			return newStorageError("scan entity", err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return newStorageError("iterate entities", err)
	}
	return nil
}
