package store

import (
	"context"
	"database/sql"

	"github.com/roach88/devbridge/internal/scalar"
)

// Query executes op and returns every resulting row as a Record, fields in
// column order. Returns an empty slice (not nil) when no rows match.
//
// Any failure is returned as a *StorageError wrapping the driver error.
// No retry is attempted.
func (s *Store) Query(ctx context.Context, op Operation) ([]scalar.Record, error) {
	rows, err := s.db.QueryContext(ctx, op.SQL, op.Variables.Params()...)
	if err != nil {
		return nil, newStorageError("query", err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func scanRecords(rows *sql.Rows) ([]scalar.Record, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, newStorageError("columns", err)
	}

	records := []scalar.Record{}
	cells := make([]any, len(columns))
	dest := make([]any, len(columns))
	for i := range cells {
		dest[i] = &cells[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, newStorageError("scan", err)
		}
		record := make(scalar.Record, len(columns))
		for i, name := range columns {
			record[i] = scalar.Field{Name: name, Value: scalar.FromDriver(cells[i])}
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, newStorageError("iterate", err)
	}
	return records, nil
}
