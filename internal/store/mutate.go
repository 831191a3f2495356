package store

import (
	"context"
)

// Mutate applies a batch of operations atomically.
//
// An empty batch succeeds without touching the store. Otherwise the
// operations run in order inside one transaction; the first failure rolls
// the transaction back and no later operation runs. A failure on an
// operation tagged unique that is a uniqueness violation is returned as a
// *ConflictError naming that operation, every other failure as a
// *StorageError. The transaction commits only if every operation succeeds.
func (s *Store) Mutate(ctx context.Context, m Mutation) error {
	if len(m.Mutations) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return newStorageError("begin", err)
	}
	defer tx.Rollback() // No-op if committed

	for i, op := range m.Mutations {
		if _, err := tx.ExecContext(ctx, op.SQL, op.Variables.Params()...); err != nil {
			if op.Unique() && isUniqueViolation(err) {
				return &ConflictError{Index: i, Operation: op, Err: err}
			}
			return newStorageError("exec", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return newStorageError("commit", err)
	}
	return nil
}
