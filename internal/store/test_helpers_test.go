package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/devbridge/internal/project"
	"github.com/roach88/devbridge/internal/scalar"
)

var testStoreConfig = project.StoreConfig{PoolSize: 4, BusyTimeout: 2 * time.Second}

// createTestStore opens a store in a fresh temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "database"), testStoreConfig)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// insertTodo builds an operation creating a Todo node.
func insertTodo(id, document string) MutationOperation {
	return MutationOperation{Operation: Operation{
		SQL:       "INSERT INTO records (pk, sk, entity_type, document) VALUES (?, ?, 'Todo', ?)",
		Variables: scalar.Values{scalar.String(id), scalar.String(id), scalar.String(document)},
	}}
}

// reserveSlug builds a unique-tagged operation claiming a slug the way the
// engine stores uniqueness: one constraint row per value.
func reserveSlug(slug string) MutationOperation {
	key := "__C#Todo#slug#" + slug
	return MutationOperation{
		Operation: Operation{
			SQL:       "INSERT INTO records (pk, sk, entity_type) VALUES (?, ?, '__Constraint')",
			Variables: scalar.Values{scalar.String(key), scalar.String(key)},
		},
		Constraint: &Constraint{Kind: ConstraintUnique, Field: "slug", Value: scalar.String(slug)},
	}
}

func countRecords(t *testing.T, s *Store) int64 {
	t.Helper()
	rows, err := s.Query(context.Background(), Operation{SQL: "SELECT COUNT(*) AS n FROM records"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	n, ok := rows[0].Get("n")
	require.True(t, ok)
	return int64(n.(scalar.Int))
}
