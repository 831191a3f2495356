package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesDirectoryAndDatabase(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "database")

	s, err := Open(context.Background(), dir, testStoreConfig)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(s.Path())
	assert.NoError(t, err, "database file was not created")
	assert.Equal(t, filepath.Join(dir, "data.sqlite"), s.Path())
}

func TestOpen_ReopensExistingDatabase(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "database")
	ctx := context.Background()

	s1, err := Open(ctx, dir, testStoreConfig)
	require.NoError(t, err)
	require.NoError(t, s1.Mutate(ctx, Mutation{Mutations: []MutationOperation{insertTodo("todo_1", `{}`)}}))
	require.NoError(t, s1.Close())

	s2, err := Open(ctx, dir, testStoreConfig)
	require.NoError(t, err)
	defer s2.Close()

	assert.Equal(t, int64(1), countRecords(t, s2))
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	assert.NoError(t, s.verifyPragma(ctx, "journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma(ctx, "foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma(ctx, "busy_timeout", "2000"))
	assert.NoError(t, s.verifyPragma(ctx, "user_version", "1"))
}

func TestOpen_SchemaAndMigrations(t *testing.T) {
	s := createTestStore(t)

	for _, name := range []string{"records", "idx_records_entity_type"} {
		var found string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE name = ?", name).Scan(&found)
		assert.NoError(t, err, "%s not found", name)
	}
}

func TestOpen_LockedBySecondBridge(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "database")
	ctx := context.Background()

	s1, err := Open(ctx, dir, testStoreConfig)
	require.NoError(t, err)

	_, err = Open(ctx, dir, testStoreConfig)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, s1.Close())

	s2, err := Open(ctx, dir, testStoreConfig)
	require.NoError(t, err, "lock is released on close")
	s2.Close()
}

func TestOpen_StartupErrorWhenDirectoryCannotBeCreated(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := Open(context.Background(), filepath.Join(blocker, "database"), testStoreConfig)
	require.Error(t, err)

	var se *StartupError
	assert.ErrorAs(t, err, &se)
}

func TestClose_Idempotent(t *testing.T) {
	var s Store
	assert.NoError(t, s.Close())
}
