package kvstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Migrate(db.Pool))
	return db
}

func TestGetAbsentKey(t *testing.T) {
	db := openTestDB(t)

	v, ok, err := Get(context.Background(), db.Pool, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, v)
}

func TestSetOverwrites(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, Set(ctx, db.Pool, "k", "one"))
	require.NoError(t, Set(ctx, db.Pool, "k", "two"))

	v, ok, err := Get(ctx, db.Pool, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "two", v)
}

func TestDeleteIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, Set(ctx, db.Pool, "k", "v"))
	require.NoError(t, Delete(ctx, db.Pool, "k"))
	require.NoError(t, Delete(ctx, db.Pool, "k"))

	_, ok, err := Get(ctx, db.Pool, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
