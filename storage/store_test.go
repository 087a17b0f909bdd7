package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/voxellab/veldt/grid"
	"github.com/voxellab/veldt/world"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	testStoreRoundTrip(t, NewMemoryStore())
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "world.db"))
	require.NoError(t, err)

	testStoreRoundTrip(t, store)
}

func testStoreRoundTrip(t *testing.T, store Store) {
	defer store.Close()

	ctx := context.Background()
	pos := grid.ChunkPos{X: -1, Y: 0, Z: 3}

	_, ok, err := store.LoadChunk(ctx, pos)
	require.NoError(t, err)
	require.False(t, ok)

	c := world.NewChunk(4)
	c.Set(0, 0, 0, 1)
	c.Set(3, 1, 2, 77)
	require.NoError(t, store.SaveChunk(ctx, pos, c))

	loaded, ok, err := store.LoadChunk(ctx, pos)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, c.Blocks, loaded.Blocks)

	// Saving again overwrites.
	c.Set(0, 0, 0, 2)
	require.NoError(t, store.SaveChunk(ctx, pos, c))

	loaded, ok, err = store.LoadChunk(ctx, pos)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, world.BlockTypeID(2), loaded.At(0, 0, 0))
}

func TestMemoryStoreCopiesChunks(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	ctx := context.Background()
	pos := grid.ChunkPos{}

	c := world.NewChunk(2)
	require.NoError(t, store.SaveChunk(ctx, pos, c))

	// Mutating the saved chunk afterwards must not affect the store.
	c.Set(0, 0, 0, 9)

	loaded, ok, err := store.LoadChunk(ctx, pos)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, world.Air, loaded.At(0, 0, 0))
	require.Equal(t, 1, store.Len())
}

func TestOpenSQLiteEmptyPath(t *testing.T) {
	_, err := OpenSQLite("")
	require.Error(t, err)
}
