package world

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()

	id, ok := c.ID("stone")
	require.True(t, ok)
	require.Equal(t, BlockTypeID(1), id)

	name, ok := c.Name(Air)
	require.True(t, ok)
	require.Equal(t, "air", name)

	_, ok = c.ID("bedrock")
	require.False(t, ok)
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocks.yml")
	require.NoError(t, os.WriteFile(path, []byte("air: 0\nbasalt: 12\nmoss: 13\n"), 0o644))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Equal(t, 3, c.Len())

	id, ok := c.ID("basalt")
	require.True(t, ok)
	require.Equal(t, BlockTypeID(12), id)

	name, ok := c.Name(13)
	require.True(t, ok)
	require.Equal(t, "moss", name)
}

func TestLoadCatalogRejectsDuplicateIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocks.yml")
	require.NoError(t, os.WriteFile(path, []byte("stone: 1\nbasalt: 1\n"), 0o644))

	_, err := LoadCatalog(path)
	require.Error(t, err)
}

func TestLoadCatalogMissingFile(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
}
