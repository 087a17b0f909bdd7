package partition

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/voxellab/veldt/grid"
	"github.com/voxellab/veldt/storage"
	"github.com/voxellab/veldt/worldgen"
)

func testDeps() Deps {
	return Deps{
		Layout:    grid.Layout{ChunkEdge: 4, ShardEdge: 2},
		Store:     storage.NewMemoryStore(),
		Generator: worldgen.Empty{},
	}
}

func TestRegistryGetOrCreate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewRegistry(ctx, testDeps())
	pos := grid.ShardPos{X: 1, Y: 0, Z: -2}

	w1 := r.Get(pos)
	require.NotNil(t, w1)
	require.Equal(t, pos, w1.ShardPos)
	require.Equal(t, "shard-1.0.-2", w1.Name)

	// Calling twice returns the same worker.
	w2 := r.Get(pos)
	require.Same(t, w1, w2)
	require.Equal(t, 1, r.Count())
}

func TestRegistryDistinctShards(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewRegistry(ctx, testDeps())

	w1 := r.Get(grid.ShardPos{X: 0})
	w2 := r.Get(grid.ShardPos{X: 1})
	require.NotSame(t, w1, w2)
	require.Equal(t, 2, r.Count())
}

func TestRegistryConcurrentFirstAccess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewRegistry(ctx, testDeps())
	pos := grid.ShardPos{X: 7, Y: 7, Z: 7}

	const accessors = 32
	workers := make([]*Worker, accessors)

	var wg sync.WaitGroup
	for i := 0; i < accessors; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			workers[i] = r.Get(pos)
		}(i)
	}
	wg.Wait()

	// Exactly one worker was created; every accessor observed it.
	require.Equal(t, 1, r.Count())
	for i := 1; i < accessors; i++ {
		require.Same(t, workers[0], workers[i])
	}
}

func TestRegistryLookup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewRegistry(ctx, testDeps())

	_, ok := r.Lookup(grid.ShardPos{})
	require.False(t, ok)

	w := r.Get(grid.ShardPos{})
	found, ok := r.Lookup(grid.ShardPos{})
	require.True(t, ok)
	require.Same(t, w, found)
}
