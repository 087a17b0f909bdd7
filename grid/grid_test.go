package grid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLayoutChunkOf(t *testing.T) {
	l := Layout{ChunkEdge: 16, ShardEdge: 4}

	require.Equal(t, ChunkPos{0, 0, 0}, l.ChunkOf(Position{0, 0, 0}))
	require.Equal(t, ChunkPos{0, 0, 0}, l.ChunkOf(Position{15, 15, 15}))
	require.Equal(t, ChunkPos{1, 0, 0}, l.ChunkOf(Position{16, 0, 0}))
	require.Equal(t, ChunkPos{2, 3, 4}, l.ChunkOf(Position{47, 63, 79}))
}

func TestLayoutChunkOfNegative(t *testing.T) {
	l := Layout{ChunkEdge: 16, ShardEdge: 4}

	// Negative positions must map to the chunk below zero, not wrap
	// toward zero.
	require.Equal(t, ChunkPos{-1, -1, -1}, l.ChunkOf(Position{-1, -1, -1}))
	require.Equal(t, ChunkPos{-1, 0, 0}, l.ChunkOf(Position{-16, 0, 0}))
	require.Equal(t, ChunkPos{-2, 0, 0}, l.ChunkOf(Position{-17, 0, 0}))
}

func TestLayoutShardOf(t *testing.T) {
	l := Layout{ChunkEdge: 4, ShardEdge: 2}

	require.Equal(t, ShardPos{0, 0, 0}, l.ShardOf(Position{0, 0, 0}))
	require.Equal(t, ShardPos{0, 0, 0}, l.ShardOf(Position{7, 7, 7}))
	require.Equal(t, ShardPos{1, 0, 0}, l.ShardOf(Position{8, 0, 0}))
	require.Equal(t, ShardPos{-1, -1, -1}, l.ShardOf(Position{-1, -1, -1}))
	require.Equal(t, ShardPos{-1, 0, 0}, l.ShardOf(Position{-8, 0, 0}))
	require.Equal(t, ShardPos{-2, 0, 0}, l.ShardOf(Position{-9, 0, 0}))
}

func TestLayoutShardMappingPeriodicity(t *testing.T) {
	l := Layout{ChunkEdge: 4, ShardEdge: 2}
	span := l.ShardSpan()

	positions := []Position{
		{0, 0, 0},
		{3, 5, 7},
		{-1, -8, -9},
		{101, -202, 303},
	}

	for _, p := range positions {
		base := l.ShardOf(p)
		for _, k := range []int{-3, -1, 1, 2, 10} {
			shifted := l.ShardOf(p.Add(Position{k * span, k * span, k * span}))
			require.Equal(t, base.X+k, shifted.X, "position %s shift %d", p, k)
			require.Equal(t, base.Y+k, shifted.Y, "position %s shift %d", p, k)
			require.Equal(t, base.Z+k, shifted.Z, "position %s shift %d", p, k)
		}
	}
}

func TestLayoutShardBounds(t *testing.T) {
	l := Layout{ChunkEdge: 4, ShardEdge: 2}

	bounds := l.ShardBounds(ShardPos{0, 0, 0})
	require.Equal(t, Box{From: Position{0, 0, 0}, To: Position{8, 8, 8}}, bounds)

	bounds = l.ShardBounds(ShardPos{-1, 0, 2})
	require.Equal(t, Box{From: Position{-8, 0, 16}, To: Position{0, 8, 24}}, bounds)

	// Every cell of a shard's bounds maps back to that shard.
	bounds.Each(func(p Position) {
		require.Equal(t, ShardPos{-1, 0, 2}, l.ShardOf(p))
	})
}

func TestLayoutChunkBounds(t *testing.T) {
	l := Layout{ChunkEdge: 4, ShardEdge: 2}

	bounds := l.ChunkBounds(ChunkPos{-1, 1, 0})
	require.Equal(t, Box{From: Position{-4, 4, 0}, To: Position{0, 8, 4}}, bounds)
	bounds.Each(func(p Position) {
		require.Equal(t, ChunkPos{-1, 1, 0}, l.ChunkOf(p))
	})
}
