package worldgen

import (
	"github.com/voxellab/veldt/grid"
	"github.com/voxellab/veldt/world"
)

// Generator produces the initial content of chunks that have never been
// stored. Implementations must be deterministic: generating the same
// chunk twice yields identical data.
type Generator interface {
	GenerateChunk(layout grid.Layout, pos grid.ChunkPos) *world.Chunk
}

// FlatGenerator produces flat terrain: Filler below SurfaceY, Surface at
// SurfaceY, air above.
type FlatGenerator struct {
	SurfaceY int
	Surface  world.BlockTypeID
	Filler   world.BlockTypeID
}

func (g FlatGenerator) GenerateChunk(layout grid.Layout, pos grid.ChunkPos) *world.Chunk {
	c := world.NewChunk(layout.ChunkEdge)
	origin := layout.ChunkOrigin(pos)

	for y := 0; y < c.Edge; y++ {
		worldY := origin.Y + y

		var b world.BlockTypeID
		switch {
		case worldY == g.SurfaceY:
			b = g.Surface
		case worldY < g.SurfaceY:
			b = g.Filler
		default:
			continue
		}

		for z := 0; z < c.Edge; z++ {
			for x := 0; x < c.Edge; x++ {
				c.Set(x, y, z, b)
			}
		}
	}
	return c
}

// Empty generates all-air chunks.
type Empty struct{}

func (Empty) GenerateChunk(layout grid.Layout, pos grid.ChunkPos) *world.Chunk {
	return world.NewChunk(layout.ChunkEdge)
}
