package world

// Chunk holds the block data of one cubic group of cells. Cells are
// addressed by local coordinates in [0, Edge) and stored x fastest, then
// y, then z.
//
// A chunk is owned by exactly one partition worker and is only ever
// mutated by that worker's goroutine.
type Chunk struct {
	Edge   int
	Blocks []BlockTypeID
}

func NewChunk(edge int) *Chunk {
	return &Chunk{
		Edge:   edge,
		Blocks: make([]BlockTypeID, edge*edge*edge),
	}
}

func (c *Chunk) index(x, y, z int) int {
	return (z*c.Edge+y)*c.Edge + x
}

// At returns the block at the given local coordinates.
func (c *Chunk) At(x, y, z int) BlockTypeID {
	return c.Blocks[c.index(x, y, z)]
}

// Set replaces the block at the given local coordinates.
func (c *Chunk) Set(x, y, z int, b BlockTypeID) {
	c.Blocks[c.index(x, y, z)] = b
}

// Fill sets every cell of the chunk to the given block.
func (c *Chunk) Fill(b BlockTypeID) {
	for i := range c.Blocks {
		c.Blocks[i] = b
	}
}

// Clone returns a deep copy of the chunk.
func (c *Chunk) Clone() *Chunk {
	clone := &Chunk{
		Edge:   c.Edge,
		Blocks: make([]BlockTypeID, len(c.Blocks)),
	}
	copy(clone.Blocks, c.Blocks)
	return clone
}
