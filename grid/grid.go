package grid

import "fmt"

// Position is the world coordinate of a single voxel cell.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (p Position) Add(o Position) Position {
	return Position{p.X + o.X, p.Y + o.Y, p.Z + o.Z}
}

func (p Position) Sub(o Position) Position {
	return Position{p.X - o.X, p.Y - o.Y, p.Z - o.Z}
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z)
}

// ChunkPos identifies a cubic group of voxel cells.
type ChunkPos struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (c ChunkPos) String() string {
	return fmt.Sprintf("chunk(%d,%d,%d)", c.X, c.Y, c.Z)
}

// ShardPos identifies the cubic group of chunks owned by one partition
// worker.
type ShardPos struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (s ShardPos) String() string {
	return fmt.Sprintf("shard(%d,%d,%d)", s.X, s.Y, s.Z)
}

// Layout fixes the chunk and shard edge lengths for the process. Both are
// set once at startup and shared by every component that maps coordinates.
type Layout struct {
	// ChunkEdge is the number of voxel cells along one chunk edge.
	ChunkEdge int

	// ShardEdge is the number of chunks along one shard edge.
	ShardEdge int
}

var DefaultLayout = Layout{ChunkEdge: 16, ShardEdge: 4}

// ShardSpan returns the shard edge length measured in voxel cells.
func (l Layout) ShardSpan() int {
	return l.ChunkEdge * l.ShardEdge
}

// ChunkOf maps a world position to its owning chunk. Floor division keeps
// negative coordinates in the chunk below zero instead of wrapping toward
// zero.
func (l Layout) ChunkOf(p Position) ChunkPos {
	return ChunkPos{
		X: floorDiv(p.X, l.ChunkEdge),
		Y: floorDiv(p.Y, l.ChunkEdge),
		Z: floorDiv(p.Z, l.ChunkEdge),
	}
}

// ShardOfChunk maps a chunk to its owning shard.
func (l Layout) ShardOfChunk(c ChunkPos) ShardPos {
	return ShardPos{
		X: floorDiv(c.X, l.ShardEdge),
		Y: floorDiv(c.Y, l.ShardEdge),
		Z: floorDiv(c.Z, l.ShardEdge),
	}
}

// ShardOf maps a world position to its owning shard.
func (l Layout) ShardOf(p Position) ShardPos {
	return l.ShardOfChunk(l.ChunkOf(p))
}

// ChunkOrigin returns the world position of the chunk's minimum corner.
func (l Layout) ChunkOrigin(c ChunkPos) Position {
	return Position{
		X: c.X * l.ChunkEdge,
		Y: c.Y * l.ChunkEdge,
		Z: c.Z * l.ChunkEdge,
	}
}

// ShardOrigin returns the world position of the shard's minimum corner.
func (l Layout) ShardOrigin(s ShardPos) Position {
	span := l.ShardSpan()
	return Position{X: s.X * span, Y: s.Y * span, Z: s.Z * span}
}

// ChunkBounds returns the box covering every cell of the chunk.
func (l Layout) ChunkBounds(c ChunkPos) Box {
	from := l.ChunkOrigin(c)
	return Box{
		From: from,
		To:   from.Add(Position{l.ChunkEdge, l.ChunkEdge, l.ChunkEdge}),
	}
}

// ShardBounds returns the box covering every cell of the shard.
func (l Layout) ShardBounds(s ShardPos) Box {
	from := l.ShardOrigin(s)
	span := l.ShardSpan()
	return Box{
		From: from,
		To:   from.Add(Position{span, span, span}),
	}
}

func floorDiv(a, n int) int {
	q := a / n
	if a%n != 0 && (a < 0) != (n < 0) {
		q--
	}
	return q
}
