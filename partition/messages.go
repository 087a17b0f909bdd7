package partition

import (
	"github.com/voxellab/veldt/grid"
	"github.com/voxellab/veldt/light"
	"github.com/voxellab/veldt/world"
)

// Command is a message delivered to a partition worker's mailbox. Each
// command carries the originator's reply channel, so the worker answers
// the true originator directly rather than routing replies back through
// the router.
type Command interface {
	command()
}

// GetBlock reads a single cell.
type GetBlock struct {
	Pos   grid.Position
	Reply chan<- BlockResult
}

type BlockResult struct {
	Pos   grid.Position
	Block world.BlockTypeID
	Err   error
}

// SetBlock replaces a single cell.
type SetBlock struct {
	Pos   grid.Position
	Block world.BlockTypeID
	Reply chan<- WriteResult
}

type WriteResult struct {
	Pos     grid.Position
	Applied bool
	Err     error
}

// ApplyBatch replaces many cells at once. The router has already grouped
// the cells by owning shard; every position in Blocks belongs to the
// receiving worker's region.
type ApplyBatch struct {
	Blocks map[grid.Position]world.BlockTypeID
	Filter world.Filter
	Reply  chan<- BatchResult
}

type BatchResult struct {
	Shard   grid.ShardPos
	Applied int
	Err     error
}

// QueryBox asks for every cell of a sub-box that lies entirely within the
// worker's region. The worker replies with exactly one PartialResult
// tagged with the same sub-box and covering every one of its cells.
type QueryBox struct {
	Sub   grid.Box
	Reply chan<- PartialResult
}

// PartialResult is one shard's complete answer for one sub-box.
type PartialResult struct {
	Sub    grid.Box
	Blocks map[grid.Position]world.BlockTypeID
	Err    error
}

// ApplyLight runs a lighting propagation command on one owned chunk.
type ApplyLight struct {
	Chunk grid.ChunkPos
	Op    light.Op
	Reply chan<- error
}

func (GetBlock) command()   {}
func (SetBlock) command()   {}
func (ApplyBatch) command() {}
func (QueryBox) command()   {}
func (ApplyLight) command() {}
