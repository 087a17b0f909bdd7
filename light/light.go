// Package light defines the lighting command vocabulary routed to
// partition workers. Propagation itself is pluggable; the routing layer
// only addresses commands to the chunk's owning worker.
package light

import (
	"context"

	"github.com/voxellab/veldt/grid"
	"github.com/voxellab/veldt/world"
)

// Op identifies a single-chunk lighting propagation command.
type Op int

const (
	FloodAmbient Op = iota
	FloodDirect
	RemoveAmbient
	RemoveDirect
	RefreshAmbient
	RefreshDirect
)

var opNames = map[Op]string{
	FloodAmbient:   "flood_ambient",
	FloodDirect:    "flood_direct",
	RemoveAmbient:  "remove_ambient",
	RemoveDirect:   "remove_direct",
	RefreshAmbient: "refresh_ambient",
	RefreshDirect:  "refresh_direct",
}

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return "unknown"
}

// ParseOp resolves a wire-level op name.
func ParseOp(name string) (Op, bool) {
	for op, n := range opNames {
		if n == name {
			return op, true
		}
	}
	return 0, false
}

// Engine runs lighting propagation over one chunk. The chunk passed in is
// owned by the calling partition worker; the engine may mutate it.
type Engine interface {
	Apply(ctx context.Context, pos grid.ChunkPos, op Op, c *world.Chunk) error
}

// NopEngine accepts every command and does nothing. Used when lighting is
// disabled.
type NopEngine struct{}

func (NopEngine) Apply(ctx context.Context, pos grid.ChunkPos, op Op, c *world.Chunk) error {
	return nil
}
