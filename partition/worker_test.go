package partition

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/voxellab/veldt/grid"
	"github.com/voxellab/veldt/light"
	"github.com/voxellab/veldt/notify"
	"github.com/voxellab/veldt/storage"
	"github.com/voxellab/veldt/world"
	"github.com/voxellab/veldt/worldgen"
)

func startWorker(t *testing.T, deps Deps, pos grid.ShardPos) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	r := NewRegistry(ctx, deps)
	return r.Get(pos)
}

func TestWorkerGetBlockGenerated(t *testing.T) {
	deps := testDeps()
	deps.Generator = worldgen.FlatGenerator{SurfaceY: 0, Surface: 3, Filler: 1}
	w := startWorker(t, deps, grid.ShardPos{})

	reply := make(chan BlockResult, 1)
	w.Send(GetBlock{Pos: grid.Position{X: 2, Y: 0, Z: 2}, Reply: reply})

	res := <-reply
	require.NoError(t, res.Err)
	require.Equal(t, world.BlockTypeID(3), res.Block)
}

func TestWorkerSetThenGetBlock(t *testing.T) {
	w := startWorker(t, testDeps(), grid.ShardPos{})
	pos := grid.Position{X: 1, Y: 2, Z: 3}

	wrote := make(chan WriteResult, 1)
	w.Send(SetBlock{Pos: pos, Block: 42, Reply: wrote})
	res := <-wrote
	require.NoError(t, res.Err)
	require.True(t, res.Applied)

	read := make(chan BlockResult, 1)
	w.Send(GetBlock{Pos: pos, Reply: read})
	require.Equal(t, world.BlockTypeID(42), (<-read).Block)
}

func TestWorkerSetBlockWriteThrough(t *testing.T) {
	store := storage.NewMemoryStore()
	deps := testDeps()
	deps.Store = store
	w := startWorker(t, deps, grid.ShardPos{})

	pos := grid.Position{X: 0, Y: 0, Z: 0}
	wrote := make(chan WriteResult, 1)
	w.Send(SetBlock{Pos: pos, Block: 5, Reply: wrote})
	require.True(t, (<-wrote).Applied)

	// The mutated chunk was persisted.
	c, ok, err := store.LoadChunk(context.Background(), grid.ChunkPos{})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, world.BlockTypeID(5), c.At(0, 0, 0))
}

func TestWorkerWriteFilterRejects(t *testing.T) {
	deps := testDeps()
	deps.Generator = worldgen.FlatGenerator{SurfaceY: 3, Surface: 3, Filler: 1}
	deps.WriteFilter = world.ReplaceOnly(world.Air)
	w := startWorker(t, deps, grid.ShardPos{})

	// Cell below the surface holds filler: the air-only filter rejects.
	wrote := make(chan WriteResult, 1)
	w.Send(SetBlock{Pos: grid.Position{X: 0, Y: 0, Z: 0}, Block: 9, Reply: wrote})
	res := <-wrote
	require.NoError(t, res.Err)
	require.False(t, res.Applied)

	// Cell above the surface is air: accepted.
	w.Send(SetBlock{Pos: grid.Position{X: 0, Y: 4, Z: 0}, Block: 9, Reply: wrote})
	res = <-wrote
	require.NoError(t, res.Err)
	require.True(t, res.Applied)
}

func TestWorkerApplyBatch(t *testing.T) {
	w := startWorker(t, testDeps(), grid.ShardPos{})

	reply := make(chan BatchResult, 1)
	w.Send(ApplyBatch{
		Blocks: map[grid.Position]world.BlockTypeID{
			{X: 0, Y: 0, Z: 0}: 1,
			{X: 7, Y: 7, Z: 7}: 2,
		},
		Reply: reply,
	})

	res := <-reply
	require.NoError(t, res.Err)
	require.Equal(t, 2, res.Applied)

	read := make(chan BlockResult, 1)
	w.Send(GetBlock{Pos: grid.Position{X: 7, Y: 7, Z: 7}, Reply: read})
	require.Equal(t, world.BlockTypeID(2), (<-read).Block)
}

func TestWorkerApplyBatchFilter(t *testing.T) {
	w := startWorker(t, testDeps(), grid.ShardPos{})

	wrote := make(chan WriteResult, 1)
	w.Send(SetBlock{Pos: grid.Position{X: 1, Y: 1, Z: 1}, Block: 8, Reply: wrote})
	require.True(t, (<-wrote).Applied)

	// Replace-air-only: the occupied cell is skipped.
	reply := make(chan BatchResult, 1)
	w.Send(ApplyBatch{
		Blocks: map[grid.Position]world.BlockTypeID{
			{X: 1, Y: 1, Z: 1}: 3,
			{X: 2, Y: 2, Z: 2}: 3,
		},
		Filter: world.ReplaceOnly(world.Air),
		Reply:  reply,
	})

	res := <-reply
	require.NoError(t, res.Err)
	require.Equal(t, 1, res.Applied)

	read := make(chan BlockResult, 1)
	w.Send(GetBlock{Pos: grid.Position{X: 1, Y: 1, Z: 1}, Reply: read})
	require.Equal(t, world.BlockTypeID(8), (<-read).Block)
}

func TestWorkerApplyBatchDropsForeignCells(t *testing.T) {
	w := startWorker(t, testDeps(), grid.ShardPos{})

	reply := make(chan BatchResult, 1)
	w.Send(ApplyBatch{
		Blocks: map[grid.Position]world.BlockTypeID{
			{X: 0, Y: 0, Z: 0}:   1,
			{X: 100, Y: 0, Z: 0}: 1, // not this worker's region
		},
		Reply: reply,
	})

	res := <-reply
	require.NoError(t, res.Err)
	require.Equal(t, 1, res.Applied)
}

func TestWorkerQueryBoxCoversEveryCell(t *testing.T) {
	deps := testDeps()
	deps.Generator = worldgen.FlatGenerator{SurfaceY: 1, Surface: 3, Filler: 1}
	w := startWorker(t, deps, grid.ShardPos{})

	sub := grid.Box{From: grid.Position{X: 1, Y: 0, Z: 1}, To: grid.Position{X: 5, Y: 3, Z: 5}}
	reply := make(chan PartialResult, 1)
	w.Send(QueryBox{Sub: sub, Reply: reply})

	res := <-reply
	require.NoError(t, res.Err)
	require.Equal(t, sub, res.Sub)
	require.Len(t, res.Blocks, sub.Count())

	sub.Each(func(p grid.Position) {
		b, ok := res.Blocks[p]
		require.True(t, ok, "missing cell %s", p)
		switch {
		case p.Y == 1:
			require.Equal(t, world.BlockTypeID(3), b)
		case p.Y < 1:
			require.Equal(t, world.BlockTypeID(1), b)
		default:
			require.Equal(t, world.Air, b)
		}
	})
}

func TestWorkerPublishesBlockUpdates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifier := notify.NewNotifier(16)
	notifier.HandleUpdates(ctx)

	received := make(chan notify.WorldUpdate, 1)
	notifier.Subscribe(func(u notify.WorldUpdate) { received <- u })

	deps := testDeps()
	deps.Updates = notifier
	w := startWorker(t, deps, grid.ShardPos{})

	wrote := make(chan WriteResult, 1)
	w.Send(SetBlock{Pos: grid.Position{X: 3, Y: 3, Z: 3}, Block: 6, Reply: wrote})
	require.True(t, (<-wrote).Applied)

	u := <-received
	require.Equal(t, notify.UpdateBlock, u.Kind)
	require.Equal(t, grid.Position{X: 3, Y: 3, Z: 3}, u.Pos)
	require.Equal(t, world.BlockTypeID(6), u.Block)
}

type recordingEngine struct {
	applied []light.Op
}

func (e *recordingEngine) Apply(ctx context.Context, pos grid.ChunkPos, op light.Op, c *world.Chunk) error {
	e.applied = append(e.applied, op)
	return nil
}

func TestWorkerApplyLight(t *testing.T) {
	engine := &recordingEngine{}
	deps := testDeps()
	deps.Lighting = engine
	w := startWorker(t, deps, grid.ShardPos{})

	reply := make(chan error, 1)
	w.Send(ApplyLight{Chunk: grid.ChunkPos{X: 1, Y: 1, Z: 1}, Op: light.FloodAmbient, Reply: reply})
	require.NoError(t, <-reply)
	require.Equal(t, []light.Op{light.FloodAmbient}, engine.applied)
}
