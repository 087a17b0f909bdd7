package partition

import (
	"context"
	"fmt"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"
	"github.com/voxellab/veldt/grid"
	"github.com/voxellab/veldt/light"
	"github.com/voxellab/veldt/notify"
	"github.com/voxellab/veldt/storage"
	"github.com/voxellab/veldt/world"
	"github.com/voxellab/veldt/worldgen"
)

const mailboxSize = 256

// Deps are the collaborators injected into every partition worker at
// creation. They are configuration, not state the worker reasons about.
type Deps struct {
	Layout    grid.Layout
	Store     storage.Store
	Generator worldgen.Generator
	Lighting  light.Engine
	Updates   *notify.Notifier

	// WriteFilter, when set, vets every block replacement. Rejected
	// writes are not applied and not persisted.
	WriteFilter world.Filter
}

// Worker owns all chunk data for one shard. It is a sequential process: a
// single goroutine drains the mailbox and handles one command at a time,
// so the chunk map needs no locking. Nothing outside the worker ever
// mutates its chunks.
type Worker struct {
	ShardPos grid.ShardPos
	Name     string
	UUID     string

	deps   Deps
	cmds   chan Command
	chunks map[grid.ChunkPos]*world.Chunk
}

// WorkerName returns the deterministic registry name derived from a shard
// identity.
func WorkerName(pos grid.ShardPos) string {
	return fmt.Sprintf("shard-%d.%d.%d", pos.X, pos.Y, pos.Z)
}

func newWorker(pos grid.ShardPos, deps Deps) *Worker {
	return &Worker{
		ShardPos: pos,
		Name:     WorkerName(pos),
		UUID:     uuid.New().String(),
		deps:     deps,
		cmds:     make(chan Command, mailboxSize),
		chunks:   make(map[grid.ChunkPos]*world.Chunk),
	}
}

// Send delivers a command to the worker's mailbox. Commands from a single
// sender are handled in send order.
func (w *Worker) Send(cmd Command) {
	w.cmds <- cmd
}

func (w *Worker) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case cmd := <-w.cmds:
			w.handle(ctx, cmd)
		}
	}
}

func (w *Worker) handle(ctx context.Context, cmd Command) {
	switch cmd := cmd.(type) {
	case GetBlock:
		instrumentCommand("get_block")
		w.handleGetBlock(ctx, cmd)

	case SetBlock:
		instrumentCommand("set_block")
		w.handleSetBlock(ctx, cmd)

	case ApplyBatch:
		instrumentCommand("apply_batch")
		w.handleApplyBatch(ctx, cmd)

	case QueryBox:
		instrumentCommand("query_box")
		w.handleQueryBox(ctx, cmd)

	case ApplyLight:
		instrumentCommand("apply_light")
		w.handleApplyLight(ctx, cmd)
	}
}

func (w *Worker) handleGetBlock(ctx context.Context, cmd GetBlock) {
	c, err := w.chunk(ctx, w.deps.Layout.ChunkOf(cmd.Pos))
	if err != nil {
		cmd.Reply <- BlockResult{Pos: cmd.Pos, Err: err}
		return
	}

	x, y, z := w.localize(cmd.Pos)
	cmd.Reply <- BlockResult{Pos: cmd.Pos, Block: c.At(x, y, z)}
}

func (w *Worker) handleSetBlock(ctx context.Context, cmd SetBlock) {
	cpos := w.deps.Layout.ChunkOf(cmd.Pos)

	c, err := w.chunk(ctx, cpos)
	if err != nil {
		cmd.Reply <- WriteResult{Pos: cmd.Pos, Err: err}
		return
	}

	x, y, z := w.localize(cmd.Pos)
	if f := w.deps.WriteFilter; f != nil && !f(c.At(x, y, z), cmd.Block) {
		cmd.Reply <- WriteResult{Pos: cmd.Pos, Applied: false}
		return
	}

	c.Set(x, y, z, cmd.Block)
	if err := w.persist(ctx, cpos, c); err != nil {
		cmd.Reply <- WriteResult{Pos: cmd.Pos, Err: err}
		return
	}

	w.notifyBlock(cmd.Pos, cmd.Block)
	cmd.Reply <- WriteResult{Pos: cmd.Pos, Applied: true}
}

func (w *Worker) handleApplyBatch(ctx context.Context, cmd ApplyBatch) {
	bounds := w.deps.Layout.ShardBounds(w.ShardPos)
	dirty := make(map[grid.ChunkPos]*world.Chunk)
	applied := 0

	for pos, block := range cmd.Blocks {
		if !bounds.Contains(pos) {
			logs.WithTag("worker", w.Name).
				WithTag("pos", pos.String()).
				Warn("dropping bulk cell outside worker region")
			continue
		}

		cpos := w.deps.Layout.ChunkOf(pos)
		c, err := w.chunk(ctx, cpos)
		if err != nil {
			cmd.Reply <- BatchResult{Shard: w.ShardPos, Applied: applied, Err: err}
			return
		}

		x, y, z := w.localize(pos)
		current := c.At(x, y, z)
		if cmd.Filter != nil && !cmd.Filter(current, block) {
			continue
		}
		if f := w.deps.WriteFilter; f != nil && !f(current, block) {
			continue
		}

		c.Set(x, y, z, block)
		dirty[cpos] = c
		w.notifyBlock(pos, block)
		applied++
	}

	for cpos, c := range dirty {
		if err := w.persist(ctx, cpos, c); err != nil {
			cmd.Reply <- BatchResult{Shard: w.ShardPos, Applied: applied, Err: err}
			return
		}
	}

	cmd.Reply <- BatchResult{Shard: w.ShardPos, Applied: applied}
}

func (w *Worker) handleQueryBox(ctx context.Context, cmd QueryBox) {
	blocks := make(map[grid.Position]world.BlockTypeID, cmd.Sub.Count())

	var (
		cur     *world.Chunk
		curPos  grid.ChunkPos
		loadErr error
	)

	cmd.Sub.Each(func(pos grid.Position) {
		if loadErr != nil {
			return
		}

		cpos := w.deps.Layout.ChunkOf(pos)
		if cur == nil || cpos != curPos {
			c, err := w.chunk(ctx, cpos)
			if err != nil {
				loadErr = err
				return
			}
			cur, curPos = c, cpos
		}

		x, y, z := w.localize(pos)
		blocks[pos] = cur.At(x, y, z)
	})

	if loadErr != nil {
		cmd.Reply <- PartialResult{Sub: cmd.Sub, Err: loadErr}
		return
	}

	cmd.Reply <- PartialResult{Sub: cmd.Sub, Blocks: blocks}
}

func (w *Worker) handleApplyLight(ctx context.Context, cmd ApplyLight) {
	engine := w.deps.Lighting
	if engine == nil {
		engine = light.NopEngine{}
	}

	c, err := w.chunk(ctx, cmd.Chunk)
	if err != nil {
		cmd.Reply <- err
		return
	}

	if err := engine.Apply(ctx, cmd.Chunk, cmd.Op, c); err != nil {
		cmd.Reply <- errors.New("lighting command failed").
			WithTag("worker", w.Name).
			WithTag("chunk", cmd.Chunk).
			WithTag("op", cmd.Op.String()).
			Wrap(err)
		return
	}

	if err := w.persist(ctx, cmd.Chunk, c); err != nil {
		cmd.Reply <- err
		return
	}

	if w.deps.Updates != nil {
		w.deps.Updates.Publish(notify.WorldUpdate{
			Kind:  notify.UpdateChunk,
			Chunk: cmd.Chunk,
		})
	}
	cmd.Reply <- nil
}

// chunk returns the chunk owning its data to this worker, loading it from
// the store or generating it on first touch. Generated chunks are not
// persisted until first mutation.
func (w *Worker) chunk(ctx context.Context, pos grid.ChunkPos) (*world.Chunk, error) {
	if c, ok := w.chunks[pos]; ok {
		return c, nil
	}

	c, ok, err := w.deps.Store.LoadChunk(ctx, pos)
	if err != nil {
		return nil, err
	}
	if !ok {
		c = w.deps.Generator.GenerateChunk(w.deps.Layout, pos)
	}

	w.chunks[pos] = c
	return c, nil
}

func (w *Worker) persist(ctx context.Context, pos grid.ChunkPos, c *world.Chunk) error {
	if err := w.deps.Store.SaveChunk(ctx, pos, c); err != nil {
		return errors.New("persisting chunk failed").
			WithTag("worker", w.Name).
			WithTag("chunk", pos).
			Wrap(err)
	}
	return nil
}

func (w *Worker) localize(p grid.Position) (x, y, z int) {
	local := p.Sub(w.deps.Layout.ChunkOrigin(w.deps.Layout.ChunkOf(p)))
	return local.X, local.Y, local.Z
}

func (w *Worker) notifyBlock(pos grid.Position, block world.BlockTypeID) {
	if w.deps.Updates == nil {
		return
	}
	w.deps.Updates.Publish(notify.WorldUpdate{
		Kind:  notify.UpdateBlock,
		Pos:   pos,
		Block: block,
		Chunk: w.deps.Layout.ChunkOf(pos),
	})
}
