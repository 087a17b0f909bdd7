// Package router is the entry point of the routing and aggregation layer.
// It maps world coordinates to partition workers, forwards point and bulk
// operations, and runs one scatter-gather aggregation per range query.
package router

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/voxellab/veldt/featureflag"
	"github.com/voxellab/veldt/grid"
	"github.com/voxellab/veldt/light"
	"github.com/voxellab/veldt/notify"
	"github.com/voxellab/veldt/partition"
	"github.com/voxellab/veldt/world"
)

const (
	ErrTypeMalformedBox      = "malformed_box"
	ErrTypeProtocolViolation = "protocol_violation"
	ErrTypeQueryTimeout      = "query_timeout"
)

// DefaultQueryTimeout bounds how long an aggregation waits for its
// partial results before failing the whole query.
const DefaultQueryTimeout = 5 * time.Second

// Router classifies incoming operations and resolves their target
// partition workers. Point and bulk operations are forwarded with the
// originator's reply channel intact; range queries are decomposed and
// aggregated.
type Router struct {
	Layout   grid.Layout
	Registry *partition.Registry

	// QueryTimeout overrides DefaultQueryTimeout when set. The
	// no-query-timeout feature flag disables the bound entirely, which
	// restores wait-forever aggregation semantics.
	QueryTimeout time.Duration
	FeatureFlags featureflag.FeatureFlag

	// Updates is the well-known global sink for world-level broadcasts.
	Updates *notify.Notifier
}

// GetBlock reads one cell from its owning partition.
func (r *Router) GetBlock(ctx context.Context, pos grid.Position) (world.BlockTypeID, error) {
	instrumentRoute("get_block")

	reply := make(chan partition.BlockResult, 1)
	r.workerFor(pos).Send(partition.GetBlock{Pos: pos, Reply: reply})

	select {
	case <-ctx.Done():
		return world.Air, ctx.Err()
	case res := <-reply:
		return res.Block, res.Err
	}
}

// SetBlock replaces one cell on its owning partition. It reports whether
// the write passed the partition's write filter.
func (r *Router) SetBlock(ctx context.Context, pos grid.Position, block world.BlockTypeID) (bool, error) {
	instrumentRoute("set_block")

	reply := make(chan partition.WriteResult, 1)
	r.workerFor(pos).Send(partition.SetBlock{Pos: pos, Block: block, Reply: reply})

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case res := <-reply:
		return res.Applied, res.Err
	}
}

// ApplyBulk replaces many cells at once. Cells are grouped by owning
// shard and one batch is forwarded per partition; the write-side analogue
// of box decomposition, keyed by exact membership rather than geometry.
// It returns the total number of cells applied.
func (r *Router) ApplyBulk(ctx context.Context, blocks map[grid.Position]world.BlockTypeID, filter world.Filter) (int, error) {
	instrumentRoute("apply_bulk")

	groups := make(map[grid.ShardPos]map[grid.Position]world.BlockTypeID)
	for pos, block := range blocks {
		shard := r.Layout.ShardOf(pos)
		group, ok := groups[shard]
		if !ok {
			group = make(map[grid.Position]world.BlockTypeID)
			groups[shard] = group
		}
		group[pos] = block
	}
	instrumentBulkGroups(len(groups))

	reply := make(chan partition.BatchResult, len(groups))
	for shard, group := range groups {
		r.Registry.Get(shard).Send(partition.ApplyBatch{
			Blocks: group,
			Filter: filter,
			Reply:  reply,
		})
	}

	applied := 0
	for i := 0; i < len(groups); i++ {
		select {
		case <-ctx.Done():
			return applied, ctx.Err()
		case res := <-reply:
			if res.Err != nil {
				return applied, res.Err
			}
			applied += res.Applied
		}
	}
	return applied, nil
}

// QueryBox runs a scatter-gather range query and returns a dense result
// covering exactly the box's cells.
func (r *Router) QueryBox(ctx context.Context, box grid.Box) (*QueryResult, error) {
	start := time.Now()
	instrumentRoute("query_box")

	if !box.Valid() {
		return nil, errors.New("malformed query box").
			WithType(ErrTypeMalformedBox).
			WithTag("from", box.From.String()).
			WithTag("to", box.To.String())
	}
	if box.Empty() {
		return &QueryResult{Box: box}, nil
	}

	subs := r.Layout.Decompose(box)
	instrumentSubQueries(len(subs))

	agg := newAggregator(box, subs, r.queryTimeout())
	for _, sub := range subs {
		r.workerFor(sub.From).Send(partition.QueryBox{Sub: sub, Reply: agg.results})
	}

	res, err := agg.collect(ctx)
	instrumentQueryLatency("box", time.Since(start))
	return res, err
}

// ShapeResult is the reply to a shape query: the cells of the box
// selected by the predicate.
type ShapeResult struct {
	Box    grid.Box
	Blocks map[grid.Position]world.BlockTypeID
}

// QueryShape runs a box query filtered by an inclusion predicate. The
// predicate is metadata that travels with the query; partitioning follows
// the underlying box.
func (r *Router) QueryShape(ctx context.Context, box grid.Box, include func(grid.Position) bool) (*ShapeResult, error) {
	instrumentRoute("query_shape")

	dense, err := r.QueryBox(ctx, box)
	if err != nil {
		return nil, err
	}

	res := &ShapeResult{
		Box:    box,
		Blocks: make(map[grid.Position]world.BlockTypeID),
	}
	box.Each(func(p grid.Position) {
		if include(p) {
			res.Blocks[p] = dense.At(p)
		}
	})
	return res, nil
}

// ApplyLight forwards a single-chunk lighting command to the chunk's
// owning partition.
func (r *Router) ApplyLight(ctx context.Context, chunk grid.ChunkPos, op light.Op) error {
	instrumentRoute("apply_light")

	reply := make(chan error, 1)
	shard := r.Layout.ShardOfChunk(chunk)
	r.Registry.Get(shard).Send(partition.ApplyLight{Chunk: chunk, Op: op, Reply: reply})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-reply:
		return err
	}
}

// Broadcast forwards a world-level update to the global sink, bypassing
// partition resolution.
func (r *Router) Broadcast(u notify.WorldUpdate) {
	instrumentRoute("broadcast")
	r.Updates.Publish(u)
}

func (r *Router) workerFor(pos grid.Position) *partition.Worker {
	return r.Registry.Get(r.Layout.ShardOf(pos))
}

func (r *Router) queryTimeout() time.Duration {
	timeout := r.QueryTimeout
	if timeout == 0 {
		timeout = DefaultQueryTimeout
	}
	r.FeatureFlags.IfSet(featureflag.FlagNoQueryTimeout, func() {
		timeout = 0
	})
	return timeout
}
