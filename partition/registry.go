package partition

import (
	"context"
	"sync"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/voxellab/veldt/grid"
)

// Registry lazily creates and looks up the worker that owns a shard. Get
// has get-or-create semantics and is linearizable: at most one worker is
// ever created per identity, even under concurrent first access.
type Registry struct {
	deps Deps

	// runCtx bounds the lifetime of every spawned worker. Workers live
	// until the registry context is canceled; there is no per-worker
	// eviction.
	runCtx context.Context

	mutex   sync.Mutex
	workers map[grid.ShardPos]*Worker
}

func NewRegistry(ctx context.Context, deps Deps) *Registry {
	return &Registry{
		deps:    deps,
		runCtx:  ctx,
		workers: make(map[grid.ShardPos]*Worker),
	}
}

// Get returns the worker owning the given shard, creating and starting it
// on first access.
func (r *Registry) Get(pos grid.ShardPos) *Worker {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if w, ok := r.workers[pos]; ok {
		return w
	}

	w := newWorker(pos, r.deps)
	r.workers[pos] = w
	go w.run(r.runCtx)

	instrumentWorkerCreated()
	logs.WithTag("worker", w.Name).
		WithTag("worker_uuid", w.UUID).
		Debug("partition worker created")
	return w
}

// Lookup returns the worker for a shard without creating one.
func (r *Registry) Lookup(pos grid.ShardPos) (*Worker, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	w, ok := r.workers[pos]
	return w, ok
}

// Count returns the number of live workers.
func (r *Registry) Count() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return len(r.workers)
}
