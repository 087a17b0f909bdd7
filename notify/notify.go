// Package notify implements the well-known global sink for world-level
// update broadcasts. Updates bypass partition resolution entirely: every
// producer publishes to one buffered channel and a single fan-out
// goroutine delivers to subscribers.
package notify

import (
	"context"
	"sync"

	"github.com/voxellab/veldt/grid"
	"github.com/voxellab/veldt/world"
)

type UpdateKind string

const (
	UpdateBlock UpdateKind = "block"
	UpdateChunk UpdateKind = "chunk"
)

// WorldUpdate is a world-level notification about changed state.
type WorldUpdate struct {
	Kind  UpdateKind        `json:"kind"`
	Pos   grid.Position     `json:"pos"`
	Block world.BlockTypeID `json:"block"`
	Chunk grid.ChunkPos     `json:"chunk"`
}

// Notifier fans world updates out to subscribers.
type Notifier struct {
	UpdateChan chan WorldUpdate // buffered

	mutex sync.RWMutex
	subID uint32
	subs  map[uint32]func(WorldUpdate)
}

func NewNotifier(queueSize int) *Notifier {
	return &Notifier{
		UpdateChan: make(chan WorldUpdate, queueSize),
		subs:       make(map[uint32]func(WorldUpdate)),
	}
}

// HandleUpdates starts the fan-out worker. It returns immediately; the
// worker stops when ctx is canceled.
func (n *Notifier) HandleUpdates(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return

			case u := <-n.UpdateChan:
				n.deliver(u)
			}
		}
	}()
}

// Publish enqueues an update without blocking the caller. Updates are
// dropped when the queue is full.
func (n *Notifier) Publish(u WorldUpdate) {
	select {
	case n.UpdateChan <- u:
		instrumentUpdateQueued(string(u.Kind))

	default:
		instrumentUpdateDropped(string(u.Kind))
	}
}

// Subscribe registers a delivery callback and returns its subscription
// id. Callbacks run on the fan-out goroutine and must not block.
func (n *Notifier) Subscribe(fn func(WorldUpdate)) uint32 {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	n.subID++
	n.subs[n.subID] = fn
	return n.subID
}

func (n *Notifier) Unsubscribe(id uint32) {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	delete(n.subs, id)
}

func (n *Notifier) SubscriberCount() int {
	n.mutex.RLock()
	defer n.mutex.RUnlock()

	return len(n.subs)
}

func (n *Notifier) deliver(u WorldUpdate) {
	n.mutex.RLock()
	subs := make([]func(WorldUpdate), 0, len(n.subs))
	for _, fn := range n.subs {
		subs = append(subs, fn)
	}
	n.mutex.RUnlock()

	for _, fn := range subs {
		fn(u)
		instrumentUpdateDelivered(string(u.Kind))
	}
}
