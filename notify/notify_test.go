package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/voxellab/veldt/grid"
)

func TestNotifierFanOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := NewNotifier(16)
	n.HandleUpdates(ctx)

	received := make(chan WorldUpdate, 2)
	n.Subscribe(func(u WorldUpdate) { received <- u })
	n.Subscribe(func(u WorldUpdate) { received <- u })
	require.Equal(t, 2, n.SubscriberCount())

	update := WorldUpdate{
		Kind:  UpdateBlock,
		Pos:   grid.Position{X: 1, Y: 2, Z: 3},
		Block: 7,
	}
	n.Publish(update)

	for i := 0; i < 2; i++ {
		select {
		case u := <-received:
			require.Equal(t, update, u)
		case <-time.After(time.Second):
			t.Fatal("update was not delivered")
		}
	}
}

func TestNotifierUnsubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := NewNotifier(16)
	n.HandleUpdates(ctx)

	received := make(chan WorldUpdate, 1)
	id := n.Subscribe(func(u WorldUpdate) { received <- u })
	n.Unsubscribe(id)
	require.Zero(t, n.SubscriberCount())

	n.Publish(WorldUpdate{Kind: UpdateChunk})

	select {
	case <-received:
		t.Fatal("unsubscribed callback was invoked")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNotifierPublishDoesNotBlockWhenFull(t *testing.T) {
	n := NewNotifier(1)

	// No fan-out worker running: the second publish must drop, not block.
	n.Publish(WorldUpdate{Kind: UpdateBlock})
	done := make(chan struct{})
	go func() {
		n.Publish(WorldUpdate{Kind: UpdateBlock})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full queue")
	}
}
