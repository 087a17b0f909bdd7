package smoketest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/voxellab/veldt/grid"
	"github.com/voxellab/veldt/notify"
	"github.com/voxellab/veldt/partition"
	"github.com/voxellab/veldt/router"
	"github.com/voxellab/veldt/storage"
	vwebsocket "github.com/voxellab/veldt/websocket"
	"github.com/voxellab/veldt/world"
	"github.com/voxellab/veldt/worldgen"
	"golang.org/x/net/websocket"
)

func newTestServer(t *testing.T) *httptest.Server {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	layout := grid.Layout{ChunkEdge: 4, ShardEdge: 2}
	notifier := notify.NewNotifier(64)
	notifier.HandleUpdates(ctx)

	registry := partition.NewRegistry(ctx, partition.Deps{
		Layout:    layout,
		Store:     storage.NewMemoryStore(),
		Generator: worldgen.Empty{},
		Updates:   notifier,
	})

	worldRouter := &router.Router{
		Layout:       layout,
		Registry:     registry,
		QueryTimeout: 5 * time.Second,
		Updates:      notifier,
	}

	server := httptest.NewServer(websocket.Server{
		Handshake: func(c *websocket.Config, r *http.Request) error {
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			handler := &vwebsocket.RealtimeHandler{
				Router:            worldRouter,
				Catalog:           world.DefaultCatalog(),
				Notifier:          notifier,
				ClientIdleTimeout: time.Minute,
			}
			defer handler.Close()

			vwebsocket.Handle(ctx, conn, handler)
		},
	})
	t.Cleanup(server.Close)

	return server
}

func TestRunSmokeTest(t *testing.T) {
	server := newTestServer(t)

	res := Run(context.Background(), Options{
		Endpoint: server.URL,
	})

	require.True(t, res.OK)
	require.NotZero(t, res.Duration)

	names := make([]string, 0, len(res.Steps))
	for _, step := range res.Steps {
		require.True(t, step.OK, step.Name)
		names = append(names, step.Name)
	}
	require.Equal(t, []string{
		"connect",
		"ping",
		"block_set",
		"block_get",
		"box_query",
		"cleanup",
	}, names)
}

func TestRunSmokeTestUnreachableServer(t *testing.T) {
	res := Run(context.Background(), Options{
		Endpoint: "http://127.0.0.1:1",
		Timeout:  time.Second,
	})

	require.False(t, res.OK)
	require.Equal(t, "connect", res.Steps[0].Name)
	require.NotEmpty(t, res.Steps[0].Error)
}

func TestHandleSmokeTest(t *testing.T) {
	server := newTestServer(t)

	w := httptest.NewRecorder()
	HandleSmokeTest(context.Background(), Options{
		Endpoint: server.URL,
	})(w, httptest.NewRequest(http.MethodGet, "/smoke-test", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"ok":true`)
}
