package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"os"
	"reflect"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"github.com/voxellab/veldt/featureflag"
	"github.com/voxellab/veldt/grid"
	veldthttp "github.com/voxellab/veldt/http"
	"github.com/voxellab/veldt/light"
	"github.com/voxellab/veldt/notify"
	"github.com/voxellab/veldt/partition"
	"github.com/voxellab/veldt/router"
	"github.com/voxellab/veldt/smoketest"
	"github.com/voxellab/veldt/storage"
	vwebsocket "github.com/voxellab/veldt/websocket"
	"github.com/voxellab/veldt/world"
	"github.com/voxellab/veldt/worldgen"
	"golang.org/x/net/websocket"
)

var (
	// The Veldt version number. Set at build.
	version = "v0.3.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "veldt_info",
		Help:        "Veldt information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string        `cli:""        env:"VELDT_ADDR"                 help:"Listening address for client connections."`
	AdminAddr          string        `cli:""        env:"VELDT_ADMIN_ADDR"           help:"Admin listening address."`
	PublicEndpoint     string        `cli:""        env:"VELDT_PUBLIC_ENDPOINT"      help:"The public endpoint where this server is reachable."`
	LogLevel           string        `cli:""        env:"VELDT_LOG_LEVEL"            help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"VELDT_LOG_INDENT"           help:"Indent logs."`
	ChunkEdge          int           `cli:",hidden" env:"VELDT_CHUNK_EDGE"           help:"The number of cells along a chunk edge."`
	ShardEdge          int           `cli:",hidden" env:"VELDT_SHARD_EDGE"           help:"The number of chunks along a shard edge."`
	QueryTimeout       time.Duration `cli:",hidden" env:"VELDT_QUERY_TIMEOUT"        help:"Time until a range query aggregation fails."`
	ClientIdleTimeout  time.Duration `cli:",hidden" env:"VELDT_CLIENT_IDLE_TIMEOUT"  help:"Time until an idle client will be disconnected."`
	LogSummaryInterval time.Duration `cli:",hidden" env:"VELDT_LOG_SUMMARY_INTERVAL" help:"The duration between each log summary by connection."`
	UpdateQueueSize    int           `cli:",hidden" env:"VELDT_UPDATE_QUEUE_SIZE"    help:"The size of the world update broadcast queue."`
	StorePath          string        `cli:""        env:"VELDT_STORE_PATH"           help:"The SQLite chunk store path. Empty keeps the world in memory."`
	CatalogPath        string        `cli:""        env:"VELDT_CATALOG_PATH"         help:"A YAML block catalog overriding the built-in one."`
	Generator          string        `cli:""        env:"VELDT_GENERATOR"            help:"World generator (flat|empty)."`
	SurfaceY           int           `cli:",hidden" env:"VELDT_SURFACE_Y"            help:"Surface height of the flat generator."`
	Events             eventsConfig  `cli:",hidden" env:"-"                          help:"Event pusher configuration."`
	FeatureFlags       []string      `cli:",hidden" env:"VELDT_FEATURE_FLAGS"        help:"Comma separated feature flags"`
	Version            bool          `cli:""        env:"-"                          help:"Show version."`
	Help               bool          `cli:""        env:"-"                          help:"Show help."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"VELDT_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"VELDT_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"VELDT_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"VELDT_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:               ":4000",
		AdminAddr:          ":18190",
		PublicEndpoint:     "http://localhost:4000",
		LogLevel:           logs.InfoLevel.String(),
		ChunkEdge:          grid.DefaultLayout.ChunkEdge,
		ShardEdge:          grid.DefaultLayout.ShardEdge,
		QueryTimeout:       router.DefaultQueryTimeout,
		ClientIdleTimeout:  time.Minute * 5,
		LogSummaryInterval: time.Minute,
		UpdateQueueSize:    1024,
		Generator:          "flat",
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts Veldt server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	transport := metrics.HTTPTransport(http.DefaultTransport)

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     transport,
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "veldt",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	layout := grid.Layout{
		ChunkEdge: conf.ChunkEdge,
		ShardEdge: conf.ShardEdge,
	}

	flags := featureflag.New(conf.FeatureFlags)

	catalog, err := loadCatalog(conf)
	if err != nil {
		logs.Fatal(errors.New("loading block catalog failed").Wrap(err))
	}

	store, err := openStore(conf, flags)
	if err != nil {
		logs.Fatal(errors.New("opening chunk store failed").Wrap(err))
	}
	defer store.Close()

	notifier := notify.NewNotifier(conf.UpdateQueueSize)
	notifier.HandleUpdates(ctx)

	deps := partition.Deps{
		Layout:    layout,
		Store:     store,
		Generator: newGenerator(conf, catalog),
		Lighting:  light.NopEngine{},
		Updates:   notifier,
	}
	flags.IfSet(featureflag.FlagNoBlockUpdateBroadcast, func() {
		deps.Updates = nil
	})

	registry := partition.NewRegistry(ctx, deps)

	worldRouter := &router.Router{
		Layout:       layout,
		Registry:     registry,
		QueryTimeout: conf.QueryTimeout,
		FeatureFlags: flags,
		Updates:      notifier,
	}

	readinessCheck := func() bool {
		_, _, err := store.LoadChunk(ctx, grid.ChunkPos{})
		return err == nil
	}

	var service http.ServeMux
	service.Handle("/health", veldthttp.HandleWithCORS(http.HandlerFunc(veldthttp.HandleHealthCheck)))
	service.Handle("/version", veldthttp.HandleWithCORS(http.HandlerFunc(veldthttp.HandleVersion(version))))
	service.Handle("/ready", veldthttp.HandleWithCORS(http.HandlerFunc(veldthttp.HandleReadyCheck(readinessCheck))))
	service.HandleFunc("/smoke-test", smoketest.HandleSmokeTest(ctx, smoketest.Options{
		Endpoint: conf.PublicEndpoint,
	}))

	service.Handle("/", veldthttp.HandleWithCORS(websocket.Server{
		Handshake: func(c *websocket.Config, r *http.Request) error {
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			var h vwebsocket.Handler = &vwebsocket.RealtimeHandler{
				Router:            worldRouter,
				Catalog:           catalog,
				Notifier:          notifier,
				FeatureFlags:      flags,
				ClientIdleTimeout: conf.ClientIdleTimeout,
			}
			h = vwebsocket.HandlerWithLogs(h, conf.LogSummaryInterval)
			h = vwebsocket.HandlerWithMetrics(h)
			defer h.Close()

			vwebsocket.Handle(ctx, conn, h)
		},
	}))

	service.Handle("/ping", websocket.Server{
		Handler: func(ws *websocket.Conn) {
			defer ws.Close()
			io.Copy(ws, ws)
		},
	})

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", veldthttp.HandleHealthCheck)
	admin.HandleFunc("/version", veldthttp.HandleVersion(version))
	admin.HandleFunc("/ready", veldthttp.HandleReadyCheck(readinessCheck))
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("addr", conf.Addr).
		WithTag("endpoint", conf.PublicEndpoint).
		WithTag("chunk_edge", conf.ChunkEdge).
		WithTag("shard_edge", conf.ShardEdge).
		WithTag("store_path", conf.StorePath).
		Info("starting veldt server")

	veldthttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
			veldthttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)
}

func validateConfig(conf config) error {
	if conf.ChunkEdge <= 0 {
		return errors.New("chunk edge must be positive").
			WithTag("chunk_edge", conf.ChunkEdge)
	}
	if conf.ShardEdge <= 0 {
		return errors.New("shard edge must be positive").
			WithTag("shard_edge", conf.ShardEdge)
	}
	if conf.Generator != "flat" && conf.Generator != "empty" {
		return errors.New("unknown generator").
			WithTag("generator", conf.Generator)
	}
	return nil
}

func loadCatalog(conf config) (*world.Catalog, error) {
	if conf.CatalogPath == "" {
		return world.DefaultCatalog(), nil
	}
	return world.LoadCatalog(conf.CatalogPath)
}

func openStore(conf config, flags featureflag.FeatureFlag) (storage.Store, error) {
	persist := conf.StorePath != ""
	flags.IfSet(featureflag.FlagNoPersistence, func() {
		persist = false
	})

	if !persist {
		return storage.NewMemoryStore(), nil
	}
	return storage.OpenSQLite(conf.StorePath)
}

func newGenerator(conf config, catalog *world.Catalog) worldgen.Generator {
	if conf.Generator == "empty" {
		return worldgen.Empty{}
	}

	surface, ok := catalog.ID("grass")
	if !ok {
		surface = world.Air
	}
	filler, ok := catalog.ID("dirt")
	if !ok {
		filler = surface
	}

	return worldgen.FlatGenerator{
		SurfaceY: conf.SurfaceY,
		Surface:  surface,
		Filler:   filler,
	}
}
