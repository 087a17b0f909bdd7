package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	updateKindLabel = "update_kind"
)

var (
	notifyQueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notify_updates_queued",
		Help: "The number of world updates queued to the global sink.",
	}, []string{
		updateKindLabel,
	})

	notifyDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notify_updates_dropped",
		Help: "The number of world updates dropped because the sink queue was full.",
	}, []string{
		updateKindLabel,
	})

	notifyDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notify_updates_delivered",
		Help: "The number of world update deliveries to subscribers.",
	}, []string{
		updateKindLabel,
	})
)

func instrumentUpdateQueued(kind string) {
	notifyQueued.
		With(prometheus.Labels{updateKindLabel: kind}).
		Inc()
}

func instrumentUpdateDropped(kind string) {
	notifyDropped.
		With(prometheus.Labels{updateKindLabel: kind}).
		Inc()
}

func instrumentUpdateDelivered(kind string) {
	notifyDelivered.
		With(prometheus.Labels{updateKindLabel: kind}).
		Inc()
}
