package partition

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	commandLabel = "command"
)

var (
	partitionWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "partition_workers",
		Help: "The number of live partition workers.",
	})

	partitionCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "partition_commands",
		Help: "The number of commands handled by partition workers.",
	}, []string{
		commandLabel,
	})
)

func instrumentWorkerCreated() {
	partitionWorkers.Inc()
}

func instrumentCommand(command string) {
	partitionCommands.
		With(prometheus.Labels{commandLabel: command}).
		Inc()
}
