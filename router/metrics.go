package router

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	routeLabel     = "route"
	queryLabel     = "query"
	violationLabel = "violation"
)

var (
	routedMsgs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "router_msgs",
		Help: "The number of messages dispatched by the router.",
	}, []string{
		routeLabel,
	})

	subQueries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "router_sub_queries",
		Help: "The number of sub-queries dispatched to partitions.",
	})

	bulkGroups = promauto.NewCounter(prometheus.CounterOpts{
		Name: "router_bulk_groups",
		Help: "The number of per-partition groups produced by bulk replacements.",
	})

	activeAggregations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "router_active_aggregations",
		Help: "The number of in-flight query aggregations.",
	})

	queryTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "router_query_timeouts",
		Help: "The number of aggregations that timed out.",
	})

	protocolViolations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "router_protocol_violations",
		Help: "The number of partial results that violated the aggregation protocol.",
	}, []string{
		violationLabel,
	})

	queryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "router_query_latency",
		Help: "The time to answer a range query.",
	}, []string{
		queryLabel,
	})
)

func instrumentRoute(route string) {
	routedMsgs.
		With(prometheus.Labels{routeLabel: route}).
		Inc()
}

func instrumentSubQueries(n int) {
	subQueries.Add(float64(n))
}

func instrumentBulkGroups(n int) {
	bulkGroups.Add(float64(n))
}

func instrumentAggregationStarted() {
	activeAggregations.Inc()
}

func instrumentAggregationDone() {
	activeAggregations.Dec()
}

func instrumentQueryTimeout() {
	queryTimeouts.Inc()
}

func instrumentProtocolViolation(violation string) {
	protocolViolations.
		With(prometheus.Labels{violationLabel: violation}).
		Inc()
}

func instrumentQueryLatency(query string, d time.Duration) {
	queryLatency.
		With(prometheus.Labels{queryLabel: query}).
		Observe(d.Seconds())
}
