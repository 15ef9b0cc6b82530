package perf

import (
	"expvar"
	"net/http"
	"sync"

	"github.com/encodeous/metric"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	DispatchLatency     = metric.NewHistogram("1m1s")
	ForwardedPerSecond  = metric.NewCounter("10s1s")
	DroppedPerSecond    = metric.NewCounter("10s1s")
	CommandsPerSecond   = metric.NewCounter("10s1s")
	LinkSendsPerSecond  = metric.NewCounter("10s1s")
	LinkRecvsPerSecond  = metric.NewCounter("10s1s")
	LinkBytesPerSecond  = metric.NewCounter("10s1s")
	RouteChangesPerHour = metric.NewCounter("1h1m")
)

var (
	registerOnce sync.Once

	packetsRouted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rani",
			Name:      "packets_routed_total",
			Help:      "Frames handled by the router, by packet kind.",
		},
		[]string{"kind"},
	)
	packetsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rani",
			Name:      "packets_dropped_total",
			Help:      "Frames discarded by the router, by drop reason.",
		},
		[]string{"reason"},
	)
	linkSends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rani",
			Name:      "link_sends_total",
			Help:      "Frame writes to links and the application.",
		},
		[]string{"link", "result"},
	)
	routeChanges = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rani",
			Name:      "route_changes_total",
			Help:      "Routing table entries added or improved.",
		},
	)
)

func init() {
	expvar.Publish("rani:Forwarded/s", ForwardedPerSecond)
	expvar.Publish("rani:Dropped/s", DroppedPerSecond)
	expvar.Publish("rani:Commands/s", CommandsPerSecond)
	expvar.Publish("rani:LinkSends/s", LinkSendsPerSecond)
	expvar.Publish("rani:LinkRecvs/s", LinkRecvsPerSecond)
	expvar.Publish("rani:LinkBytes/s", LinkBytesPerSecond)
	expvar.Publish("rani:RouteChanges/h", RouteChangesPerHour)
	expvar.Publish("rani:DispatchLatency (µs)", DispatchLatency)
}

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(packetsRouted, packetsDropped, linkSends, routeChanges)
	})
}

// Handler serves the expvar backed metric dashboard.
func Handler() http.Handler {
	return metric.Handler(metric.Exposed)
}

func RecordRouted(kind string) {
	RegisterMetrics()
	packetsRouted.WithLabelValues(kind).Inc()
	if kind == "command" {
		CommandsPerSecond.Add(1)
	} else {
		ForwardedPerSecond.Add(1)
	}
}

func RecordDrop(reason string) {
	RegisterMetrics()
	packetsDropped.WithLabelValues(reason).Inc()
	DroppedPerSecond.Add(1)
}

func RecordSend(link string, size int, err error) {
	RegisterMetrics()
	result := "ok"
	if err != nil {
		result = "error"
	} else {
		LinkSendsPerSecond.Add(1)
		LinkBytesPerSecond.Add(float64(size))
	}
	linkSends.WithLabelValues(link, result).Inc()
}

func RecordRecv() {
	LinkRecvsPerSecond.Add(1)
}

func RecordRouteChange() {
	RegisterMetrics()
	routeChanges.Inc()
	RouteChangesPerHour.Add(1)
}
