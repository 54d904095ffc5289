package meta

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var graphRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "inboxagent_graph_requests_total",
	Help: "Graph API requests by operation and HTTP status (\"error\" for transport failures)",
}, []string{"op", "status"})

var graphDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "inboxagent_graph_request_duration_seconds",
	Help:    "Graph API request latency, retries included",
	Buckets: prometheus.DefBuckets,
}, []string{"op"})
