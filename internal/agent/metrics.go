package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var repliesGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "inboxagent_replies_total",
	Help: "Replies generated, by platform and outcome",
}, []string{"platform", "outcome"})

var replyConfidence = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "inboxagent_reply_confidence",
	Help:    "Confidence of generated replies",
	Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
})

var repliesDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "inboxagent_replies_delivered_total",
	Help: "Delivery attempts of generated replies, by platform and result",
}, []string{"platform", "result"})

var configErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "inboxagent_config_errors_total",
	Help: "Reply requests rejected because the configured rules are invalid",
})
