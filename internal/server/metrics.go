package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cloakmatch"

// Registry is the query responder's metrics registry, handed to the
// /metrics HTTP handler separately from the default global registry so
// tests can construct isolated servers without collector registration
// panics.
var Registry = prometheus.NewRegistry()

var (
	requestsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "Total query responder requests by route and outcome.",
		},
		[]string{"route", "status"},
	)

	requestDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "request_duration_seconds",
			Help:      "Query responder request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	reconcileTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dataset",
			Name:      "reconcile_total",
			Help:      "Total reconcile operations by dataset and outcome.",
		},
		[]string{"dataset", "outcome"},
	)
)
