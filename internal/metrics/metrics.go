// Package metrics provides Prometheus metrics for the health-check pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SweepsTotal counts completed health sweeps.
	SweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "statusninja_sweeps_total",
		Help: "Total number of health sweeps run.",
	})

	// ProbesTotal counts probes by classification (healthy/unhealthy/error).
	ProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statusninja_probes_total",
		Help: "Total number of endpoint probes, by classification.",
	}, []string{"classification"})

	// ProbeDuration observes probe round-trip time.
	ProbeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "statusninja_probe_duration_seconds",
		Help:    "Endpoint probe duration in seconds.",
		Buckets: prometheus.DefBuckets,
	})

	// NotificationsTotal counts dispatched notifications by outcome.
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statusninja_notifications_total",
		Help: "Total number of dispatched notifications, by outcome (sent/failed).",
	}, []string{"outcome"})
)
