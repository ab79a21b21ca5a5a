// Package prometheus exposes the service's operational metrics. Metrics are
// registered on the default registry and served on GET /metrics.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal counts per-calendar reconciliation runs by outcome
	// ("ok", "auth", "feed", "dispatch", "metadata", "blob", "error").
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calsync_runs_total",
		Help: "Per-calendar reconciliation runs, labelled by calendar and outcome.",
	}, []string{"calendar", "outcome"})

	// NotificationsSent counts dispatched push notifications.
	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calsync_notifications_sent_total",
		Help: "Push notifications dispatched, labelled by calendar.",
	}, []string{"calendar"})

	// EventsBuilt tracks the size of the most recently built document.
	EventsBuilt = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "calsync_events_built",
		Help: "Events in the most recently built calendar document.",
	}, []string{"calendar"})

	// ActivitiesSkipped counts activities dropped for malformed data.
	ActivitiesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calsync_activities_skipped_total",
		Help: "Activities skipped during calendar building, labelled by calendar.",
	}, []string{"calendar"})

	// FeedFetchDuration observes activity feed latency.
	FeedFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "calsync_feed_fetch_duration_seconds",
		Help:    "Activity feed fetch latency in seconds.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	// RunDuration observes full per-org run latency.
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "calsync_run_duration_seconds",
		Help:    "End-to-end reconciliation run latency in seconds.",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})
)
