// Package metrics provides Prometheus metrics for logalert.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "logalert"
)

// Pipeline metrics
var (
	// LinesProcessed counts log lines fed through the engine.
	LinesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "lines_processed_total",
			Help:      "Total log lines evaluated by the alert engine",
		},
	)

	// EventsEmitted counts admitted alert events by kind.
	EventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "events_emitted_total",
			Help:      "Total alert events admitted past suppression",
		},
		[]string{"kind"},
	)

	// EventsSuppressed counts events dropped by the cooldown.
	EventsSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "events_suppressed_total",
			Help:      "Total alert events suppressed by the cooldown window",
		},
	)

	// EventsDropped counts events lost to a full delivery channel.
	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "events_dropped_total",
			Help:      "Total admitted events dropped because the delivery channel was full",
		},
	)

	// HeartbeatsMissing tracks how many heartbeat rules are currently missing.
	HeartbeatsMissing = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "heartbeats_missing",
			Help:      "Number of heartbeat rules currently in the missing state",
		},
	)
)

// Notification metrics
var (
	// NotificationsSent counts successful notification deliveries by channel.
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "sent_total",
			Help:      "Total notifications delivered",
		},
		[]string{"channel"},
	)

	// NotificationFailures counts failed notification deliveries by channel.
	NotificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "failures_total",
			Help:      "Total notification delivery failures",
		},
		[]string{"channel"},
	)

	// NotificationsRateLimited counts notifications dropped by the global valve.
	NotificationsRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "rate_limited_total",
			Help:      "Total notifications dropped by the global rate limiter",
		},
	)
)

// Source metrics
var (
	// SourceLines counts lines read from the log source by origin.
	SourceLines = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "lines_total",
			Help:      "Total lines read from log sources",
		},
		[]string{"origin"},
	)

	// SourceRestarts counts restarts of the journal reader process.
	SourceRestarts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "restarts_total",
			Help:      "Total restarts of the journal follower process",
		},
	)
)
