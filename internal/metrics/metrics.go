package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	commandRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "botpanel",
			Subsystem: "command",
			Name:      "requests_total",
			Help:      "Bot commands issued, by outcome (success, failure, transport_error).",
		}, []string{"command", "outcome"},
	)
	commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "botpanel",
			Subsystem: "command",
			Name:      "duration_seconds",
			Help:      "Round trip time of bot commands.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"},
	)
	statsPolls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "botpanel",
			Subsystem: "stats",
			Name:      "polls_total",
			Help:      "Stats snapshot fetches, by outcome (ok, error).",
		}, []string{"outcome"},
	)
	pushEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "botpanel",
			Subsystem: "push",
			Name:      "events_total",
			Help:      "Push channel events received, by event name.",
		}, []string{"event"},
	)
	logEvictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "botpanel",
			Subsystem: "log",
			Name:      "evictions_total",
			Help:      "Log entries dropped because the log reached capacity.",
		},
	)
	alertsShown = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "botpanel",
			Subsystem: "alert",
			Name:      "shown_total",
			Help:      "Alerts displayed, by severity.",
		}, []string{"severity"},
	)
	botStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "botpanel",
			Subsystem: "bot",
			Name:      "status",
			Help:      "Current bot run status as seen by the dashboard (1 = active state, 0 = inactive).",
		}, []string{"status"},
	)
)

// knownStatuses are zeroed when the status gauge moves.
var knownStatuses = []string{"running", "stopped", "error", "unknown"}

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{commandRequests, commandDuration, statsPolls, pushEvents, logEvictions, alertsShown, botStatus}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func ObserveCommand(command, outcome string, seconds float64) {
	if regOK.Load() {
		commandRequests.WithLabelValues(command, outcome).Inc()
		commandDuration.WithLabelValues(command).Observe(seconds)
	}
}

func IncStatsPoll(outcome string) {
	if regOK.Load() {
		statsPolls.WithLabelValues(outcome).Inc()
	}
}

func IncPushEvent(event string) {
	if regOK.Load() {
		pushEvents.WithLabelValues(event).Inc()
	}
}

func IncLogEviction() {
	if regOK.Load() {
		logEvictions.Inc()
	}
}

func IncAlert(severity string) {
	if regOK.Load() {
		alertsShown.WithLabelValues(severity).Inc()
	}
}

// SetBotStatus marks status as the active state and every other known state inactive.
func SetBotStatus(status string) {
	if !regOK.Load() {
		return
	}
	for _, s := range knownStatuses {
		var value float64
		if s == status {
			value = 1
		}
		botStatus.WithLabelValues(s).Set(value)
	}
}
