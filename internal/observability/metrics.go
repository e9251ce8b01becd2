// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the relay.
type Metrics struct {
	// Client metrics
	ClientsActive prometheus.Gauge
	ClientsTotal  prometheus.Counter
	MessagesSent  prometheus.Counter

	// Upstream metrics
	UpstreamConnects prometheus.Counter
	EventsNormalized prometheus.Counter
	RawPassthrough   prometheus.Counter

	// Hub metrics
	SubscriberLagDrops prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "pumpfun_relay"
	}

	return &Metrics{
		ClientsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "clients",
			Name:      "active",
			Help:      "Current number of connected WebSocket clients",
		}),
		ClientsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "clients",
			Name:      "accepted_total",
			Help:      "Total number of accepted WebSocket clients",
		}),
		MessagesSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "clients",
			Name:      "messages_sent_total",
			Help:      "Total number of messages sent to clients",
		}),
		UpstreamConnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "connects_total",
			Help:      "Total number of established upstream connections",
		}),
		EventsNormalized: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "events_normalized_total",
			Help:      "Total number of frames normalized into token events",
		}),
		RawPassthrough: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "raw_passthrough_total",
			Help:      "Total number of frames relayed verbatim",
		}),
		SubscriberLagDrops: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "lag_drops_total",
			Help:      "Total number of messages dropped from lagging subscriber buffers",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordClientConnected increments the client gauges on accept.
func RecordClientConnected() {
	DefaultMetrics.ClientsActive.Inc()
	DefaultMetrics.ClientsTotal.Inc()
}

// RecordClientDisconnected decrements the active client gauge.
func RecordClientDisconnected() {
	DefaultMetrics.ClientsActive.Dec()
}

// RecordMessageSent increments the messages sent counter.
func RecordMessageSent() {
	DefaultMetrics.MessagesSent.Inc()
}

// RecordUpstreamConnect increments the upstream connects counter.
func RecordUpstreamConnect() {
	DefaultMetrics.UpstreamConnects.Inc()
}

// RecordEventNormalized increments the events normalized counter.
func RecordEventNormalized() {
	DefaultMetrics.EventsNormalized.Inc()
}

// RecordRawPassthrough increments the raw passthrough counter.
func RecordRawPassthrough() {
	DefaultMetrics.RawPassthrough.Inc()
}

// RecordLagDrop increments the subscriber lag drop counter.
func RecordLagDrop() {
	DefaultMetrics.SubscriberLagDrops.Inc()
}
