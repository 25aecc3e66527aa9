// Package metrics collects and exposes Prometheus metrics for the stores and
// the HTTP view layer.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records store operations, notifications and HTTP traffic.
type Collector struct {
	operations      *prometheus.CounterVec
	operationTiming *prometheus.HistogramVec
	notifications   *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	eventClients    prometheus.Gauge
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timecapsule_store_operations_total",
			Help: "Store operations by store, operation and outcome.",
		}, []string{"store", "operation", "outcome"}),
		operationTiming: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "timecapsule_store_operation_duration_seconds",
			Help:    "Store operation latency including the simulated round trip.",
			Buckets: prometheus.DefBuckets,
		}, []string{"store", "operation"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timecapsule_notifications_total",
			Help: "Notifications emitted to the view layer by kind.",
		}, []string{"kind"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timecapsule_http_responses_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
		eventClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "timecapsule_event_clients",
			Help: "Connected event stream clients.",
		}),
	}

	reg.MustRegister(
		c.operations,
		c.operationTiming,
		c.notifications,
		c.httpStatus,
		c.eventClients,
	)

	return c
}

// ObserveOperation records one store operation. An empty kind counts as success.
func (c *Collector) ObserveOperation(store, operation, kind string, duration time.Duration) {
	outcome := kind
	if outcome == "" {
		outcome = "success"
	}
	c.operations.WithLabelValues(store, operation, outcome).Inc()
	c.operationTiming.WithLabelValues(store, operation).Observe(duration.Seconds())
}

// RecordNotification counts a notification of the given kind.
func (c *Collector) RecordNotification(kind string) {
	c.notifications.WithLabelValues(kind).Inc()
}

// RecordHTTPStatus counts an HTTP response.
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// SetEventClients reports the number of connected event stream clients.
func (c *Collector) SetEventClients(n int) {
	c.eventClients.Set(float64(n))
}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
