package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Booking metrics
	BookingsTotal           *prometheus.CounterVec
	SerialAllocationLatency prometheus.Histogram

	// Verification metrics
	VerificationsTotal *prometheus.CounterVec

	// Live queue metrics
	LiveQueueEvents      *prometheus.CounterVec
	LiveQueueSubscribers prometheus.Gauge
	LiveQueueDropped     prometheus.Counter

	// Retrieval metrics
	OTPRequestsTotal *prometheus.CounterVec

	// Retention metrics
	RetentionDeleted *prometheus.CounterVec
	RetentionRuns    *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestsTotal   *prometheus.CounterVec
}

// NewMetrics creates all application metrics and registers them on reg.
// A nil reg uses the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		BookingsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Booking attempts by outcome and the stage they ended in",
		}, []string{"outcome", "stage"}),
		SerialAllocationLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "serial_allocation_duration_seconds",
			Help:      "Time spent in the atomic serial allocation",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		VerificationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "verification",
			Name:      "attempts_total",
			Help:      "Ticket verifications by outcome",
		}, []string{"outcome"}),
		LiveQueueEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live_queue",
			Name:      "events_total",
			Help:      "Live queue events by direction and status",
		}, []string{"direction", "status"}),
		LiveQueueSubscribers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "live_queue",
			Name:      "subscribers",
			Help:      "Connections currently subscribed to a queue channel",
		}),
		LiveQueueDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live_queue",
			Name:      "dropped_messages_total",
			Help:      "Messages dropped because a client buffer was full",
		}),
		OTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "requests_total",
			Help:      "OTP and ticket retrieval requests by kind and outcome",
		}, []string{"kind", "outcome"}),
		RetentionDeleted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "deleted_total",
			Help:      "Rows removed by the retention sweep",
		}, []string{"entity"}),
		RetentionRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "runs_total",
			Help:      "Retention sweeps by status",
		}, []string{"status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
	}
}

// NewNop returns metrics bound to a throwaway registry.
func NewNop() *Metrics {
	return NewMetrics("test", prometheus.NewRegistry())
}
