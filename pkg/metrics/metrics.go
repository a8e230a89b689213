package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Bus metrics
	EventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbit_events_published_total",
			Help: "Total number of events published by topic",
		},
		[]string{"topic"},
	)

	EventsDispatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbit_events_dispatched_total",
			Help: "Total number of handler invocations by topic and pool",
		},
		[]string{"topic", "pool"},
	)

	SubscribersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orbit_subscribers_total",
			Help: "Current number of registered handlers by topic",
		},
		[]string{"topic"},
	)

	CrossPoolPutDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orbit_cross_pool_put_duration_seconds",
			Help:    "Time spent handing an event off to another pool's scheduler",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Pool metrics
	PoolServicesRunning = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orbit_pool_services_running",
			Help: "Number of services currently in the running state, by pool",
		},
		[]string{"pool"},
	)

	PoolServicesErrored = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orbit_pool_services_errored",
			Help: "Number of services currently in the error state, by pool",
		},
		[]string{"pool"},
	)

	PoolInboundQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orbit_pool_inbound_queue_depth",
			Help: "Pending events in a pool's inbound queue",
		},
		[]string{"pool"},
	)

	PoolDispatchErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbit_pool_dispatch_errors_total",
			Help: "Total number of dispatch loop failures by pool",
		},
		[]string{"pool"},
	)

	ServiceStartDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orbit_service_start_duration_seconds",
			Help:    "Time spent in a service's start() call, by pool",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"pool"},
	)

	ServiceStopDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orbit_service_stop_duration_seconds",
			Help:    "Time spent in a service's stop() call, by pool",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"pool"},
	)
)

func init() {
	prometheus.MustRegister(EventsPublishedTotal)
	prometheus.MustRegister(EventsDispatchedTotal)
	prometheus.MustRegister(SubscribersTotal)
	prometheus.MustRegister(CrossPoolPutDuration)

	prometheus.MustRegister(PoolServicesRunning)
	prometheus.MustRegister(PoolServicesErrored)
	prometheus.MustRegister(PoolInboundQueueDepth)
	prometheus.MustRegister(PoolDispatchErrorsTotal)
	prometheus.MustRegister(ServiceStartDuration)
	prometheus.MustRegister(ServiceStopDuration)
}

// Handler returns the Prometheus HTTP handler for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
