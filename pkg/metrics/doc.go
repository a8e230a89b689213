/*
Package metrics provides Prometheus metrics collection and exposition for the
bus and pool containers.

Metrics are registered at package init against the default Prometheus registry
and exposed over HTTP via Handler for scraping.

# Categories

Bus metrics track publish/dispatch volume and subscriber counts:

  - orbit_events_published_total{topic}
  - orbit_events_dispatched_total{topic,pool}
  - orbit_subscribers_total{topic}
  - orbit_cross_pool_put_duration_seconds

Pool metrics track per-pool lifecycle and queue health:

  - orbit_pool_services_running{pool}
  - orbit_pool_services_errored{pool}
  - orbit_pool_inbound_queue_depth{pool}
  - orbit_pool_dispatch_errors_total{pool}
  - orbit_service_start_duration_seconds{pool}
  - orbit_service_stop_duration_seconds{pool}

# Usage

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

Timer is a small helper for recording durations against a histogram:

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.ServiceStartDuration, poolKey)
*/
package metrics
