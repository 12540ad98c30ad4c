// Package metrics exposes Prometheus collectors for the scheduler.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records scheduler metrics.
type Collector struct {
	bookingOutcomes *prometheus.CounterVec
	skippedRecords  prometheus.Counter
	scanFallbacks   prometheus.Counter
	httpRequests    *prometheus.CounterVec
	httpLatency     *prometheus.HistogramVec
	gatherer        prometheus.Gatherer
}

// NewCollector creates the collectors and registers them with reg.
func NewCollector(reg *prometheus.Registry) *Collector {
	c := &Collector{
		bookingOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_booking_outcomes_total",
			Help: "Booking workflow results by operation and outcome.",
		}, []string{"operation", "outcome"}),
		skippedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_reservation_records_skipped_total",
			Help: "Stored reservation records dropped from snapshots because a time field was missing.",
		}),
		scanFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_conflict_scan_fallbacks_total",
			Help: "Conflict checks that fell back to a full scan because the range index was unavailable.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scheduler_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		gatherer: reg,
	}

	reg.MustRegister(
		c.bookingOutcomes,
		c.skippedRecords,
		c.scanFallbacks,
		c.httpRequests,
		c.httpLatency,
	)

	return c
}

// RecordBookingOutcome counts one booking workflow result.
func (c *Collector) RecordBookingOutcome(operation, outcome string) {
	c.bookingOutcomes.WithLabelValues(operation, outcome).Inc()
}

// RecordSkippedRecord counts a stored record dropped from a snapshot.
func (c *Collector) RecordSkippedRecord() {
	c.skippedRecords.Inc()
}

// RecordConflictScanFallback counts a conflict check served by a full scan.
func (c *Collector) RecordConflictScanFallback() {
	c.scanFallbacks.Inc()
}

// RecordHTTPRequest records one served request.
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(route).Observe(duration.Seconds())
}

// Handler serves the registered metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
