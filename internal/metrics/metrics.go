// Package metrics exposes Prometheus instruments for the API, the graph
// manager and the batch job tracker.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every instrument. A nil *Collector is valid and records nothing.
type Collector struct {
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	referenceWrites *prometheus.CounterVec
	nodesDeleted    *prometheus.CounterVec
	jobTransitions  *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	runnerErrors    *prometheus.CounterVec
	jobsActive      prometheus.Gauge
}

// NewCollector creates the instruments and registers them on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_http_requests_total",
			Help: "Total number of HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "engine_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		referenceWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_node_reference_writes_total",
			Help: "Neighbour documents rewritten to keep parent/child references symmetric",
		}, []string{"side", "op"}),
		nodesDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_nodes_deleted_total",
			Help: "Nodes removed, by collection and mode",
		}, []string{"collection", "mode"}),
		jobTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_batch_job_transitions_total",
			Help: "Batch job status transitions by type and target status",
		}, []string{"type", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "engine_batch_job_duration_seconds",
			Help:    "Wall time of batch job executions",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"type", "status"}),
		runnerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_batch_job_runner_errors_total",
			Help: "Errors returned by the job runner backend",
		}, []string{"op"}),
		jobsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "engine_batch_jobs_active",
			Help: "Active batch jobs seen by the last status sync",
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.referenceWrites,
		c.nodesDeleted,
		c.jobTransitions,
		c.jobDuration,
		c.runnerErrors,
		c.jobsActive,
	)
	return c
}

// RecordHTTP records one served request.
func (c *Collector) RecordHTTP(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordReferenceWrite counts one neighbour rewrite. side is "parent" or "child".
func (c *Collector) RecordReferenceWrite(side, op string) {
	if c == nil {
		return
	}
	c.referenceWrites.WithLabelValues(side, op).Inc()
}

// RecordNodeDeleted counts a removed node.
func (c *Collector) RecordNodeDeleted(collection string, soft bool) {
	if c == nil {
		return
	}
	mode := "hard"
	if soft {
		mode = "soft"
	}
	c.nodesDeleted.WithLabelValues(collection, mode).Inc()
}

// RecordJobTransition counts a batch job entering status.
func (c *Collector) RecordJobTransition(jobType, status string) {
	if c == nil {
		return
	}
	c.jobTransitions.WithLabelValues(jobType, status).Inc()
}

// RecordJobDuration observes how long an execution ran before reaching status.
func (c *Collector) RecordJobDuration(jobType, status string, d time.Duration) {
	if c == nil {
		return
	}
	c.jobDuration.WithLabelValues(jobType, status).Observe(d.Seconds())
}

// RecordRunnerError counts a failed runner call. op is create, delete or state.
func (c *Collector) RecordRunnerError(op string) {
	if c == nil {
		return
	}
	c.runnerErrors.WithLabelValues(op).Inc()
}

// SetActiveJobs sets the active job gauge.
func (c *Collector) SetActiveJobs(n int) {
	if c == nil {
		return
	}
	c.jobsActive.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
