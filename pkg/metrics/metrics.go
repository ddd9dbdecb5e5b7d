package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result labels shared by the counters.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Metrics records cart and entry activity.
type Metrics struct {
	cartMutations    *prometheus.CounterVec
	cartDuration     *prometheus.HistogramVec
	entryValidations *prometheus.CounterVec
	jobRuns          *prometheus.CounterVec
	jobDuration      *prometheus.HistogramVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	outboxPublished  *prometheus.CounterVec
	outboxLatency    prometheus.Histogram
}

// New registers the domain metrics on the provided registerer. A nil
// registerer yields a no-op recorder.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Cart mutations by operation and result.",
	}, []string{"op", "result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_mutation_duration_seconds",
		Help:    "Duration of cart mutations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	validations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "entry_validations_total",
		Help: "Qualifying answer checks by outcome.",
	}, []string{"outcome"})
	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "housekeeping_job_runs_total",
		Help: "Housekeeping job runs by job and result.",
	}, []string{"job", "result"})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "housekeeping_job_duration_seconds",
		Help:    "Duration of housekeeping jobs in seconds.",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
	}, []string{"job"})
	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by method, route pattern and status code.",
	}, []string{"method", "route", "status"})
	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by method and route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
	outboxPublished := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_publish_total",
		Help: "Outbox publish attempts by event type and result.",
	}, []string{"event_type", "result"})
	outboxLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "outbox_publish_lag_seconds",
		Help:    "Time from an event being queued to its successful publish.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 1800},
	})
	reg.MustRegister(mutations, duration, validations, jobRuns, jobDuration, httpRequests, httpDuration, outboxPublished, outboxLatency)
	return &Metrics{
		cartMutations:    mutations,
		cartDuration:     duration,
		entryValidations: validations,
		jobRuns:          jobRuns,
		jobDuration:      jobDuration,
		httpRequests:     httpRequests,
		httpDuration:     httpDuration,
		outboxPublished:  outboxPublished,
		outboxLatency:    outboxLatency,
	}
}

// ObserveCartMutation counts one cart operation and records its latency.
func (m *Metrics) ObserveCartMutation(op, result string, d time.Duration) {
	if m == nil || m.cartMutations == nil {
		return
	}
	op = normalizeLabel(op)
	m.cartMutations.WithLabelValues(op, normalizeLabel(result)).Inc()
	m.cartDuration.WithLabelValues(op).Observe(d.Seconds())
}

// IncEntryValidation counts one answer check.
func (m *Metrics) IncEntryValidation(outcome string) {
	if m == nil || m.entryValidations == nil {
		return
	}
	m.entryValidations.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveJob counts one housekeeping run and records its latency.
func (m *Metrics) ObserveJob(job, result string, d time.Duration) {
	if m == nil || m.jobRuns == nil {
		return
	}
	job = normalizeLabel(job)
	m.jobRuns.WithLabelValues(job, normalizeLabel(result)).Inc()
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

// ObserveHTTP records one served request. route must be a pattern, never a
// raw path.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil || m.httpRequests == nil {
		return
	}
	route = normalizeLabel(route)
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveOutboxPublish counts one publish attempt. lag is only recorded for
// successful publishes.
func (m *Metrics) ObserveOutboxPublish(eventType, result string, lag time.Duration) {
	if m == nil || m.outboxPublished == nil {
		return
	}
	m.outboxPublished.WithLabelValues(normalizeLabel(eventType), normalizeLabel(result)).Inc()
	if result == ResultOK {
		m.outboxLatency.Observe(lag.Seconds())
	}
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
