// Package metrics owns the Prometheus registry and collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "univoice"

// Metrics bundles the process collectors behind one registry.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	inFlight      prometheus.Gauge
	rewardsIssued *prometheus.CounterVec
	claimsTotal   *prometheus.CounterVec
	checkpointDur prometheus.Histogram
}

// New builds a Metrics instance with a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "Requests currently being served.",
		}),
		rewardsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rewards_issued_total",
			Help:      "Reward tokens recorded by kind.",
		}, []string{"kind"}),
		claimsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claims_total",
			Help:      "Claim attempts by outcome.",
		}, []string{"outcome"}),
		checkpointDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "arena_checkpoint_duration_seconds",
			Help:      "Time spent compacting region logs.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}),
	}

	m.registry.MustRegister(m.httpRequests, m.httpDuration, m.inFlight,
		m.rewardsIssued, m.claimsTotal, m.checkpointDur)
	return m
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, route, status string, d time.Duration) {
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// IncrementInFlight marks a request started.
func (m *Metrics) IncrementInFlight() { m.inFlight.Inc() }

// DecrementInFlight marks a request finished.
func (m *Metrics) DecrementInFlight() { m.inFlight.Dec() }

// RecordRewardIssued counts one recorded reward.
func (m *Metrics) RecordRewardIssued(kind string) {
	m.rewardsIssued.WithLabelValues(kind).Inc()
}

// RecordClaim counts one claim attempt by outcome.
func (m *Metrics) RecordClaim(outcome string) {
	m.claimsTotal.WithLabelValues(outcome).Inc()
}

// ObserveCheckpoint records one checkpoint duration.
func (m *Metrics) ObserveCheckpoint(d time.Duration) {
	m.checkpointDur.Observe(d.Seconds())
}
