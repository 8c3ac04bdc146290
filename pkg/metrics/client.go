package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ClientMetrics records outcomes for outbound backend calls.
type ClientMetrics struct {
	duration *prometheus.HistogramVec
	requests *prometheus.CounterVec
	refresh  *prometheus.CounterVec
	retries  prometheus.Counter
}

// NewClientMetrics registers the outbound request metrics on the provided registerer.
func NewClientMetrics(reg prometheus.Registerer) *ClientMetrics {
	if reg == nil {
		return &ClientMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_request_duration_seconds",
		Help:    "Duration of backend requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_requests_total",
		Help: "Backend requests by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})
	refresh := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_token_refresh_total",
		Help: "Token refresh attempts by outcome.",
	}, []string{"outcome"})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storefront_request_retries_total",
		Help: "Requests re-issued after a token refresh.",
	})
	reg.MustRegister(duration, requests, refresh, retries)
	return &ClientMetrics{
		duration: duration,
		requests: requests,
		refresh:  refresh,
		retries:  retries,
	}
}

// ObserveRequest records one backend request.
func (c *ClientMetrics) ObserveRequest(endpoint, outcome string, elapsed time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(endpoint)).Observe(elapsed.Seconds())
	c.requests.WithLabelValues(normalizeLabel(endpoint), normalizeLabel(outcome)).Inc()
}

// IncRefresh counts one token refresh attempt.
func (c *ClientMetrics) IncRefresh(outcome string) {
	if c == nil || c.refresh == nil {
		return
	}
	c.refresh.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncRetry counts one post-refresh retry.
func (c *ClientMetrics) IncRetry() {
	if c == nil || c.retries == nil {
		return
	}
	c.retries.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
