package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CallbackMetrics records gateway callback processing outcomes.
type CallbackMetrics struct {
	duration *prometheus.HistogramVec
	outcomes *prometheus.CounterVec
}

// NewCallbackMetrics registers the callback metrics on the provided registerer.
func NewCallbackMetrics(reg prometheus.Registerer) *CallbackMetrics {
	if reg == nil {
		return &CallbackMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paymob_callback_duration_seconds",
		Help:    "Duration of Paymob callback handling in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"channel"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "paymob_callbacks_total",
		Help: "Paymob callbacks by channel and outcome.",
	}, []string{"channel", "outcome"})
	reg.MustRegister(duration, outcomes)
	return &CallbackMetrics{
		duration: duration,
		outcomes: outcomes,
	}
}

// ObserveDuration records handling time for the named channel.
func (c *CallbackMetrics) ObserveDuration(channel string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(channel)).Observe(duration.Seconds())
}

// IncOutcome increments the outcome counter for the named channel.
func (c *CallbackMetrics) IncOutcome(channel, outcome string) {
	if c == nil || c.outcomes == nil {
		return
	}
	c.outcomes.WithLabelValues(normalizeLabel(channel), normalizeLabel(outcome)).Inc()
}

// GatewayMetrics records outbound Paymob API call outcomes.
type GatewayMetrics struct {
	duration *prometheus.HistogramVec
	calls    *prometheus.CounterVec
}

// NewGatewayMetrics registers the gateway metrics on the provided registerer.
func NewGatewayMetrics(reg prometheus.Registerer) *GatewayMetrics {
	if reg == nil {
		return &GatewayMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paymob_gateway_duration_seconds",
		Help:    "Duration of outbound Paymob API calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"call"})
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "paymob_gateway_requests_total",
		Help: "Outbound Paymob API calls by endpoint and outcome.",
	}, []string{"call", "outcome"})
	reg.MustRegister(duration, calls)
	return &GatewayMetrics{
		duration: duration,
		calls:    calls,
	}
}

// ObserveCall records the duration and outcome for the named API call.
func (g *GatewayMetrics) ObserveCall(call, outcome string, duration time.Duration) {
	if g == nil || g.calls == nil {
		return
	}
	call = normalizeLabel(call)
	g.duration.WithLabelValues(call).Observe(duration.Seconds())
	g.calls.WithLabelValues(call, normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
