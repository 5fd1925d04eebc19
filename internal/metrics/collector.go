// Package metrics collects Prometheus metrics for API registration, tool
// calls, the local cache and the HTTP bridge.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "ocp"

// Tool call outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeHTTPError = "http_error"
	OutcomeError     = "error"
	OutcomeInvalid   = "invalid"
)

// Collector holds the metric vectors. All methods are safe on a nil
// *Collector, which records nothing.
type Collector struct {
	registrations    *prometheus.CounterVec
	toolCalls        *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec
	cacheLookups     *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector registers the metrics with reg, or with the default
// registry when reg is nil.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{logger: logger.With(zap.String("component", "metrics"))}

	c.registrations = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_registrations_total",
			Help:      "API registrations by resolution source",
		},
		[]string{"source"}, // memory, cache, registry, openapi, failed
	)

	c.toolCalls = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations by outcome",
		},
		[]string{"api", "tool", "outcome"},
	)

	c.toolCallDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Tool invocation latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"api"},
	)

	c.cacheLookups = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Local API cache lookups by result",
		},
		[]string{"result"}, // hit, miss
	)

	c.httpRequests = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP bridge requests",
		},
		[]string{"method", "route", "status"},
	)

	c.httpDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP bridge request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	c.logger.Debug("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// RecordRegistration counts one registration resolved from source.
func (c *Collector) RecordRegistration(source string) {
	if c == nil {
		return
	}
	c.registrations.WithLabelValues(source).Inc()
}

// RecordToolCall counts one tool invocation and, for calls that reached the
// network, its latency.
func (c *Collector) RecordToolCall(api, tool, outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.toolCalls.WithLabelValues(api, tool, outcome).Inc()
	if outcome != OutcomeInvalid {
		c.toolCallDuration.WithLabelValues(api).Observe(duration.Seconds())
	}
}

// RecordCacheLookup counts a local cache hit or miss.
func (c *Collector) RecordCacheLookup(hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(result).Inc()
}

// RecordHTTPRequest counts one HTTP bridge request.
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
