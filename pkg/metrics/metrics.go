// Package metrics exposes Prometheus collectors for reward disbursement.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	rewards "github.com/questlabs/rewards-go"
)

const namespace = "rewards"

// Metrics owns a private registry and the service collectors.
type Metrics struct {
	Registry *prometheus.Registry

	disbursements       *prometheus.CounterVec
	disbursementLatency *prometheus.HistogramVec
	confirmations       *prometheus.CounterVec
	replayEvictions     prometheus.Counter
	httpInFlight        prometheus.Gauge
	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		disbursements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "disbursements",
				Name:      "total",
				Help:      "Reward claims handled, by outcome and error code.",
			},
			[]string{"outcome", "code"},
		),
		disbursementLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "disbursements",
				Name:      "duration_seconds",
				Help:      "Time from claim receipt to response.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
			},
			[]string{"outcome"},
		),
		confirmations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "confirmations",
				Name:      "total",
				Help:      "Background confirmations finished, by outcome.",
			},
			[]string{"outcome"},
		),
		replayEvictions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "replay",
				Name:      "evictions_total",
				Help:      "Expired claim nonces removed by the sweeper.",
			},
		),
		httpInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "inflight_requests",
				Help:      "Current number of in-flight HTTP requests.",
			},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled.",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
			},
			[]string{"method", "path"},
		),
	}

	m.Registry.MustRegister(
		m.disbursements,
		m.disbursementLatency,
		m.confirmations,
		m.replayEvictions,
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

// Handler returns an HTTP handler exposing the registered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Instrument counts every claim outcome and background confirmation of d.
func (m *Metrics) Instrument(d *rewards.Disburser) {
	d.OnAfterDisburse(func(c rewards.DisburseResultContext) error {
		m.RecordDisbursement(string(c.Result.Outcome), "", c.Duration)
		return nil
	})
	d.OnDisburseFailure(func(c rewards.DisburseFailureContext) error {
		m.RecordDisbursement("failed", c.Error.Code, c.Duration)
		return nil
	})
	d.OnConfirmation(func(c rewards.ConfirmationContext) {
		outcome := string(c.Outcome)
		if c.Error != nil {
			outcome = c.Error.Code
		}
		m.confirmations.WithLabelValues(outcome).Inc()
	})
}

// RecordDisbursement records one handled claim.
func (m *Metrics) RecordDisbursement(outcome, code string, duration time.Duration) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	m.disbursements.WithLabelValues(outcome, code).Inc()
	m.disbursementLatency.WithLabelValues(outcome).Observe(duration.Seconds())
}

// AddReplayEvictions records nonces removed by one sweep.
func (m *Metrics) AddReplayEvictions(n int) {
	if n > 0 {
		m.replayEvictions.Add(float64(n))
	}
}

// Middleware records request counts and latency. The metrics endpoint
// itself is not counted.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := strings.ToUpper(c.Request.Method)
		m.httpRequests.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
