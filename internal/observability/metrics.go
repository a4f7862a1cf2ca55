package observability

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the service. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	FlowTransitions  *prometheus.CounterVec
	Registrations    *prometheus.CounterVec
	SessionsActivate *prometheus.CounterVec
}

// NewMetrics returns a new set of Prometheus metrics on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"code", "method", "path"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of latencies for HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"code", "method", "path"},
		),
		FlowTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signup_flow_transitions_total",
				Help: "State transitions of sign-up and sso flows.",
			},
			[]string{"flow", "to"},
		),
		Registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signup_user_registrations_total",
				Help: "User registration calls by outcome.",
			},
			[]string{"flow", "outcome"},
		),
		SessionsActivate: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signup_session_activations_total",
				Help: "Session activations by outcome.",
			},
			[]string{"flow", "outcome"},
		),
	}
	m.registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.FlowTransitions,
		m.Registrations,
		m.SessionsActivate,
	)
	return m
}

// Transition counts a flow reaching state to.
func (m *Metrics) Transition(flow, to string) {
	if m == nil {
		return
	}
	m.FlowTransitions.WithLabelValues(flow, to).Inc()
}

// Registration counts a registration call outcome.
func (m *Metrics) Registration(flow string, err error) {
	if m == nil {
		return
	}
	m.Registrations.WithLabelValues(flow, outcome(err)).Inc()
}

// Activation counts a session activation outcome.
func (m *Metrics) Activation(flow string, err error) {
	if m == nil {
		return
	}
	m.SessionsActivate.WithLabelValues(flow, outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Middleware returns a Fiber middleware that records request metrics.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := c.Route().Path
		statusCode := strconv.Itoa(c.Response().StatusCode())
		m.RequestsTotal.WithLabelValues(statusCode, c.Method(), path).Inc()
		m.RequestDuration.WithLabelValues(statusCode, c.Method(), path).Observe(time.Since(start).Seconds())
		return err
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
