package metric

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kernelgate"

// Registry holds all application metrics.
type Registry struct {
	reg *prometheus.Registry

	// Session metrics
	SessionsCreated     prometheus.Counter
	SessionsClosed      prometheus.Counter
	SessionOpenFailures prometheus.Counter
	TokenRejections     *prometheus.CounterVec

	// Evaluation metrics
	Evaluations        *prometheus.CounterVec
	EvaluationDuration prometheus.Histogram

	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewRegistry creates a metrics registry with Go runtime and process
// collectors already registered.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "created_total",
			Help:      "Sessions successfully created.",
		}),
		SessionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "closed_total",
			Help:      "Sessions closed.",
		}),
		SessionOpenFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "open_failures_total",
			Help:      "Session creations that failed to start a kernel.",
		}),
		TokenRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "token_rejections_total",
			Help:      "Requests rejected before reaching a kernel.",
		}, []string{"op", "reason"}),

		Evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kernel",
			Name:      "evaluations_total",
			Help:      "Kernel evaluations by result.",
		}, []string{"result"}),
		EvaluationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "kernel",
			Name:      "evaluation_duration_seconds",
			Help:      "Kernel evaluation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 10),
		}),

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mcp",
			Name:      "requests_total",
			Help:      "MCP requests by transport, method and outcome.",
		}, []string{"transport", "method", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "mcp",
			Name:      "request_duration_seconds",
			Help:      "MCP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"transport", "method"}),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.SessionsCreated,
		r.SessionsClosed,
		r.SessionOpenFailures,
		r.TokenRejections,
		r.Evaluations,
		r.EvaluationDuration,
		r.RequestsTotal,
		r.RequestDuration,
	)
	return r
}

// Prometheus returns the underlying registry, for registering extra
// collectors and for tests.
func (r *Registry) Prometheus() *prometheus.Registry {
	return r.reg
}

// Register adds a collector. It is a no-op on a nil Registry.
func (r *Registry) Register(c prometheus.Collector) error {
	if r == nil {
		return nil
	}
	return r.reg.Register(c)
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// SessionCreated records a successful create.
func (r *Registry) SessionCreated() {
	if r == nil {
		return
	}
	r.SessionsCreated.Inc()
}

// SessionClosed records a successful close.
func (r *Registry) SessionClosed() {
	if r == nil {
		return
	}
	r.SessionsClosed.Inc()
}

// SessionOpenFailed records a create whose kernel failed to start.
func (r *Registry) SessionOpenFailed() {
	if r == nil {
		return
	}
	r.SessionOpenFailures.Inc()
}

// TokenRejected records a request rejected for reason (invalid_token or
// session_not_found) during op.
func (r *Registry) TokenRejected(op, reason string) {
	if r == nil {
		return
	}
	r.TokenRejections.WithLabelValues(op, reason).Inc()
}

// Evaluation records one kernel evaluation.
func (r *Registry) Evaluation(ok bool, d time.Duration) {
	if r == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	r.Evaluations.WithLabelValues(result).Inc()
	r.EvaluationDuration.Observe(d.Seconds())
}

// Request records one MCP request. status is "ok" or an error kind.
func (r *Registry) Request(transport, method, status string, d time.Duration) {
	if r == nil {
		return
	}
	r.RequestsTotal.WithLabelValues(transport, method, status).Inc()
	r.RequestDuration.WithLabelValues(transport, method).Observe(d.Seconds())
}

// StatusLabel renders an HTTP status for use as a label.
func StatusLabel(code int) string {
	return strconv.Itoa(code)
}
