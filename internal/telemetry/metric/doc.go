// Package metric provides Prometheus metrics for KernelGate.
//
//   - prometheus.go: metric registry, recording helpers and HTTP handler
//   - collector.go: collector that samples live registry state at scrape time
//
// Metrics are exposed at /metrics in Prometheus format. Every recording
// method is safe to call on a nil *Registry, which records nothing.
package metric
