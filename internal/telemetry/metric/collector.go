package metric

import "github.com/prometheus/client_golang/prometheus"

// StatsSource reports live session state.
type StatsSource interface {
	ActiveSessions() int
	InFlightEvaluations() int64
}

// Collector samples a StatsSource at scrape time.
type Collector struct {
	source StatsSource

	active   *prometheus.Desc
	inFlight *prometheus.Desc
}

// NewCollector creates a collector for source.
func NewCollector(source StatsSource) *Collector {
	return &Collector{
		source: source,
		active: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "sessions", "active"),
			"Live sessions in the registry.",
			nil, nil,
		),
		inFlight: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "kernel", "evaluations_in_flight"),
			"Evaluations currently running.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.active
	ch <- c.inFlight
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, float64(c.source.ActiveSessions()))
	ch <- prometheus.MustNewConstMetric(c.inFlight, prometheus.GaugeValue, float64(c.source.InFlightEvaluations()))
}
