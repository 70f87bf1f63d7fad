package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lumastudio/dataplane/v1/observability"
)

// MetricsCollector is implemented by *Metrics. Besides the observer hook it
// exposes factories for component-specific metrics.
type MetricsCollector interface {
	observability.Observer

	// CreateCounter creates and registers a CounterVec.
	CreateCounter(name, help string, labels []string) *prometheus.CounterVec

	// CreateHistogram creates and registers a HistogramVec.
	CreateHistogram(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec

	// CreateGauge creates and registers a GaugeVec.
	CreateGauge(name, help string, labels []string) *prometheus.GaugeVec
}
