package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lumastudio/dataplane/v1/observability"
)

// ObserveOperation records one operation reported by a component. Executor
// operations also feed the retry and row counters.
func (m *Metrics) ObserveOperation(ctx observability.OperationContext) {
	if m == nil {
		return
	}

	m.operationsTotal.WithLabelValues(ctx.Component, ctx.Operation, observability.Outcome(ctx.Error)).Inc()
	m.operationDuration.WithLabelValues(ctx.Component, ctx.Operation).Observe(ctx.Duration.Seconds())

	if ctx.Component != "executor" {
		return
	}
	if retries, ok := ctx.Metadata["retries"].(int); ok && retries > 0 {
		m.sqlRetriesTotal.WithLabelValues(ctx.Operation).Add(float64(retries))
	}
	if ctx.Size > 0 {
		m.rowsTotal.WithLabelValues(ctx.Operation).Add(float64(ctx.Size))
	}
}

// CreateCounter creates a new CounterVec and registers it.
func (m *Metrics) CreateCounter(name, help string, labels []string) *prometheus.CounterVec {
	counter := m.counterVec(name, help, labels)
	m.registerer.MustRegister(counter)
	return counter
}

// CreateHistogram creates a new HistogramVec and registers it.
func (m *Metrics) CreateHistogram(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	hist := m.histogramVec(name, help, labels, buckets)
	m.registerer.MustRegister(hist)
	return hist
}

// CreateGauge creates a new GaugeVec and registers it.
func (m *Metrics) CreateGauge(name, help string, labels []string) *prometheus.GaugeVec {
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: m.namespace, Name: name, Help: help}, labels)
	m.registerer.MustRegister(gauge)
	return gauge
}

func (m *Metrics) counterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: m.namespace, Name: name, Help: help}, labels)
}

func (m *Metrics) histogramVec(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: m.namespace, Name: name, Help: help, Buckets: buckets}, labels)
}
