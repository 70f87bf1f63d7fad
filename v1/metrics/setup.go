package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns an isolated Prometheus registry, the data plane collectors
// and the HTTP server exposing them.
type Metrics struct {
	// Server serves /metrics from Registry.
	Server *http.Server

	// Registry holds every collector of this process.
	Registry *prometheus.Registry

	namespace  string
	registerer prometheus.Registerer

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	sqlRetriesTotal   *prometheus.CounterVec
	rowsTotal         *prometheus.CounterVec
}

// NewMetrics builds the registry, registers the operation collectors and
// wraps every metric with a constant service label.
//
//	m := metrics.NewMetrics(metrics.Config{Address: ":9090", ServiceName: "dataplane"})
//	exec := executor.NewExecutor(channel, cfg, log).WithObserver(m)
func NewMetrics(cfg Config) *Metrics {
	if cfg.Address == "" {
		cfg.Address = DefaultMetricsAddress
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultNamespace
	}
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}

	registry := prometheus.NewRegistry()
	wrapped := prometheus.WrapRegistererWith(prometheus.Labels{"service": cfg.ServiceName}, registry)

	m := &Metrics{
		Registry:   registry,
		namespace:  cfg.Namespace,
		registerer: wrapped,
	}

	m.operationsTotal = m.counterVec("operations_total", "Operations performed by data plane components", []string{"component", "operation", "outcome"})
	m.operationDuration = m.histogramVec("operation_duration_seconds", "Duration of data plane operations in seconds", []string{"component", "operation"}, prometheus.DefBuckets)
	m.sqlRetriesTotal = m.counterVec("sql_retries_total", "Statement retries after transient store failures", []string{"operation"})
	m.rowsTotal = m.counterVec("rows_total", "Rows returned or affected by statements", []string{"operation"})

	wrapped.MustRegister(m.operationsTotal, m.operationDuration, m.sqlRetriesTotal, m.rowsTotal)

	if cfg.EnableDefaultCollectors {
		wrapped.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			collectors.NewBuildInfoCollector(),
		)
	}

	m.Server = &http.Server{
		Addr:    cfg.Address,
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	return m
}
