// Package metrics exposes Prometheus metrics for the data plane.
//
// *Metrics implements observability.Observer. Pass it to the executor, the
// RPC dispatcher, the asset store and the event publisher with their
// WithObserver builders and every reported operation is counted:
//
//	dataplane_operations_total{component,operation,outcome}
//	dataplane_operation_duration_seconds{component,operation}
//	dataplane_sql_retries_total{operation}
//	dataplane_rows_total{operation}
//
// All metrics carry a constant service label and live in a registry owned
// by the Metrics value, served on Config.Address at /metrics.
package metrics
