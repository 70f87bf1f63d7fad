// Package observability defines the hook through which data plane
// components report the operations they perform.
//
// Components accept an optional Observer via WithObserver and report every
// statement, procedure call, asset deletion and event publish. The metrics
// package provides the Prometheus-backed implementation.
package observability

import "time"

// OperationContext describes one completed operation.
type OperationContext struct {
	// Component is the reporting package, e.g. "executor", "rpc", "minio".
	Component string

	// Operation is the verb, e.g. "select", "toggle_like", "delete_assets".
	Operation string

	// Resource is the primary target such as a table, bucket or topic.
	Resource string

	// SubResource narrows Resource, e.g. an event type.
	SubResource string

	Duration time.Duration
	Error    error

	// Size is a component-specific magnitude such as rows or objects.
	Size int64

	Metadata map[string]interface{}
}

// Observer receives OperationContext values. Implementations must be safe
// for concurrent use and must not block.
type Observer interface {
	ObserveOperation(ctx OperationContext)
}

// Outcome maps an operation error to a low-cardinality label value.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
