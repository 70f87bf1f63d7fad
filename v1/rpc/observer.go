package rpc

import (
	"time"

	"github.com/lumastudio/dataplane/v1/observability"
)

func (d *Dispatcher) observeOperation(procedure string, duration time.Duration, err error) {
	if d == nil || d.observer == nil {
		return
	}

	d.observer.ObserveOperation(observability.OperationContext{
		Component: "rpc",
		Operation: procedure,
		Duration:  duration,
		Error:     err,
	})
}
