package executor

import (
	"time"

	"github.com/lumastudio/dataplane/v1/database"
	"github.com/lumastudio/dataplane/v1/observability"
)

func (e *Executor) observeOperation(stmt database.Statement, duration time.Duration, err error, size int64, retries int) {
	if e == nil || e.observer == nil {
		return
	}

	e.observer.ObserveOperation(observability.OperationContext{
		Component: "executor",
		Operation: statementVerb(stmt.SQL),
		Resource:  string(e.channel.Dialect()),
		Duration:  duration,
		Error:     err,
		Size:      size,
		Metadata: map[string]interface{}{
			"retries": retries,
		},
	})
}
