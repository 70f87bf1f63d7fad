package kafka

import (
	"time"

	"github.com/lumastudio/dataplane/v1/observability"
)

func (p *Publisher) observe(event string, start time.Time, err error, size int64) {
	if p == nil || p.observer == nil {
		return
	}
	p.observer.ObserveOperation(observability.OperationContext{
		Component:   "kafka",
		Operation:   "publish",
		Resource:    p.cfg.Topic,
		SubResource: event,
		Duration:    time.Since(start),
		Error:       err,
		Size:        size,
	})
}
