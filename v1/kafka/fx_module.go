package kafka

import (
	"context"

	"go.uber.org/fx"
)

// FXModule provides *Publisher and closes it on stop. Applications without
// brokers leave the module out and run without domain events.
var FXModule = fx.Module("kafka",
	fx.Provide(
		NewPublisher,
	),
	fx.Invoke(RegisterPublisherLifecycle),
)

// PublisherLifecycleParams groups the dependencies of the lifecycle hook.
type PublisherLifecycleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Publisher *Publisher
	Logger    Logger `optional:"true"`
}

// RegisterPublisherLifecycle flushes pending writes on stop.
func RegisterPublisherLifecycle(p PublisherLifecycleParams) {
	if p.Logger != nil {
		p.Publisher.WithLogger(p.Logger)
	}
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			if p.Logger != nil {
				p.Logger.Info("closing kafka publisher", nil, map[string]interface{}{"topic": p.Publisher.cfg.Topic})
			}
			return p.Publisher.Close()
		},
	})
}
