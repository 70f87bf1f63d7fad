package tracer

import (
	"go.uber.org/fx"
)

// FXModule provides *Tracer and flushes it when the application stops.
var FXModule = fx.Module("tracer",
	fx.Provide(NewClient),
	fx.Invoke(RegisterTracerLifecycle),
)

// RegisterTracerLifecycle flushes batched spans on stop.
func RegisterTracerLifecycle(lc fx.Lifecycle, t *Tracer) {
	lc.Append(fx.Hook{
		OnStop: t.Shutdown,
	})
}
