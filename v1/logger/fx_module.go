package logger

import (
	"context"

	"go.uber.org/fx"
)

// FXModule provides the logger as both *LoggerClient and Logger and flushes
// it when the application stops. A logger.Config must be in the container.
var FXModule = fx.Module("logger",
	fx.Provide(
		NewLoggerClient,
		func(l *LoggerClient) Logger { return l },
	),
	fx.Invoke(RegisterLoggerLifecycle),
)

// RegisterLoggerLifecycle syncs the zap logger on stop so buffered entries
// are not lost.
func RegisterLoggerLifecycle(lc fx.Lifecycle, client *LoggerClient) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			// stderr returns EINVAL on sync in containers; nothing is lost
			_ = client.Sync()
			return nil
		},
	})
}
