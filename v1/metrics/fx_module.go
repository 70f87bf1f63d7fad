package metrics

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/fx"

	"github.com/lumastudio/dataplane/v1/observability"
)

// Logger is the logging contract of the metrics server lifecycle.
type Logger interface {
	Info(msg string, err error, fields ...map[string]interface{})
	Error(msg string, err error, fields ...map[string]interface{})
}

// FXModule provides *Metrics, exposes it as the observability.Observer of
// every component and runs the /metrics server for the application's
// lifetime.
var FXModule = fx.Module("metrics",
	fx.Provide(
		NewMetrics,
		func(m *Metrics) observability.Observer { return m },
	),
	fx.Invoke(RegisterMetricsLifecycle),
)

// MetricsLifecycleParams groups the dependencies of the server lifecycle.
type MetricsLifecycleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Metrics   *Metrics
	Logger    Logger `optional:"true"`
}

// RegisterMetricsLifecycle serves /metrics in the background on start and
// shuts the server down on stop.
func RegisterMetricsLifecycle(p MetricsLifecycleParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logInfo(p.Logger, "Starting Prometheus metrics server", map[string]interface{}{"address": p.Metrics.Server.Addr})
				if err := p.Metrics.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					if p.Logger != nil {
						p.Logger.Error("Prometheus metrics server stopped", err, nil)
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logInfo(p.Logger, "Shutting down Prometheus metrics server", nil)
			return p.Metrics.Server.Shutdown(ctx)
		},
	})
}

func logInfo(l Logger, msg string, fields map[string]interface{}) {
	if l != nil {
		l.Info(msg, nil, fields)
	}
}
