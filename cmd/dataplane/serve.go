package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/lumastudio/dataplane/internal/cli"
	"github.com/lumastudio/dataplane/v1/logger"
	"github.com/lumastudio/dataplane/v1/metrics"
	"github.com/lumastudio/dataplane/v1/tracer"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the data plane with metrics, tracing and scheduled maintenance",
	Long: `Run the data plane until interrupted.

The metrics endpoint is served on metrics.address. When maintenance.enabled
is set, run_maintenance is called as the system role every
maintenance.interval.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := fx.New(serveOptions(cfg))
		if err := app.Err(); err != nil {
			return cli.DBConnectError("initializing data plane", err)
		}

		startCtx, cancel := context.WithTimeout(cmd.Context(), app.StartTimeout())
		defer cancel()
		if err := app.Start(startCtx); err != nil {
			return cli.DBConnectError("starting data plane", err)
		}

		select {
		case <-cmd.Context().Done():
		case <-app.Done():
		}

		stopCtx, cancelStop := context.WithTimeout(context.Background(), app.StopTimeout())
		defer cancelStop()
		if err := app.Stop(stopCtx); err != nil {
			return cli.GeneralError("stopping data plane", err)
		}
		return nil
	},
}

func serveOptions(c *cli.Config) fx.Option {
	return fx.Options(
		coreOptions(c),
		fx.WithLogger(func(l *logger.LoggerClient) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Zap}
		}),
		fx.Supply(c.Metrics, c.Tracer, c.Maintenance),
		fx.Provide(
			func(l logger.Logger) metrics.Logger { return l },
			func(l logger.Logger) tracer.Logger { return l },
		),
		metrics.FXModule,
		tracer.FXModule,
		fx.Invoke(registerMaintenance),
	)
}
