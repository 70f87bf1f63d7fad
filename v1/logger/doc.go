// Package logger provides zap-backed structured logging for the data plane.
//
// LoggerClient is the concrete logger; Logger is the full interface it
// satisfies. Packages that log (database, executor, compiler, rpc, minio,
// kafka) each declare a narrow Logger interface with the methods they call,
// so any *LoggerClient can be passed to them directly.
//
// Every method takes a message, an optional error and optional field maps:
//
//	log := logger.NewLoggerClient(logger.Config{Level: logger.Info, ServiceName: "dataplane"})
//	log.Warn("Retrying transient store failure", err, map[string]interface{}{
//		"attempt": 2,
//	})
//
// With EnableTracing set, the *WithContext variants add the trace_id and
// span_id of the active OpenTelemetry span.
//
// # Configuration
//
//	ZAP_LOGGER_LEVEL=debug       # debug, info, warning, error
//	LOGGER_ENABLE_TRACING=true
//
// # FX
//
//	app := fx.New(
//		fx.Supply(logger.Config{Level: "info"}),
//		logger.FXModule,
//	)
package logger
