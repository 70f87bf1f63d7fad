package tracer

// Config configures the OpenTelemetry tracer provider.
type Config struct {
	// ServiceName is recorded as the service.name resource attribute.
	ServiceName string `yaml:"service_name" mapstructure:"service_name" envconfig:"TRACER_SERVICE_NAME"`

	// AppEnv is recorded as the deployment environment.
	AppEnv string `yaml:"app_env" mapstructure:"app_env" envconfig:"TRACER_APP_ENV"`

	// EnableExport sends spans to an OTLP HTTP collector.
	EnableExport bool `yaml:"enable_export" mapstructure:"enable_export" envconfig:"TRACER_ENABLE_EXPORT"`

	// Endpoint overrides the collector host:port. Empty falls back to the
	// OTEL_EXPORTER_OTLP_* variables.
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint" envconfig:"TRACER_ENDPOINT"`

	// Insecure disables TLS towards the collector.
	Insecure bool `yaml:"insecure" mapstructure:"insecure" envconfig:"TRACER_INSECURE"`

	// SampleRatio is the fraction of root spans kept, between 0 and 1.
	// Child spans follow their parent's decision.
	SampleRatio float64 `yaml:"sample_ratio" mapstructure:"sample_ratio" envconfig:"TRACER_SAMPLE_RATIO"`
}

func (c Config) sampler() float64 {
	switch {
	case c.SampleRatio <= 0:
		return 1
	case c.SampleRatio > 1:
		return 1
	default:
		return c.SampleRatio
	}
}
