package minio

import "time"

const (
	// DefaultHealthCheckInterval is how often the bucket is probed.
	DefaultHealthCheckInterval = 30 * time.Second

	// DefaultDeleteTimeout bounds one DeleteAssets call.
	DefaultDeleteTimeout = 2 * time.Minute
)

// Config configures the asset store.
type Config struct {
	Connection ConnectionConfig `yaml:"connection" mapstructure:"connection"`

	// PublicBaseURL is the prefix under which objects are served, e.g.
	// "https://cdn.example.com/photos/". URLs with this prefix map to the
	// remainder as object key. Other URLs fall back to path-style parsing.
	PublicBaseURL string `yaml:"public_base_url" mapstructure:"public_base_url" envconfig:"MINIO_PUBLIC_BASE_URL"`

	// HealthCheckInterval defaults to DefaultHealthCheckInterval.
	HealthCheckInterval time.Duration `yaml:"health_check_interval" mapstructure:"health_check_interval" envconfig:"MINIO_HEALTH_CHECK_INTERVAL"`

	// DeleteTimeout defaults to DefaultDeleteTimeout.
	DeleteTimeout time.Duration `yaml:"delete_timeout" mapstructure:"delete_timeout" envconfig:"MINIO_DELETE_TIMEOUT"`
}

// ConnectionConfig holds the endpoint and credentials of the bucket.
type ConnectionConfig struct {
	Endpoint        string `yaml:"endpoint" mapstructure:"endpoint" envconfig:"MINIO_ENDPOINT"`
	AccessKeyID     string `yaml:"access_key_id" mapstructure:"access_key_id" envconfig:"MINIO_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" mapstructure:"secret_access_key" envconfig:"MINIO_SECRET_ACCESS_KEY"`
	UseSSL          bool   `yaml:"use_ssl" mapstructure:"use_ssl" envconfig:"MINIO_USE_SSL"`
	BucketName      string `yaml:"bucket_name" mapstructure:"bucket_name" envconfig:"MINIO_BUCKET_NAME"`
	Region          string `yaml:"region" mapstructure:"region" envconfig:"MINIO_REGION"`
}

// Enabled reports whether an endpoint is configured. Without one the data
// plane runs with no asset store and maintenance only removes rows.
func (c Config) Enabled() bool {
	return c.Connection.Endpoint != ""
}

func (c Config) withDefaults() Config {
	if c.HealthCheckInterval <= 0 {
		c.HealthCheckInterval = DefaultHealthCheckInterval
	}
	if c.DeleteTimeout <= 0 {
		c.DeleteTimeout = DefaultDeleteTimeout
	}
	return c
}
