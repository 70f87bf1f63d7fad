package kafka

import "time"

const (
	DefaultTopic        = "dataplane.events"
	DefaultMaxAttempts  = 3
	DefaultWriteTimeout = 10 * time.Second
	DefaultBatchTimeout = 50 * time.Millisecond
	DefaultRequiredAcks = "one"
)

// Config configures the event publisher.
type Config struct {
	// Brokers lists bootstrap addresses. Publishing is disabled without them.
	Brokers []string `yaml:"brokers" mapstructure:"brokers" envconfig:"KAFKA_BROKERS"`

	// Topic receives every domain event. Defaults to DefaultTopic.
	Topic string `yaml:"topic" mapstructure:"topic" envconfig:"KAFKA_TOPIC"`

	// ClientID identifies the producer to the brokers.
	ClientID string `yaml:"client_id" mapstructure:"client_id" envconfig:"KAFKA_CLIENT_ID"`

	// RequiredAcks is one of "none", "one" or "all".
	RequiredAcks string `yaml:"required_acks" mapstructure:"required_acks" envconfig:"KAFKA_REQUIRED_ACKS"`

	MaxAttempts  int           `yaml:"max_attempts" mapstructure:"max_attempts" envconfig:"KAFKA_MAX_ATTEMPTS"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" envconfig:"KAFKA_WRITE_TIMEOUT"`
	BatchTimeout time.Duration `yaml:"batch_timeout" mapstructure:"batch_timeout" envconfig:"KAFKA_BATCH_TIMEOUT"`

	// CompressionCodec is one of "gzip", "snappy", "lz4", "zstd" or empty.
	CompressionCodec string `yaml:"compression_codec" mapstructure:"compression_codec" envconfig:"KAFKA_COMPRESSION_CODEC"`

	TLS  TLSConfig  `yaml:"tls" mapstructure:"tls"`
	SASL SASLConfig `yaml:"sasl" mapstructure:"sasl"`
}

// TLSConfig enables TLS towards the brokers.
type TLSConfig struct {
	Enabled            bool   `yaml:"enabled" mapstructure:"enabled" envconfig:"KAFKA_TLS_ENABLED"`
	CACertPath         string `yaml:"ca_cert_path" mapstructure:"ca_cert_path" envconfig:"KAFKA_TLS_CA_CERT_PATH"`
	ClientCertPath     string `yaml:"client_cert_path" mapstructure:"client_cert_path" envconfig:"KAFKA_TLS_CLIENT_CERT_PATH"`
	ClientKeyPath      string `yaml:"client_key_path" mapstructure:"client_key_path" envconfig:"KAFKA_TLS_CLIENT_KEY_PATH"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify" mapstructure:"insecure_skip_verify" envconfig:"KAFKA_TLS_INSECURE_SKIP_VERIFY"`
}

// SASLConfig enables SASL authentication.
type SASLConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled" envconfig:"KAFKA_SASL_ENABLED"`
	Mechanism string `yaml:"mechanism" mapstructure:"mechanism" envconfig:"KAFKA_SASL_MECHANISM"`
	Username  string `yaml:"username" mapstructure:"username" envconfig:"KAFKA_SASL_USERNAME"`
	Password  string `yaml:"password" mapstructure:"password" envconfig:"KAFKA_SASL_PASSWORD"`
}

// Enabled reports whether any broker is configured.
func (c Config) Enabled() bool {
	return len(c.Brokers) > 0
}

func (c Config) withDefaults() Config {
	if c.Topic == "" {
		c.Topic = DefaultTopic
	}
	if c.RequiredAcks == "" {
		c.RequiredAcks = DefaultRequiredAcks
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.BatchTimeout == 0 {
		c.BatchTimeout = DefaultBatchTimeout
	}
	return c
}
