package redis

import "time"

const (
	DefaultPort         = 6379
	DefaultKeyPrefix    = "dataplane:"
	DefaultViewTTL      = 24 * time.Hour
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
	DefaultMaxRetries   = 3
)

// Config configures the view claim cache. An empty Host disables it.
type Config struct {
	Host     string `yaml:"host" mapstructure:"host" envconfig:"REDIS_HOST"`
	Port     int    `yaml:"port" mapstructure:"port" envconfig:"REDIS_PORT"`
	Username string `yaml:"username" mapstructure:"username" envconfig:"REDIS_USERNAME"`
	Password string `yaml:"password" mapstructure:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" mapstructure:"db" envconfig:"REDIS_DB"`

	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size" envconfig:"REDIS_POOL_SIZE"`
	MaxRetries   int           `yaml:"max_retries" mapstructure:"max_retries" envconfig:"REDIS_MAX_RETRIES"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout" envconfig:"REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" envconfig:"REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" envconfig:"REDIS_WRITE_TIMEOUT"`

	// KeyPrefix namespaces every key written by the cache.
	KeyPrefix string `yaml:"key_prefix" mapstructure:"key_prefix" envconfig:"REDIS_KEY_PREFIX"`

	// ViewTTL is how long a counted view suppresses repeats before the
	// photo_views lookup runs again.
	ViewTTL time.Duration `yaml:"view_ttl" mapstructure:"view_ttl" envconfig:"REDIS_VIEW_TTL"`

	TLS TLSConfig `yaml:"tls" mapstructure:"tls"`
}

// TLSConfig holds the TLS settings of the connection.
type TLSConfig struct {
	Enabled            bool   `yaml:"enabled" mapstructure:"enabled" envconfig:"REDIS_TLS_ENABLED"`
	CACertPath         string `yaml:"ca_cert_path" mapstructure:"ca_cert_path" envconfig:"REDIS_TLS_CA_CERT_PATH"`
	ClientCertPath     string `yaml:"client_cert_path" mapstructure:"client_cert_path" envconfig:"REDIS_TLS_CLIENT_CERT_PATH"`
	ClientKeyPath      string `yaml:"client_key_path" mapstructure:"client_key_path" envconfig:"REDIS_TLS_CLIENT_KEY_PATH"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify" mapstructure:"insecure_skip_verify" envconfig:"REDIS_TLS_INSECURE_SKIP_VERIFY"`
	ServerName         string `yaml:"server_name" mapstructure:"server_name" envconfig:"REDIS_TLS_SERVER_NAME"`
}

// Enabled reports whether a server is configured.
func (c Config) Enabled() bool {
	return c.Host != ""
}

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = DefaultKeyPrefix
	}
	if c.ViewTTL <= 0 {
		c.ViewTTL = DefaultViewTTL
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	return c
}
