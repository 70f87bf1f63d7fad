package executor

import "time"

const (
	DefaultMaxRetries     = 3
	DefaultInitialBackoff = 100 * time.Millisecond
	DefaultMaxBackoff     = 2 * time.Second
)

// Config bounds the retry behavior for transient transport failures.
type Config struct {
	// MaxRetries is the number of retries after the first attempt.
	// Zero selects the default; a negative value disables retries.
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries" envconfig:"EXECUTOR_MAX_RETRIES"`

	InitialBackoff time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff" envconfig:"EXECUTOR_INITIAL_BACKOFF"`
	MaxBackoff     time.Duration `yaml:"max_backoff" mapstructure:"max_backoff" envconfig:"EXECUTOR_MAX_BACKOFF"`
}

func (c Config) withDefaults() Config {
	switch {
	case c.MaxRetries == 0:
		c.MaxRetries = DefaultMaxRetries
	case c.MaxRetries < 0:
		c.MaxRetries = 0
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = DefaultInitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = c.InitialBackoff
	}
	return c
}
