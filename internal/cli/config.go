// Package cli holds the configuration and exit handling shared by the
// dataplane commands.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/lumastudio/dataplane/v1/database"
	"github.com/lumastudio/dataplane/v1/executor"
	"github.com/lumastudio/dataplane/v1/kafka"
	"github.com/lumastudio/dataplane/v1/logger"
	"github.com/lumastudio/dataplane/v1/metrics"
	"github.com/lumastudio/dataplane/v1/minio"
	"github.com/lumastudio/dataplane/v1/redis"
	"github.com/lumastudio/dataplane/v1/rpc"
	"github.com/lumastudio/dataplane/v1/tracer"
)

// EnvPrefix prefixes every environment override, e.g.
// DATAPLANE_DATABASE_CONNECTION_HOST.
const EnvPrefix = "DATAPLANE"

// DefaultConfigFile is looked up in the working directory and its parents.
const DefaultConfigFile = "dataplane.yaml"

const maxWalkDepth = 25

// Config is the dataplane.yaml file.
type Config struct {
	Logger      logger.Config     `yaml:"logger" mapstructure:"logger"`
	Metrics     metrics.Config    `yaml:"metrics" mapstructure:"metrics"`
	Tracer      tracer.Config     `yaml:"tracer" mapstructure:"tracer"`
	Database    database.Config   `yaml:"database" mapstructure:"database"`
	Executor    executor.Config   `yaml:"executor" mapstructure:"executor"`
	RPC         rpc.Config        `yaml:"rpc" mapstructure:"rpc"`
	Minio       minio.Config      `yaml:"minio" mapstructure:"minio"`
	Kafka       kafka.Config      `yaml:"kafka" mapstructure:"kafka"`
	Redis       redis.Config      `yaml:"redis" mapstructure:"redis"`
	Maintenance MaintenanceConfig `yaml:"maintenance" mapstructure:"maintenance"`
}

// MaintenanceConfig schedules run_maintenance inside `dataplane serve`.
type MaintenanceConfig struct {
	Enabled    bool          `yaml:"enabled" mapstructure:"enabled"`
	Interval   time.Duration `yaml:"interval" mapstructure:"interval"`
	RunOnStart bool          `yaml:"run_on_start" mapstructure:"run_on_start"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// LoadConfig loads configuration with the precedence env > config file >
// defaults. It returns the config, the file it read (empty if none) and
// any error.
func LoadConfig(explicitConfigPath string) (*Config, string, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath, err := findConfigFile(explicitConfigPath)
	if err != nil {
		return nil, "", err
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, configPath, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, configPath, fmt.Errorf("unmarshaling config: %w", err)
	}
	if _, err := database.ParseDialect(cfg.Database.Driver); err != nil {
		return nil, configPath, fmt.Errorf("database.driver: %w", err)
	}
	if cfg.Maintenance.Enabled && cfg.Maintenance.Interval <= 0 {
		return nil, configPath, fmt.Errorf("maintenance.interval must be positive, got %s", cfg.Maintenance.Interval)
	}
	return &cfg, configPath, nil
}

// setDefaults registers every key so that AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", logger.Info)
	v.SetDefault("logger.enable_tracing", false)
	v.SetDefault("logger.service_name", "dataplane")

	v.SetDefault("metrics.address", metrics.DefaultMetricsAddress)
	v.SetDefault("metrics.enable_default_collectors", true)
	v.SetDefault("metrics.namespace", metrics.DefaultNamespace)
	v.SetDefault("metrics.service_name", "dataplane")

	v.SetDefault("tracer.service_name", "dataplane")
	v.SetDefault("tracer.app_env", "development")
	v.SetDefault("tracer.enable_export", false)
	v.SetDefault("tracer.endpoint", "")
	v.SetDefault("tracer.insecure", false)
	v.SetDefault("tracer.sample_ratio", 1.0)

	v.SetDefault("database.driver", database.DriverMySQL)
	v.SetDefault("database.connection.host", "localhost")
	v.SetDefault("database.connection.port", "3306")
	v.SetDefault("database.connection.user", "")
	v.SetDefault("database.connection.password", "")
	v.SetDefault("database.connection.db_name", "dataplane")
	v.SetDefault("database.connection.ssl_mode", "disable")
	v.SetDefault("database.connection.charset", "utf8mb4")
	v.SetDefault("database.connection.loc", "UTC")
	v.SetDefault("database.connection_details.max_open_conns", 0)
	v.SetDefault("database.connection_details.max_idle_conns", 0)
	v.SetDefault("database.connection_details.conn_max_lifetime", 0)

	v.SetDefault("executor.max_retries", executor.DefaultMaxRetries)
	v.SetDefault("executor.initial_backoff", executor.DefaultInitialBackoff)
	v.SetDefault("executor.max_backoff", executor.DefaultMaxBackoff)

	v.SetDefault("rpc.booking_horizon_days", rpc.DefaultBookingHorizonDays)
	v.SetDefault("rpc.max_batch_size", rpc.DefaultMaxBatchSize)
	v.SetDefault("rpc.feed_page_size", rpc.DefaultFeedPageSize)
	v.SetDefault("rpc.feed_max_page_size", rpc.DefaultFeedMaxPageSize)

	v.SetDefault("minio.connection.endpoint", "")
	v.SetDefault("minio.connection.access_key_id", "")
	v.SetDefault("minio.connection.secret_access_key", "")
	v.SetDefault("minio.connection.use_ssl", false)
	v.SetDefault("minio.connection.bucket_name", "")
	v.SetDefault("minio.connection.region", "")
	v.SetDefault("minio.public_base_url", "")
	v.SetDefault("minio.health_check_interval", minio.DefaultHealthCheckInterval)
	v.SetDefault("minio.delete_timeout", minio.DefaultDeleteTimeout)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", kafka.DefaultTopic)
	v.SetDefault("kafka.client_id", "dataplane")
	v.SetDefault("kafka.required_acks", kafka.DefaultRequiredAcks)
	v.SetDefault("kafka.compression_codec", "")

	v.SetDefault("redis.host", "")
	v.SetDefault("redis.port", redis.DefaultPort)
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", redis.DefaultKeyPrefix)
	v.SetDefault("redis.view_ttl", redis.DefaultViewTTL)

	v.SetDefault("maintenance.enabled", true)
	v.SetDefault("maintenance.interval", time.Hour)
	v.SetDefault("maintenance.run_on_start", false)
	v.SetDefault("maintenance.timeout", 10*time.Minute)
}

// findConfigFile returns explicitPath when given (it must exist), otherwise
// the nearest dataplane.yaml or dataplane.yml walking up from the working
// directory, otherwise "".
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", nil
	}
	for i := 0; i < maxWalkDepth; i++ {
		for _, name := range []string{DefaultConfigFile, "dataplane.yml"} {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", nil
}
