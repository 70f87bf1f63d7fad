package database

import "time"

// Supported driver names.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Config selects the backing store and how to reach it.
type Config struct {
	// Driver is "mysql" (MySQL, MariaDB, TiDB) or "postgres".
	Driver string `yaml:"driver" mapstructure:"driver" envconfig:"DATABASE_DRIVER"`

	Connection        Connection        `yaml:"connection" mapstructure:"connection"`
	ConnectionDetails ConnectionDetails `yaml:"connection_details" mapstructure:"connection_details"`
}

// Connection holds the network and credential settings.
type Connection struct {
	Host     string `yaml:"host" mapstructure:"host" envconfig:"DATABASE_HOST"`
	Port     string `yaml:"port" mapstructure:"port" envconfig:"DATABASE_PORT"`
	User     string `yaml:"user" mapstructure:"user" envconfig:"DATABASE_USER"`
	Password string `yaml:"password" mapstructure:"password" envconfig:"DATABASE_PASSWORD"`
	DbName   string `yaml:"db_name" mapstructure:"db_name" envconfig:"DATABASE_NAME"`

	// SSLMode applies to postgres only.
	SSLMode string `yaml:"ssl_mode" mapstructure:"ssl_mode" envconfig:"DATABASE_SSL_MODE"`

	// Charset and Loc apply to mysql only.
	Charset string `yaml:"charset" mapstructure:"charset" envconfig:"DATABASE_CHARSET"`
	Loc     string `yaml:"loc" mapstructure:"loc" envconfig:"DATABASE_LOC"`
}

// ConnectionDetails tunes the connection pool. Zero values fall back to
// 50 open, 25 idle and a one minute lifetime.
type ConnectionDetails struct {
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}
