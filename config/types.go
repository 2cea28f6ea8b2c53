package config

import (
	"time"

	"github.com/knadh/koanf/v2"
)

// Config is the root configuration of a data-access application.
type Config struct {
	App          AppConfig                    `koanf:"app" yaml:"app"`
	Log          LogConfig                    `koanf:"log" yaml:"log"`
	DataSources  map[string]DataSourceConfig  `koanf:"datasources" yaml:"datasources" validate:"dive"`
	Transactions map[string]TransactionConfig `koanf:"transactions" yaml:"transactions" validate:"dive"`

	k *koanf.Koanf
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name    string `koanf:"name" yaml:"name" validate:"required"`
	Version string `koanf:"version" yaml:"version"`
	Env     string `koanf:"env" yaml:"env" validate:"oneof=development staging production"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `koanf:"level" yaml:"level" validate:"oneof=trace debug info warn error fatal panic"`
	Pretty bool   `koanf:"pretty" yaml:"pretty"`
}

// DataSourceConfig describes one named relational data source.
type DataSourceConfig struct {
	Type     string `koanf:"type" yaml:"type" validate:"required,oneof=postgresql pgx oracle mysql mariadb sqlite"`
	Host     string `koanf:"host" yaml:"host"`
	Port     int    `koanf:"port" yaml:"port" validate:"gte=0,lte=65535"`
	Database string `koanf:"database" yaml:"database"`
	Username string `koanf:"username" yaml:"username"`
	Password string `koanf:"password" yaml:"password"`
	SSLMode  string `koanf:"sslmode" yaml:"sslmode"`

	// ConnectionString takes precedence over the discrete fields above.
	ConnectionString string `koanf:"connectionstring" yaml:"connectionstring"`

	Oracle OracleConfig `koanf:"oracle" yaml:"oracle"`
	Pool   PoolConfig   `koanf:"pool" yaml:"pool"`
	Query  QueryConfig  `koanf:"query" yaml:"query"`

	// AutoClose marks drivers that release the connection themselves when a
	// transaction ends, so no explicit close follows commit or rollback.
	AutoClose bool `koanf:"autoclose" yaml:"autoclose"`
}

// OracleConfig holds Oracle connection identifiers. Exactly one of Service.Name,
// Service.SID or DataSourceConfig.Database is used.
type OracleConfig struct {
	Service OracleServiceConfig `koanf:"service" yaml:"service"`
}

type OracleServiceConfig struct {
	Name string `koanf:"name" yaml:"name"`
	SID  string `koanf:"sid" yaml:"sid"`
}

// PoolConfig holds connection pool settings.
// Defaults applied by Validate: Max 25, Idle 2, Idle.Time 5m, Lifetime 30m.
type PoolConfig struct {
	Max      PoolMaxConfig  `koanf:"max" yaml:"max"`
	Idle     PoolIdleConfig `koanf:"idle" yaml:"idle"`
	Lifetime LifetimeConfig `koanf:"lifetime" yaml:"lifetime"`
}

type PoolMaxConfig struct {
	Connections int32 `koanf:"connections" yaml:"connections" validate:"gte=0"`
}

type PoolIdleConfig struct {
	Connections int32         `koanf:"connections" yaml:"connections" validate:"gte=0"`
	Time        time.Duration `koanf:"time" yaml:"time" validate:"gte=0"`
}

type LifetimeConfig struct {
	Max time.Duration `koanf:"max" yaml:"max" validate:"gte=0"`
}

// QueryConfig controls statement logging.
type QueryConfig struct {
	Slow SlowQueryConfig `koanf:"slow" yaml:"slow"`
	Log  QueryLogConfig  `koanf:"log" yaml:"log"`
}

type SlowQueryConfig struct {
	// Threshold above which a statement is logged at warn level. Default 200ms.
	Threshold time.Duration `koanf:"threshold" yaml:"threshold" validate:"gte=0"`
}

type QueryLogConfig struct {
	// MaxLength truncates logged SQL text. Default 1000.
	MaxLength int `koanf:"maxlength" yaml:"maxlength" validate:"gte=0"`
	// Parameters enables logging of bound values (filtered for sensitive keys).
	Parameters bool `koanf:"parameters" yaml:"parameters"`
}

// TransactionConfig declares the transaction attributes of one named operation.
type TransactionConfig struct {
	Propagation   string        `koanf:"propagation" yaml:"propagation" validate:"omitempty,oneof=REQUIRED SUPPORTS MANDATORY REQUIRES_NEW NOT_SUPPORTED NEVER NESTED"`
	Isolation     string        `koanf:"isolation" yaml:"isolation" validate:"omitempty,oneof=DEFAULT READ_UNCOMMITTED READ_COMMITTED REPEATABLE_READ SERIALIZABLE"`
	ReadOnly      bool          `koanf:"readonly" yaml:"readonly"`
	Timeout       time.Duration `koanf:"timeout" yaml:"timeout" validate:"gte=0"`
	NoRollbackFor []string      `koanf:"norollbackfor" yaml:"norollbackfor"`
}

// DataSource returns the named data source configuration.
func (c *Config) DataSource(name string) (DataSourceConfig, error) {
	if c != nil {
		if ds, ok := c.DataSources[name]; ok {
			return ds, nil
		}
	}
	return DataSourceConfig{}, NewNotConfiguredError("datasources." + name)
}

// Exists reports whether key was set by any configuration source.
func (c *Config) Exists(key string) bool {
	return c != nil && c.k != nil && c.k.Exists(key)
}
