package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App: AppConfig{Name: "svc", Env: EnvDevelopment},
		Log: LogConfig{Level: "info"},
		DataSources: map[string]DataSourceConfig{
			"default": {Type: PostgreSQL, Host: "h", Database: "d", Username: "u"},
		},
	}
}

func TestValidateReportsFirstProblemAsConfigError(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		field    string
		category string
	}{
		{
			name:     "unknown type",
			mutate:   func(c *Config) { c.DataSources["default"] = DataSourceConfig{Type: "mongodb"} },
			field:    "datasources.default.type",
			category: "invalid",
		},
		{
			name:     "missing type",
			mutate:   func(c *Config) { c.DataSources["default"] = DataSourceConfig{Host: "h"} },
			field:    "datasources.default.type",
			category: "missing",
		},
		{
			name: "missing host",
			mutate: func(c *Config) {
				c.DataSources["default"] = DataSourceConfig{Type: MySQL, Database: "d", Username: "u"}
			},
			field:    "datasources.default.host",
			category: "missing",
		},
		{
			name: "missing username",
			mutate: func(c *Config) {
				c.DataSources["default"] = DataSourceConfig{Type: PostgreSQL, Host: "h", Database: "d"}
			},
			field:    "datasources.default.username",
			category: "missing",
		},
		{
			name: "sqlite without file",
			mutate: func(c *Config) {
				c.DataSources["default"] = DataSourceConfig{Type: SQLite}
			},
			field:    "datasources.default.database",
			category: "missing",
		},
		{
			name: "oracle with both service and sid",
			mutate: func(c *Config) {
				ds := DataSourceConfig{Type: Oracle, Host: "h", Username: "u"}
				ds.Oracle.Service.Name = "ORCLPDB1"
				ds.Oracle.Service.SID = "ORCL"
				c.DataSources["default"] = ds
			},
			field:    "datasources.default.oracle.service",
			category: "invalid",
		},
		{
			name:     "bad port",
			mutate:   func(c *Config) { ds := c.DataSources["default"]; ds.Port = 70000; c.DataSources["default"] = ds },
			field:    "datasources.default.port",
			category: "invalid",
		},
		{
			name:     "bad propagation",
			mutate:   func(c *Config) { c.Transactions = map[string]TransactionConfig{"op": {Propagation: "sometimes"}} },
			field:    "transactions.op.propagation",
			category: "invalid",
		},
		{
			name:     "bad log level",
			mutate:   func(c *Config) { c.Log.Level = "verbose" },
			field:    "log.level",
			category: "invalid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), "got %T: %v", err, err)
			assert.Equal(t, tt.field, cfgErr.Field)
			assert.Equal(t, tt.category, cfgErr.Category)
		})
	}
}

func TestValidateConnectionStringSkipsDiscreteFields(t *testing.T) {
	cfg := validConfig()
	cfg.DataSources["default"] = DataSourceConfig{
		Type:             PGX,
		ConnectionString: "postgres://u:p@h/d",
	}

	require.NoError(t, Validate(cfg))
	ds := cfg.DataSources["default"]
	assert.Equal(t, int32(defaultMaxConnections), ds.Pool.Max.Connections)
	assert.Equal(t, 5432, ds.Port)
}

func TestValidateOracleSID(t *testing.T) {
	cfg := validConfig()
	ds := DataSourceConfig{Type: Oracle, Host: "h", Username: "u"}
	ds.Oracle.Service.SID = "ORCL"
	cfg.DataSources["default"] = ds

	require.NoError(t, Validate(cfg))
	assert.Equal(t, 1521, cfg.DataSources["default"].Port)
}

func TestConfigErrorFormatting(t *testing.T) {
	err := NewMissingFieldError("datasources.default.host")
	assert.Equal(t,
		"config_missing: datasources.default.host required set DATA_DATASOURCES_DEFAULT_HOST env var or add datasources.default.host to config.yaml",
		err.Error())
	assert.False(t, IsNotConfigured(err))

	invalid := NewInvalidFieldError("log.level", "invalid value \"x\"", []string{"debug", "info"})
	assert.Equal(t, "config_invalid: log.level invalid value \"x\" must be one of: debug, info", invalid.Error())
}
