package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
app:
  name: orders
  env: staging
log:
  level: DEBUG
datasources:
  default:
    type: PostgreSQL
    host: db.internal
    database: orders
    username: app
    password: secret
    pool:
      max:
        connections: 10
    query:
      slow:
        threshold: 1s
  cache:
    type: sqlite
    database: ":memory:"
    autoclose: true
transactions:
  saveOrder:
    propagation: requires_new
    isolation: serializable
    timeout: 5s
    norollbackfor: [ErrDuplicate]
`

func TestLoadFromBytes(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "orders", cfg.App.Name)
	assert.Equal(t, EnvStaging, cfg.App.Env)
	assert.Equal(t, "debug", cfg.Log.Level)

	ds, err := cfg.DataSource("default")
	require.NoError(t, err)
	assert.Equal(t, PostgreSQL, ds.Type)
	assert.Equal(t, 5432, ds.Port)
	assert.Equal(t, int32(10), ds.Pool.Max.Connections)
	assert.Equal(t, int32(defaultIdleConnections), ds.Pool.Idle.Connections)
	assert.Equal(t, defaultIdleTime, ds.Pool.Idle.Time)
	assert.Equal(t, defaultMaxLifetime, ds.Pool.Lifetime.Max)
	assert.Equal(t, time.Second, ds.Query.Slow.Threshold)
	assert.Equal(t, defaultMaxQueryLength, ds.Query.Log.MaxLength)

	sqlite, err := cfg.DataSource("cache")
	require.NoError(t, err)
	assert.True(t, sqlite.AutoClose)
	assert.Equal(t, 0, sqlite.Port)

	tx := cfg.Transactions["saveOrder"]
	assert.Equal(t, "REQUIRES_NEW", tx.Propagation)
	assert.Equal(t, "SERIALIZABLE", tx.Isolation)
	assert.Equal(t, 5*time.Second, tx.Timeout)
	assert.Equal(t, []string{"ErrDuplicate"}, tx.NoRollbackFor)

	assert.True(t, cfg.Exists("datasources.default.password"))
	assert.False(t, cfg.Exists("datasources.default.sslmode"))
}

func TestLoadFromBytesDefaults(t *testing.T) {
	cfg, err := LoadFromBytes(nil)
	require.NoError(t, err)

	assert.Equal(t, "go-bricks-data", cfg.App.Name)
	assert.Equal(t, EnvDevelopment, cfg.App.Env)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.DataSources)
}

func TestDataSourceNotConfigured(t *testing.T) {
	cfg, err := LoadFromBytes(nil)
	require.NoError(t, err)

	_, err = cfg.DataSource("reporting")
	require.Error(t, err)
	assert.True(t, IsNotConfigured(err))
	assert.Contains(t, err.Error(), "DATA_DATASOURCES_REPORTING_*")
}

func TestLoadFilesEnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(base, []byte(`
app:
  env: production
datasources:
  main:
    type: mysql
    host: localhost
    database: shop
    username: shop
`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.production.yaml"), []byte(`
datasources:
  main:
    host: mysql.prod
`), 0o600))

	t.Setenv("DATA_DATASOURCES_MAIN_POOL_MAX_CONNECTIONS", "7")
	t.Setenv("DATA_LOG_LEVEL", "warn")

	cfg, err := LoadFiles(base)
	require.NoError(t, err)

	ds := cfg.DataSources["main"]
	assert.Equal(t, "mysql.prod", ds.Host)
	assert.Equal(t, 3306, ds.Port)
	assert.Equal(t, int32(7), ds.Pool.Max.Connections)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadFilesMissingFileIsOptional(t *testing.T) {
	cfg, err := LoadFiles(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "go-bricks-data", cfg.App.Name)
}

func TestLoadFilesMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app: [unterminated"), 0o600))

	_, err := LoadFiles(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load")
}

func TestTransformEnv(t *testing.T) {
	key, value := transformEnv("DATA_DATASOURCES_DEFAULT_QUERY_SLOW_THRESHOLD", "2s")
	assert.Equal(t, "datasources.default.query.slow.threshold", key)
	assert.Equal(t, "2s", value)
}
