package database

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-bricks-data/config"
	dbtest "github.com/gaborage/go-bricks-data/database/testing"
	"github.com/gaborage/go-bricks-data/database/types"
	"github.com/gaborage/go-bricks-data/logger"
)

type stubSource map[string]config.DataSourceConfig

func (s stubSource) DataSource(name string) (config.DataSourceConfig, error) {
	cfg, ok := s[name]
	if !ok {
		return config.DataSourceConfig{}, config.NewNotConfiguredError("datasources." + name)
	}
	return cfg, nil
}

type countingConnector struct {
	mu      sync.Mutex
	opened  map[string]*dbtest.FakeFactory
	creates atomic.Int32
}

func (c *countingConnector) connect(_ context.Context, name string, cfg *config.DataSourceConfig, _ logger.Logger) (types.ConnectionFactory, error) {
	c.creates.Add(1)
	f := dbtest.NewFakeFactory(types.Vendor(cfg.Type)).WithName(name)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.opened == nil {
		c.opened = map[string]*dbtest.FakeFactory{}
	}
	c.opened[name] = f
	return f, nil
}

func testSource() stubSource {
	return stubSource{
		"orders":  {Type: PostgreSQL, Host: "localhost", Database: "orders"},
		"billing": {Type: MySQL, Host: "localhost", Database: "billing"},
		"audit":   {Type: SQLite, Database: ":memory:"},
	}
}

func TestManagerReturnsSameFactoryForSameName(t *testing.T) {
	ctx := context.Background()
	c := &countingConnector{}
	m := NewManager(testSource(), logger.NewNop(), ManagerOptions{}, c.connect)

	f1, err := m.Get(ctx, "orders")
	require.NoError(t, err)
	f2, err := m.Get(ctx, "orders")
	require.NoError(t, err)

	assert.Same(t, f1, f2)
	assert.Equal(t, int32(1), c.creates.Load())
	assert.Equal(t, "orders", f1.Metadata().Name)
}

func TestManagerConcurrentGetOpensOnce(t *testing.T) {
	ctx := context.Background()
	c := &countingConnector{}
	m := NewManager(testSource(), logger.NewNop(), ManagerOptions{}, c.connect)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Get(ctx, "billing")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), c.creates.Load())
	assert.Equal(t, 1, m.Size())
}

func TestManagerUnknownDataSource(t *testing.T) {
	m := NewManager(testSource(), logger.NewNop(), ManagerOptions{}, (&countingConnector{}).connect)

	_, err := m.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, config.IsNotConfigured(err))
}

func TestManagerConnectorError(t *testing.T) {
	boom := errors.New("refused")
	m := NewManager(testSource(), logger.NewNop(), ManagerOptions{},
		func(context.Context, string, *config.DataSourceConfig, logger.Logger) (types.ConnectionFactory, error) {
			return nil, boom
		})

	_, err := m.Get(context.Background(), "orders")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, m.Size())
}

func TestManagerEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := &countingConnector{}
	m := NewManager(testSource(), logger.NewNop(), ManagerOptions{MaxSize: 2}, c.connect)

	_, err := m.Get(ctx, "orders")
	require.NoError(t, err)
	_, err = m.Get(ctx, "billing")
	require.NoError(t, err)
	_, err = m.Get(ctx, "orders")
	require.NoError(t, err)
	_, err = m.Get(ctx, "audit")
	require.NoError(t, err)

	assert.Equal(t, []string{"audit", "orders"}, m.Names())

	_, err = c.opened["billing"].Create(ctx)
	assert.Error(t, err, "evicted factory must be closed")
}

func TestManagerClose(t *testing.T) {
	ctx := context.Background()
	c := &countingConnector{}
	m := NewManager(testSource(), logger.NewNop(), ManagerOptions{}, c.connect)

	_, err := m.Get(ctx, "orders")
	require.NoError(t, err)
	require.NoError(t, m.Close())

	assert.Equal(t, 0, m.Size())
	_, err = m.Get(ctx, "orders")
	assert.ErrorIs(t, err, ErrManagerClosed)
}

func TestNewConnectionFactoryUnsupportedType(t *testing.T) {
	_, err := NewConnectionFactory(context.Background(), "x", &config.DataSourceConfig{Type: "db2"}, logger.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database type: db2")

	assert.NoError(t, ValidateDatabaseType(MariaDB))
	assert.Contains(t, GetSupportedDatabaseTypes(), PGX)
}

func TestNewConnectionFactorySQLiteHealth(t *testing.T) {
	ctx := context.Background()
	factory, err := NewConnectionFactory(ctx, "audit", &config.DataSourceConfig{Type: SQLite, Database: ":memory:"}, logger.NewNop())
	require.NoError(t, err)
	defer factory.Close()

	_, tracked := factory.(*TrackedFactory)
	assert.True(t, tracked)

	health, err := CheckHealth(ctx, factory)
	require.NoError(t, err)
	assert.Equal(t, "audit", health.DataSource)
	assert.Equal(t, types.SQLite, health.Vendor)
	assert.NotEmpty(t, health.Version)
}

func TestCheckHealthUsesVendorQuery(t *testing.T) {
	tests := []struct {
		vendor types.Vendor
		query  string
	}{
		{types.PostgreSQL, "SELECT version()"},
		{types.MariaDB, "SELECT version()"},
		{types.Oracle, "SELECT banner FROM v$version WHERE ROWNUM = 1"},
	}
	for _, tt := range tests {
		t.Run(string(tt.vendor), func(t *testing.T) {
			f := dbtest.NewFakeFactory(tt.vendor).StrictSQLMatching()
			f.ExpectQuery(tt.query).WillReturnRows(dbtest.NewRowSet("version").AddRow([]byte("16.4")))

			health, err := CheckHealth(context.Background(), f)
			require.NoError(t, err)
			assert.Equal(t, "16.4", health.Version)
			dbtest.AssertOps(t, f, 1, dbtest.OpCreate, dbtest.OpQuery, dbtest.OpClose)
		})
	}
}

func TestCheckHealthFailures(t *testing.T) {
	boom := errors.New("down")

	f := dbtest.NewFakeFactory(types.PostgreSQL).FailCreate(boom)
	_, err := CheckHealth(context.Background(), f)
	assert.ErrorIs(t, err, boom)

	f = dbtest.NewFakeFactory(types.PostgreSQL)
	f.ExpectQuery("SELECT version()").WillReturnError(boom)
	_, err = CheckHealth(context.Background(), f)
	assert.ErrorIs(t, err, boom)
	dbtest.AssertOpCount(t, f, dbtest.OpClose, 1)

	f = dbtest.NewFakeFactory(types.PostgreSQL).WithAutoClose()
	f.ExpectQuery("SELECT version()").WillReturnRows(dbtest.NewRowSet("v").AddRow("x"))
	_, err = CheckHealth(context.Background(), f)
	require.NoError(t, err)
	dbtest.AssertNoOp(t, f, dbtest.OpClose)
}
