//go:build integration

package containers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gaborage/go-bricks-data/config"
)

// PostgreSQLContainerConfig holds configuration for PostgreSQL test container
type PostgreSQLContainerConfig struct {
	// ImageTag specifies the PostgreSQL version (default: "17-alpine")
	ImageTag string
	Username string
	Password string
	Database string
	// StartupTimeout for container initialization (default: 60 seconds)
	StartupTimeout time.Duration
}

// DefaultPostgreSQLConfig returns a PostgreSQLContainerConfig populated with sensible defaults.
func DefaultPostgreSQLConfig() *PostgreSQLContainerConfig {
	return &PostgreSQLContainerConfig{
		ImageTag:       "17-alpine",
		Username:       "testuser",
		Password:       "testpass",
		Database:       "testdb",
		StartupTimeout: 60 * time.Second,
	}
}

// PostgreSQLContainer is a running PostgreSQL server for one test.
type PostgreSQLContainer struct {
	container *postgres.PostgresContainer
	cfg       PostgreSQLContainerConfig
	host      string
	port      int
}

// StartPostgreSQLContainer starts a PostgreSQL testcontainer. A nil cfg selects
// DefaultPostgreSQLConfig. The test is skipped when Docker is not available.
// The container is terminated when the test finishes.
func StartPostgreSQLContainer(ctx context.Context, t *testing.T, cfg *PostgreSQLContainerConfig) *PostgreSQLContainer {
	t.Helper()

	if cfg == nil {
		cfg = DefaultPostgreSQLConfig()
	}
	skipWithoutDocker(ctx, t)

	pg, err := postgres.Run(ctx,
		fmt.Sprintf("postgres:%s", cfg.ImageTag),
		postgres.WithDatabase(cfg.Database),
		postgres.WithUsername(cfg.Username),
		postgres.WithPassword(cfg.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2). // Postgres restarts after initial setup
				WithStartupTimeout(cfg.StartupTimeout),
		),
	)
	if err != nil {
		t.Fatalf("failed to start PostgreSQL container: %v", err)
	}
	c := &PostgreSQLContainer{container: pg, cfg: *cfg}
	t.Cleanup(func() {
		if err := pg.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate PostgreSQL container: %v", err)
		}
	})

	if c.host, err = pg.Host(ctx); err != nil {
		t.Fatalf("failed to get PostgreSQL container host: %v", err)
	}
	mapped, err := pg.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("failed to get PostgreSQL container port: %v", err)
	}
	c.port = mapped.Int()

	t.Logf("PostgreSQL container started at %s:%d (database: %s)", c.host, c.port, cfg.Database)
	return c
}

// DataSource returns a data source configuration pointing at the container.
// dbType selects the driver: "postgresql" or "pgx".
func (p *PostgreSQLContainer) DataSource(dbType string) config.DataSourceConfig {
	return config.DataSourceConfig{
		Type:     dbType,
		Host:     p.host,
		Port:     p.port,
		Database: p.cfg.Database,
		Username: p.cfg.Username,
		Password: p.cfg.Password,
		SSLMode:  "disable",
		Pool: config.PoolConfig{
			Max:  config.PoolMaxConfig{Connections: 4},
			Idle: config.PoolIdleConfig{Connections: 1, Time: time.Minute},
		},
		Query: config.QueryConfig{
			Slow: config.SlowQueryConfig{Threshold: time.Second},
			Log:  config.QueryLogConfig{MaxLength: 1000},
		},
	}
}
