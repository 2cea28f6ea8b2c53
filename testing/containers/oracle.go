//go:build integration

package containers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gaborage/go-bricks-data/config"
)

// OracleContainerConfig holds configuration for Oracle test container
type OracleContainerConfig struct {
	// ImageTag specifies the Oracle version (default: "23-slim")
	ImageTag string
	// Password for SYSTEM, SYS and the application user
	Password string
	// Service is the pluggable database service name (default: "FREEPDB1")
	Service string
	AppUser string
	// StartupTimeout for container initialization (default: 120 seconds, Oracle takes longer)
	StartupTimeout time.Duration
}

// DefaultOracleConfig returns an OracleContainerConfig populated with sensible defaults.
func DefaultOracleConfig() *OracleContainerConfig {
	return &OracleContainerConfig{
		ImageTag:       "23-slim",
		Password:       "testpass",
		Service:        "FREEPDB1",
		AppUser:        "testuser",
		StartupTimeout: 120 * time.Second,
	}
}

// OracleContainer is a running Oracle Free server for one test.
type OracleContainer struct {
	cfg  OracleContainerConfig
	host string
	port int
}

// StartOracleContainer starts a gvenzl/oracle-free container. A nil cfg selects
// DefaultOracleConfig. The test is skipped when Docker is not available. The
// container is terminated when the test finishes.
func StartOracleContainer(ctx context.Context, t *testing.T, cfg *OracleContainerConfig) *OracleContainer {
	t.Helper()

	if cfg == nil {
		cfg = DefaultOracleConfig()
	}
	skipWithoutDocker(ctx, t)

	// Log message plus listening port: the log line can appear before the
	// listener accepts connections.
	req := testcontainers.ContainerRequest{
		Image:        fmt.Sprintf("gvenzl/oracle-free:%s", cfg.ImageTag),
		ExposedPorts: []string{"1521/tcp"},
		Env: map[string]string{
			"ORACLE_PASSWORD":   cfg.Password,
			"APP_USER":          cfg.AppUser,
			"APP_USER_PASSWORD": cfg.Password,
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("DATABASE IS READY TO USE!"),
			wait.ForListeningPort("1521/tcp"),
		).WithStartupTimeout(cfg.StartupTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start Oracle container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate Oracle container: %v", err)
		}
	})

	c := &OracleContainer{cfg: *cfg}
	if c.host, err = container.Host(ctx); err != nil {
		t.Fatalf("failed to get Oracle container host: %v", err)
	}
	mapped, err := container.MappedPort(ctx, "1521")
	if err != nil {
		t.Fatalf("failed to get Oracle container port: %v", err)
	}
	c.port = mapped.Int()

	t.Logf("Oracle container started at %s:%d (service: %s, user: %s)", c.host, c.port, cfg.Service, cfg.AppUser)
	return c
}

// DataSource returns a data source configuration connecting as the
// application user through the service name.
func (o *OracleContainer) DataSource() config.DataSourceConfig {
	return config.DataSourceConfig{
		Type:     config.Oracle,
		Host:     o.host,
		Port:     o.port,
		Username: o.cfg.AppUser,
		Password: o.cfg.Password,
		Oracle: config.OracleConfig{
			Service: config.OracleServiceConfig{Name: o.cfg.Service},
		},
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
