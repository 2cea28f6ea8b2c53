package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cast"

	"github.com/gaborage/go-bricks-data/database/dialect"
	"github.com/gaborage/go-bricks-data/database/types"
)

// Health is the outcome of a data source probe.
type Health struct {
	DataSource string
	Vendor     types.Vendor
	Version    string
}

// CheckHealth borrows one connection from factory, runs the vendor's version
// query and returns the reported version. The connection is always released
// unless the factory closes connections itself.
func CheckHealth(ctx context.Context, factory types.ConnectionFactory) (health Health, err error) {
	meta := factory.Metadata()
	health = Health{DataSource: meta.Name, Vendor: meta.Vendor}

	conn, err := factory.Create(ctx)
	if err != nil {
		return health, fmt.Errorf("health check %s: %w", meta.Name, err)
	}
	defer func() {
		if meta.AutoClosesOnTransactionEnd {
			return
		}
		if closeErr := conn.Close(context.WithoutCancel(ctx)); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	stmt, err := conn.CreateStatement(dialect.For(meta.Vendor).HealthQuery)
	if err != nil {
		return health, fmt.Errorf("health check %s: %w", meta.Name, err)
	}
	res, err := stmt.Query(ctx)
	if err != nil {
		return health, fmt.Errorf("health check %s: %w", meta.Name, err)
	}
	defer res.Close()

	for row, rowErr := range res.Rows() {
		if rowErr != nil {
			return health, fmt.Errorf("health check %s: %w", meta.Name, rowErr)
		}
		v, getErr := row.Get(0)
		if getErr != nil {
			return health, fmt.Errorf("health check %s: %w", meta.Name, getErr)
		}
		health.Version = cast.ToString(v)
		break
	}
	return health, nil
}
