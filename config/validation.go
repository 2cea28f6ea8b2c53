package config

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	defaultMaxConnections     = 25
	defaultIdleConnections    = 2
	defaultIdleTime           = 5 * time.Minute
	defaultMaxLifetime        = 30 * time.Minute
	defaultSlowQueryThreshold = 200 * time.Millisecond
	defaultMaxQueryLength     = 1000
)

// Data source types.
const (
	PostgreSQL = "postgresql"
	PGX        = "pgx" // postgresql through the native pgx pool
	Oracle     = "oracle"
	MySQL      = "mysql"
	MariaDB    = "mariadb"
	SQLite     = "sqlite"
)

var (
	validateOnce sync.Once
	structCheck  *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		structCheck = validator.New(validator.WithRequiredStructEnabled())
		structCheck.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
	})
	return structCheck
}

// Validate normalizes cfg, applies data source defaults, and checks every section.
// Data sources are visited in name order so the first reported error is stable.
func Validate(cfg *Config) error {
	normalize(cfg)

	if err := structValidator().Struct(cfg); err != nil {
		return fromValidationErrors(err)
	}

	names := make([]string, 0, len(cfg.DataSources))
	for name := range cfg.DataSources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ds := cfg.DataSources[name]
		if err := validateDataSource("datasources."+name, &ds); err != nil {
			return err
		}
		applyDataSourceDefaults(&ds)
		cfg.DataSources[name] = ds
	}
	return nil
}

func normalize(cfg *Config) {
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	for name, ds := range cfg.DataSources {
		ds.Type = strings.ToLower(ds.Type)
		cfg.DataSources[name] = ds
	}
	for name, tx := range cfg.Transactions {
		tx.Propagation = strings.ToUpper(tx.Propagation)
		tx.Isolation = strings.ToUpper(tx.Isolation)
		cfg.Transactions[name] = tx
	}
}

func validateDataSource(path string, ds *DataSourceConfig) error {
	if ds.ConnectionString != "" {
		return nil
	}

	switch ds.Type {
	case SQLite:
		if ds.Database == "" {
			return NewMissingFieldError(path + ".database")
		}
		return nil
	case Oracle:
		if ds.Host == "" {
			return NewMissingFieldError(path + ".host")
		}
		set := 0
		for _, v := range []string{ds.Oracle.Service.Name, ds.Oracle.Service.SID, ds.Database} {
			if v != "" {
				set++
			}
		}
		if set != 1 {
			return NewInvalidFieldError(path+".oracle.service",
				"exactly one of service name, sid or database must be set", nil)
		}
	default:
		if ds.Host == "" {
			return NewMissingFieldError(path + ".host")
		}
		if ds.Database == "" {
			return NewMissingFieldError(path + ".database")
		}
	}

	if ds.Username == "" {
		return NewMissingFieldError(path + ".username")
	}
	return nil
}

func applyDataSourceDefaults(ds *DataSourceConfig) {
	if ds.Pool.Max.Connections == 0 {
		ds.Pool.Max.Connections = defaultMaxConnections
	}
	if ds.Pool.Idle.Connections == 0 {
		ds.Pool.Idle.Connections = defaultIdleConnections
	}
	if ds.Pool.Idle.Time == 0 {
		ds.Pool.Idle.Time = defaultIdleTime
	}
	if ds.Pool.Lifetime.Max == 0 {
		ds.Pool.Lifetime.Max = defaultMaxLifetime
	}
	if ds.Query.Slow.Threshold == 0 {
		ds.Query.Slow.Threshold = defaultSlowQueryThreshold
	}
	if ds.Query.Log.MaxLength == 0 {
		ds.Query.Log.MaxLength = defaultMaxQueryLength
	}
	if ds.Port == 0 {
		ds.Port = defaultPort(ds.Type)
	}
}

func defaultPort(dsType string) int {
	switch dsType {
	case PostgreSQL, PGX:
		return 5432
	case Oracle:
		return 1521
	case MySQL, MariaDB:
		return 3306
	default:
		return 0
	}
}

// fromValidationErrors converts the first validator failure into a ConfigError.
func fromValidationErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]
	field := fieldPath(fe.Namespace())
	switch fe.Tag() {
	case "required":
		return NewMissingFieldError(field)
	case "oneof":
		return NewInvalidFieldError(field, fmt.Sprintf("invalid value %q", fmt.Sprint(fe.Value())),
			strings.Fields(fe.Param()))
	default:
		return NewInvalidFieldError(field, fmt.Sprintf("failed %s=%s check", fe.Tag(), fe.Param()), nil)
	}
}

// Config.datasources[default].type -> datasources.default.type
func fieldPath(namespace string) string {
	_, rest, found := strings.Cut(namespace, ".")
	if !found {
		rest = namespace
	}
	rest = strings.ReplaceAll(rest, "[", ".")
	return strings.ReplaceAll(rest, "]", "")
}
