// Package dialect describes the per-vendor SQL capabilities the repository layer
// depends on: placeholder syntax, generated-key retrieval, batch support,
// identifier quoting and the health query.
package dialect

import (
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/gaborage/go-bricks-data/database/internal/sqllex"
	"github.com/gaborage/go-bricks-data/database/types"
)

// GeneratedKeyStrategy is how a driver surfaces database-generated identifiers.
type GeneratedKeyStrategy int

const (
	// KeysUnsupported means generated identifiers cannot be read back.
	KeysUnsupported GeneratedKeyStrategy = iota
	// KeysReturning appends "RETURNING col" and reads the keys as rows.
	KeysReturning
	// KeysReturningInto appends "RETURNING col INTO :n" with an output bind (Oracle).
	KeysReturningInto
	// KeysLastInsertID reads sql.Result.LastInsertId (MySQL).
	KeysLastInsertID
)

// Dialect is the immutable capability set of one vendor.
type Dialect struct {
	Vendor        types.Vendor
	Placeholder   squirrel.PlaceholderFormat
	GeneratedKeys GeneratedKeyStrategy
	// BatchWithGeneratedKeys is false when one multi-row execution cannot return
	// every generated key, forcing a per-entity fallback.
	BatchWithGeneratedKeys bool
	HealthQuery            string
}

var dialects = map[types.Vendor]Dialect{
	types.PostgreSQL: {
		Vendor:                 types.PostgreSQL,
		Placeholder:            squirrel.Dollar,
		GeneratedKeys:          KeysReturning,
		BatchWithGeneratedKeys: true,
		HealthQuery:            "SELECT version()",
	},
	types.Oracle: {
		Vendor:                 types.Oracle,
		Placeholder:            squirrel.Colon,
		GeneratedKeys:          KeysReturningInto,
		BatchWithGeneratedKeys: false,
		HealthQuery:            "SELECT banner FROM v$version WHERE ROWNUM = 1",
	},
	types.MySQL: {
		Vendor:                 types.MySQL,
		Placeholder:            squirrel.Question,
		GeneratedKeys:          KeysLastInsertID,
		BatchWithGeneratedKeys: true,
		HealthQuery:            "SELECT version()",
	},
	types.MariaDB: {
		Vendor:                 types.MariaDB,
		Placeholder:            squirrel.Question,
		GeneratedKeys:          KeysReturning,
		BatchWithGeneratedKeys: true,
		HealthQuery:            "SELECT version()",
	},
	types.SQLite: {
		Vendor:                 types.SQLite,
		Placeholder:            squirrel.Question,
		GeneratedKeys:          KeysReturning,
		BatchWithGeneratedKeys: true,
		HealthQuery:            "SELECT sqlite_version()",
	},
	types.SQLServer: {
		Vendor:                 types.SQLServer,
		Placeholder:            squirrel.AtP,
		GeneratedKeys:          KeysUnsupported,
		BatchWithGeneratedKeys: true,
		HealthQuery:            "SELECT TOP 1 value FROM STRING_SPLIT(@@VERSION, '(')",
	},
	types.H2: {
		Vendor:                 types.H2,
		Placeholder:            squirrel.Question,
		GeneratedKeys:          KeysUnsupported,
		BatchWithGeneratedKeys: true,
		HealthQuery:            "SELECT H2VERSION()",
	},
}

// For returns the dialect of v. Unknown vendors get an ANSI dialect with
// question-mark placeholders and no generated-key support.
func For(v types.Vendor) Dialect {
	if d, ok := dialects[v]; ok {
		return d
	}
	return Dialect{
		Vendor:                 v,
		Placeholder:            squirrel.Question,
		BatchWithGeneratedKeys: true,
		HealthQuery:            "SELECT 1",
	}
}

// SupportsBatch reports whether a batch insert may run as one execution.
// Oracle cannot combine batching with generated-key return.
func (d Dialect) SupportsBatch(hasGeneratedID bool) bool {
	return !hasGeneratedID || d.BatchWithGeneratedKeys
}

// QuoteIdentifier quotes name when the vendor requires it.
func (d Dialect) QuoteIdentifier(name string) string {
	if d.Vendor == types.Oracle {
		return sqllex.QuoteOracleIdentifier(name)
	}
	return name
}

// Rebind rewrites "?" placeholders into the dialect's syntax.
func (d Dialect) Rebind(sql string) (string, error) {
	if d.Placeholder == nil {
		return sql, nil
	}
	return d.Placeholder.ReplacePlaceholders(sql)
}

// Param returns the placeholder for the one-based parameter position.
func (d Dialect) Param(position int) string {
	switch d.Placeholder {
	case squirrel.Dollar:
		return fmt.Sprintf("$%d", position)
	case squirrel.Colon:
		return fmt.Sprintf(":%d", position)
	case squirrel.AtP:
		return fmt.Sprintf("@p%d", position)
	default:
		return "?"
	}
}

// AppendReturning adds the clause that makes an INSERT yield generated columns.
// nextParam is the one-based position of the first output bind (KeysReturningInto only).
func (d Dialect) AppendReturning(sql string, nextParam int, columns ...string) (string, error) {
	if len(columns) == 0 {
		return sql, nil
	}
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.QuoteIdentifier(c)
	}

	switch d.GeneratedKeys {
	case KeysReturning:
		return sql + " RETURNING " + strings.Join(quoted, ", "), nil
	case KeysReturningInto:
		outs := make([]string, len(columns))
		for i := range columns {
			outs[i] = d.Param(nextParam + i)
		}
		return sql + " RETURNING " + strings.Join(quoted, ", ") + " INTO " + strings.Join(outs, ", "), nil
	case KeysLastInsertID:
		return sql, nil
	default:
		return "", fmt.Errorf("%s does not support returning generated values", d.Vendor)
	}
}
