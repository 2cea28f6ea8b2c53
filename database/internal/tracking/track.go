package tracking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/gaborage/go-bricks-data/logger"
)

const (
	defaultOperation = "query"

	// Pseudo statements used for lifecycle calls.
	OpBegin     = "BEGIN"
	OpCommit    = "COMMIT"
	OpRollback  = "ROLLBACK"
	OpIsolation = "SET_ISOLATION"
	OpConnect   = "CONNECT"

	dbTracerName      = "go-bricks-data/database"
	maxDBQueryAttrLen = 2000
)

// TrackOperation records one completed driver call: request counters, a
// client span starting at start, metrics and a log line. Errors log at error
// level, calls slower than the configured threshold at warn, the rest at debug.
// rowsAffected is zero for reads and unknown counts.
func TrackOperation(ctx context.Context, tc *Context, query string, args []any, start time.Time, rowsAffected int64, err error) {
	if tc == nil || tc.Logger == nil || ctx == nil {
		return
	}

	elapsed := time.Since(start)

	logger.IncrementDBCounter(ctx)
	logger.AddDBElapsed(ctx, elapsed.Nanoseconds())

	createDBSpan(ctx, tc, query, start, err)
	recordDBMetrics(ctx, tc, query, elapsed, rowsAffected, err)

	event := tc.Logger.WithContext(ctx).WithFields(map[string]any{
		"datasource":  tc.DataSource,
		"vendor":      tc.Vendor,
		"duration_ms": elapsed.Milliseconds(),
		"query":       TruncateString(query, tc.Settings.MaxQueryLength()),
	})
	if tc.Settings.LogQueryParameters() && len(args) > 0 {
		event = event.WithFields(map[string]any{
			"args": SanitizeArgs(args, tc.Settings.MaxQueryLength()),
		})
	}
	if rowsAffected > 0 {
		event = event.WithFields(map[string]any{"rows_affected": rowsAffected})
	}

	switch {
	case err != nil:
		event.Error().Err(err).Msg("Database operation error")
	case elapsed > tc.Settings.SlowQueryThreshold():
		event.Warn().Msgf("Slow database operation detected (%s)", elapsed)
	default:
		event.Debug().Msg("Database operation executed")
	}
}

// TruncateString shortens value to maxLen runes, ending in "..." when there is room.
func TruncateString(value string, maxLen int) string {
	if maxLen <= 0 {
		return value
	}
	r := []rune(value)
	if len(r) <= maxLen {
		return value
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// SanitizeArgs returns a loggable copy of args. Byte slices are replaced with
// their length, nested binding sets are sanitized in place and everything
// else is formatted and truncated.
func SanitizeArgs(args []any, maxLen int) []any {
	if len(args) == 0 {
		return nil
	}
	sanitized := make([]any, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case string:
			sanitized[i] = TruncateString(v, maxLen)
		case []byte:
			sanitized[i] = fmt.Sprintf("<bytes len=%d>", len(v))
		case nil:
			sanitized[i] = nil
		case []any:
			sanitized[i] = SanitizeArgs(v, maxLen)
		default:
			sanitized[i] = TruncateString(fmt.Sprintf("%v", v), maxLen)
		}
	}
	return sanitized
}

func createDBSpan(ctx context.Context, tc *Context, query string, start time.Time, err error) {
	operation := extractDBOperation(query)

	_, span := otel.Tracer(dbTracerName).Start(ctx, "db."+operation,
		trace.WithTimestamp(start),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	attrs := []attribute.KeyValue{
		attribute.String("db.system.name", normalizeDBVendor(tc.Vendor)),
		semconv.DBQueryText(TruncateString(query, maxDBQueryAttrLen)),
	}
	if tc.DataSource != "" {
		attrs = append(attrs, semconv.DBNamespace(tc.DataSource))
	}
	if operation != defaultOperation {
		attrs = append(attrs, semconv.DBOperationName(operation))
	}
	if table := extractTableName(query); table != unknownTable {
		attrs = append(attrs, semconv.DBCollectionName(table))
	}
	span.SetAttributes(attrs...)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// extractDBOperation returns the lowercase statement verb.
func extractDBOperation(query string) string {
	query = strings.TrimSpace(query)
	switch query {
	case "":
		return defaultOperation
	case OpBegin:
		return "begin"
	case OpCommit:
		return "commit"
	case OpRollback:
		return "rollback"
	case OpIsolation:
		return "set_isolation"
	case OpConnect:
		return "connect"
	}

	parts := strings.Fields(query)
	operation := strings.ToLower(parts[0])
	switch operation {
	case "select", "insert", "update", "delete", "merge", "create", "drop", "alter", "truncate":
		return operation
	default:
		return defaultOperation
	}
}

// normalizeDBVendor maps vendor names onto db.system.name values.
func normalizeDBVendor(vendor string) string {
	switch v := strings.ToLower(vendor); v {
	case "postgres", "postgresql", "pgx":
		return "postgresql"
	case "oracle":
		return "oracle.db"
	case "sqlserver", "mssql":
		return "microsoft.sql_server"
	case "h2":
		return "h2database"
	case "sqlite3":
		return "sqlite"
	default:
		return v
	}
}
