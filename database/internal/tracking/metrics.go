package tracking

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	dbMeterName = "go-bricks-data/database"

	metricDBCalls      = "db.client.calls"
	metricDBDuration   = "db.client.operation.duration"
	metricRowsAffected = "db.rows.affected"

	metricPoolActive = "db.connection.pool.active"
	metricPoolIdle   = "db.connection.pool.idle"
	metricPoolTotal  = "db.connection.pool.total"

	attrDBSystem    = "db.system.name"
	attrDBOperation = "db.operation.name"
	attrDBTable     = "db.collection.name"
	attrDataSource  = "db.namespace"

	unknownTable = "unknown"
)

type instruments struct {
	meter        metric.Meter
	calls        metric.Int64Counter
	duration     metric.Float64Histogram
	rowsAffected metric.Int64Counter
}

var (
	dbInstruments *instruments
	meterOnce     sync.Once
)

func logMetricError(name string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize metric %s: %v\n", name, err)
	}
}

func getInstruments() *instruments {
	meterOnce.Do(func() {
		meter := otel.Meter(dbMeterName)
		in := &instruments{meter: meter}

		var err error
		in.calls, err = meter.Int64Counter(metricDBCalls,
			metric.WithDescription("Total number of database client calls"))
		logMetricError(metricDBCalls, err)

		in.duration, err = meter.Float64Histogram(metricDBDuration,
			metric.WithDescription("Duration of database operations in milliseconds"),
			metric.WithUnit("ms"))
		logMetricError(metricDBDuration, err)

		in.rowsAffected, err = meter.Int64Counter(metricRowsAffected,
			metric.WithDescription("Number of rows affected by database operations"))
		logMetricError(metricRowsAffected, err)

		dbInstruments = in
	})
	return dbInstruments
}

func recordDBMetrics(ctx context.Context, tc *Context, query string, elapsed time.Duration, rowsAffected int64, err error) {
	in := getInstruments()

	common := []attribute.KeyValue{
		attribute.String(attrDBSystem, normalizeDBVendor(tc.Vendor)),
		attribute.String(attrDBOperation, extractDBOperation(query)),
		attribute.String(attrDBTable, extractTableName(query)),
		attribute.String(attrDataSource, tc.DataSource),
	}

	if in.calls != nil {
		attrs := append(append([]attribute.KeyValue{}, common...), attribute.Bool("error", err != nil))
		in.calls.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if in.duration != nil {
		in.duration.Record(ctx, float64(elapsed.Nanoseconds())/1e6, metric.WithAttributes(common...))
	}
	if in.rowsAffected != nil && rowsAffected > 0 && err == nil {
		in.rowsAffected.Add(ctx, rowsAffected, metric.WithAttributes(common...))
	}
}

var (
	// Quoted and schema-qualified names capture the table part.
	selectTableRegex = regexp.MustCompile("(?i)FROM\\s+(?:[`\"]?\\w+[`\"]?\\.)?[`\"]?(\\w+)[`\"]?")
	insertTableRegex = regexp.MustCompile("(?i)INSERT\\s+INTO\\s+(?:[`\"]?\\w+[`\"]?\\.)?[`\"]?(\\w+)[`\"]?")
	updateTableRegex = regexp.MustCompile("(?i)UPDATE\\s+(?:[`\"]?\\w+[`\"]?\\.)?[`\"]?(\\w+)[`\"]?")
	deleteTableRegex = regexp.MustCompile("(?i)DELETE\\s+FROM\\s+(?:[`\"]?\\w+[`\"]?\\.)?[`\"]?(\\w+)[`\"]?")
)

// extractTableName returns the lowercase primary table of a DML statement, or "unknown".
func extractTableName(query string) string {
	query = strings.TrimSpace(query)
	upper := strings.ToUpper(query)

	var pattern *regexp.Regexp
	switch {
	case strings.HasPrefix(upper, "SELECT"):
		pattern = selectTableRegex
	case strings.HasPrefix(upper, "INSERT"):
		pattern = insertTableRegex
	case strings.HasPrefix(upper, "UPDATE"):
		pattern = updateTableRegex
	case strings.HasPrefix(upper, "DELETE"):
		pattern = deleteTableRegex
	default:
		return unknownTable
	}
	if m := pattern.FindStringSubmatch(query); len(m) > 1 {
		return strings.ToLower(m[1])
	}
	return unknownTable
}

// PoolStatsSource is implemented by factories backed by a connection pool.
type PoolStatsSource interface {
	PoolStats() (inUse, idle, maxOpen int64)
}

// RegisterPoolMetrics observes pool occupancy through gauges. The returned
// function unregisters the callback.
func RegisterPoolMetrics(src PoolStatsSource, vendor, dataSource string) func() {
	meter := getInstruments().meter
	noop := func() {}

	gauge := func(name, desc string) metric.Int64ObservableGauge {
		g, err := meter.Int64ObservableGauge(name, metric.WithDescription(desc))
		logMetricError(name, err)
		return g
	}
	active := gauge(metricPoolActive, "Number of active database connections")
	idle := gauge(metricPoolIdle, "Number of idle database connections")
	total := gauge(metricPoolTotal, "Maximum number of database connections configured")
	if active == nil || idle == nil || total == nil {
		return noop
	}

	attrs := metric.WithAttributes(
		attribute.String(attrDBSystem, normalizeDBVendor(vendor)),
		attribute.String(attrDataSource, dataSource),
	)
	reg, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		inUse, idleConns, maxOpen := src.PoolStats()
		o.ObserveInt64(active, inUse, attrs)
		o.ObserveInt64(idle, idleConns, attrs)
		o.ObserveInt64(total, maxOpen, attrs)
		return nil
	}, active, idle, total)
	if err != nil {
		logMetricError("pool_metrics_callback", err)
		return noop
	}

	return func() {
		if err := reg.Unregister(); err != nil {
			logMetricError("pool_metrics_unregister", err)
		}
	}
}
