// Package tracking instruments driver SPI calls with structured logging, slow
// statement detection, OpenTelemetry spans and metrics.
package tracking

import (
	"time"

	"github.com/gaborage/go-bricks-data/config"
	"github.com/gaborage/go-bricks-data/logger"
)

const (
	// DefaultSlowQueryThreshold is used when the data source does not configure one.
	DefaultSlowQueryThreshold = 200 * time.Millisecond
	// DefaultMaxQueryLength bounds logged SQL text.
	DefaultMaxQueryLength = 1000
)

// Settings controls statement logging for one data source.
type Settings struct {
	slowQueryThreshold time.Duration
	maxQueryLength     int
	logQueryParameters bool
}

// Context groups what every tracked call needs.
type Context struct {
	Logger     logger.Logger
	Vendor     string
	DataSource string
	Settings   Settings
}

// NewSettings reads the query section of cfg. Non-positive values fall back to defaults.
func NewSettings(cfg *config.DataSourceConfig) Settings {
	settings := Settings{
		slowQueryThreshold: DefaultSlowQueryThreshold,
		maxQueryLength:     DefaultMaxQueryLength,
	}
	if cfg == nil {
		return settings
	}

	if cfg.Query.Slow.Threshold > 0 {
		settings.slowQueryThreshold = cfg.Query.Slow.Threshold
	}
	if cfg.Query.Log.MaxLength > 0 {
		settings.maxQueryLength = cfg.Query.Log.MaxLength
	}
	settings.logQueryParameters = cfg.Query.Log.Parameters

	return settings
}

func (s Settings) SlowQueryThreshold() time.Duration { return s.slowQueryThreshold }

func (s Settings) MaxQueryLength() int { return s.maxQueryLength }

func (s Settings) LogQueryParameters() bool { return s.logQueryParameters }
