package database

import "github.com/gaborage/go-bricks-data/database/internal/tracking"

type (
	TrackedFactory  = tracking.Factory
	TrackingContext = tracking.Context
)

var (
	NewTrackedFactory   = tracking.NewFactory
	NewTrackingSettings = tracking.NewSettings
	TrackOperation      = tracking.TrackOperation
)

const (
	DefaultSlowQueryThreshold = tracking.DefaultSlowQueryThreshold
	DefaultMaxQueryLength     = tracking.DefaultMaxQueryLength
)
