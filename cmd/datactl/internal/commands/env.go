// Package commands implements the datactl subcommands.
package commands

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gaborage/go-bricks-data/config"
	"github.com/gaborage/go-bricks-data/database"
	"github.com/gaborage/go-bricks-data/logger"
)

// Env carries what every subcommand needs: where the configuration lives and
// how data sources are opened.
type Env struct {
	ConfigPath string
	DataSource string
	Telemetry  bool

	// Connector opens data sources; tests replace it with a fake.
	Connector database.Connector
}

// DefaultEnv reads config.yaml and opens real drivers.
func DefaultEnv() *Env {
	return &Env{
		ConfigPath: "config.yaml",
		DataSource: "default",
		Connector:  database.NewConnectionFactory,
	}
}

// BindFlags registers the persistent flags shared by all subcommands.
func (e *Env) BindFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&e.ConfigPath, "config", "c", e.ConfigPath, "Configuration file")
	cmd.PersistentFlags().StringVarP(&e.DataSource, "datasource", "d", e.DataSource, "Data source name")
	cmd.PersistentFlags().BoolVar(&e.Telemetry, "telemetry", false, "Print database spans and metrics to stderr")
}

// session is one loaded configuration with its data sources. Logs go to
// stderr so command output stays machine readable.
type session struct {
	cfg *config.Config
	log logger.Logger
	dbs *database.Manager

	shutdownTelemetry func(context.Context) error
}

func (e *Env) open(stderr io.Writer) (*session, error) {
	cfg, err := config.LoadFiles(e.ConfigPath)
	if err != nil {
		return nil, err
	}
	logOut := stderr
	if cfg.Log.Pretty {
		logOut = zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.RFC3339}
	}
	log := logger.NewWithWriter(logOut, cfg.Log.Level, nil).
		WithFields(map[string]any{"app": cfg.App.Name})

	s := &session{
		cfg: cfg,
		log: log,
		dbs: database.NewManager(cfg, log, database.ManagerOptions{}, e.Connector),
	}
	if e.Telemetry {
		if s.shutdownTelemetry, err = setupTelemetry(stderr, cfg); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *session) close() {
	if err := s.dbs.Close(); err != nil {
		s.log.Warn().Err(err).Msg("Error closing data sources")
	}
	if s.shutdownTelemetry != nil {
		if err := s.shutdownTelemetry(context.Background()); err != nil {
			s.log.Warn().Err(err).Msg("Error flushing telemetry")
		}
	}
}
