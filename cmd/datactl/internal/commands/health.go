package commands

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/gaborage/go-bricks-data/database"
)

// HealthOptions holds options for the health command
type HealthOptions struct {
	All     bool
	Timeout time.Duration
}

// NewHealthCommand creates the health command
func NewHealthCommand(env *Env) *cobra.Command {
	opts := &HealthOptions{}

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Probe configured data sources",
		Long: `Borrows one connection from each selected data source and runs the
vendor's version query. Exits non-zero when any probe fails.`,
		Example: `  # Probe the default data source
  datactl health

  # Probe every configured data source
  datactl health --all`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHealth(cmd, env, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.All, "all", "a", false, "Probe every configured data source")
	cmd.Flags().DurationVarP(&opts.Timeout, "timeout", "t", 10*time.Second, "Timeout per data source")

	return cmd
}

func runHealth(cmd *cobra.Command, env *Env, opts *HealthOptions) error {
	s, err := env.open(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer s.close()

	names := []string{env.DataSource}
	if opts.All {
		names = names[:0]
		for name := range s.cfg.DataSources {
			names = append(names, name)
		}
		slices.Sort(names)
	}

	out := cmd.OutOrStdout()
	var failed []error
	for _, name := range names {
		h, err := probe(cmd.Context(), s, name, opts.Timeout)
		if err != nil {
			fmt.Fprintf(out, "%s\tDOWN\t%v\n", name, err)
			failed = append(failed, err)
			continue
		}
		fmt.Fprintf(out, "%s\tUP\t%s\t%s\n", name, h.Vendor, h.Version)
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d data sources unhealthy: %w", len(failed), len(names), errors.Join(failed...))
	}
	return nil
}

func probe(ctx context.Context, s *session, name string, timeout time.Duration) (database.Health, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	factory, err := s.dbs.Get(ctx, name)
	if err != nil {
		return database.Health{DataSource: name}, err
	}
	h, err := database.CheckHealth(ctx, factory)
	if err != nil {
		s.log.Error().Err(err).Str("datasource", name).Msg("Health check failed")
		return h, err
	}
	s.log.Debug().Str("datasource", name).Str("version", h.Version).Msg("Health check passed")
	return h, nil
}
