package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gaborage/go-bricks-data/database/types"
	"github.com/gaborage/go-bricks-data/transaction"
)

// ExecOptions holds options for the exec command
type ExecOptions struct {
	Transaction string
	Isolation   string
	Timeout     time.Duration
	DryRun      bool
}

// NewExecCommand creates the exec command
func NewExecCommand(env *Env) *cobra.Command {
	opts := &ExecOptions{}

	cmd := &cobra.Command{
		Use:   "exec <file>",
		Short: "Run a SQL script in one transaction",
		Long: `Splits the script on semicolons and executes every statement inside a
single transaction. The first failing statement rolls the whole script back.

Transaction attributes come from the transactions section of the
configuration when --transaction names an entry there.`,
		Example: `  # Apply a seed script to the default data source
  datactl exec seed.sql

  # Use the attributes declared under transactions.migrate
  datactl exec -d reporting --transaction migrate schema.sql

  # List the statements without running them
  datactl exec --dry-run schema.sql`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(cmd, env, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Transaction, "transaction", "", "Named transaction definition from the configuration")
	cmd.Flags().StringVar(&opts.Isolation, "isolation", "", "Isolation level override, e.g. SERIALIZABLE")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "Transaction timeout (0 keeps the configured one)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Print the statements without executing them")

	return cmd
}

func runExec(cmd *cobra.Command, env *Env, opts *ExecOptions, path string) error {
	script, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}
	stmts := splitScript(string(script))
	if len(stmts) == 0 {
		return fmt.Errorf("script %s contains no statements", path)
	}

	out := cmd.OutOrStdout()
	if opts.DryRun {
		for i, sql := range stmts {
			fmt.Fprintf(out, "-- statement %d\n%s;\n", i+1, sql)
		}
		return nil
	}

	s, err := env.open(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer s.close()

	def, err := execDefinition(s, opts)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	factory, err := s.dbs.Get(ctx, env.DataSource)
	if err != nil {
		return err
	}
	tx := transaction.NewManager(factory, s.log)

	var total int64
	err = tx.WithTransaction(ctx, def, func(ctx context.Context, st *transaction.Status) error {
		for i, sql := range stmts {
			n, err := execStatement(ctx, st.Connection(), sql)
			if err != nil {
				return fmt.Errorf("statement %d: %w", i+1, err)
			}
			if n >= 0 {
				total += n
			}
			fmt.Fprintf(out, "statement %d: %s\n", i+1, rowsLabel(n))
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "committed %d statements, %d rows affected\n", len(stmts), total)
	return nil
}

// execDefinition resolves the transaction attributes of one run. A script
// always writes, so a read-only or non-transactional propagation is rejected.
func execDefinition(s *session, opts *ExecOptions) (transaction.Definition, error) {
	reg, err := transaction.NewRegistry(s.cfg.Transactions, nil)
	if err != nil {
		return transaction.Definition{}, err
	}

	def := transaction.Definition{Name: "datactl.exec"}
	if opts.Transaction != "" {
		var ok bool
		if def, ok = reg.Lookup(opts.Transaction); !ok {
			return def, fmt.Errorf("transaction %q is not configured (known: %v)", opts.Transaction, reg.Names())
		}
	}
	if opts.Isolation != "" {
		if def.Isolation, err = types.ParseIsolationLevel(opts.Isolation); err != nil {
			return def, err
		}
	}
	if opts.Timeout > 0 {
		def.Timeout = opts.Timeout
	}

	if def.ReadOnly {
		return def, fmt.Errorf("transaction %q is read-only", def.Name)
	}
	switch def.Propagation {
	case transaction.Supports, transaction.NotSupported, transaction.Never:
		return def, fmt.Errorf("transaction %q uses propagation %s, which does not start a transaction", def.Name, def.Propagation)
	}
	return def, nil
}

func execStatement(ctx context.Context, conn types.Connection, sql string) (int64, error) {
	stmt, err := conn.CreateStatement(sql)
	if err != nil {
		return 0, err
	}
	res, err := stmt.Execute(ctx)
	if err != nil {
		return 0, err
	}
	n := res.RowsUpdated()
	return n, res.Close()
}

func rowsLabel(n int64) string {
	switch {
	case n < 0:
		return "ok"
	case n == 1:
		return "1 row"
	default:
		return fmt.Sprintf("%d rows", n)
	}
}
