package commands

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-bricks-data/config"
	"github.com/gaborage/go-bricks-data/database"
	dbtest "github.com/gaborage/go-bricks-data/database/testing"
	"github.com/gaborage/go-bricks-data/database/types"
	"github.com/gaborage/go-bricks-data/logger"
)

const testConfig = `
app:
  name: datactl-test
log:
  level: error
datasources:
  default:
    type: sqlite
    database: app.db
  reporting:
    type: sqlite
    database: reporting.db
transactions:
  migrate:
    isolation: serializable
  reports:
    readonly: true
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// fakeEnv returns an Env whose data sources are fakes keyed by name.
func fakeEnv(t *testing.T, fakes map[string]*dbtest.FakeFactory) *Env {
	t.Helper()
	dir := t.TempDir()
	return &Env{
		ConfigPath: writeFile(t, dir, "config.yaml", testConfig),
		DataSource: "default",
		Connector: func(_ context.Context, name string, _ *config.DataSourceConfig, _ logger.Logger) (types.ConnectionFactory, error) {
			f, ok := fakes[name]
			if !ok {
				return nil, errors.New("no fake for " + name)
			}
			return f, nil
		},
	}
}

func execute(t *testing.T, cmd *cobra.Command, env *Env, args ...string) (string, error) {
	t.Helper()
	stdout, _, err := executeCapture(t, cmd, env, args...)
	return stdout, err
}

func executeCapture(t *testing.T, cmd *cobra.Command, env *Env, args ...string) (string, string, error) {
	t.Helper()
	root := &cobra.Command{Use: "datactl", SilenceUsage: true, SilenceErrors: true}
	env.BindFlags(root)
	root.AddCommand(cmd)

	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{cmd.Name()}, args...))
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, NewVersionCommand("v1.2.3"), DefaultEnv())
	require.NoError(t, err)
	assert.Contains(t, out, "datactl version v1.2.3\n")
	assert.Contains(t, out, "Built with ")
}

func TestHealthCommand(t *testing.T) {
	f := dbtest.NewFakeFactory(types.SQLite)
	f.ExpectQuery("sqlite_version").WillReturnRows(dbtest.NewRowSet("v").AddRow("3.45.0"))
	env := fakeEnv(t, map[string]*dbtest.FakeFactory{"default": f})

	out, err := execute(t, NewHealthCommand(env), env)

	require.NoError(t, err)
	assert.Equal(t, "default\tUP\tsqlite\t3.45.0\n", out)
	dbtest.AssertOps(t, f, 1, dbtest.OpCreate, dbtest.OpQuery, dbtest.OpClose)
}

func TestHealthCommandAllReportsFailures(t *testing.T) {
	up := dbtest.NewFakeFactory(types.SQLite)
	up.ExpectQuery("sqlite_version").WillReturnRows(dbtest.NewRowSet("v").AddRow("3.45.0"))
	down := dbtest.NewFakeFactory(types.SQLite).WithName("reporting")
	down.FailCreate(errors.New("disk I/O error"))
	env := fakeEnv(t, map[string]*dbtest.FakeFactory{"default": up, "reporting": down})

	out, err := execute(t, NewHealthCommand(env), env, "--all")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 data sources unhealthy")
	assert.Contains(t, out, "default\tUP")
	assert.Contains(t, out, "reporting\tDOWN")
}

func TestHealthCommandUnknownDataSource(t *testing.T) {
	env := fakeEnv(t, nil)

	_, err := execute(t, NewHealthCommand(env), env, "-d", "missing")

	require.Error(t, err)
	assert.True(t, config.IsNotConfigured(err))
}

func TestExecCommandCommitsScript(t *testing.T) {
	f := dbtest.NewFakeFactory(types.SQLite)
	f.ExpectExec("CREATE TABLE").WillReturnRowsAffected(0)
	f.ExpectExec("INSERT INTO tag").WillReturnRowsAffected(1)
	env := fakeEnv(t, map[string]*dbtest.FakeFactory{"default": f})
	script := writeFile(t, t.TempDir(), "seed.sql", `
-- schema
CREATE TABLE tag (id INTEGER PRIMARY KEY, name TEXT);
INSERT INTO tag (name) VALUES ('a;b');
INSERT INTO tag (name) VALUES ('c');
`)

	out, err := execute(t, NewExecCommand(env), env, script)

	require.NoError(t, err)
	assert.Contains(t, out, "statement 2: 1 row\n")
	assert.Contains(t, out, "committed 3 statements, 2 rows affected\n")
	dbtest.AssertOps(t, f, 1,
		dbtest.OpCreate, dbtest.OpBegin,
		dbtest.OpExecute, dbtest.OpExecute, dbtest.OpExecute,
		dbtest.OpCommit, dbtest.OpClose)
	assert.Equal(t, "INSERT INTO tag (name) VALUES ('a;b')", f.Journal()[3].SQL)
}

func TestExecCommandRollsBackOnFailure(t *testing.T) {
	f := dbtest.NewFakeFactory(types.SQLite)
	f.ExpectExec("INSERT").WillReturnRowsAffected(1)
	f.ExpectExec("UPDATE").WillReturnError(errors.New("no such column: nme"))
	env := fakeEnv(t, map[string]*dbtest.FakeFactory{"default": f})
	script := writeFile(t, t.TempDir(), "bad.sql", "INSERT INTO tag VALUES (1, 'a'); UPDATE tag SET nme = 'b';")

	out, err := execute(t, NewExecCommand(env), env, script)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "statement 2: no such column")
	assert.NotContains(t, out, "committed")
	dbtest.AssertOps(t, f, 1,
		dbtest.OpCreate, dbtest.OpBegin, dbtest.OpExecute, dbtest.OpExecute, dbtest.OpRollback, dbtest.OpClose)
}

func TestExecCommandNamedTransaction(t *testing.T) {
	f := dbtest.NewFakeFactory(types.SQLite)
	f.ExpectExec("DELETE").WillReturnRowsAffected(4)
	env := fakeEnv(t, map[string]*dbtest.FakeFactory{"default": f})
	script := writeFile(t, t.TempDir(), "purge.sql", "DELETE FROM tag")

	_, err := execute(t, NewExecCommand(env), env, "--transaction", "migrate", script)

	require.NoError(t, err)
	dbtest.AssertOps(t, f, 1,
		dbtest.OpCreate, dbtest.OpIsolation, dbtest.OpBegin, dbtest.OpExecute, dbtest.OpCommit, dbtest.OpClose)
	assert.Equal(t, types.IsolationSerializable, f.Journal()[1].Level)
}

func TestExecCommandRejectsReadOnlyTransaction(t *testing.T) {
	f := dbtest.NewFakeFactory(types.SQLite)
	env := fakeEnv(t, map[string]*dbtest.FakeFactory{"default": f})
	script := writeFile(t, t.TempDir(), "purge.sql", "DELETE FROM tag")

	_, err := execute(t, NewExecCommand(env), env, "--transaction", "reports", script)
	require.ErrorContains(t, err, "read-only")

	_, err = execute(t, NewExecCommand(env), env, "--transaction", "nope", script)
	require.ErrorContains(t, err, "not configured")
	assert.Empty(t, f.Journal())
}

func TestExecCommandDryRun(t *testing.T) {
	env := fakeEnv(t, nil)
	script := writeFile(t, t.TempDir(), "s.sql", "SELECT 1; /* two */ SELECT 2;")

	out, err := execute(t, NewExecCommand(env), env, "--dry-run", script)

	require.NoError(t, err)
	assert.Equal(t, "-- statement 1\nSELECT 1;\n-- statement 2\nSELECT 2;\n", out)
}

func TestExecCommandAgainstSQLite(t *testing.T) {
	dir := t.TempDir()
	env := &Env{
		ConfigPath: writeFile(t, dir, "config.yaml", `
app:
  name: datactl-sqlite
log:
  level: error
datasources:
  default:
    type: sqlite
    database: `+filepath.Join(dir, "app.db")+`
`),
		DataSource: "default",
		Connector:  database.NewConnectionFactory,
	}
	schema := writeFile(t, dir, "schema.sql", `
CREATE TABLE tag (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL);
INSERT INTO tag (name) VALUES ('go'), ('sql');
`)
	broken := writeFile(t, dir, "broken.sql", `
INSERT INTO tag (name) VALUES ('lost');
INSERT INTO tag (name) VALUES (NULL);
`)

	out, err := execute(t, NewExecCommand(env), env, schema)
	require.NoError(t, err)
	assert.Contains(t, out, "committed 2 statements, 2 rows affected")

	_, err = execute(t, NewExecCommand(env), env, broken)
	require.ErrorContains(t, err, "statement 2")

	out, stderr, err := executeCapture(t, NewHealthCommand(env), env, "--telemetry")
	require.NoError(t, err)
	assert.Contains(t, out, "default\tUP\tsqlite\t3.")
	assert.Contains(t, stderr, `"Name": "db.`, "spans of the tracked factory are exported")

	cfg, err := config.LoadFiles(env.ConfigPath)
	require.NoError(t, err)
	ds, err := cfg.DataSource("default")
	require.NoError(t, err)
	factory, err := database.NewConnectionFactory(context.Background(), "default", &ds, logger.NewNop())
	require.NoError(t, err)
	defer factory.Close()

	conn, err := factory.Create(context.Background())
	require.NoError(t, err)
	defer conn.Close(context.Background())
	stmt, err := conn.CreateStatement("SELECT COUNT(*) FROM tag")
	require.NoError(t, err)
	res, err := stmt.Query(context.Background())
	require.NoError(t, err)
	defer res.Close()
	for row, err := range res.Rows() {
		require.NoError(t, err)
		n, err := row.Get(0)
		require.NoError(t, err)
		assert.EqualValues(t, 2, n, "the failed script left no rows behind")
	}
}

func TestSplitScript(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   []string
	}{
		{name: "empty", script: " \n-- only a comment\n", want: nil},
		{name: "trailing statement without semicolon", script: "SELECT 1; SELECT 2", want: []string{"SELECT 1", "SELECT 2"}},
		{name: "semicolon in literal", script: "INSERT INTO t VALUES ('x;y', 'it''s');", want: []string{"INSERT INTO t VALUES ('x;y', 'it''s')"}},
		{name: "quoted identifier", script: `SELECT "a;b" FROM t;`, want: []string{`SELECT "a;b" FROM t`}},
		{name: "comments dropped", script: "SELECT 1 -- one; two\n; /* x; */ SELECT 2;", want: []string{"SELECT 1", "SELECT 2"}},
		{
			name:   "dollar quoted body",
			script: "CREATE FUNCTION f() RETURNS int AS $body$ BEGIN RETURN 1; END $body$ LANGUAGE plpgsql; SELECT f();",
			want:   []string{"CREATE FUNCTION f() RETURNS int AS $body$ BEGIN RETURN 1; END $body$ LANGUAGE plpgsql", "SELECT f()"},
		},
		{name: "positional parameter", script: "SELECT $1; SELECT $2", want: []string{"SELECT $1", "SELECT $2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitScript(tt.script))
		})
	}
}
