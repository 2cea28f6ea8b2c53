package transaction

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-bricks-data/config"
	dbtest "github.com/gaborage/go-bricks-data/database/testing"
	"github.com/gaborage/go-bricks-data/database/types"
	"github.com/gaborage/go-bricks-data/logger"
)

var errBoom = errors.New("boom")

func newFake() (*dbtest.FakeFactory, *Manager) {
	f := dbtest.NewFakeFactory(types.PostgreSQL)
	f.ExpectExec("UPDATE")
	return f, NewManager(f, nil)
}

func execUpdate(ctx context.Context, conn types.Connection) error {
	stmt, err := conn.CreateStatement("UPDATE book SET title = $1")
	if err != nil {
		return err
	}
	if err := stmt.Bind(0, "x"); err != nil {
		return err
	}
	_, err = stmt.Execute(ctx)
	return err
}

func TestNewTransactionCommitsAndCloses(t *testing.T) {
	f, m := newFake()
	var seen *Status

	err := m.WithTransaction(context.Background(), DefaultDefinition(), func(ctx context.Context, st *Status) error {
		seen = st
		assert.Same(t, st, StatusFrom(ctx))
		assert.True(t, st.IsNewTransaction())
		assert.True(t, st.IsTransactional())
		return execUpdate(ctx, st.Connection())
	})

	require.NoError(t, err)
	dbtest.AssertOps(t, f, 1, dbtest.OpCreate, dbtest.OpBegin, dbtest.OpExecute, dbtest.OpCommit, dbtest.OpClose)
	assert.True(t, seen.IsCompleted())
}

func TestFailureRollsBackWithOriginalError(t *testing.T) {
	f, m := newFake()

	err := m.WithTransaction(context.Background(), DefaultDefinition(), func(ctx context.Context, st *Status) error {
		require.NoError(t, execUpdate(ctx, st.Connection()))
		return errBoom
	})

	require.ErrorIs(t, err, errBoom)
	dbtest.AssertOps(t, f, 1, dbtest.OpCreate, dbtest.OpBegin, dbtest.OpExecute, dbtest.OpRollback, dbtest.OpClose)
	dbtest.AssertNoOp(t, f, dbtest.OpCommit)
}

func TestRollbackFailureKeepsOriginalErrorPrimary(t *testing.T) {
	f, m := newFake()
	errRollback := errors.New("rollback broke")
	f.FailRollback(errRollback)

	err := m.WithTransaction(context.Background(), DefaultDefinition(), func(context.Context, *Status) error {
		return errBoom
	})

	var rbErr *RollbackError
	require.ErrorAs(t, err, &rbErr)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, errRollback, rbErr.RollbackErr)
	dbtest.AssertOps(t, f, 1, dbtest.OpCreate, dbtest.OpBegin, dbtest.OpRollback, dbtest.OpClose)
}

func TestCommitFailure(t *testing.T) {
	f, m := newFake()
	f.FailCommit(errBoom)

	err := m.WithTransaction(context.Background(), DefaultDefinition(), func(context.Context, *Status) error { return nil })

	require.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), "commit transaction")
	dbtest.AssertOps(t, f, 1, dbtest.OpCreate, dbtest.OpBegin, dbtest.OpCommit, dbtest.OpClose)
}

func TestCloseFailureSurfacesWhenNothingElseFailed(t *testing.T) {
	f, m := newFake()
	f.FailClose(errBoom)

	err := m.WithTransaction(context.Background(), DefaultDefinition(), func(context.Context, *Status) error { return nil })
	require.ErrorIs(t, err, errBoom)

	err = m.WithTransaction(context.Background(), DefaultDefinition(), func(context.Context, *Status) error {
		return errRead
	})
	assert.ErrorIs(t, err, errRead)
	assert.NotErrorIs(t, err, errBoom)
}

var errRead = errors.New("read failed")

func TestAutoCloseSkipsClose(t *testing.T) {
	f, m := newFake()
	f.WithAutoClose()

	require.NoError(t, m.WithTransaction(context.Background(), DefaultDefinition(), func(ctx context.Context, st *Status) error {
		return execUpdate(ctx, st.Connection())
	}))
	require.NoError(t, m.WithConnection(context.Background(), func(context.Context, types.Connection) error { return nil }))

	dbtest.AssertOps(t, f, 1, dbtest.OpCreate, dbtest.OpBegin, dbtest.OpExecute, dbtest.OpCommit)
	dbtest.AssertOps(t, f, 2, dbtest.OpCreate)
	dbtest.AssertNoOp(t, f, dbtest.OpClose)
}

func TestWithConnectionReusesAmbientConnection(t *testing.T) {
	f, m := newFake()

	err := m.WithConnection(context.Background(), func(ctx context.Context, outer types.Connection) error {
		return m.WithConnection(ctx, func(ctx context.Context, inner types.Connection) error {
			assert.Same(t, outer, inner)
			return execUpdate(ctx, inner)
		})
	})

	require.NoError(t, err)
	assert.Equal(t, 1, f.Connections())
	dbtest.AssertOps(t, f, 1, dbtest.OpCreate, dbtest.OpExecute, dbtest.OpClose)
}

func TestParticipatingNeverTouchesLifecycle(t *testing.T) {
	for _, p := range []Propagation{Required, Supports, Mandatory, Nested} {
		t.Run(p.String(), func(t *testing.T) {
			f, m := newFake()

			err := m.WithTransaction(context.Background(), DefaultDefinition(), func(ctx context.Context, outer *Status) error {
				return m.WithTransaction(ctx, Definition{Propagation: p}, func(ctx context.Context, inner *Status) error {
					assert.Same(t, outer, inner)
					assert.False(t, inner.IsCompleted())
					return execUpdate(ctx, inner.Connection())
				})
			})

			require.NoError(t, err)
			assert.Equal(t, 1, f.Connections())
			dbtest.AssertOps(t, f, 1, dbtest.OpCreate, dbtest.OpBegin, dbtest.OpExecute, dbtest.OpCommit, dbtest.OpClose)
		})
	}
}

func TestExplicitStatusOwnedByCaller(t *testing.T) {
	f, m := newFake()
	ctx := context.Background()
	conn, err := f.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, conn.BeginTransaction(ctx, types.TransactionOptions{}))
	st := NewStatus(conn, DefaultDefinition())

	err = m.WithTransactionStatus(ctx, st, func(ctx context.Context, got *Status) error {
		assert.Same(t, st, got)
		assert.False(t, got.IsNewTransaction())
		return m.WithTransaction(ctx, DefaultDefinition(), func(ctx context.Context, inner *Status) error {
			return execUpdate(ctx, inner.Connection())
		})
	})

	require.NoError(t, err)
	dbtest.AssertOps(t, f, 1, dbtest.OpCreate, dbtest.OpBegin, dbtest.OpExecute)
	assert.False(t, st.IsCompleted())
}

func TestParticipantFailureMarksRollbackOnly(t *testing.T) {
	f, m := newFake()

	err := m.WithTransaction(context.Background(), DefaultDefinition(), func(ctx context.Context, outer *Status) error {
		inner := m.WithTransaction(ctx, DefaultDefinition(), func(context.Context, *Status) error { return errBoom })
		assert.ErrorIs(t, inner, errBoom)
		assert.True(t, outer.IsRollbackOnly())
		return nil
	})

	require.NoError(t, err)
	dbtest.AssertOps(t, f, 1, dbtest.OpCreate, dbtest.OpBegin, dbtest.OpRollback, dbtest.OpClose)
}

func TestPropagationRejectsExistingTransaction(t *testing.T) {
	for _, p := range []Propagation{NotSupported, Never} {
		t.Run(p.String(), func(t *testing.T) {
			f, m := newFake()
			called := false

			err := m.WithTransaction(context.Background(), DefaultDefinition(), func(ctx context.Context, _ *Status) error {
				return m.WithTransaction(ctx, Definition{Propagation: p}, func(context.Context, *Status) error {
					called = true
					return nil
				})
			})

			var usage *TransactionUsageError
			require.ErrorAs(t, err, &usage)
			assert.False(t, called)
			assert.Equal(t, 1, f.Connections())
			dbtest.AssertOps(t, f, 1, dbtest.OpCreate, dbtest.OpBegin, dbtest.OpRollback, dbtest.OpClose)
		})
	}
}

func TestMandatoryWithoutTransaction(t *testing.T) {
	f, m := newFake()

	err := m.WithTransaction(context.Background(), Definition{Propagation: Mandatory}, func(context.Context, *Status) error {
		t.Fatal("handler must not run")
		return nil
	})

	require.ErrorIs(t, err, ErrNoTransaction)
	assert.Empty(t, f.Journal())
}

func TestNonTransactionalPropagationsUsePlainConnection(t *testing.T) {
	for _, p := range []Propagation{Supports, NotSupported, Never} {
		t.Run(p.String(), func(t *testing.T) {
			f, m := newFake()

			err := m.WithTransaction(context.Background(), Definition{Propagation: p}, func(ctx context.Context, st *Status) error {
				assert.False(t, st.IsTransactional())
				assert.Nil(t, StatusFrom(ctx))
				return execUpdate(ctx, st.Connection())
			})

			require.NoError(t, err)
			dbtest.AssertOps(t, f, 1, dbtest.OpCreate, dbtest.OpExecute, dbtest.OpClose)
		})
	}
}

func TestRequiresNewUsesSecondConnection(t *testing.T) {
	f, m := newFake()

	err := m.WithTransaction(context.Background(), DefaultDefinition(), func(ctx context.Context, outer *Status) error {
		return m.WithTransaction(ctx, Definition{Propagation: RequiresNew}, func(ctx context.Context, inner *Status) error {
			assert.NotSame(t, outer, inner)
			assert.NotEqual(t, outer.ID(), inner.ID())
			return execUpdate(ctx, inner.Connection())
		})
	})

	require.NoError(t, err)
	assert.Equal(t, 2, f.Connections())
	dbtest.AssertOps(t, f, 1, dbtest.OpCreate, dbtest.OpBegin, dbtest.OpCommit, dbtest.OpClose)
	dbtest.AssertOps(t, f, 2, dbtest.OpCreate, dbtest.OpBegin, dbtest.OpExecute, dbtest.OpCommit, dbtest.OpClose)
}

func TestIsolationAppliedBeforeBegin(t *testing.T) {
	f, m := newFake()
	def := Definition{Isolation: types.IsolationSerializable, ReadOnly: true}

	require.NoError(t, m.WithTransaction(context.Background(), def, func(context.Context, *Status) error { return nil }))

	dbtest.AssertOps(t, f, 1, dbtest.OpCreate, dbtest.OpIsolation, dbtest.OpBegin, dbtest.OpCommit, dbtest.OpClose)
	begin := f.Journal()[2]
	assert.True(t, begin.ReadOnly)
	assert.Equal(t, types.IsolationSerializable, begin.Level)
}

func TestBeginFailureReleasesConnection(t *testing.T) {
	f, m := newFake()
	f.FailBegin(errBoom)

	err := m.WithTransaction(context.Background(), DefaultDefinition(), func(context.Context, *Status) error {
		t.Fatal("handler must not run")
		return nil
	})

	require.ErrorIs(t, err, errBoom)
	dbtest.AssertOps(t, f, 1, dbtest.OpCreate, dbtest.OpBegin, dbtest.OpClose)
}

func TestCreateFailure(t *testing.T) {
	f, m := newFake()
	f.FailCreate(errBoom)

	err := m.WithConnection(context.Background(), func(context.Context, types.Connection) error { return nil })
	require.ErrorIs(t, err, errBoom)
	dbtest.AssertOps(t, f, 1, dbtest.OpCreate)
}

func TestPanicRollsBack(t *testing.T) {
	f, m := newFake()

	err := m.WithTransaction(context.Background(), DefaultDefinition(), func(context.Context, *Status) error {
		panic("kaboom")
	})

	var sys *TransactionSystemError
	require.ErrorAs(t, err, &sys)
	assert.Equal(t, "kaboom", sys.Panic)
	dbtest.AssertOps(t, f, 1, dbtest.OpCreate, dbtest.OpBegin, dbtest.OpRollback, dbtest.OpClose)
}

func TestRollbackOnlyAndNoRollbackFor(t *testing.T) {
	t.Run("rollback only", func(t *testing.T) {
		f, m := newFake()
		err := m.WithTransaction(context.Background(), DefaultDefinition(), func(_ context.Context, st *Status) error {
			st.SetRollbackOnly()
			return nil
		})
		require.NoError(t, err)
		dbtest.AssertOps(t, f, 1, dbtest.OpCreate, dbtest.OpBegin, dbtest.OpRollback, dbtest.OpClose)
	})

	t.Run("no rollback for", func(t *testing.T) {
		f, m := newFake()
		def := Definition{NoRollbackFor: []error{errRead}}
		err := m.WithTransaction(context.Background(), def, func(context.Context, *Status) error {
			return errors.Join(errors.New("lookup"), errRead)
		})
		require.ErrorIs(t, err, errRead)
		dbtest.AssertOps(t, f, 1, dbtest.OpCreate, dbtest.OpBegin, dbtest.OpCommit, dbtest.OpClose)
	})
}

func TestContextCancellationRollsBack(t *testing.T) {
	f, m := newFake()
	ctx, cancel := context.WithCancel(context.Background())

	err := m.WithTransaction(ctx, DefaultDefinition(), func(context.Context, *Status) error {
		cancel()
		return nil
	})

	require.ErrorIs(t, err, context.Canceled)
	dbtest.AssertOps(t, f, 1, dbtest.OpCreate, dbtest.OpBegin, dbtest.OpRollback, dbtest.OpClose)
}

func TestTimeoutBecomesDeadline(t *testing.T) {
	f, m := newFake()

	err := m.WithTransaction(context.Background(), Definition{Timeout: 20 * time.Millisecond}, func(ctx context.Context, _ *Status) error {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		<-ctx.Done()
		return ctx.Err()
	})

	require.ErrorIs(t, err, context.DeadlineExceeded)
	dbtest.AssertOps(t, f, 1, dbtest.OpCreate, dbtest.OpBegin, dbtest.OpRollback, dbtest.OpClose)
}

func TestCheckWritable(t *testing.T) {
	_, m := newFake()
	ctx := context.Background()

	var usage *TransactionUsageError
	assert.ErrorAs(t, m.CheckWritable(ctx, Definition{ReadOnly: true}), &usage)
	assert.NoError(t, m.CheckWritable(ctx, DefaultDefinition()))

	readOnly := ContextWithStatus(ctx, NewStatus(nil, Definition{ReadOnly: true}))
	assert.ErrorAs(t, m.CheckWritable(readOnly, DefaultDefinition()), &usage)
	assert.NoError(t, m.CheckWritable(readOnly, Definition{Propagation: RequiresNew}))
}

func TestDecideCompletion(t *testing.T) {
	tests := []struct {
		name         string
		out          outcome
		rollbackOnly bool
		err          error
		want         completion
	}{
		{"success commits", outcomeSuccess, false, nil, commit},
		{"success rollback only", outcomeSuccess, true, nil, rollback},
		{"failure rolls back", outcomeFailure, false, errBoom, rollback},
		{"failure no rollback for", outcomeFailure, false, errRead, commit},
		{"failure no rollback for but rollback only", outcomeFailure, true, errRead, rollback},
		{"cancelled commits", outcomeCancelled, false, nil, commit},
		{"cancelled rollback only", outcomeCancelled, true, nil, rollback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decideCompletion(tt.out, tt.rollbackOnly, tt.err, []error{errRead}))
		})
	}
}

func numbers(n int, failAt int) iter.Seq2[int, error] {
	return func(yield func(int, error) bool) {
		for i := 1; i <= n; i++ {
			if i == failAt {
				yield(0, errBoom)
				return
			}
			if !yield(i, nil) {
				return
			}
		}
	}
}

func TestStreamInTransactionEarlyBreakCommits(t *testing.T) {
	f, m := newFake()
	var got []int

	stream := StreamInTransaction(context.Background(), m, DefaultDefinition(), func(context.Context, *Status) iter.Seq2[int, error] {
		return numbers(5, 0)
	})
	for v, err := range stream {
		require.NoError(t, err)
		got = append(got, v)
		if v == 2 {
			break
		}
	}

	assert.Equal(t, []int{1, 2}, got)
	dbtest.AssertOps(t, f, 1, dbtest.OpCreate, dbtest.OpBegin, dbtest.OpCommit, dbtest.OpClose)
}

func TestStreamInTransactionErrorRollsBack(t *testing.T) {
	f, m := newFake()
	var got []int
	var streamErr error

	stream := StreamInTransaction(context.Background(), m, DefaultDefinition(), func(context.Context, *Status) iter.Seq2[int, error] {
		return numbers(5, 3)
	})
	for v, err := range stream {
		if err != nil {
			streamErr = err
			continue
		}
		got = append(got, v)
	}

	assert.Equal(t, []int{1, 2}, got)
	require.ErrorIs(t, streamErr, errBoom)
	dbtest.AssertOps(t, f, 1, dbtest.OpCreate, dbtest.OpBegin, dbtest.OpRollback, dbtest.OpClose)
}

func TestStreamInTransactionConsumerPanic(t *testing.T) {
	f, m := newFake()

	stream := StreamInTransaction(context.Background(), m, DefaultDefinition(), func(context.Context, *Status) iter.Seq2[int, error] {
		return numbers(5, 0)
	})
	assert.PanicsWithValue(t, "consumer", func() {
		for range stream {
			panic("consumer")
		}
	})
	dbtest.AssertOps(t, f, 1, dbtest.OpCreate, dbtest.OpBegin, dbtest.OpRollback, dbtest.OpClose)
}

func TestStreamInConnection(t *testing.T) {
	f, m := newFake()
	total := 0

	stream := StreamInConnection(context.Background(), m, func(context.Context, types.Connection) iter.Seq2[int, error] {
		return numbers(3, 0)
	})
	for v, err := range stream {
		require.NoError(t, err)
		total += v
	}

	assert.Equal(t, 6, total)
	dbtest.AssertOps(t, f, 1, dbtest.OpCreate, dbtest.OpClose)
}

func TestLifecycleLogging(t *testing.T) {
	var buf bytes.Buffer
	f := dbtest.NewFakeFactory(types.PostgreSQL).WithName("orders")
	m := NewManager(f, logger.NewWithWriter(&buf, "debug", nil))

	err := m.WithTransaction(context.Background(), DefaultDefinition(), func(context.Context, *Status) error { return errBoom })
	require.ErrorIs(t, err, errBoom)

	out := buf.String()
	assert.Contains(t, out, "Creating a new connection")
	assert.Contains(t, out, "Transaction begin")
	assert.Contains(t, out, "Rolling back transaction on error")
	assert.Contains(t, out, `"dataSource":"orders"`)
}

func TestStatusCompletesOnce(t *testing.T) {
	st := NewStatus(nil, DefaultDefinition())
	assert.True(t, st.markCompleted())
	assert.False(t, st.markCompleted())
	assert.True(t, st.IsCompleted())
}

func TestParsePropagation(t *testing.T) {
	p, err := ParsePropagation("requires_new")
	require.NoError(t, err)
	assert.Equal(t, RequiresNew, p)

	p, err = ParsePropagation("")
	require.NoError(t, err)
	assert.Equal(t, Required, p)

	_, err = ParsePropagation("sometimes")
	assert.Error(t, err)
}

func TestRegistryFromConfig(t *testing.T) {
	errDuplicate := errors.New("duplicate")
	r, err := NewRegistry(map[string]config.TransactionConfig{
		"saveOrder": {Propagation: "REQUIRES_NEW", Isolation: "SERIALIZABLE", Timeout: 5 * time.Second, NoRollbackFor: []string{"ErrDuplicate"}},
		"report":    {ReadOnly: true},
	}, map[string]error{"ErrDuplicate": errDuplicate})
	require.NoError(t, err)

	def, ok := r.Lookup("saveOrder")
	require.True(t, ok)
	assert.Equal(t, RequiresNew, def.Propagation)
	assert.Equal(t, types.IsolationSerializable, def.Isolation)
	assert.Equal(t, 5*time.Second, def.Timeout)
	assert.True(t, def.noRollback(errDuplicate))

	assert.True(t, r.Definition("report").ReadOnly)
	assert.Equal(t, Definition{Name: "other"}, r.Definition("other"))
	assert.Equal(t, []string{"report", "saveOrder"}, r.Names())

	_, err = NewRegistry(map[string]config.TransactionConfig{
		"bad": {NoRollbackFor: []string{"ErrMissing"}},
	}, nil)
	assert.ErrorContains(t, err, "ErrMissing")
}
