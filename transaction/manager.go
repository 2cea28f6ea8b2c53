// Package transaction manages connection and transaction scopes over the
// driver SPI. A scope either joins the ambient transaction carried by the
// context or owns exactly one new connection, which it begins, completes and
// releases.
package transaction

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/gaborage/go-bricks-data/database/types"
	"github.com/gaborage/go-bricks-data/logger"
)

// ConnectionHandler runs with a borrowed connection.
type ConnectionHandler func(ctx context.Context, conn types.Connection) error

// Handler runs inside a transaction scope.
type Handler func(ctx context.Context, status *Status) error

// Manager opens scopes on a single connection factory. It is safe for
// concurrent use; each scope owns its own connection.
type Manager struct {
	factory types.ConnectionFactory
	log     logger.Logger
}

// NewManager returns a manager for factory. A nil log disables logging.
func NewManager(factory types.ConnectionFactory, log logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNop()
	}
	return &Manager{factory: factory, log: log}
}

func (m *Manager) Factory() types.ConnectionFactory { return m.factory }

func (m *Manager) dataSource() string { return m.factory.Metadata().Name }

func (m *Manager) autoClose() bool { return m.factory.Metadata().AutoClosesOnTransactionEnd }

// WithConnection runs fn with the ambient connection of ctx, or with a new
// connection that is closed when fn returns.
func (m *Manager) WithConnection(ctx context.Context, fn ConnectionHandler) (err error) {
	if conn := ConnectionFrom(ctx); conn != nil {
		return fn(ctx, conn)
	}

	conn, err := m.connect(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if cerr := m.release(context.WithoutCancel(ctx), conn); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(ContextWithConnection(ctx, conn), conn)
}

// WithTransaction runs fn in a transaction scope chosen by def.Propagation.
//
// With an ambient transaction in ctx, NOT_SUPPORTED and NEVER fail with a
// TransactionUsageError, REQUIRES_NEW starts an independent transaction on a
// new connection, and every other propagation runs fn in the ambient
// transaction without touching its connection. Without one, MANDATORY fails
// with ErrNoTransaction; SUPPORTS, NOT_SUPPORTED and NEVER run fn on a plain
// connection; the rest start a new transaction.
func (m *Manager) WithTransaction(ctx context.Context, def Definition, fn Handler) error {
	if ambient := StatusFrom(ctx); ambient != nil {
		switch def.Propagation {
		case NotSupported, Never:
			return usageError("propagation %s does not allow an existing transaction", def.Propagation)
		case RequiresNew:
			return m.newTransaction(ctx, def, fn)
		default:
			return m.participate(ctx, ambient, fn)
		}
	}

	switch def.Propagation {
	case Mandatory:
		return ErrNoTransaction
	case Supports, NotSupported, Never:
		return m.WithConnection(ctx, func(ctx context.Context, conn types.Connection) error {
			st := &Status{conn: conn, def: def, dataSource: m.dataSource()}
			_, err := run(ctx, st, fn)
			return err
		})
	default:
		return m.newTransaction(ctx, def, fn)
	}
}

// WithTransactionStatus runs fn in the explicit transaction described by
// status. The manager issues no begin, commit, rollback or close.
func (m *Manager) WithTransactionStatus(ctx context.Context, status *Status, fn Handler) error {
	if status == nil {
		return &TransactionSystemError{Err: errors.New("nil transaction status")}
	}
	return m.participate(ContextWithStatus(ctx, status), status, fn)
}

// CheckWritable fails when a write under def would run in a read-only
// transaction.
func (m *Manager) CheckWritable(ctx context.Context, def Definition) error {
	if def.ReadOnly {
		return usageError("cannot execute a write operation in a read-only transaction")
	}
	if ambient := StatusFrom(ctx); ambient != nil && ambient.IsReadOnly() && def.Propagation != RequiresNew {
		return usageError("cannot execute a write operation in read-only transaction %s", ambient.ID())
	}
	return nil
}

func (m *Manager) participate(ctx context.Context, st *Status, fn Handler) error {
	out, err := run(ctx, st, fn)
	if out == outcomeFailure && !st.def.noRollback(err) {
		st.SetRollbackOnly()
	}
	return err
}

func (m *Manager) connect(ctx context.Context) (types.Connection, error) {
	m.log.Debug().Str("dataSource", m.dataSource()).Msg("Creating a new connection")
	conn, err := m.factory.Create(ctx)
	if err != nil {
		return nil, fmt.Errorf("create connection for data source %s: %w", m.dataSource(), err)
	}
	return conn, nil
}

func (m *Manager) release(ctx context.Context, conn types.Connection) error {
	if m.autoClose() {
		return nil
	}
	if err := conn.Close(ctx); err != nil {
		return fmt.Errorf("close connection: %w", err)
	}
	return nil
}

func (m *Manager) newTransaction(ctx context.Context, def Definition, fn Handler) error {
	if def.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, def.Timeout)
		defer cancel()
	}

	conn, err := m.connect(ctx)
	if err != nil {
		return err
	}

	if def.Isolation != types.IsolationDefault {
		m.log.Debug().Str("dataSource", m.dataSource()).Str("isolation", def.Isolation.String()).Msg("Setting isolation level")
		if err := conn.SetTransactionIsolationLevel(ctx, def.Isolation); err != nil {
			return m.abort(ctx, conn, fmt.Errorf("set isolation level %s: %w", def.Isolation, err))
		}
	}

	st := &Status{
		id:            uuid.New(),
		conn:          conn,
		def:           def,
		isNew:         true,
		transactional: true,
		dataSource:    m.dataSource(),
	}
	m.log.Debug().Str("dataSource", st.dataSource).Str("transaction", st.id.String()).
		Bool("readOnly", def.ReadOnly).Msg("Transaction begin")
	if err := conn.BeginTransaction(ctx, types.TransactionOptions{ReadOnly: def.ReadOnly}); err != nil {
		return m.abort(ctx, conn, fmt.Errorf("begin transaction: %w", err))
	}

	out, err := run(ContextWithStatus(ctx, st), st, fn)
	return m.complete(ctx, st, out, err)
}

// abort releases a connection whose transaction never began.
func (m *Manager) abort(ctx context.Context, conn types.Connection, err error) error {
	if cerr := m.release(context.WithoutCancel(ctx), conn); cerr != nil {
		m.log.Warn().Err(cerr).Str("dataSource", m.dataSource()).Msg("Failed to close connection")
	}
	return err
}

// complete commits or rolls back st, marks it completed and releases its
// connection. Cleanup runs on a context that ignores cancellation.
func (m *Manager) complete(ctx context.Context, st *Status, out outcome, err error) error {
	cleanup := context.WithoutCancel(ctx)
	conn := st.conn
	log := m.log.WithFields(map[string]any{"dataSource": st.dataSource, "transaction": st.id.String()})

	switch decideCompletion(out, st.IsRollbackOnly(), err, st.def.NoRollbackFor) {
	case commit:
		log.Debug().Msg("Committing transaction")
		if cerr := conn.CommitTransaction(cleanup); cerr != nil {
			cerr = fmt.Errorf("commit transaction: %w", cerr)
			if err != nil {
				err = errors.Join(err, cerr)
			} else {
				err = cerr
			}
		}
	case rollback:
		if err != nil {
			log.Warn().Err(err).Msg("Rolling back transaction on error")
		} else {
			log.Debug().Msg("Rolling back transaction")
		}
		if rerr := conn.RollbackTransaction(cleanup); rerr != nil {
			log.Warn().Err(rerr).Msg("Error occurred during transaction rollback")
			if err != nil {
				err = &RollbackError{Err: err, RollbackErr: rerr}
			} else {
				err = fmt.Errorf("rollback transaction: %w", rerr)
			}
		}
	}
	st.markCompleted()

	if cerr := m.release(cleanup, conn); cerr != nil {
		if err == nil {
			return cerr
		}
		log.Warn().Err(cerr).Msg("Failed to close connection")
	}
	return err
}
