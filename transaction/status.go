package transaction

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/gaborage/go-bricks-data/database/types"
)

// Status is the state of one transaction as seen by the code running in it.
type Status struct {
	id            uuid.UUID
	conn          types.Connection
	def           Definition
	isNew         bool
	transactional bool
	dataSource    string

	rollbackOnly atomic.Bool
	completed    atomic.Bool
}

// NewStatus describes a transaction the caller began on conn. Operations
// given this status participate in it; the caller keeps ownership of commit,
// rollback and close.
func NewStatus(conn types.Connection, def Definition) *Status {
	return &Status{id: uuid.New(), conn: conn, def: def, transactional: true}
}

func (s *Status) ID() uuid.UUID { return s.id }

func (s *Status) Connection() types.Connection { return s.conn }

func (s *Status) Definition() Definition { return s.def }

// IsNewTransaction reports whether the manager began this transaction and
// will complete it.
func (s *Status) IsNewTransaction() bool { return s.isNew }

// IsTransactional is false for the status handed to SUPPORTS, NOT_SUPPORTED
// and NEVER handlers running on a plain connection.
func (s *Status) IsTransactional() bool { return s.transactional }

func (s *Status) IsReadOnly() bool { return s.def.ReadOnly }

// SetRollbackOnly makes the owner roll back instead of commit.
func (s *Status) SetRollbackOnly() { s.rollbackOnly.Store(true) }

func (s *Status) IsRollbackOnly() bool { return s.rollbackOnly.Load() }

// IsCompleted reports whether commit or rollback has finished.
func (s *Status) IsCompleted() bool { return s.completed.Load() }

// markCompleted returns false when the status was already completed.
func (s *Status) markCompleted() bool { return s.completed.CompareAndSwap(false, true) }

type statusKey struct{}

type connectionKey struct{}

// ContextWithStatus makes s the ambient transaction of ctx.
func ContextWithStatus(ctx context.Context, s *Status) context.Context {
	return context.WithValue(ctx, statusKey{}, s)
}

// StatusFrom returns the ambient transaction of ctx, or nil.
func StatusFrom(ctx context.Context) *Status {
	s, _ := ctx.Value(statusKey{}).(*Status)
	return s
}

// ContextWithConnection makes conn the ambient connection of ctx. Operations
// reuse it without opening or closing anything.
func ContextWithConnection(ctx context.Context, conn types.Connection) context.Context {
	return context.WithValue(ctx, connectionKey{}, conn)
}

// ConnectionFrom returns the ambient connection of ctx: the connection of the
// ambient transaction, else a connection set with ContextWithConnection.
func ConnectionFrom(ctx context.Context) types.Connection {
	if s := StatusFrom(ctx); s != nil {
		return s.conn
	}
	c, _ := ctx.Value(connectionKey{}).(types.Connection)
	return c
}
