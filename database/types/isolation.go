package types

import (
	"database/sql"
	"fmt"
	"strings"
)

// IsolationLevel is a transaction isolation level. IsolationDefault leaves the
// driver's setting untouched.
type IsolationLevel int

const (
	IsolationDefault IsolationLevel = iota
	IsolationReadUncommitted
	IsolationReadCommitted
	IsolationRepeatableRead
	IsolationSerializable
)

var isolationNames = [...]string{
	IsolationDefault:         "DEFAULT",
	IsolationReadUncommitted: "READ_UNCOMMITTED",
	IsolationReadCommitted:   "READ_COMMITTED",
	IsolationRepeatableRead:  "REPEATABLE_READ",
	IsolationSerializable:    "SERIALIZABLE",
}

func (l IsolationLevel) String() string {
	if l < 0 || int(l) >= len(isolationNames) {
		return fmt.Sprintf("IsolationLevel(%d)", int(l))
	}
	return isolationNames[l]
}

// ParseIsolationLevel accepts the names produced by String, case-insensitively.
// The empty string yields IsolationDefault.
func ParseIsolationLevel(s string) (IsolationLevel, error) {
	if s == "" {
		return IsolationDefault, nil
	}
	name := strings.ToUpper(strings.ReplaceAll(s, " ", "_"))
	for i, n := range isolationNames {
		if n == name {
			return IsolationLevel(i), nil
		}
	}
	return IsolationDefault, fmt.Errorf("unknown isolation level %q", s)
}

// SQLLevel maps the level onto database/sql.
func (l IsolationLevel) SQLLevel() sql.IsolationLevel {
	switch l {
	case IsolationReadUncommitted:
		return sql.LevelReadUncommitted
	case IsolationReadCommitted:
		return sql.LevelReadCommitted
	case IsolationRepeatableRead:
		return sql.LevelRepeatableRead
	case IsolationSerializable:
		return sql.LevelSerializable
	default:
		return sql.LevelDefault
	}
}
