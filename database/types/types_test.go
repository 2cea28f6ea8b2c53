package types

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIsolationLevel(t *testing.T) {
	tests := []struct {
		in   string
		want IsolationLevel
	}{
		{"", IsolationDefault},
		{"DEFAULT", IsolationDefault},
		{"read_committed", IsolationReadCommitted},
		{"Repeatable Read", IsolationRepeatableRead},
		{"SERIALIZABLE", IsolationSerializable},
		{"READ_UNCOMMITTED", IsolationReadUncommitted},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseIsolationLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseIsolationLevel("snapshot")
	assert.Error(t, err)
}

func TestIsolationLevelString(t *testing.T) {
	assert.Equal(t, "SERIALIZABLE", IsolationSerializable.String())
	assert.Equal(t, "IsolationLevel(42)", IsolationLevel(42).String())
}

func TestIsolationLevelSQLLevel(t *testing.T) {
	assert.Equal(t, sql.LevelDefault, IsolationDefault.SQLLevel())
	assert.Equal(t, sql.LevelReadCommitted, IsolationReadCommitted.SQLLevel())
	assert.Equal(t, sql.LevelSerializable, IsolationSerializable.SQLLevel())
}

func TestRowMetadataIndexOf(t *testing.T) {
	md := NewRowMetadata("ID", "title", "author_id", "Title")

	assert.Equal(t, 0, md.IndexOf("id"))
	assert.Equal(t, 1, md.IndexOf("title"))
	assert.Equal(t, 3, md.IndexOf("Title"))
	assert.Equal(t, 2, md.IndexOf("AUTHOR_ID"))
	assert.Equal(t, -1, md.IndexOf("missing"))
	assert.Equal(t, []string{"ID", "title", "author_id", "Title"}, md.Names())
}
