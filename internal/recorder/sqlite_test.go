package recorder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteRecorder_RecordEvent(t *testing.T) {
	r, err := NewSQLiteRecorder(":memory:")
	require.NoError(t, err)
	defer r.Close()

	now := time.Now().UTC()
	require.NoError(t, r.RecordEvent(now, "safety", "kill switch on", ""))
	require.NoError(t, r.RecordEvent(now, "trade", "placed YES $10", "0xorder"))

	var count int
	require.NoError(t, r.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&count))
	assert.Equal(t, 2, count)

	var kind, message string
	require.NoError(t, r.db.QueryRow(
		`SELECT kind, message FROM events ORDER BY id DESC LIMIT 1`,
	).Scan(&kind, &message))
	assert.Equal(t, "trade", kind)
	assert.Equal(t, "placed YES $10", message)
}

func TestNoopRecorder(t *testing.T) {
	n := NewNoopRecorder()
	assert.NoError(t, n.RecordEvent(time.Now(), "x", "y", ""))
	assert.NoError(t, n.Close())
}
