package auth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogLine(t *testing.T) {
	t.Run("renders key value pairs", func(t *testing.T) {
		line := logLine("ERR", "lookup failed", []any{"error", errors.New("timeout"), "username", "alice"})
		assert.Equal(t, "[ERR] AUTH lookup failed error=timeout username=alice", line)
	})

	t.Run("message only", func(t *testing.T) {
		line := logLine("INF", "started", nil)
		assert.Equal(t, "[INF] AUTH started", line)
	})

	t.Run("dangling key", func(t *testing.T) {
		line := logLine("DBG", "state", []any{"phase"})
		assert.Equal(t, "[DBG] AUTH state phase", line)
	})
}
