package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsolatedLogger_GetLogs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assistant.log")
	l := NewIsolatedLogger(path)

	l.Info("ASSISTANT", "request sent", map[string]interface{}{"task": "chat"})
	l.Error("ASSISTANT", "request failed", map[string]interface{}{"error": "status 500"})
	l.Info("HUB", "client registered", nil)
	require.NoError(t, l.Sync())

	all, err := l.GetLogs(LogFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "client registered", all[0].Message, "newest first")

	errs, err := l.GetLogs(LogFilter{Level: "ERROR"})
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "status 500", errs[0].Details["error"])

	assistant, err := l.GetLogs(LogFilter{Module: "ASSISTANT", Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, assistant, 1)
	assert.Equal(t, "request sent", assistant[0].Message)

	found, err := l.GetLogById(errs[0].Id)
	require.NoError(t, err)
	assert.Equal(t, "request failed", found.Message)

	_, err = l.GetLogById("missing")
	assert.ErrorIs(t, err, ErrLogNotFound)
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Error("ASSISTANT", "ignored", nil)

	logs, err := l.GetLogs(LogFilter{})
	require.NoError(t, err)
	assert.Empty(t, logs)
}
