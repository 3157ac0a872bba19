package logger

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	prev := Logger
	Logger = zap.New(core).Sugar()
	t.Cleanup(func() { Logger = prev })
	return logs
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Debug)
	assert.Equal(t, "human", cfg.LogFormat)
	assert.Empty(t, cfg.LogFile)
}

func TestWithFields(t *testing.T) {
	logs := observe(t)

	WithFields(map[string]interface{}{"component": "relay"}).Infow("listening", "addr", ":8080")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "relay", fields["component"])
	assert.Equal(t, ":8080", fields["addr"])
}

func TestLogErrorAddsError(t *testing.T) {
	logs := observe(t)

	LogError("save failed", errors.New("disk full"), map[string]interface{}{"table": "t.json"})

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	assert.Equal(t, "disk full", entry.ContextMap()["error"])
	assert.Equal(t, "t.json", entry.ContextMap()["table"])
}

func TestInitLoggerWithFile(t *testing.T) {
	prev := Logger
	t.Cleanup(func() { Logger = prev })

	cfg := DefaultConfig()
	cfg.LogFormat = "json"
	cfg.LogFile = filepath.Join(t.TempDir(), "logs", "batch.log")
	require.NoError(t, InitLogger(cfg))

	LogInfo("hello", nil)
	_ = Sync()
	assert.FileExists(t, cfg.LogFile)
}
