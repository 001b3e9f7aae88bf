package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	t.Run("JSONFormat", func(t *testing.T) {
		l, err := New(Config{Level: "info", Format: "json"})
		require.NoError(t, err)
		require.NotNil(t, l)
	})

	t.Run("ConsoleFormat", func(t *testing.T) {
		l, err := New(Config{Level: "debug", Format: "console"})
		require.NoError(t, err)
		assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("InvalidLevel", func(t *testing.T) {
		_, err := New(Config{Level: "loud", Format: "json"})
		assert.Error(t, err)
	})

	t.Run("RotatedFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "chatpsy.log")
		l, err := New(Config{
			Level:  "info",
			Format: "json",
			File:   &FileConfig{Enabled: true, Path: path, MaxSize: 1, MaxAge: 1},
		})
		require.NoError(t, err)
		l.Info("written to file")
		_ = l.Sync()
		assert.FileExists(t, path)
	})
}

func TestWithComponentAndRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := Wrap(zap.New(core))

	l.WithComponent("privacy").WithRequestID("req-1").Info("hello")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "privacy", fields["component"])
	assert.Equal(t, "req-1", fields["request_id"])
}

func TestSafeHeaders(t *testing.T) {
	headers := map[string][]string{
		"Authorization": {"Bearer secret"},
		"Cookie":        {"session=1"},
		"Content-Type":  {"application/json"},
		"X-Empty":       {},
	}

	safe := SafeHeaders(headers)

	assert.Equal(t, "[REDACTED]", safe["Authorization"])
	assert.Equal(t, "[REDACTED]", safe["Cookie"])
	assert.Equal(t, "application/json", safe["Content-Type"])
	assert.NotContains(t, safe, "X-Empty")
}

func TestBytesField(t *testing.T) {
	assert.Equal(t, "1.0 KiB", Bytes("size", 1024).String)
	assert.Equal(t, "0 B", Bytes("size", -5).String)
}

func TestWrapNil(t *testing.T) {
	l := Wrap(nil)
	require.NotNil(t, l)
	l.Info("discarded")
}

func TestSetLevel(t *testing.T) {
	l, err := New(Config{Level: "info", Format: "json"})
	require.NoError(t, err)
	child := l.WithComponent("proxy")

	assert.False(t, child.Core().Enabled(zapcore.DebugLevel))

	require.NoError(t, l.SetLevel("debug"))
	assert.True(t, child.Core().Enabled(zapcore.DebugLevel))
	assert.Equal(t, zapcore.DebugLevel, child.Level())

	assert.Error(t, l.SetLevel("loud"))
}
