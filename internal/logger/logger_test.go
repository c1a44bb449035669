package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"info":  zapcore.InfoLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"panic": zapcore.PanicLevel,
		"fatal": zapcore.FatalLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("unknown")
	require.False(t, ok)
}

// TestContextHelpers checks that loggers stored in a context receive scoped fields.
func TestContextHelpers(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	ctx := ToContext(context.Background(), zap.New(core).Sugar())
	ctx = WithName(ctx, "publisher")
	ctx = WithKV(ctx, "build", "linux-x64-prod-1.0.0")
	ctx = WithFields(ctx, "hook", "afterUpload", "attempt", 1)

	InfoKV(ctx, "Uploaded", "file", "app.AppImage")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "publisher", entries[0].LoggerName)
	require.Equal(t, "linux-x64-prod-1.0.0", entries[0].ContextMap()["build"])
	require.Equal(t, "app.AppImage", entries[0].ContextMap()["file"])
	require.Equal(t, "afterUpload", entries[0].ContextMap()["hook"])
	require.EqualValues(t, 1, entries[0].ContextMap()["attempt"])
}

// TestFromContextFallsBackToGlobal ensures an empty context yields the global logger.
func TestFromContextFallsBackToGlobal(t *testing.T) {
	t.Parallel()

	require.Same(t, Logger(), FromContext(context.Background()))
}

// TestConfigureRejectsUnknownLevel checks that a bad level name is reported without changing the level.
func TestConfigureRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	before := Level()

	require.ErrorIs(t, Configure("verbose", false), ErrUnknownLevel)
	require.NoError(t, Configure("", false))
	require.Equal(t, before, Level())
}
