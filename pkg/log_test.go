package pkg

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComponentAttribute(t *testing.T) {
	prev := Logger()
	defer SetLogger(prev)

	var buf bytes.Buffer
	SetLogger(NewLogger(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	LogDebug(ComponentUART, "receive timeout", "want", 4)
	out := buf.String()
	assert.Contains(t, out, "component=uart")
	assert.Contains(t, out, "receive timeout")
	assert.Contains(t, out, "want=4")
}

func TestSetLogLevel(t *testing.T) {
	prev := GetLogLevel()
	defer SetLogLevel(prev)

	SetLogLevel(slog.LevelError)
	require.Equal(t, slog.LevelError, GetLogLevel())

	var buf bytes.Buffer
	l := NewLogger(&buf, nil)
	l.Warn("hidden")
	assert.Empty(t, buf.String())
}

func TestWithNilUsesDefault(t *testing.T) {
	prev := Logger()
	defer SetLogger(prev)

	var buf bytes.Buffer
	SetLogger(NewLogger(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	With(nil, ComponentAccel).Info("configured")
	assert.Contains(t, buf.String(), "component=accel")
}

func TestWithNilFollowsSetLogger(t *testing.T) {
	prev := Logger()
	defer SetLogger(prev)

	l := With(nil, ComponentUART).With("dir", "rx")

	var buf bytes.Buffer
	SetLogger(NewLogger(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	l.Debug("armed")
	out := buf.String()
	assert.Contains(t, out, "armed")
	assert.Contains(t, out, "component=uart")
	assert.Contains(t, out, "dir=rx")

	buf.Reset()
	SetLogger(NewLogger(&buf, &slog.HandlerOptions{Level: slog.LevelError}))
	l.Warn("hidden")
	assert.Empty(t, buf.String())
}
