package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name  string
		level log.Level
		emit  func(*log.Logger)
		want  bool
	}{
		{"info at info", log.InfoLevel, func(l *log.Logger) { l.Info("seeded", "entities", 3) }, true},
		{"debug at info", log.InfoLevel, func(l *log.Logger) { l.Debug("dirty zone", "zone", "north") }, false},
		{"debug at debug", log.DebugLevel, func(l *log.Logger) { l.Debug("dirty zone", "zone", "north") }, true},
		{"warn at info", log.InfoLevel, func(l *log.Logger) { l.Warn("skipping message") }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.emit(newLogger(&buf, tt.level))
			assert.Equal(t, tt.want, buf.Len() > 0)
		})
	}
}

func TestNewLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, log.InfoLevel).Info("layout computed", "zone", "north", "placed", 4)

	out := buf.String()
	assert.Contains(t, out, "layout computed")
	assert.Contains(t, out, "zone=north")
	assert.Contains(t, out, "placed=4")
}

func TestProgressDone(t *testing.T) {
	var buf bytes.Buffer
	p := newProgress(newLogger(&buf, log.InfoLevel))
	p.done("Replayed 12 events")

	out := buf.String()
	assert.Contains(t, out, "Replayed 12 events (")
	assert.Contains(t, out, "s)")
}

func TestLoggerContext(t *testing.T) {
	var buf bytes.Buffer
	custom := newLogger(&buf, log.InfoLevel)

	ctx := withLogger(context.Background(), custom)
	require.Same(t, custom, loggerFromContext(ctx))

	loggerFromContext(ctx).Info("through context")
	assert.Contains(t, buf.String(), "through context")
}

func TestLoggerContextDefaults(t *testing.T) {
	assert.Same(t, log.Default(), loggerFromContext(context.Background()))

	var unset context.Context
	ctx := withLogger(unset, log.Default())
	require.NotNil(t, ctx)
	assert.Same(t, log.Default(), loggerFromContext(ctx))
}
