package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"trace", TraceLevel, false},
		{"debug", zapcore.DebugLevel, false},
		{"info", zapcore.InfoLevel, false},
		{"warn", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"verbose", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := LevelFromString(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("nil config uses defaults", func(t *testing.T) {
		log, err := New(nil)
		require.NoError(t, err)
		assert.NotNil(t, log.Zap())
	})

	t.Run("console format", func(t *testing.T) {
		_, err := New(&Config{Level: zapcore.DebugLevel, Format: "console"})
		assert.NoError(t, err)
	})

	t.Run("invalid format rejected", func(t *testing.T) {
		_, err := New(&Config{Level: zapcore.InfoLevel, Format: "text"})
		assert.Error(t, err)
	})
}

func TestFromStrings(t *testing.T) {
	log, err := FromStrings("trace", "console")
	require.NoError(t, err)
	assert.NotNil(t, log.Zap())

	_, err = FromStrings("verbose", "json")
	assert.Error(t, err)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))

	log := NewNop()
	assert.Same(t, log, OrNop(log))
}

func TestTraceLevelLogging(t *testing.T) {
	log := NewTestLogger()

	log.Trace("alignment step", zap.Int("token", 3))
	log.Debug("chunk resolved")

	log.AssertLogged(t, TraceLevel, "alignment step")
	log.AssertLogged(t, zapcore.DebugLevel, "chunk resolved")
	assert.Len(t, log.All(), 2)
}

func TestNamedAndWith(t *testing.T) {
	log := NewTestLogger()

	child := log.Named("resolver").With(zap.String("document_id", "doc1"))
	child.Info("parsed")

	entries := log.FilterMessage("parsed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "resolver", entries[0].LoggerName)
	require.Len(t, entries[0].Context, 1)
	assert.Equal(t, "document_id", entries[0].Context[0].Key)
}
