package zaplogger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/user/framegrab/pkg/ports"
)

func TestLogger_FormatsAndTagsComponent(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := New(zap.New(core)).WithComponent("extractor")

	log.Info("Indexed %d keyframes in %d total frames", 4, 100)
	log.Warn("Frame %d unavailable: %s", 99, "end_of_stream")

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, "Indexed 4 keyframes in 100 total frames", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "extractor", entries[0].ContextMap()["component"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestLogger_LevelFilter(t *testing.T) {
	core, logs := observer.New(zapLevel(ports.LevelWarn))
	log := New(zap.New(core))

	log.Debug("Frame size: %dx%d", 8, 4)
	log.Info("Building keyframe index")
	log.Error("Failed to open %s: %v", "a.ts", "boom")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Failed to open a.ts: boom", logs.All()[0].Message)
}

func TestZapLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, zapLevel(ports.LevelDebug))
	assert.Equal(t, zapcore.ErrorLevel, zapLevel(ports.LevelError))
	assert.Equal(t, zapcore.FatalLevel, zapLevel(ports.LevelQuiet))
}
