// Package zaplogger implements ports.Logger on top of zap for structured
// or JSON output.
package zaplogger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/user/framegrab/pkg/ports"
)

// Logger adapts a zap.SugaredLogger to ports.Logger. Messages are formatted
// with their arguments; the component is attached as a field.
type Logger struct {
	sugar *zap.SugaredLogger
}

// New wraps an existing zap logger.
func New(l *zap.Logger) *Logger {
	return &Logger{sugar: l.Sugar()}
}

// NewProduction builds a JSON logger writing to stderr at level.
func NewProduction(level ports.LogLevel) (*Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel(level))
	cfg.OutputPaths = []string{"stderr"}
	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("zaplogger: build: %w", err)
	}
	return New(l), nil
}

// zapLevel maps a port level onto zap. LevelQuiet disables everything below fatal.
func zapLevel(level ports.LogLevel) zapcore.Level {
	switch level {
	case ports.LevelDebug:
		return zapcore.DebugLevel
	case ports.LevelInfo:
		return zapcore.InfoLevel
	case ports.LevelWarn:
		return zapcore.WarnLevel
	case ports.LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.FatalLevel
	}
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.sugar.Debugf(msg, args...) }
func (l *Logger) Info(msg string, args ...interface{})  { l.sugar.Infof(msg, args...) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.sugar.Warnf(msg, args...) }
func (l *Logger) Error(msg string, args ...interface{}) { l.sugar.Errorf(msg, args...) }

// WithComponent returns a logger with a component field.
func (l *Logger) WithComponent(component string) ports.Logger {
	return &Logger{sugar: l.sugar.With(zap.String("component", component))}
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}

var _ ports.Logger = (*Logger)(nil)
