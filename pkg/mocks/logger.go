package mocks

import (
	"fmt"
	"sync"

	"github.com/user/framegrab/pkg/ports"
)

// Logger is a mock implementation of ports.Logger that records messages.
type Logger struct {
	mu        sync.Mutex
	component string
	entries   *[]LogEntry
}

// LogEntry records one logged message.
type LogEntry struct {
	Level     ports.LogLevel
	Component string
	Message   string
}

// NewLogger creates a new recording logger.
func NewLogger() *Logger {
	return &Logger{entries: &[]LogEntry{}}
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.record(ports.LevelDebug, msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.record(ports.LevelInfo, msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.record(ports.LevelWarn, msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.record(ports.LevelError, msg, args) }

// WithComponent returns a logger sharing the same entries.
func (l *Logger) WithComponent(component string) ports.Logger {
	return &Logger{component: component, entries: l.entries}
}

func (l *Logger) record(level ports.LogLevel, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.entries = append(*l.entries, LogEntry{
		Level:     level,
		Component: l.component,
		Message:   fmt.Sprintf(msg, args...),
	})
}

// Entries returns the recorded messages at or above level.
func (l *Logger) Entries(level ports.LogLevel) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []LogEntry
	for _, e := range *l.entries {
		if e.Level >= level {
			out = append(out, e)
		}
	}
	return out
}

var _ ports.Logger = (*Logger)(nil)
