// Package ports defines the interfaces between the frame extraction core and
// its adapters: the decode capability, logging, metrics and file output.
package ports

import "strings"

// LogLevel represents the severity level of a log message.
type LogLevel int

const (
	// LevelDebug is for per-frame and per-packet details.
	LevelDebug LogLevel = iota
	// LevelInfo is for open, index and setup summaries.
	LevelInfo
	// LevelWarn is for recoverable problems such as seek retries or empty results.
	LevelWarn
	// LevelError is for failures that abort a call or make a stream unusable.
	LevelError
	// LevelQuiet suppresses all log output.
	LevelQuiet
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelQuiet:
		return "quiet"
	default:
		return "unknown"
	}
}

// ParseLogLevel parses a level name. Unknown names map to LevelInfo.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "quiet":
		return LevelQuiet
	default:
		return LevelInfo
	}
}

// Logger abstracts logging. The msg argument is a format string that doubles
// as the translation key, so callers pass the same literal every time.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})

	// WithComponent returns a Logger that tags messages with a component name.
	WithComponent(component string) Logger
}
