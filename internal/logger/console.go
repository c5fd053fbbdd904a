// Package logger provides the leveled logger used across tetrad.
//
// All log output goes to stderr; stdout is reserved for MCP protocol
// traffic. Lines are prefixed with [HH:MM:SS] timestamps in text mode, or
// rendered as one JSON object per record in json mode.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// ConsoleLogger is a thread-safe leveled logger.
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	jsonFormat  bool
	colorOutput bool
	mutex       sync.Mutex
}

// New creates a logger writing to stderr with the given level and format.
// format is "text" or "json"; anything else falls back to text.
func New(logLevel, format string) *ConsoleLogger {
	return NewWithWriter(os.Stderr, logLevel, format)
}

// NewWithWriter creates a logger for an arbitrary writer. Color is enabled
// only when the writer is a TTY in text mode.
func NewWithWriter(w io.Writer, logLevel, format string) *ConsoleLogger {
	jsonFormat := format == "json"
	return &ConsoleLogger{
		writer:      w,
		logLevel:    normalizeLogLevel(logLevel),
		jsonFormat:  jsonFormat,
		colorOutput: !jsonFormat && isTerminal(w),
	}
}

// Nop returns a logger that discards everything. Used in tests.
func Nop() *ConsoleLogger {
	return NewWithWriter(io.Discard, "error", "text")
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	if color.NoColor {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))
	switch normalized {
	case "trace", "debug", "info", "warn", "error":
		return normalized
	}
	return "info"
}

func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

// Trace logs at trace level.
func (cl *ConsoleLogger) Trace(format string, args ...any) {
	cl.log("trace", format, args...)
}

// Debug logs at debug level.
func (cl *ConsoleLogger) Debug(format string, args ...any) {
	cl.log("debug", format, args...)
}

// Info logs at info level.
func (cl *ConsoleLogger) Info(format string, args ...any) {
	cl.log("info", format, args...)
}

// Warn logs at warn level.
func (cl *ConsoleLogger) Warn(format string, args ...any) {
	cl.log("warn", format, args...)
}

// Error logs at error level.
func (cl *ConsoleLogger) Error(format string, args ...any) {
	cl.log("error", format, args...)
}

func (cl *ConsoleLogger) log(level, format string, args ...any) {
	if cl.writer == nil || !cl.shouldLog(level) {
		return
	}

	message := fmt.Sprintf(format, args...)
	now := time.Now()

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	if cl.jsonFormat {
		record := map[string]string{
			"time":    now.Format(time.RFC3339),
			"level":   level,
			"message": message,
		}
		line, err := json.Marshal(record)
		if err != nil {
			return
		}
		fmt.Fprintf(cl.writer, "%s\n", line)
		return
	}

	label := strings.ToUpper(level)
	if cl.colorOutput {
		label = colorizeLevel(level, label)
	}
	fmt.Fprintf(cl.writer, "[%s] %s %s\n", now.Format("15:04:05"), label, message)
}

func colorizeLevel(level, label string) string {
	switch level {
	case "trace", "debug":
		return color.HiBlackString(label)
	case "warn":
		return color.YellowString(label)
	case "error":
		return color.RedString(label)
	default:
		return color.CyanString(label)
	}
}
