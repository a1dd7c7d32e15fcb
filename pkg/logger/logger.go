package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level represents the severity level of log messages
type Level int

const (
	TraceLevel Level = iota
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
)

// String returns the string representation of the level
func (l Level) String() string {
	switch l {
	case TraceLevel:
		return "TRACE"
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a flag value into a Level. Unknown values map to InfoLevel.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return TraceLevel
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

func (l Level) logrus() logrus.Level {
	switch l {
	case TraceLevel:
		return logrus.TraceLevel
	case DebugLevel:
		return logrus.DebugLevel
	case WarnLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Config holds the logger configuration
type Config struct {
	Level     Level
	UseColor  bool
	JSON      bool
	Component string
	NoOp      bool
	// File, when set, receives a copy of every entry through a rotating writer.
	File string
}

// Logger represents the logger instance
type Logger struct {
	config Config
	entry  *logrus.Logger
	rotate *lumberjack.Logger
}

// Default logger instance
var defaultLogger *Logger

// Initialize sets up the default logger
func Initialize(config Config) error {
	l := logrus.New()
	l.SetLevel(config.Level.logrus())
	if config.JSON {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
			FieldMap:        logrus.FieldMap{logrus.FieldKeyMsg: "message"},
		})
	} else {
		l.SetFormatter(&prettyFormatter{config: config})
	}

	var out io.Writer = os.Stderr
	var rotate *lumberjack.Logger
	if config.File != "" {
		if err := os.MkdirAll(filepath.Dir(config.File), 0o750); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		rotate = &lumberjack.Logger{
			Filename:   config.File,
			MaxSize:    10,
			MaxBackups: 3,
		}
		out = io.MultiWriter(os.Stderr, rotate)
	}
	l.SetOutput(out)

	if defaultLogger != nil && defaultLogger.rotate != nil {
		_ = defaultLogger.rotate.Close()
	}
	defaultLogger = &Logger{config: config, entry: l, rotate: rotate}
	return nil
}

// Close flushes and closes the rotating file writer, if any.
func Close() {
	if defaultLogger != nil && defaultLogger.rotate != nil {
		_ = defaultLogger.rotate.Close()
		defaultLogger.rotate = nil
	}
}

// Log writes a log message
func (l *Logger) Log(level Level, message string, fields ...Field) {
	if level < l.config.Level {
		return
	}
	data := make(logrus.Fields, len(fields)+1)
	if l.config.Component != "" && l.config.JSON {
		data["component"] = l.config.Component
	}
	for _, field := range fields {
		data[field.Key] = field.Value
	}
	l.entry.WithFields(data).Log(level.logrus(), message)
}

// prettyFormatter renders entries as "2006-01-02 15:04:05 [LEVEL] component: message {k=v}".
type prettyFormatter struct {
	config Config
}

func (f *prettyFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b *bytes.Buffer
	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}

	b.WriteString(entry.Time.Format("2006-01-02 15:04:05"))

	level := strings.ToUpper(entry.Level.String())
	if level == "WARNING" {
		level = "WARN"
	}
	if f.config.UseColor {
		switch entry.Level {
		case logrus.TraceLevel:
			level = "\033[37m" + level + "\033[0m"
		case logrus.DebugLevel:
			level = "\033[36m" + level + "\033[0m"
		case logrus.InfoLevel:
			level = "\033[32m" + level + "\033[0m"
		case logrus.WarnLevel:
			level = "\033[33m" + level + "\033[0m"
		default:
			level = "\033[31m" + level + "\033[0m"
		}
	}
	fmt.Fprintf(b, " [%s]", level)

	if f.config.Component != "" {
		fmt.Fprintf(b, " %s:", f.config.Component)
	}
	if f.config.NoOp {
		if f.config.UseColor {
			b.WriteString(" \033[35m[DRY-RUN]\033[0m")
		} else {
			b.WriteString(" [DRY-RUN]")
		}
	}

	fmt.Fprintf(b, " %s", strings.TrimRight(entry.Message, "\r\n"))

	if len(entry.Data) > 0 {
		keys := make([]string, 0, len(entry.Data))
		for k := range entry.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" {")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(b, "%s=%v", k, entry.Data[k])
		}
		b.WriteString("}")
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// Field represents a structured field in a log entry
type Field struct {
	Key   string
	Value interface{}
}

// String creates a string field
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an int field
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a bool field
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a duration field rendered in its String form
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

// Err creates an error field
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: "<nil>"}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Convenience functions for default logger
func Trace(message string, fields ...Field) {
	if defaultLogger != nil {
		defaultLogger.Log(TraceLevel, message, fields...)
	}
}

func Debug(message string, fields ...Field) {
	if defaultLogger != nil {
		defaultLogger.Log(DebugLevel, message, fields...)
	}
}

func Info(message string, fields ...Field) {
	if defaultLogger != nil {
		defaultLogger.Log(InfoLevel, message, fields...)
	} else {
		// Fallback to stderr if logger not initialized
		_, _ = fmt.Fprintf(os.Stderr, "[INFO] stigmergylite: %s\n", message)
	}
}

func Warn(message string, fields ...Field) {
	if defaultLogger != nil {
		defaultLogger.Log(WarnLevel, message, fields...)
	}
}

func Error(message string, fields ...Field) {
	if defaultLogger != nil {
		defaultLogger.Log(ErrorLevel, message, fields...)
	}
}

// SetOutput sets the output writer for the logger
func SetOutput(w io.Writer) {
	if defaultLogger != nil {
		defaultLogger.entry.SetOutput(w)
	}
}
