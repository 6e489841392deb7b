package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

// Logger is the main logger instance. Loggers derived through With share the
// writer and level of their parent.
type Logger struct {
	core   *core
	fields Fields
}

type core struct {
	mu        sync.Mutex
	config    *Config
	formatter Formatter
	writer    io.Writer
	exitFunc  func(int)
}

// NewLogger creates a new logger with the given config
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}

	var formatter Formatter = &ConsoleFormatter{config: config}
	if config.Format == FormatJSON {
		formatter = &JSONFormatter{config: config}
	}

	writer := config.Output
	if writer == nil {
		writer = os.Stdout
	}

	return &Logger{core: &core{
		config:    config,
		formatter: formatter,
		writer:    writer,
		exitFunc:  os.Exit,
	}}
}

// With returns a child logger that stamps fields on every entry.
func (l *Logger) With(fields Fields) *Logger {
	return &Logger{core: l.core, fields: l.fields.merge(fields)}
}

// SetLevel sets the log level
func (l *Logger) SetLevel(level Level) {
	l.core.mu.Lock()
	defer l.core.mu.Unlock()
	l.core.config.Level = level
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() Level {
	l.core.mu.Lock()
	defer l.core.mu.Unlock()
	return l.core.config.Level
}

// SetOutput sets the output writer
func (l *Logger) SetOutput(w io.Writer) {
	l.core.mu.Lock()
	defer l.core.mu.Unlock()
	l.core.writer = w
}

func (l *Logger) log(level Level, msg string, fields Fields, err error) {
	if !l.GetLevel().Enabled(level) {
		return
	}

	entry := &LogEntry{
		Level:     level,
		Message:   msg,
		Fields:    l.fields.merge(fields),
		Error:     err,
		Timestamp: time.Now(),
	}

	if l.core.config.EnableCaller {
		entry.Caller = getCaller(3)
	}

	formatted, formatErr := l.core.formatter.Format(entry)
	if formatErr != nil {
		fmt.Fprintf(os.Stderr, "logx: format: %v\n", formatErr)
		return
	}

	l.core.mu.Lock()
	defer l.core.mu.Unlock()
	if _, writeErr := l.core.writer.Write(formatted); writeErr != nil {
		fmt.Fprintf(os.Stderr, "logx: write: %v\n", writeErr)
	}
}

// WithField creates a new entry with a field
func (l *Logger) WithField(key string, value any) *Entry {
	return newEntry(l).WithField(key, value)
}

// WithFields creates a new entry with fields
func (l *Logger) WithFields(fields Fields) *Entry {
	return newEntry(l).WithFields(fields)
}

// WithError creates a new entry with an error
func (l *Logger) WithError(err error) *Entry {
	return newEntry(l).WithError(err)
}

func (l *Logger) Debug(msg string) { l.log(LevelDebug, msg, nil, nil) }
func (l *Logger) Info(msg string)  { l.log(LevelInfo, msg, nil, nil) }
func (l *Logger) Warn(msg string)  { l.log(LevelWarn, msg, nil, nil) }
func (l *Logger) Error(msg string) { l.log(LevelError, msg, nil, nil) }

func (l *Logger) exit(code int) {
	l.core.exitFunc(code)
}

func getCaller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "???"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}
