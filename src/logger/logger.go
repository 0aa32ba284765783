package logger

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gookit/color"
)

// Level represents the logging level
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
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

// Logger is the main logger interface
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	SetLevel(level Level)
	Level() Level
	Close() error
}

// Sink represents a logging destination
type Sink interface {
	Write(level Level, timestamp time.Time, message string) error
	Close() error
}

// ConsoleSink writes build output to stdout/stderr. Info lines are printed
// bare so progress output reads like a build log; other levels are tagged.
type ConsoleSink struct {
	useStderr bool
	colorize  bool
	out       io.Writer
	errOut    io.Writer
}

func NewConsoleSink(useStderr, colorize bool) *ConsoleSink {
	return &ConsoleSink{
		useStderr: useStderr,
		colorize:  colorize,
		out:       os.Stdout,
		errOut:    os.Stderr,
	}
}

// NewWriterSink is a ConsoleSink bound to a single writer, without colour.
func NewWriterSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{out: w, errOut: w}
}

func (s *ConsoleSink) Write(level Level, timestamp time.Time, message string) error {
	output := s.out
	if s.useStderr && (level == WarnLevel || level == ErrorLevel) {
		output = s.errOut
	}

	var line string
	switch level {
	case InfoLevel:
		line = message
	default:
		tag := level.String()
		if s.colorize {
			tag = levelStyle(level).Sprint(tag)
		}
		line = fmt.Sprintf("%s %s", tag, message)
	}
	if !s.colorize {
		line = color.ClearCode(line)
	}

	_, err := fmt.Fprintln(output, line)
	return err
}

func (s *ConsoleSink) Close() error {
	return nil
}

func levelStyle(level Level) color.Color {
	switch level {
	case DebugLevel:
		return color.Cyan
	case WarnLevel:
		return color.Yellow
	case ErrorLevel:
		return color.Red
	default:
		return color.Green
	}
}

// FileSink writes logs to a file
type FileSink struct {
	file     *os.File
	mu       sync.Mutex
	filename string
}

func NewFileSink(filename string) (*FileSink, error) {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return &FileSink{
		file:     file,
		filename: filename,
	}, nil
}

func (s *FileSink) Write(level Level, timestamp time.Time, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := fmt.Fprintf(s.file, "[%s] %s: %s\n",
		timestamp.Format("2006-01-02 15:04:05"),
		level.String(),
		color.ClearCode(message))
	return err
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// MemorySink keeps messages in memory. Used by tests across packages.
type MemorySink struct {
	mu       sync.Mutex
	messages []string
	levels   []Level
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Write(level Level, timestamp time.Time, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, color.ClearCode(message))
	s.levels = append(s.levels, level)
	return nil
}

func (s *MemorySink) Close() error {
	return nil
}

// Messages returns a copy of the recorded messages.
func (s *MemorySink) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

// MessagesAt returns recorded messages logged at level.
func (s *MemorySink) MessagesAt(level Level) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for i, l := range s.levels {
		if l == level {
			out = append(out, s.messages[i])
		}
	}
	return out
}

// MultiLogger implements Logger interface with multiple sinks
type MultiLogger struct {
	sinks []Sink
	level Level
	mu    sync.RWMutex
}

func NewMultiLogger(sinks ...Sink) *MultiLogger {
	return &MultiLogger{
		sinks: sinks,
		level: InfoLevel,
	}
}

func (l *MultiLogger) log(level Level, format string, args ...interface{}) {
	l.mu.RLock()
	currentLevel := l.level
	sinks := l.sinks
	l.mu.RUnlock()

	if level < currentLevel {
		return
	}

	message := fmt.Sprintf(format, args...)
	timestamp := time.Now()

	for _, sink := range sinks {
		if err := sink.Write(level, timestamp, message); err != nil {
			fmt.Fprintf(os.Stderr, "assetc: failed to write log: %v\n", err)
		}
	}
}

func (l *MultiLogger) Debug(format string, args ...interface{}) {
	l.log(DebugLevel, format, args...)
}

func (l *MultiLogger) Info(format string, args ...interface{}) {
	l.log(InfoLevel, format, args...)
}

func (l *MultiLogger) Warn(format string, args ...interface{}) {
	l.log(WarnLevel, format, args...)
}

func (l *MultiLogger) Error(format string, args ...interface{}) {
	l.log(ErrorLevel, format, args...)
}

func (l *MultiLogger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *MultiLogger) Level() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

func (l *MultiLogger) Close() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var errs []error
	for _, sink := range l.sinks {
		errs = append(errs, sink.Close())
	}
	return errors.Join(errs...)
}

var (
	globalLogger Logger
	globalMu     sync.RWMutex
)

// Initialize sets up the global logger. Calling it again replaces the
// sinks while keeping the current level.
func Initialize(sinks ...Sink) {
	if len(sinks) == 0 {
		sinks = []Sink{NewConsoleSink(true, true)}
	}
	next := NewMultiLogger(sinks...)

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger != nil {
		next.SetLevel(globalLogger.Level())
	}
	globalLogger = next
}

// Get returns the global logger instance
func Get() Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l == nil {
		Initialize()
		return Get()
	}
	return l
}

func Debug(format string, args ...interface{}) {
	Get().Debug(format, args...)
}

func Info(format string, args ...interface{}) {
	Get().Info(format, args...)
}

func Warn(format string, args ...interface{}) {
	Get().Warn(format, args...)
}

func Error(format string, args ...interface{}) {
	Get().Error(format, args...)
}

func SetLevel(level Level) {
	Get().SetLevel(level)
}

// ParseLevel converts a config level name to a Level. "warning" is accepted
// as an alias for "warn".
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, fmt.Errorf("unknown log level: %s", s)
	}
}
