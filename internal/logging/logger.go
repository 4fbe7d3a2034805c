// Package logging provides the leveled logger used across the tracker.
// Lines are written as "2006-01-02 15:04:05 - LEVEL: message".
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Level is a log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARNING"
	default:
		return "ERROR"
	}
}

// ParseLevel maps a config value to a Level. Unknown values mean info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger writes leveled lines to a single writer.
type Logger struct {
	mu    sync.Mutex
	out   *log.Logger
	min   Level
	clock func() time.Time
}

// New creates a Logger writing to w.
func New(w io.Writer, min Level) *Logger {
	return &Logger{
		out:   log.New(w, "", 0),
		min:   min,
		clock: time.Now,
	}
}

func (l *Logger) logf(level Level, format string, args ...any) {
	if level < l.min {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.Printf("%s - %s: %s", l.clock().Format("2006-01-02 15:04:05"), level, fmt.Sprintf(format, args...))
}

func (l *Logger) Debugf(format string, args ...any) { l.logf(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.logf(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.logf(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.logf(LevelError, format, args...) }

var (
	stdMu sync.RWMutex
	std   = New(os.Stderr, LevelInfo)
)

// Setup opens the log file (append mode) and installs the package logger.
// The returned closer releases the file.
func Setup(path string, level string, mirrorStderr bool) (io.Closer, error) {
	var writers []io.Writer
	var closer io.Closer = nopCloser{}

	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
		}
		writers = append(writers, f)
		closer = f
	}
	if mirrorStderr || len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	SetDefault(New(io.MultiWriter(writers...), ParseLevel(level)))
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// SetDefault replaces the package logger.
func SetDefault(l *Logger) {
	stdMu.Lock()
	std = l
	stdMu.Unlock()
}

// Default returns the package logger.
func Default() *Logger {
	stdMu.RLock()
	defer stdMu.RUnlock()
	return std
}

func Debugf(format string, args ...any) { Default().Debugf(format, args...) }
func Infof(format string, args ...any)  { Default().Infof(format, args...) }
func Warnf(format string, args ...any)  { Default().Warnf(format, args...) }
func Errorf(format string, args ...any) { Default().Errorf(format, args...) }
