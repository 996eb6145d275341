// Copyright 2026 Phillip Cloud
// Licensed under the Apache License, Version 2.0

// Package logging provides the dual-sink (stdout + run log file) leveled
// logger every cascade pass and the orchestrator write through.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level is a log severity, ordered DEBUG < INFO < WARN < ERROR.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String renders the level the way it appears in a log line.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// ParseLevel maps a LOG_LEVEL string to a Level, defaulting to INFO for
// anything unrecognized.
func ParseLevel(name string) Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger writes leveled, timestamped lines to stdout and, best-effort, to
// a run log file. A Logger is safe for concurrent use.
type Logger struct {
	mu       sync.Mutex
	level    Level
	stdout   io.Writer
	file     io.WriteCloser
	filePath string
}

// New builds a Logger at the given level that always writes to stdout and,
// if runLogPath is non-empty, also appends to that file. A file that
// cannot be opened is reported as a warning on stderr and otherwise ignored,
// mirroring the original's "last resort: print why" fallback.
func New(level Level, runLogPath string) *Logger {
	l := &Logger{level: level, stdout: os.Stdout}
	if runLogPath == "" {
		return l
	}
	if err := os.MkdirAll(filepath.Dir(runLogPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] could not create directory for run log %s: %v\n", runLogPath, err)
		return l
	}
	f, err := os.OpenFile(runLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec // run log path is operator-controlled config
	if err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] could not attach file handler to %s: %v\n", runLogPath, err)
		return l
	}
	l.file = f
	l.filePath = runLogPath
	return l
}

// Close releases the underlying run log file, if one is open.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

func (l *Logger) log(level Level, format string, args ...any) {
	if level < l.level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	line := fmt.Sprintf("[%s] [%s] %s\n", time.Now().Format("2006-01-02 15:04:05"), level, msg)

	l.mu.Lock()
	defer l.mu.Unlock()
	io.WriteString(l.stdout, line) //nolint:errcheck // best-effort console output
	if l.file != nil {
		io.WriteString(l.file, line) //nolint:errcheck // best-effort file output
	}
}

// Debug logs at DEBUG level.
func (l *Logger) Debug(format string, args ...any) { l.log(LevelDebug, format, args...) }

// Info logs at INFO level.
func (l *Logger) Info(format string, args ...any) { l.log(LevelInfo, format, args...) }

// Warn logs at WARN level.
func (l *Logger) Warn(format string, args ...any) { l.log(LevelWarn, format, args...) }

// Error logs at ERROR level.
func (l *Logger) Error(format string, args ...any) { l.log(LevelError, format, args...) }
