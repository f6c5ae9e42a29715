// Package alog is the ambient structured-logging layer. It follows the
// teacher's log.Logger shape (an embedded *slog.Logger plus rotation)
// almost exactly, trimmed of the GUI build's crash-reporting HTTP POST,
// which has no counterpart in this batch/validation core.
package alog

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps *slog.Logger with nil-safe Info/Warn/Error/Debug helpers
// and printf-style variants.
type Logger struct {
	*slog.Logger
	LogFile string
	Start   time.Time
}

// NewServer builds a JSON-structured, file-rotated logger for the import
// and recompute batch entry points (64MB rotated files, 14 day
// retention, compressed).
func NewServer(level, dir string) *Logger {
	return newLogger(level, dir, "adrcore.log", &lumberjack.Logger{
		MaxSize:  64,
		MaxAge:   14,
		Compress: true,
	})
}

// NewCLI builds a smaller logger for short-lived CLI invocations such as
// the validation entry point. Like NewServer it writes JSON to a rotated
// file in dir (adrcore-cli.log, 32 MB, one backup, uncompressed); it does
// not write to stderr.
func NewCLI(level, dir string) *Logger {
	return newLogger(level, dir, "adrcore-cli.log", &lumberjack.Logger{
		MaxSize:    32,
		MaxBackups: 1,
	})
}

func newLogger(level, dir, filename string, w *lumberjack.Logger) *Logger {
	if dir == "" {
		dir = "."
	}
	w.Filename = filepath.Join(dir, filename)

	lvl := slog.LevelInfo
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	return &Logger{
		Logger:  slog.New(h),
		LogFile: w.Filename,
		Start:   time.Now(),
	}
}

func caller() slog.Attr {
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		return slog.String("caller", "?")
	}
	return slog.String("caller", fmt.Sprintf("%s:%d", filepath.Base(file), line))
}

func (l *Logger) Debug(msg string, args ...any) {
	if l != nil && l.Logger.Enabled(nil, slog.LevelDebug) {
		l.Logger.Debug(msg, append(args, caller())...)
	}
}

func (l *Logger) Debugf(format string, args ...any) {
	if l != nil && l.Logger.Enabled(nil, slog.LevelDebug) {
		l.Logger.Debug(fmt.Sprintf(format, args...), caller())
	}
}

func (l *Logger) Info(msg string, args ...any) {
	if l != nil {
		l.Logger.Info(msg, args...)
	}
}

func (l *Logger) Infof(format string, args ...any) {
	if l != nil {
		l.Logger.Info(fmt.Sprintf(format, args...))
	}
}

func (l *Logger) Warn(msg string, args ...any) {
	if l == nil {
		slog.Warn(msg, args...)
		return
	}
	l.Logger.Warn(msg, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	if l == nil {
		slog.Warn(fmt.Sprintf(format, args...))
		return
	}
	l.Logger.Warn(fmt.Sprintf(format, args...))
}

func (l *Logger) Error(msg string, args ...any) {
	args = append(args, caller())
	if l == nil {
		slog.Error(msg, args...)
		return
	}
	l.Logger.Error(msg, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	if l == nil {
		slog.Error(fmt.Sprintf(format, args...), caller())
		return
	}
	l.Logger.Error(fmt.Sprintf(format, args...), caller())
}

func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger:  l.Logger.With(args...),
		LogFile: l.LogFile,
		Start:   l.Start,
	}
}

// CatchAndReport recovers a panic, logs it with a stack trace, and
// re-returns the recovered value so callers can decide whether to
// continue unwinding.
func (l *Logger) CatchAndReport() any {
	if err := recover(); err != nil {
		l.Errorf("panic: %v\n%s", err, debug.Stack())
		return err
	}
	return nil
}
