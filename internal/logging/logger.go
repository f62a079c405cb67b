package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelCritical sits above slog.LevelError. Records at this level are also
// handed to the configured CriticalNotifier.
const LevelCritical = slog.Level(12)

const (
	defaultMaxSizeMB  = 100
	defaultMaxBackups = 4
)

// CriticalNotifier delivers CRITICAL records out of band.
type CriticalNotifier interface {
	NotifyCritical(ctx context.Context, subject, body string) error
}

// Options describes logger construction parameters.
type Options struct {
	// Name scopes the logger; the log file is <Dir>/<Name>.log.
	Name string
	// Dir holds the rotating log file. Empty disables the file sink.
	Dir         string
	Level       string
	Format      string
	Console     bool
	MaxSizeMB   int
	MaxBackups  int
	Development bool
	Notifier    CriticalNotifier
	// Hostname overrides os.Hostname in notification subjects.
	Hostname string
}

// Logger is an owned logging handle. It embeds the slog logger used for
// emitting records and keeps the rotating file so callers can force a
// rollover or release it on shutdown.
type Logger struct {
	*slog.Logger
	name string
	path string
	file *lumberjack.Logger
}

// New constructs a named logger from opts.
func New(opts Options) (*Logger, error) {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return nil, errors.New("logger name is required")
	}
	level := parseLevel(opts.Level)
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)
	addSource := opts.Development || level <= slog.LevelDebug

	build := func(w io.Writer) (slog.Handler, error) {
		format := strings.ToLower(strings.TrimSpace(opts.Format))
		switch format {
		case "", "console":
			return newPrettyHandler(w, levelVar, addSource), nil
		case "json":
			return newJSONHandler(w, levelVar, addSource)
		default:
			return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
		}
	}

	out := &Logger{name: name}
	var handlers []slog.Handler

	if dir := strings.TrimSpace(opts.Dir); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
		out.path = filepath.Join(dir, name+".log")
		out.file = &lumberjack.Logger{
			Filename:   out.path,
			MaxSize:    positiveOr(opts.MaxSizeMB, defaultMaxSizeMB),
			MaxBackups: positiveOr(opts.MaxBackups, defaultMaxBackups),
		}
		fileHandler, err := build(out.file)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, fileHandler)
	}

	switch {
	case opts.Console:
		consoleHandler, err := build(os.Stderr)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, newLevelOverrideHandler(consoleHandler, slog.LevelWarn))
	case out.file == nil:
		stderrHandler, err := build(os.Stderr)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, stderrHandler)
	}

	if opts.Notifier != nil {
		host := strings.TrimSpace(opts.Hostname)
		if host == "" {
			host, _ = os.Hostname()
		}
		subject := fmt.Sprintf("%s CRITICAL Error on %s", name, host)
		handlers = append(handlers, newCriticalHandler(opts.Notifier, subject))
	}

	out.Logger = slog.New(newFanoutHandler(handlers...))
	return out, nil
}

// Name returns the logger name.
func (l *Logger) Name() string { return l.name }

// Path returns the active log file path, or "" without a file sink.
func (l *Logger) Path() string { return l.path }

// Rollover closes the active log file, renames it to a timestamped backup and
// starts a fresh file. Backups beyond MaxBackups are removed.
func (l *Logger) Rollover() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := l.file.Rotate(); err != nil {
		return fmt.Errorf("rotate %s: %w", l.path, err)
	}
	return nil
}

// Close releases the log file.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Critical logs msg at LevelCritical.
func (l *Logger) Critical(msg string, args ...any) {
	logAt(context.Background(), l.Logger, LevelCritical, msg, args...)
}

// Critical logs msg at LevelCritical on logger.
func Critical(logger *slog.Logger, msg string, args ...any) {
	logAt(context.Background(), logger, LevelCritical, msg, args...)
}

func logAt(ctx context.Context, logger *slog.Logger, level slog.Level, msg string, args ...any) {
	if logger == nil || !logger.Enabled(ctx, level) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	record := slog.NewRecord(time.Now(), level, msg, pcs[0])
	record.Add(args...)
	_ = logger.Handler().Handle(ctx, record)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "critical":
		return LevelCritical
	case "info", "":
		return slog.LevelInfo
	default:
		return slog.LevelInfo
	}
}

// ParseLevel reports whether level names a supported log level.
func ParseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "info", "", "warn", "warning", "error", "critical":
		return parseLevel(level), true
	default:
		return slog.LevelInfo, false
	}
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= LevelCritical:
		return "CRITICAL"
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

func positiveOr(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}
