package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"
)

// Daemon contains the lifecycle controller settings.
type Daemon struct {
	Name                string `toml:"name"`
	Pidfile             string `toml:"pidfile"`
	Stdin               string `toml:"stdin"`
	Stdout              string `toml:"stdout"`
	Stderr              string `toml:"stderr"`
	Workdir             string `toml:"workdir"`
	Umask               int    `toml:"umask"`
	StopPollIntervalMS  int    `toml:"stop_poll_interval_ms"`
	StopTimeoutSeconds  int    `toml:"stop_timeout_seconds"`
	StartTimeoutSeconds int    `toml:"start_timeout_seconds"`
	RefuseStalePidfile  bool   `toml:"refuse_stale_pidfile"`
	Foreground          bool   `toml:"foreground"`
}

// Worker contains the loop pacing settings. Schedule, when set, replaces the
// fixed interval with a cron expression.
type Worker struct {
	IntervalSeconds int    `toml:"interval_seconds"`
	Schedule        string `toml:"schedule"`
}

// Logging contains configuration for log output.
type Logging struct {
	Dir           string `toml:"dir"`
	Level         string `toml:"level"`
	Format        string `toml:"format"`
	Console       bool   `toml:"console"`
	MaxSizeMB     int    `toml:"max_size_mb"`
	MaxBackups    int    `toml:"max_backups"`
	RetentionDays int    `toml:"retention_days"`
}

// Notifications contains configuration for ntfy delivery of critical records.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Store contains the example daemon's database location.
type Store struct {
	Path string `toml:"path"`
}

// Config encapsulates all configuration values for a daemon.
//
// Configuration sections by subsystem:
//   - Daemon: pidfile, stdio targets and stop/start timing
//   - Worker: loop interval or cron schedule
//   - Logging: rotating log file, level and retention
//   - Notifications: ntfy topic for CRITICAL records
//   - Store: SQLite database used by the example tasks
type Config struct {
	Daemon        Daemon        `toml:"daemon"`
	Worker        Worker        `toml:"worker"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
	Store         Store         `toml:"store"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, defaultName, "config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	xdg.Reload()
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file).DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath := DefaultConfigPath()
	projectPath, err := filepath.Abs(defaultName + ".toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{filepath.Dir(c.Daemon.Pidfile), c.Logging.Dir}
	if c.Store.Path != "" {
		dirs = append(dirs, filepath.Dir(c.Store.Path))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// StopPollInterval is the pause between termination signals during stop.
func (c *Config) StopPollInterval() time.Duration {
	return time.Duration(c.Daemon.StopPollIntervalMS) * time.Millisecond
}

// StopTimeout bounds the stop loop before SIGKILL escalation. Zero means wait forever.
func (c *Config) StopTimeout() time.Duration {
	return time.Duration(c.Daemon.StopTimeoutSeconds) * time.Second
}

// StartTimeout bounds how long start waits for the daemon to write its pidfile.
func (c *Config) StartTimeout() time.Duration {
	return time.Duration(c.Daemon.StartTimeoutSeconds) * time.Second
}

// WorkerInterval is the fixed pause between worker cycles.
func (c *Config) WorkerInterval() time.Duration {
	return time.Duration(c.Worker.IntervalSeconds) * time.Second
}

// NotifyTimeout is the HTTP timeout for ntfy requests.
func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeout) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}
