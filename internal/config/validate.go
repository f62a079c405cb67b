package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"daemonkit/internal/logging"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDaemon(); err != nil {
		return err
	}
	if err := c.validateWorker(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDaemon() error {
	if c.Daemon.Name == "" {
		return errors.New("daemon.name must be set")
	}
	if strings.ContainsAny(c.Daemon.Name, `/\`) {
		return fmt.Errorf("daemon.name %q must not contain path separators", c.Daemon.Name)
	}
	if c.Daemon.Umask < 0 || c.Daemon.Umask > 0o777 {
		return fmt.Errorf("daemon.umask %#o out of range", c.Daemon.Umask)
	}
	if err := ensurePositiveMap(map[string]int{
		"daemon.stop_poll_interval_ms": c.Daemon.StopPollIntervalMS,
	}); err != nil {
		return err
	}
	return ensureNonNegativeMap(map[string]int{
		"daemon.stop_timeout_seconds":  c.Daemon.StopTimeoutSeconds,
		"daemon.start_timeout_seconds": c.Daemon.StartTimeoutSeconds,
	})
}

func (c *Config) validateWorker() error {
	if c.Worker.Schedule != "" {
		if _, err := cron.ParseStandard(c.Worker.Schedule); err != nil {
			return fmt.Errorf("worker.schedule: %w", err)
		}
		return nil
	}
	return ensurePositiveMap(map[string]int{
		"worker.interval_seconds": c.Worker.IntervalSeconds,
	})
}

func (c *Config) validateLogging() error {
	if _, ok := logging.ParseLevel(c.Logging.Level); !ok || c.Logging.Level == "" {
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	if err := ensurePositiveMap(map[string]int{
		"logging.max_size_mb": c.Logging.MaxSizeMB,
		"logging.max_backups": c.Logging.MaxBackups,
	}); err != nil {
		return err
	}
	return ensureNonNegativeMap(map[string]int{
		"logging.retention_days": c.Logging.RetentionDays,
	})
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

func ensureNonNegativeMap(values map[string]int) error {
	for key, value := range values {
		if value < 0 {
			return fmt.Errorf("%s must not be negative", key)
		}
	}
	return nil
}
