package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

const (
	defaultName                = "exampled"
	defaultDevNull             = "/dev/null"
	defaultWorkdir             = "/"
	defaultUmask               = 0
	defaultStopPollIntervalMS  = 100
	defaultStartTimeoutSeconds = 5
	defaultWorkerInterval      = 5
	defaultLogLevel            = "info"
	defaultLogFormat           = "console"
	defaultLogMaxSizeMB        = 100
	defaultLogMaxBackups       = 4
	defaultLogRetentionDays    = 30
	defaultNotifyTimeout       = 10
	ntfyTopicEnv               = "EXAMPLED_NTFY_TOPIC"
)

// Default returns a Config populated with repository defaults. Paths derived
// from the daemon name (pidfile, log dir, store) are filled in by Load.
func Default() Config {
	return Config{
		Daemon: Daemon{
			Name:                defaultName,
			Stdin:               defaultDevNull,
			Stdout:              defaultDevNull,
			Stderr:              defaultDevNull,
			Workdir:             defaultWorkdir,
			Umask:               defaultUmask,
			StopPollIntervalMS:  defaultStopPollIntervalMS,
			StartTimeoutSeconds: defaultStartTimeoutSeconds,
		},
		Worker: Worker{
			IntervalSeconds: defaultWorkerInterval,
		},
		Logging: Logging{
			Level:         defaultLogLevel,
			Format:        defaultLogFormat,
			Console:       true,
			MaxSizeMB:     defaultLogMaxSizeMB,
			MaxBackups:    defaultLogMaxBackups,
			RetentionDays: defaultLogRetentionDays,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
	}
}

func defaultPidfile(name string) string {
	return filepath.Join(xdg.StateHome, name, name+".pid")
}

func defaultLogDir(name string) string {
	return filepath.Join(xdg.StateHome, name, "logs")
}

func defaultStorePath(name string) string {
	return filepath.Join(xdg.DataHome, name, name+".db")
}
