package main

import (
	"strings"
	"sync"

	"daemonkit/internal/config"
	"daemonkit/internal/daemonctl"
	"daemonkit/internal/daemonrun"
	"daemonkit/internal/logging"
	"daemonkit/internal/notifications"
)

type commandContext struct {
	configFlag *string
	foreground *bool

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error

	loggerOnce sync.Once
	logger     *logging.Logger
	notifier   notifications.Service
	loggerErr  error
}

func newCommandContext(configFlag *string, foreground *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		foreground: foreground,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.foreground != nil && *c.foreground {
			cfg.Daemon.Foreground = true
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configExists = exists || path != ""
	})
	return c.config, c.configErr
}

// ensureLogger builds the process logger once. Every stage of a start
// builds its own; the daemon's records land in the same rotating file.
func (c *commandContext) ensureLogger() (*logging.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.notifier = notifications.NewService(cfg)
		c.logger, c.loggerErr = daemonrun.NewLogger(cfg, c.notifier)
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) controller() (*daemonctl.Controller, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	opts := daemonctl.OptionsFromConfig(cfg)
	opts.Daemonize.Args = c.daemonArgs()
	return daemonctl.New(opts, logger.Logger, daemonctl.WithNotifier(c.notifier))
}

// daemonArgs is the command line of the re-executed stages. The daemon
// runs with "/" as its working directory, so the config path is absolute.
// Restart re-executes as start; its stop half already ran here.
func (c *commandContext) daemonArgs() []string {
	var args []string
	if c.configExists && c.configPath != "" {
		args = append(args, "--config", c.configPath)
	}
	return append(args, "start")
}

func (c *commandContext) close() {
	if c.logger != nil {
		_ = c.logger.Close()
	}
}
