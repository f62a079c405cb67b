package daemonctl

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"daemonkit/internal/config"
	"daemonkit/internal/daemon"
	"daemonkit/internal/daemonize"
	"daemonkit/internal/logging"
	"daemonkit/internal/pidfile"
	"daemonkit/internal/process"
)

const (
	defaultPollInterval  = 100 * time.Millisecond
	pidfileCheckInterval = 50 * time.Millisecond
)

var (
	// ErrAlreadyRunning reports a start while a live process owns the pidfile.
	ErrAlreadyRunning = errors.New("daemon already running")
	// ErrStalePidfile reports a start refused because a pidfile names a dead
	// process and stale pidfiles are not cleared automatically.
	ErrStalePidfile = errors.New("stale pidfile present")
	// ErrStopTimeout reports a process that survived SIGTERM and SIGKILL.
	ErrStopTimeout = errors.New("daemon did not exit")
	// ErrStartTimeout reports a launch whose daemon never wrote its pidfile.
	ErrStartTimeout = errors.New("daemon did not report its pid")
)

// DaemonizeFunc advances the current process one stage towards detachment.
type DaemonizeFunc func(daemonize.Options) (daemonize.Result, error)

// Options controls a Controller.
type Options struct {
	// Name identifies the daemon in logs and notifications.
	Name string
	// Pidfile is the path of the instance's pidfile.
	Pidfile string
	// Daemonize describes the detached process.
	Daemonize daemonize.Options
	// PollInterval is the pause between termination signals during stop.
	PollInterval time.Duration
	// StopTimeout bounds each stop phase. Zero waits forever.
	StopTimeout time.Duration
	// StartTimeout bounds the launcher's wait for the pidfile. Zero returns
	// as soon as the daemon has been spawned.
	StartTimeout time.Duration
	// RefuseStalePidfile keeps a dead instance's pidfile and fails start.
	RefuseStalePidfile bool
}

// OptionsFromConfig maps the daemon section of cfg onto controller options.
func OptionsFromConfig(cfg *config.Config) Options {
	d := cfg.Daemon
	return Options{
		Name:    d.Name,
		Pidfile: d.Pidfile,
		Daemonize: daemonize.Options{
			Workdir:    d.Workdir,
			Umask:      d.Umask,
			Stdin:      d.Stdin,
			Stdout:     d.Stdout,
			Stderr:     d.Stderr,
			Foreground: d.Foreground,
		},
		PollInterval:       cfg.StopPollInterval(),
		StopTimeout:        cfg.StopTimeout(),
		StartTimeout:       cfg.StartTimeout(),
		RefuseStalePidfile: d.RefuseStalePidfile,
	}
}

// Option customizes a Controller.
type Option func(*Controller)

// WithProcessTable replaces the host process table.
func WithProcessTable(t process.Table) Option {
	return func(c *Controller) { c.table = t }
}

// WithDaemonizer replaces daemonize.Daemonize.
func WithDaemonizer(fn DaemonizeFunc) Option {
	return func(c *Controller) { c.daemonize = fn }
}

// WithNotifier forwards daemon start and stop notices to n.
func WithNotifier(n daemon.Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// Controller implements start, stop, restart and status for one pidfile.
// It holds no state about the daemon between calls; every operation reads
// the pidfile and probes the process table afresh.
type Controller struct {
	opts      Options
	pidfile   *pidfile.File
	table     process.Table
	daemonize DaemonizeFunc
	notifier  daemon.Notifier
	base      *slog.Logger
	logger    *slog.Logger
}

// New constructs a controller.
func New(opts Options, logger *slog.Logger, options ...Option) (*Controller, error) {
	if strings.TrimSpace(opts.Pidfile) == "" {
		return nil, errors.New("daemon controller requires a pidfile path")
	}
	if strings.TrimSpace(opts.Name) == "" {
		opts.Name = "daemon"
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Controller{
		opts:      opts,
		pidfile:   pidfile.New(opts.Pidfile),
		table:     process.System{},
		daemonize: daemonize.Daemonize,
		base:      logger,
		logger:    logging.NewComponentLogger(logger, "daemonctl"),
	}
	for _, option := range options {
		option(c)
	}
	return c, nil
}

// Pidfile returns the pidfile managed by the controller.
func (c *Controller) Pidfile() *pidfile.File { return c.pidfile }

func (c *Controller) pidfileAttrs(pid int) []logging.Attr {
	return []logging.Attr{
		logging.Int(logging.FieldPID, pid),
		logging.String(logging.FieldPidfile, c.pidfile.Path()),
	}
}
