package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"daemonkit/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config whose pidfile, stdio targets, log directory
// and store live under a per-test temp directory. Options run before the
// result is validated.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Daemon.Pidfile = filepath.Join(base, "run", "exampled.pid")
	cfgVal.Daemon.Stdout = filepath.Join(base, "logs", "exampled.out")
	cfgVal.Daemon.Stderr = filepath.Join(base, "logs", "exampled.err")
	cfgVal.Daemon.StopPollIntervalMS = 10
	cfgVal.Logging.Dir = filepath.Join(base, "logs")
	cfgVal.Logging.Console = false
	cfgVal.Store.Path = filepath.Join(base, "data", "exampled.db")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return builder.cfg
}

// WithName renames the daemon.
func WithName(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Daemon.Name = name
	}
}

// WithNtfyTopic points notifications at topic, typically an httptest URL.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// WithWorkerSchedule paces the worker loop with a cron expression.
func WithWorkerSchedule(expr string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Worker.Schedule = expr
	}
}

// WithForeground disables detachment.
func WithForeground() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Daemon.Foreground = true
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(filepath.Dir(cfg.Daemon.Pidfile))
}

// WriteConfigFile encodes cfg as TOML next to its temp directory and
// returns the file path, for commands that load their own config.
func WriteConfigFile(t testing.TB, cfg *config.Config) string {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	path := filepath.Join(BaseDir(cfg), "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
