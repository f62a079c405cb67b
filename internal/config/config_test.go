package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"daemonkit/internal/config"
)

func isolateXDG(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(home, "state"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, "data"))
	t.Setenv("EXAMPLED_NTFY_TOPIC", "")
	t.Chdir(home)
	return home
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsDeriveFromXDG(t *testing.T) {
	home := isolateXDG(t)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if want := filepath.Join(home, "config", "exampled", "config.toml"); resolved != want {
		t.Fatalf("resolved = %q, want %q", resolved, want)
	}
	if want := filepath.Join(home, "state", "exampled", "exampled.pid"); cfg.Daemon.Pidfile != want {
		t.Fatalf("pidfile = %q, want %q", cfg.Daemon.Pidfile, want)
	}
	if want := filepath.Join(home, "state", "exampled", "logs"); cfg.Logging.Dir != want {
		t.Fatalf("log dir = %q, want %q", cfg.Logging.Dir, want)
	}
	if want := filepath.Join(home, "data", "exampled", "exampled.db"); cfg.Store.Path != want {
		t.Fatalf("store path = %q, want %q", cfg.Store.Path, want)
	}
	if cfg.Daemon.Stdin != "/dev/null" || cfg.Daemon.Stdout != "/dev/null" || cfg.Daemon.Stderr != "/dev/null" {
		t.Fatalf("expected /dev/null stdio defaults, got %+v", cfg.Daemon)
	}
	if cfg.Daemon.Workdir != "/" {
		t.Fatalf("workdir = %q, want /", cfg.Daemon.Workdir)
	}
	if cfg.StopPollInterval() != 100*time.Millisecond {
		t.Fatalf("stop poll interval = %s", cfg.StopPollInterval())
	}
	if cfg.StopTimeout() != 0 {
		t.Fatalf("expected unbounded stop by default, got %s", cfg.StopTimeout())
	}
	if cfg.StartTimeout() != 5*time.Second {
		t.Fatalf("start timeout = %s", cfg.StartTimeout())
	}
	if cfg.WorkerInterval() != 5*time.Second {
		t.Fatalf("worker interval = %s", cfg.WorkerInterval())
	}
	if cfg.Logging.MaxSizeMB != 100 || cfg.Logging.MaxBackups != 4 {
		t.Fatalf("unexpected rotation defaults: %+v", cfg.Logging)
	}
	if cfg.Daemon.RefuseStalePidfile {
		t.Fatal("expected stale pidfiles to be cleared by default")
	}
}

func TestLoadRenamedDaemonMovesDerivedPaths(t *testing.T) {
	home := isolateXDG(t)
	path := writeConfig(t, `
[daemon]
name = "backupd"
umask = 0o022
stop_timeout_seconds = 30
refuse_stale_pidfile = true

[worker]
schedule = "*/5 * * * *"
`)

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected explicit path to be used, got %q exists=%v", resolved, exists)
	}
	if want := filepath.Join(home, "state", "backupd", "backupd.pid"); cfg.Daemon.Pidfile != want {
		t.Fatalf("pidfile = %q, want %q", cfg.Daemon.Pidfile, want)
	}
	if cfg.Daemon.Umask != 0o022 {
		t.Fatalf("umask = %#o", cfg.Daemon.Umask)
	}
	if cfg.StopTimeout() != 30*time.Second {
		t.Fatalf("stop timeout = %s", cfg.StopTimeout())
	}
	if !cfg.Daemon.RefuseStalePidfile {
		t.Fatal("expected refuse_stale_pidfile to be honoured")
	}
	if cfg.Worker.Schedule != "*/5 * * * *" {
		t.Fatalf("schedule = %q", cfg.Worker.Schedule)
	}
}

func TestLoadExpandsTildePaths(t *testing.T) {
	home := isolateXDG(t)
	path := writeConfig(t, `
[daemon]
pidfile = "~/run/custom.pid"
stdout = "~/logs/out.log"
`)

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if want := filepath.Join(home, "run", "custom.pid"); cfg.Daemon.Pidfile != want {
		t.Fatalf("pidfile = %q, want %q", cfg.Daemon.Pidfile, want)
	}
	if want := filepath.Join(home, "logs", "out.log"); cfg.Daemon.Stdout != want {
		t.Fatalf("stdout = %q, want %q", cfg.Daemon.Stdout, want)
	}
}

func TestLoadNtfyTopicFromEnv(t *testing.T) {
	isolateXDG(t)
	t.Setenv("EXAMPLED_NTFY_TOPIC", "https://ntfy.sh/example")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.sh/example" {
		t.Fatalf("topic = %q", cfg.Notifications.NtfyTopic)
	}
}

func TestLoadFindsProjectConfig(t *testing.T) {
	home := isolateXDG(t)
	if err := os.WriteFile(filepath.Join(home, "exampled.toml"), []byte("[worker]\ninterval_seconds = 9\n"), 0o644); err != nil {
		t.Fatalf("write project config: %v", err)
	}

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || filepath.Base(resolved) != "exampled.toml" {
		t.Fatalf("expected project config, got %q exists=%v", resolved, exists)
	}
	if cfg.WorkerInterval() != 9*time.Second {
		t.Fatalf("worker interval = %s", cfg.WorkerInterval())
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown key", "[daemon]\nbogus = 1\n", "strict mode"},
		{"bad level", "[logging]\nlevel = \"loud\"\n", "logging.level"},
		{"bad format", "[logging]\nformat = \"xml\"\n", "logging.format"},
		{"zero poll", "[daemon]\nstop_poll_interval_ms = 0\n", "stop_poll_interval_ms"},
		{"negative stop timeout", "[daemon]\nstop_timeout_seconds = -1\n", "stop_timeout_seconds"},
		{"bad cron", "[worker]\nschedule = \"every tuesday\"\n", "worker.schedule"},
		{"zero interval", "[worker]\ninterval_seconds = 0\n", "worker.interval_seconds"},
		{"name with slash", "[daemon]\nname = \"a/b\"\n", "daemon.name"},
		{"umask range", "[daemon]\numask = 4096\n", "daemon.umask"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateXDG(t)
			_, _, _, err := config.Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnsureDirectoriesCreatesStateDirs(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Daemon.Pidfile = filepath.Join(base, "run", "x.pid")
	cfg.Logging.Dir = filepath.Join(base, "logs")
	cfg.Store.Path = filepath.Join(base, "data", "x.db")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	for _, dir := range []string{"run", "logs", "data"} {
		if info, err := os.Stat(filepath.Join(base, dir)); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}

func TestValidateLoggingLevels(t *testing.T) {
	tests := []struct {
		level string
		ok    bool
	}{
		{"debug", true},
		{"info", true},
		{"warning", true},
		{"error", true},
		{"critical", true},
		{"", false},
		{"loud", false},
	}
	for _, tt := range tests {
		cfg := config.Default()
		cfg.Logging.Level = tt.level
		err := cfg.Validate()
		if tt.ok && err != nil {
			t.Fatalf("level %q rejected: %v", tt.level, err)
		}
		if !tt.ok && (err == nil || !strings.Contains(err.Error(), "logging.level")) {
			t.Fatalf("level %q: err = %v, want logging.level error", tt.level, err)
		}
	}
}
