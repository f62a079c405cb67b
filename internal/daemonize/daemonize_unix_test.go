//go:build unix

package daemonize_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"daemonkit/internal/daemonize"
	"daemonkit/internal/fileutil"
)

const (
	helperReportEnv = "DAEMONIZE_HELPER_REPORT"
	helperStdoutEnv = "DAEMONIZE_HELPER_STDOUT"
	helperStderrEnv = "DAEMONIZE_HELPER_STDERR"
	helperFailEnv   = "DAEMONIZE_HELPER_FAIL"
	helperUmask     = 0o027
)

type stageReport struct {
	PID    int    `json:"pid"`
	SID    int    `json:"sid"`
	Umask  int    `json:"umask"`
	Cwd    string `json:"cwd"`
	Marker string `json:"marker"`
}

// TestHelperDaemon is re-executed by the tests below; it does nothing in a
// normal test run.
func TestHelperDaemon(t *testing.T) {
	reportPath := os.Getenv(helperReportEnv)
	if reportPath == "" {
		t.Skip("helper process only")
	}

	res, err := daemonize.Daemonize(daemonize.Options{
		Workdir: "/",
		Umask:   helperUmask,
		Stdout:  os.Getenv(helperStdoutEnv),
		Stderr:  os.Getenv(helperStderrEnv),
		Args:    []string{"-test.run=^TestHelperDaemon$"},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if res.Role != daemonize.RoleDaemon {
		os.Exit(0)
	}

	sid, _ := unix.Getsid(0)
	mask := unix.Umask(0)
	unix.Umask(mask)
	cwd, _ := os.Getwd()
	fmt.Println("daemon stdout line")
	fmt.Fprintln(os.Stderr, "daemon stderr line")

	data, _ := json.Marshal(stageReport{
		PID:    os.Getpid(),
		SID:    sid,
		Umask:  mask,
		Cwd:    cwd,
		Marker: os.Getenv(daemonize.StageEnv),
	})
	_ = fileutil.WriteFileAtomic(reportPath, data, 0o644)
	os.Exit(0)
}

// TestHelperDetachFailure is re-executed as the detach stage by
// TestDaemonizeClassifiesDetachFailures.
func TestHelperDetachFailure(t *testing.T) {
	mode := os.Getenv(helperFailEnv)
	if mode == "" || daemonize.CurrentStage() == "" {
		t.Skip("helper process only")
	}
	if mode == "before-spawn" {
		fmt.Fprintln(os.Stderr, "config error")
		os.Exit(1)
	}
	_, err := daemonize.Daemonize(daemonize.Options{
		Executable: filepath.Join(os.TempDir(), "daemonkit-missing-binary"),
		Args:       []string{},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(daemonize.ExitCode(err))
	}
	os.Exit(0)
}

func waitForFile(t *testing.T, path string, timeout time.Duration) []byte {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if data, err := os.ReadFile(path); err == nil {
			return data
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", path)
	return nil
}

func TestDaemonizeDetachesThroughTwoStages(t *testing.T) {
	dir := t.TempDir()
	reportPath := filepath.Join(dir, "report.json")
	stdoutPath := filepath.Join(dir, "daemon.out")
	stderrPath := filepath.Join(dir, "daemon.err")
	launcherOut, err := os.Create(filepath.Join(dir, "launcher.out"))
	if err != nil {
		t.Fatal(err)
	}
	defer launcherOut.Close()

	cmd := exec.Command(os.Args[0], "-test.run=^TestHelperDaemon$")
	cmd.Env = append(os.Environ(),
		helperReportEnv+"="+reportPath,
		helperStdoutEnv+"="+stdoutPath,
		helperStderrEnv+"="+stderrPath,
	)
	cmd.Stdout = launcherOut
	cmd.Stderr = launcherOut
	if err := cmd.Run(); err != nil {
		t.Fatalf("launcher failed: %v", err)
	}

	var report stageReport
	if err := json.Unmarshal(waitForFile(t, reportPath, 10*time.Second), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}

	if report.PID == cmd.Process.Pid {
		t.Fatal("daemon ran in the launcher process")
	}
	if report.SID == report.PID {
		t.Fatal("daemon must not be a session leader")
	}
	ownSID, _ := unix.Getsid(0)
	if report.SID == ownSID {
		t.Fatal("daemon still shares the caller's session")
	}
	if report.Umask != helperUmask {
		t.Fatalf("umask = %#o, want %#o", report.Umask, helperUmask)
	}
	if report.Cwd != "/" {
		t.Fatalf("cwd = %q, want /", report.Cwd)
	}
	if report.Marker != "" {
		t.Fatalf("stage marker leaked into daemon environment: %q", report.Marker)
	}

	if out := string(waitForFile(t, stdoutPath, 5*time.Second)); !strings.Contains(out, "daemon stdout line") {
		t.Fatalf("stdout not redirected: %q", out)
	}
	if errOut := string(waitForFile(t, stderrPath, 5*time.Second)); !strings.Contains(errOut, "daemon stderr line") {
		t.Fatalf("stderr not redirected: %q", errOut)
	}
	launcherText, _ := os.ReadFile(launcherOut.Name())
	if strings.Contains(string(launcherText), "daemon stdout line") {
		t.Fatalf("daemon output reached the launcher terminal: %q", launcherText)
	}
}

func TestDaemonizeReportsSpawnFailure(t *testing.T) {
	t.Setenv(daemonize.StageEnv, "")
	_, err := daemonize.Daemonize(daemonize.Options{
		Executable: filepath.Join(t.TempDir(), "missing-binary"),
		Args:       []string{},
	})
	var launchErr *daemonize.LaunchError
	if !errors.As(err, &launchErr) {
		t.Fatalf("err = %v, want LaunchError", err)
	}
	if launchErr.Stage != 1 {
		t.Fatalf("stage = %d, want 1", launchErr.Stage)
	}
	if !strings.HasPrefix(err.Error(), "fork #1 failed: ") {
		t.Fatalf("unexpected message %q", err)
	}
}

func TestDaemonizeRejectsUnknownStage(t *testing.T) {
	t.Setenv(daemonize.StageEnv, "bogus")
	if _, err := daemonize.Daemonize(daemonize.Options{Executable: "/bin/true", Args: []string{}}); err == nil {
		t.Fatal("expected error for unknown stage marker")
	}
}

func TestDaemonizeClassifiesDetachFailures(t *testing.T) {
	tests := []struct {
		mode  string
		spawn bool
	}{
		{mode: "before-spawn", spawn: false},
		{mode: "spawn", spawn: true},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			t.Setenv(daemonize.StageEnv, "")
			t.Setenv(helperFailEnv, tt.mode)

			_, err := daemonize.Daemonize(daemonize.Options{
				Args: []string{"-test.run=^TestHelperDetachFailure$"},
			})
			if err == nil {
				t.Fatal("expected the detach stage to fail")
			}
			var launchErr *daemonize.LaunchError
			isLaunch := errors.As(err, &launchErr)
			if tt.spawn {
				if !isLaunch || launchErr.Stage != 2 {
					t.Fatalf("err = %v, want stage 2 LaunchError", err)
				}
				if !strings.HasPrefix(err.Error(), "fork #2 failed: ") {
					t.Fatalf("unexpected message %q", err)
				}
				return
			}
			if isLaunch {
				t.Fatalf("err = %v, must not be reported as a fork failure", err)
			}
			if !errors.Is(err, daemonize.ErrDetachFailed) {
				t.Fatalf("err = %v, want ErrDetachFailed", err)
			}
		})
	}
}
