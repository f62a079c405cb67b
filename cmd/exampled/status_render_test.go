package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"daemonkit/internal/daemonctl"
	"daemonkit/internal/process"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("exampled", statusError, "not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "exampled:", "[ERROR] not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("exampled", statusOK, "running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestStatusMessage(t *testing.T) {
	tests := []struct {
		status daemonctl.Status
		want   string
		kind   statusKind
	}{
		{daemonctl.Status{State: process.Absent}, "not running", statusError},
		{daemonctl.Status{PidfilePresent: true, PID: 7, State: process.Absent}, "not running (stale pidfile, pid 7)", statusError},
		{daemonctl.Status{PidfilePresent: true, PID: 7, State: process.Alive}, "running (pid 7)", statusOK},
		{daemonctl.Status{PidfilePresent: true, PID: 1, State: process.AccessDenied}, "running, access denied (pid 1)", statusWarn},
	}
	for _, tt := range tests {
		if got := statusMessage(tt.status); got != tt.want {
			t.Fatalf("statusMessage(%+v) = %q, want %q", tt.status, got, tt.want)
		}
		if got := statusKindFor(tt.status); got != tt.kind {
			t.Fatalf("statusKindFor(%+v) = %d, want %d", tt.status, got, tt.kind)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[uint64]string{
		0:           "-",
		512:         "512 B",
		2048:        "2.0 KiB",
		5 << 20:     "5.0 MiB",
		3 << 30 / 2: "1.5 GiB",
	}
	for in, want := range tests {
		if got := formatBytes(in); got != want {
			t.Fatalf("formatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestRenderProcessTableTitlesState(t *testing.T) {
	out := renderProcessTable(
		daemonctl.Status{PidfilePresent: true, PID: 42, State: process.AccessDenied},
		process.Details{PID: 42, Name: "exampled"},
	)
	for _, want := range []string{"42", "exampled", "Access Denied", "UPTIME", "RSS"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table missing %q:\n%s", want, out)
		}
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}
