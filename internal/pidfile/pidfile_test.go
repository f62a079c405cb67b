package pidfile_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"daemonkit/internal/pidfile"
)

func TestWriteReadRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "exampled.pid")
	pf := pidfile.New(path)

	if _, ok := pf.Read(); ok {
		t.Fatal("expected no pid before write")
	}
	if pf.Exists() {
		t.Fatal("expected pidfile absent before write")
	}

	if err := pf.Write(4242); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read raw pidfile: %v", err)
	}
	if string(raw) != "4242\n" {
		t.Fatalf("raw content = %q, want %q", raw, "4242\n")
	}

	pid, ok := pf.Read()
	if !ok || pid != 4242 {
		t.Fatalf("Read = (%d, %v), want (4242, true)", pid, ok)
	}

	if err := pf.Remove(); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if err := pf.Remove(); err != nil {
		t.Fatalf("second Remove returned error: %v", err)
	}
	if pf.Exists() {
		t.Fatal("expected pidfile removed")
	}
}

func TestWriteOverwrites(t *testing.T) {
	pf := pidfile.New(filepath.Join(t.TempDir(), "x.pid"))
	if err := pf.Write(1); err != nil {
		t.Fatal(err)
	}
	if err := pf.Write(99); err != nil {
		t.Fatal(err)
	}
	if pid, _ := pf.Read(); pid != 99 {
		t.Fatalf("pid = %d, want 99", pid)
	}
}

func TestWriteRejectsInvalidPID(t *testing.T) {
	pf := pidfile.New(filepath.Join(t.TempDir(), "x.pid"))
	if err := pf.Write(0); err == nil {
		t.Fatal("expected error for pid 0")
	}
	if pf.Exists() {
		t.Fatal("invalid write must not create the file")
	}
}

func TestInspectClassifiesContent(t *testing.T) {
	tests := []struct {
		name    string
		content *string
		wantPID int
		wantErr error
	}{
		{name: "missing", content: nil, wantErr: pidfile.ErrMissing},
		{name: "valid", content: ptr("123\n"), wantPID: 123},
		{name: "no newline", content: ptr("77"), wantPID: 77},
		{name: "padded", content: ptr("  88 \n\n"), wantPID: 88},
		{name: "empty", content: ptr(""), wantErr: pidfile.ErrMalformed},
		{name: "garbage", content: ptr("not-a-pid\n"), wantErr: pidfile.ErrMalformed},
		{name: "negative", content: ptr("-5\n"), wantErr: pidfile.ErrMalformed},
		{name: "zero", content: ptr("0\n"), wantErr: pidfile.ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "x.pid")
			if tt.content != nil {
				if err := os.WriteFile(path, []byte(*tt.content), 0o644); err != nil {
					t.Fatal(err)
				}
			}
			pf := pidfile.New(path)
			pid, err := pf.Inspect()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				if _, ok := pf.Read(); ok {
					t.Fatal("Read must report none when Inspect fails")
				}
				return
			}
			if err != nil || pid != tt.wantPID {
				t.Fatalf("Inspect = (%d, %v), want (%d, nil)", pid, err, tt.wantPID)
			}
		})
	}
}

func TestLockPath(t *testing.T) {
	pf := pidfile.New("/var/run/exampled.pid")
	if pf.LockPath() != "/var/run/exampled.pid.lock" {
		t.Fatalf("LockPath = %q", pf.LockPath())
	}
}

func ptr(s string) *string { return &s }
