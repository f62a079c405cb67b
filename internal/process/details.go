package process

import (
	"context"
	"errors"
	"fmt"
	"time"

	psprocess "github.com/shirou/gopsutil/v4/process"
)

// Details describes a running process for status reports.
type Details struct {
	PID      int
	Name     string
	Cmdline  string
	Started  time.Time
	RSSBytes uint64
}

// Uptime returns how long the process has been running as of now.
func (d Details) Uptime(now time.Time) time.Duration {
	if d.Started.IsZero() || now.Before(d.Started) {
		return 0
	}
	return now.Sub(d.Started)
}

// Describe gathers Details for pid. Fields the platform cannot report are
// left empty; only a missing process is an error.
func Describe(ctx context.Context, pid int) (Details, error) {
	p, err := psprocess.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		if errors.Is(err, psprocess.ErrorProcessNotRunning) {
			return Details{}, fmt.Errorf("describe pid %d: %w", pid, ErrGone)
		}
		return Details{}, fmt.Errorf("describe pid %d: %w", pid, err)
	}

	details := Details{PID: pid}
	if name, err := p.NameWithContext(ctx); err == nil {
		details.Name = name
	}
	if cmdline, err := p.CmdlineWithContext(ctx); err == nil {
		details.Cmdline = cmdline
	}
	if created, err := p.CreateTimeWithContext(ctx); err == nil && created > 0 {
		details.Started = time.UnixMilli(created)
	}
	if mem, err := p.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		details.RSSBytes = mem.RSS
	}
	return details, nil
}
