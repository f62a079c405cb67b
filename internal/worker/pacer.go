package worker

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultInterval is the pause between cycles when nothing else is configured.
const DefaultInterval = 5 * time.Second

// Pacer decides when the next cycle starts.
type Pacer interface {
	Next(now time.Time) time.Time
}

// Interval pauses for a fixed duration after every cycle.
type Interval time.Duration

func (i Interval) Next(now time.Time) time.Time {
	return now.Add(time.Duration(i))
}

// Schedule starts cycles at the activation times of a cron expression.
type Schedule struct {
	expr     string
	schedule cron.Schedule
}

// ParseSchedule parses a standard five-field cron expression or a
// descriptor such as "@every 30s" or "@hourly".
func ParseSchedule(expr string) (*Schedule, error) {
	expr = strings.TrimSpace(expr)
	parsed, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", expr, err)
	}
	return &Schedule{expr: expr, schedule: parsed}, nil
}

func (s *Schedule) Next(now time.Time) time.Time { return s.schedule.Next(now) }

func (s *Schedule) String() string { return s.expr }

// NewPacer returns a Schedule when expr is set, otherwise an Interval.
func NewPacer(interval time.Duration, expr string) (Pacer, error) {
	if strings.TrimSpace(expr) != "" {
		return ParseSchedule(expr)
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return Interval(interval), nil
}
