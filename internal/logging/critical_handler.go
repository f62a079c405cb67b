package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
)

// criticalHandler forwards CRITICAL records to a notifier. It never writes to
// a stream; the file and console handlers do that.
type criticalHandler struct {
	notifier CriticalNotifier
	subject  string
	attrs    []slog.Attr
	groups   []string
}

func newCriticalHandler(notifier CriticalNotifier, subject string) slog.Handler {
	return &criticalHandler{notifier: notifier, subject: subject}
}

func (h *criticalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= LevelCritical
}

func (h *criticalHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < LevelCritical {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	kvs := make([]kv, 0, record.NumAttrs()+len(h.attrs))
	flattenAttrs(&kvs, h.groups, h.attrs)
	record.Attrs(func(attr slog.Attr) bool {
		flattenAttr(&kvs, h.groups, attr)
		return true
	})

	var body bytes.Buffer
	body.WriteString(strings.TrimSpace(record.Message))
	for _, kv := range kvs {
		body.WriteByte('\n')
		body.WriteString(kv.key)
		body.WriteString(": ")
		body.WriteString(attrString(kv.value))
	}

	// A shutdown in progress must not swallow the last critical report.
	return h.notifier.NotifyCritical(context.WithoutCancel(ctx), h.subject, body.String())
}

func (h *criticalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *criticalHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}
