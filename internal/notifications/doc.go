// Package notifications pushes daemon events to an ntfy topic.
//
// CRITICAL log records reach ntfy through the logging package, which holds a
// Service as its CriticalNotifier. Start and stop notices are sent by the
// daemon runtime. Without a configured topic every call is a no-op.
package notifications
