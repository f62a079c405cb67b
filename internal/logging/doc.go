// Package logging builds the named, owned loggers used by daemons.
//
// New returns a Logger handle scoped by name: records go to a rotating
// <dir>/<name>.log file, optionally to stderr at WARN and above, and records
// at LevelCritical are additionally pushed to a CriticalNotifier. The handle
// exposes Rollover for an on-demand rotation and Close for shutdown; there is
// no package-level logger.
//
// The console and JSON handlers share one record shape (ts, level, msg,
// source) and the attr helpers keep field names consistent across packages.
package logging
