// Package daemon is the body of a detached daemon process.
//
// A Daemon takes an advisory flock on the pidfile's companion lock file,
// writes its own pid, runs the supplied worker.Runnable and removes the
// pidfile when the Runnable returns. The lock closes the window in which two
// launchers both see an absent pidfile: the loser fails with ErrLocked
// without touching the pidfile.
//
// Launch decisions (stale pidfiles, signalling, waiting) belong to
// daemonctl; this package only runs inside the final process.
package daemon
