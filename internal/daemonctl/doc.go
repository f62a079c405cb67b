// Package daemonctl implements the start, stop, restart and status
// operations for a daemon identified by its pidfile.
//
// The controller never caches the daemon's state. Every call reads the
// pidfile and probes the pid it names; a pidfile whose pid is gone is stale.
//
//	start   pidfile absent          detach, then run the worker in the final process
//	start   pidfile names live pid  ErrAlreadyRunning
//	start   pidfile stale           remove it and proceed (or ErrStalePidfile)
//	stop    pidfile absent          nothing to do
//	stop    pidfile present         SIGTERM every poll interval until ESRCH, remove pidfile
//	status  pidfile absent          not running, no probe
//	status  pidfile present         running / running, access denied / not running
//
// Start runs in every detachment stage; callers act on the returned Role.
package daemonctl
