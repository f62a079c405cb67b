// Package daemonrun holds the example daemon's work: the logger built from
// configuration and the Runtime that the lifecycle controller runs once the
// process has detached.
package daemonrun
