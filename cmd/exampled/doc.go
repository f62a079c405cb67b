// Package main hosts the exampled entrypoint: a small daemon that records a
// heartbeat row every cycle, managed through the daemonkit lifecycle
// controller.
//
// The command takes exactly one word, start, stop, restart or status. Any
// other invocation prints usage on stdout and exits 2. Status exits 0 while
// the daemon runs and 1 otherwise. Start re-executes this binary to detach,
// so every stage enters through the same command with the same config.
package main
