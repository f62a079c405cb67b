// Package config loads, normalizes, and validates daemon configuration.
//
// It supplies defaults rooted in the XDG base directories, expands user
// paths (including tilde shortcuts), reads TOML files, and honours the
// EXAMPLED_NTFY_TOPIC environment fallback. Paths that depend on the daemon
// name (pidfile, log directory, database) are derived after the file is
// decoded so renaming a daemon moves all of its state together.
package config
