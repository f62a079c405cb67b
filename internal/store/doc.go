// Package store keeps the example daemon's heartbeat history in SQLite.
//
// The Store is the kind of external connection a worker task may need to
// rebuild after a transient failure: IsTransient classifies errors that a
// reconnect can fix and Reset closes and reopens the underlying handle.
// Schema changes bump schemaVersion; users delete the database to adopt a
// new schema.
package store
