// Package archive persists fitting runs in a SQLite database.
//
// One row per run: identity, timing, the source image path, the terminal
// state, and the full optimization result as a JSON blob. The blob keeps the
// whole history queryable after the fact without a schema migration every
// time the result shape grows a field.
//
// Open applies the schema on every call, so pointing the archive at an empty
// file is all the setup there is. ":memory:" gives an ephemeral archive for
// tests and one-off runs.
package archive
