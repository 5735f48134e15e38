// Package database stores the history of capture runs in SQLite.
//
// Every finished run is saved with its change records, so fingerprints can
// be compared across runs: which portals changed, appeared or disappeared
// since an earlier capture. The within-run change log is unaffected.
//
// The database is a single file (modernc.org/sqlite, no cgo) in the XDG data
// directory, opened in WAL mode.
package database
