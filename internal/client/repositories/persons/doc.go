// Package persons provides the SQLite persistence of Person rows.
//
// Rows are never physically removed: deletion is a tombstone (deleted=1)
// so that it can be pushed like any other mutation. Every row carries the
// sync metadata (global_id, dirty, last_modified, deleted) and timestamps are
// stored as unix milliseconds.
//
// The repository is bound to a dbx.DBTX, so the same code runs against the
// *sql.DB for reads and against a *sql.Tx inside a store unit of work.
package persons
