// Package cli provides the interactive garrison device console.
//
// It wires configuration, the local store, the attendance state machine and
// the sync manager, then runs a REPL. The sync scheduler runs in the
// background for the whole session and its events drive the online/offline
// indicator in the prompt.
//
// Key features:
//   - Register / rename / remove persons
//   - Scan a national id to toggle presence
//   - History, statistics and latest records
//   - Pending changes, manual sync and status
//   - Login / Logout (bearer token kept in the local store)
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
