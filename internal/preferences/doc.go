// Package preferences stores small opaque blobs under stable keys.
//
// Devices persist their state here so it survives restarts. Two stores are
// provided:
//   - SQLiteStore: durable, backed by the preferences table
//   - MemoryStore: process-local, for tests and for running without a database
//
// Both satisfy fan.Preferences.
//
// Usage:
//
//	store := preferences.NewSQLiteStore(db.DB)
//	state.SetPreferences(store)
//	if err := state.LoadFromPreferences(ctx); err != nil {
//	    logger.Warn("restoring fan state", "error", err)
//	}
package preferences
