// Package repositories implements SQLite persistence for the completion ledger and installation settings.
//
// Key Implementations:
//   - [Ledger] : append-only record of locator keys confirmed stored remotely, cached in memory for synchronous reads
//   - [Settings] : key/value store holding the owner identity generated on first run
//
// The ledger writes to SQLite before updating its in-memory set, so a completion visible to readers
// has already been persisted.
package repositories
