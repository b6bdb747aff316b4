// Package tasks schedules voice note uploads with real-time progress reporting.
//
// # Upload Queue
//
// [UploadQueue] is a single-owner scheduler. [UploadQueue.Enqueue] appends keys to an inbox and
// starts the scheduler goroutine if it is idle. On each iteration the scheduler:
//
//  1. Moves the inbox into the pending queue, ignoring keys already pending, in flight or completed
//  2. Dispatches ready keys while fewer than Concurrency uploads are in flight; a key whose backoff
//     window (BaseDelay × 2^(attempts-1)) has not elapsed is rotated to the tail
//  3. Waits for the first in-flight upload to finish, or sleeps PollInterval when every pending key is gated
//  4. Stops once nothing is pending or in flight
//
// Successful uploads are written to the ledger before they are reported. Failures, errors and panics
// all consume an attempt; after MaxAttempts the key is dropped until it is enqueued again.
//
// # Discovery
//
// [UploadEngine.Discover] scans the library, hashes items, asks the [services.Oracle] about unknown
// hashes and records items the server already holds. [UploadEngine.Run] then enqueues the rest and waits.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
// The [ProgressUpdate] struct contains phase, step counters, the locator key and a message.
// Updates use select with default to prevent blocking.
package tasks
