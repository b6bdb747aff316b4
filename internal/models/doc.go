// Package models defines the domain entities shared by the voxup upload pipeline.
//
// The package contains two categories of types:
//
// 1. Session values: in-memory state owned by discovery and the orchestrator
//   - [Item] : one uploadable voice note, addressed by its locator key
//   - [RetryState] : per-key attempt counter and backoff gate
//   - [UploadRequest] : the arguments of a single transport attempt
//   - [Location] : optional origin metadata attached at upload time
//
// 2. Persistent entities: rows in the completion ledger
//   - [Completion] : a locator key confirmed stored remotely for an owner
//
// The [Ledger] interface is the durable, append-only view of completions.
package models
