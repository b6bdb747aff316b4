// Package media discovers local voice notes and computes their content identifiers.
//
// [Scan] walks a library root for files with an accepted extension, [Hasher] computes
// SHA-256 digests over raw bytes, and [Catalog] keeps the session's items addressable by
// locator key so the upload queue can resolve them at dispatch time.
package media
