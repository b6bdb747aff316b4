// Package services implements the remote store collaborators used by the upload queue.
//
// # Dedup Oracle
//
// An [Oracle] reports which content hashes the remote store already holds for an owner.
// [HTTPOracle] sends one batched POST to the check endpoint; [DynamoOracle] reads the uploads
// table directly in BatchGetItem chunks of 100. Both swallow failures and return an empty set,
// so a failed check only risks redundant uploads.
//
// # Item Transport
//
// A [Transport] performs one upload attempt and reports success.
//
// [HTTPTransport] follows the presigned flow: request a target keyed by a fresh
// "<millis>-<uuid>" audio id and the content hash, short-circuit when the store answers
// alreadyUploaded, otherwise PUT the bytes. Only a 200 counts as success.
//
// [S3Transport] writes the audio object, a metadata JSON sidecar and the uploads table row.
//
// # Authentication
//
// [NewHTTPClient] wraps the client in an OAuth2 client-credentials token source when configured.
package services
