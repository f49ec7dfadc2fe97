// Package session provides a Redis-backed linkauth.SessionStore with a compact
// binary record encoding.
//
// # Binary encoding
//
// Records are stored as a versioned binary blob (see [Encode]). The token
// hash is kept as 32 raw bytes rather than 64 hex characters.
//
// # Architecture boundaries
//
// This package owns the Redis key layout and the record codec. It does NOT
// interpret tokens, decide whether a session is live, or enforce ownership;
// those responsibilities belong to the linkauth Engine.
//
// # What this package must NOT do
//
//   - Import jwt or password.
//   - Store plaintext tokens.
package session
