// Package linkauth is the account and session authority of the link-shortening service.
// It authenticates users by local password or by an external OAuth identity, issues
// signed session tokens backed by revocable session records, and manages an optional
// TOTP second factor.
//
// Engine methods are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// linkauth is the public surface. It exposes [Engine], [Builder], [Config], the value
// types returned by operations, and the [CredentialStore] and [ExternalIdentityProvider]
// contracts callers implement or pick from the store, session and oauth packages.
// Audit dispatch lives under internal/ and is never exported.
//
// # Liveness
//
// A token is honored only while its session record is active. [Engine.Authorize] checks
// signature and expiry first, then the session record, so revoking a session takes effect
// on the next request even though the token itself has not expired.
//
// # What this package must NOT do
//
//   - Store raw session tokens. Session rows carry the SHA-256 digest only.
//   - Import any sub-package that re-imports linkauth (no import cycles).
//   - Start goroutines other than the audit dispatcher owned by the Engine.
package linkauth
