// Package session provides the Redis-backed revocation and refresh state
// behind token rotation and logout.
//
// # Key layout
//
//	refresh:{tenant}:{subject}              single-session slot
//	refresh:{tenant}:{subject}:{sessionId}  per-session slot
//	blacklist:{sha256(token)}               revoked access token, "1"
//
// Slots hold the SHA-256 digest of the live refresh token, never the token
// itself. Rotation is a compare-and-swap Lua script, so at most one of any
// number of concurrent rotations of the same token succeeds.
//
// # Architecture boundaries
//
// This package owns the [Store] and the [Slot] key model. It does NOT parse
// JWTs, classify principals as single or multi session, or enforce policy.
//
// # What this package must NOT do
//
//   - Import goIdentity, jwt, or permission (no upward imports).
//   - Store plaintext tokens in Redis values or keys.
package session
