// Package rate implements the login throttle: a Redis counter of failed
// attempts per (tenant, username).
//
// # Window semantics
//
// Fixed window anchored at the first failure: INCR, then EXPIRE only when
// the counter becomes 1. Two concurrent first failures may both set the
// expiry; the duration is the same so the double write is harmless.
//
//	loginAttempts:{tenant}:{username}
//
// # What this package must NOT do
//
//   - Count authorization denials. Only credential failures reach it.
//   - Be imported outside the goIdentity module.
package rate
