// Package directory provides principal lookups for the login and token
// validation paths.
//
// [Memory] keeps principals in process and is meant for tests and the demo
// server. [Gorm] reads a principals table through gorm. [Breaker] wraps any
// [Directory] with a gobreaker circuit so a failing database turns into
// fast [ErrUnavailable] errors instead of stacked timeouts.
//
// # What this package must NOT do
//
//   - Issue tokens or touch Redis.
//   - Return password hashes outside [Record].
package directory
