// Package internal holds helpers private to goIdentity. The package itself
// provides crypto/rand backed random strings used for captcha answers and
// glob escaping for Redis SCAN patterns.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: login, issue, validate, rotate and revoke orchestration
//   - metrics: lock-free counters and latency histograms
//   - rate: Redis-backed failed-login counter
//   - security: configuration posture report
package internal
