// Package security builds the configuration posture report exposed by
// Engine.SecurityReport.
//
// # What this package must NOT do
//
//   - Copy key material into a Report.
//   - Import goIdentity or perform I/O.
package security
