// Package middleware adapts goIdentity.Engine to net/http.
//
// # Guards
//
//   - [Guard] validates the bearer access token and stores the principal in
//     the request context.
//   - [RequireOperation] checks the permission an operation was registered
//     with, for the principal Guard stored.
//   - [Require] checks an explicit resource and action.
//
// All decisions are delegated to the Engine. Responses carry the stable
// code from goIdentity.ErrorCode as their body.
package middleware
