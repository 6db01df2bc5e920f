// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunLogin, RunValidate, RunRotate, etc.) accepts a typed
// dependency struct and returns a result carrying a failure kind instead of
// a host sentinel. The root engine maps kinds to its exported errors, audit
// events and metrics, which keeps the Engine type thin and the flows
// testable with fakes.
//
// # Architecture boundaries
//
// Flow functions coordinate the session store, JWT managers, login throttle,
// captcha gate and principal directory. They do NOT own any of these
// resources; ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goIdentity (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency interfaces.
package flows
