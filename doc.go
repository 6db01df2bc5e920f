// Package goIdentity provides a multi-tenant identity engine: JWT access
// tokens, rotating refresh tokens held in Redis slots, a login throttle, an
// optional captcha gate and a casbin permission engine with a Redis decision
// cache.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goIdentity is the public surface. It exposes [Engine], [Builder], [Config]
// and value types ([TokenPair], [LoginResult], [MetricsSnapshot]). Flow
// orchestration, rate limiting and audit dispatch live under internal/.
// The jwt, session, captcha, permission and directory packages can be used
// on their own.
//
// # Failure model
//
// A Redis failure, a directory failure or an expired operation deadline
// returns [ErrServiceUnavailable] and never a grant. Decision errors
// ([ErrTokenInvalid], [ErrPermissionDenied], ...) are only returned after the
// backing stores answered.
package goIdentity
