package goIdentity

import (
	"errors"
)

var (
	// ErrInvalidCredentials is returned by Login for an unknown username or a wrong password.
	// The two cases are indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountInactive is returned when the principal is missing or deactivated.
	ErrAccountInactive = errors.New("account inactive")
	// ErrTooManyFailedAttempts is returned by Login while the username is locked out.
	ErrTooManyFailedAttempts = errors.New("too many failed login attempts")
	// ErrCaptchaRequired is returned by Login when the captcha gate is on and no answer was sent.
	ErrCaptchaRequired = errors.New("captcha required")
	// ErrCaptchaInvalid is returned for a wrong, expired or already used captcha.
	ErrCaptchaInvalid = errors.New("captcha invalid")
	// ErrCaptchaDisabled is returned by IssueCaptcha when the gate is off.
	ErrCaptchaDisabled = errors.New("captcha disabled")

	// ErrTokenInvalid is returned for a token with a bad signature, claims or lifetime.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenBlacklisted is returned for an access token revoked by Logout.
	ErrTokenBlacklisted = errors.New("token blacklisted")
	// ErrRefreshInvalidated is returned when a refresh token is not the live one of its slot.
	// The slot is purged, so every token of that session must log in again.
	ErrRefreshInvalidated = errors.New("refresh token invalidated")
	// ErrSessionIDRequired is returned when a multi-session principal omits the session id.
	ErrSessionIDRequired = errors.New("session id required")
	// ErrInvalidIdentifier is returned when a tenant, subject, session or
	// resource id contains ':', the Redis key separator.
	ErrInvalidIdentifier = errors.New("identifier contains ':'")

	// ErrPermissionDenied is an exported constant or variable used by the authorization engine.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrUnknownOperation is returned by Authorize for an operation missing from the registry.
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrServiceUnavailable is returned when a backing store fails or the operation deadline passes.
	// It never accompanies a grant.
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrInvalidationIncomplete is returned by a policy mutation that was persisted but could
	// not evict every affected cached decision.
	ErrInvalidationIncomplete = errors.New("permission cache invalidation incomplete")
	// ErrEngineNotReady is an exported constant or variable used by the authentication engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// ErrorCode maps an error returned by the Engine to a stable code suitable
// for API responses. Nil maps to "" and unrecognised errors to "internal".
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrAccountInactive):
		return "account_inactive"
	case errors.Is(err, ErrTooManyFailedAttempts):
		return "too_many_failed_attempts"
	case errors.Is(err, ErrCaptchaRequired):
		return "captcha_required"
	case errors.Is(err, ErrCaptchaInvalid):
		return "captcha_invalid"
	case errors.Is(err, ErrCaptchaDisabled):
		return "captcha_disabled"
	case errors.Is(err, ErrTokenBlacklisted):
		return "token_blacklisted"
	case errors.Is(err, ErrTokenInvalid):
		return "token_invalid"
	case errors.Is(err, ErrRefreshInvalidated):
		return "refresh_invalidated"
	case errors.Is(err, ErrSessionIDRequired):
		return "session_id_required"
	case errors.Is(err, ErrInvalidIdentifier):
		return "invalid_identifier"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrUnknownOperation):
		return "unknown_operation"
	case errors.Is(err, ErrInvalidationIncomplete):
		return "invalidation_incomplete"
	case errors.Is(err, ErrServiceUnavailable):
		return "service_unavailable"
	case errors.Is(err, ErrEngineNotReady):
		return "engine_not_ready"
	default:
		return "internal"
	}
}
