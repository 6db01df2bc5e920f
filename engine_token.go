package goIdentity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goIdentity/internal/flows"
	"github.com/MrEthical07/goIdentity/session"
)

// Issue mints an access/refresh pair for p and stores the refresh token in
// its slot, replacing any previous token there. Single-session principals
// ignore sessionID; multi-session principals require it
// ([ErrSessionIDRequired]).
func (e *Engine) Issue(ctx context.Context, p Principal, sessionID string) (TokenPair, error) {
	if err := e.ready(); err != nil {
		return TokenPair{}, err
	}
	if err := checkIdentifiers(p.TenantID, p.ID, sessionID); err != nil {
		return TokenPair{}, err
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	res := e.flows.Issue(ctx, flows.IssueRequest{Principal: p, SessionID: sessionID})
	if err := e.issueError(res); err != nil {
		return TokenPair{}, err
	}

	e.metricInc(MetricTokenIssued)
	e.emitAudit(ctx, auditEventTokenIssued, true, p.TenantID, p.ID, res.Slot.SessionID, nil, nil)
	return tokenPair(res), nil
}

func (e *Engine) issueError(res flows.IssueResult) error {
	switch res.Failure {
	case flows.IssueFailureNone:
		return nil
	case flows.IssueFailureSessionIDRequired:
		return ErrSessionIDRequired
	case flows.IssueFailurePermissions, flows.IssueFailureStore:
		return e.unavailable(res.Err)
	default:
		return fmt.Errorf("issue token: %w", res.Err)
	}
}

func tokenPair(res flows.IssueResult) TokenPair {
	return TokenPair{
		AccessToken:      res.AccessToken,
		RefreshToken:     res.RefreshToken,
		AccessExpiresIn:  res.AccessExpiresIn,
		RefreshExpiresIn: res.RefreshExpiresIn,
		SessionID:        res.Slot.SessionID,
	}
}

// ValidateAccess verifies an access token and returns the principal as the
// directory currently knows it.
//
// Order: signature and registered claims ([ErrTokenInvalid]), blacklist
// ([ErrTokenBlacklisted]), directory liveness ([ErrAccountInactive]).
// A Redis or directory failure returns [ErrServiceUnavailable].
func (e *Engine) ValidateAccess(ctx context.Context, token string) (*Principal, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	res := e.flows.Validate(ctx, token)
	e.observe(MetricValidateLatency, start)

	switch res.Failure {
	case flows.ValidateFailureNone:
		e.metricInc(MetricValidateSuccess)
		return res.Principal, nil
	case flows.ValidateFailureInvalid:
		e.metricInc(MetricValidateFailure)
		return nil, ErrTokenInvalid
	case flows.ValidateFailureBlacklisted:
		e.metricInc(MetricValidateFailure)
		e.metricInc(MetricTokenBlacklisted)
		e.emitAudit(ctx, auditEventTokenRejected, false, res.Claims.TenantID, res.Claims.Subject,
			res.Claims.SessionID, ErrTokenBlacklisted, tokenMetadata("access", token))
		return nil, ErrTokenBlacklisted
	case flows.ValidateFailureInactive:
		e.metricInc(MetricValidateFailure)
		return nil, ErrAccountInactive
	default:
		e.metricInc(MetricValidateFailure)
		return nil, e.unavailable(res.Err)
	}
}

// Rotate exchanges a refresh token for a new pair. Exactly one of several
// concurrent rotations of the same token wins; the others, and any later
// replay, get [ErrRefreshInvalidated] and the slot is purged so the whole
// session must log in again.
//
// For multi-session principals a non-empty sessionID must match the token.
func (e *Engine) Rotate(ctx context.Context, refreshToken, sessionID string) (TokenPair, error) {
	return e.rotate(ctx, flows.RotateRequest{RefreshToken: refreshToken, SessionID: sessionID})
}

// Refresh is Rotate preceded by a directory lookup: a missing or inactive
// principal has its slot purged and gets [ErrAccountInactive], otherwise the
// new pair carries the principal's current roles.
func (e *Engine) Refresh(ctx context.Context, refreshToken, sessionID string) (TokenPair, error) {
	return e.rotate(ctx, flows.RotateRequest{RefreshToken: refreshToken, SessionID: sessionID, Reload: true})
}

func (e *Engine) rotate(ctx context.Context, req flows.RotateRequest) (TokenPair, error) {
	if err := e.ready(); err != nil {
		return TokenPair{}, err
	}
	if err := checkIdentifiers(req.SessionID); err != nil {
		return TokenPair{}, err
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	res := e.flows.Rotate(ctx, req)
	slot := res.Slot

	switch res.Failure {
	case flows.RotateFailureNone:
		e.metricInc(MetricRefreshSuccess)
		e.emitAudit(ctx, auditEventRefreshSuccess, true, slot.TenantID, slot.Subject, slot.SessionID, nil, nil)
		return TokenPair{
			AccessToken:      res.AccessToken,
			RefreshToken:     res.RefreshToken,
			AccessExpiresIn:  e.access.TTL(),
			RefreshExpiresIn: e.refresh.TTL(),
			SessionID:        slot.SessionID,
		}, nil
	case flows.RotateFailureDecode, flows.RotateFailureSessionMismatch:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, slot.TenantID, slot.Subject, slot.SessionID,
			ErrTokenInvalid, tokenMetadata("refresh", req.RefreshToken))
		return TokenPair{}, ErrTokenInvalid
	case flows.RotateFailureReuse:
		e.metricInc(MetricRefreshFailure)
		e.metricInc(MetricRefreshReuseDetected)
		e.logger.Warn().
			Str("tenant", slot.TenantID).
			Str("subject", slot.Subject).
			Str("fingerprint", session.Fingerprint(req.RefreshToken)).
			Msg("refresh token reuse, slot purged")
		e.emitAudit(ctx, auditEventRefreshReuseDetected, false, slot.TenantID, slot.Subject, slot.SessionID,
			ErrRefreshInvalidated, tokenMetadata("refresh", req.RefreshToken))
		return TokenPair{}, ErrRefreshInvalidated
	case flows.RotateFailureSessionNotFound:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, slot.TenantID, slot.Subject, slot.SessionID,
			ErrRefreshInvalidated, tokenMetadata("refresh", req.RefreshToken))
		return TokenPair{}, ErrRefreshInvalidated
	case flows.RotateFailureInactive:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, slot.TenantID, slot.Subject, slot.SessionID,
			ErrAccountInactive, nil)
		return TokenPair{}, ErrAccountInactive
	case flows.RotateFailureSign:
		e.metricInc(MetricRefreshFailure)
		return TokenPair{}, fmt.Errorf("issue token: %w", res.Err)
	default:
		e.metricInc(MetricRefreshFailure)
		return TokenPair{}, e.unavailable(res.Err)
	}
}

// Revoke blacklists an access token for the rest of its lifetime and drops
// the refresh slot it belongs to. Expired tokens are accepted: nothing is
// blacklisted but the slot is still dropped. The signature is always
// checked so a forged token cannot end someone else's session.
//
// Multi-session principals must name the session ([ErrSessionIDRequired]).
// The returned bool reports whether a blacklist entry was written.
func (e *Engine) Revoke(ctx context.Context, accessToken, sessionID string) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	if err := checkIdentifiers(sessionID); err != nil {
		return false, err
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	res := e.flows.Revoke(ctx, accessToken, sessionID)
	switch res.Failure {
	case flows.RevokeFailureNone:
		e.metricInc(MetricLogout)
		e.emitAudit(ctx, auditEventLogoutSession, true, res.Slot.TenantID, res.Slot.Subject, res.Slot.SessionID,
			nil, func() map[string]string {
				return map[string]string{
					"blacklisted":  fmt.Sprint(res.Blacklisted),
					"slot_deleted": fmt.Sprint(res.SlotDeleted),
				}
			})
		return res.Blacklisted, nil
	case flows.RevokeFailureDecode:
		return false, ErrTokenInvalid
	case flows.RevokeFailureSessionIDRequired:
		return false, ErrSessionIDRequired
	case flows.RevokeFailureSessionMismatch:
		return false, ErrTokenInvalid
	default:
		return res.Blacklisted, e.unavailable(res.Err)
	}
}

// Logout describes the logout operation and its observable behavior.
//
// Logout is [Engine.Revoke] under the orchestrator's name.
func (e *Engine) Logout(ctx context.Context, accessToken, sessionID string) (bool, error) {
	return e.Revoke(ctx, accessToken, sessionID)
}

// LogoutAll drops every refresh slot of subject in tenant and returns how
// many were removed. Outstanding access tokens stay valid until they expire
// or are revoked individually.
func (e *Engine) LogoutAll(ctx context.Context, tenantID, subject string) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if err := checkIdentifiers(tenantID, subject); err != nil {
		return 0, err
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	n, err := e.flows.RevokeAll(ctx, tenantID, subject)
	if err != nil {
		if errors.Is(err, session.ErrRedisUnavailable) || errors.Is(err, context.DeadlineExceeded) {
			return n, e.unavailable(err)
		}
		return n, err
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, tenantID, subject, "", nil, func() map[string]string {
		return map[string]string{"sessions": fmt.Sprint(n)}
	})
	return n, nil
}
