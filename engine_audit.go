package goIdentity

import (
	"context"
	"time"

	"github.com/MrEthical07/goIdentity/session"
)

const (
	auditEventLoginSuccess           = "login_success"
	auditEventLoginFailure           = "login_failure"
	auditEventLoginRateLimited       = "login_rate_limited"
	auditEventCaptchaIssued          = "captcha_issued"
	auditEventTokenIssued            = "token_issued"
	auditEventTokenRejected          = "token_rejected"
	auditEventRefreshSuccess         = "refresh_success"
	auditEventRefreshInvalid         = "refresh_invalid"
	auditEventRefreshReuseDetected   = "refresh_reuse_detected"
	auditEventLogoutSession          = "logout_session"
	auditEventLogoutAll              = "logout_all"
	auditEventPermissionDenied       = "permission_denied"
	auditEventPermissionMutation     = "permission_mutation"
	auditEventInvalidationIncomplete = "invalidation_incomplete"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	tenantID string,
	subject string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	e.audit.Emit(ctx, AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		TenantID:  tenantID,
		Subject:   subject,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Error:     ErrorCode(err),
		Metadata:  metadata,
	})
}

// tokenMetadata identifies a token in audit records by fingerprint only.
func tokenMetadata(kind, token string) func() map[string]string {
	return func() map[string]string {
		return map[string]string{
			"token":       kind,
			"fingerprint": session.Fingerprint(token),
		}
	}
}
