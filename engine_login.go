package goIdentity

import (
	"context"
	"time"

	"github.com/MrEthical07/goIdentity/internal/flows"
)

// Login describes the login operation and its observable behavior.
//
// Steps run in a fixed order: lockout check, captcha (when enabled),
// credential check, account status, then issuance. Every failure before the
// password is verified counts as a failed attempt. A correct password on an
// inactive account returns [ErrAccountInactive] without touching the
// counter. Unknown usernames and wrong passwords both return
// [ErrInvalidCredentials].
func (e *Engine) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	if err := e.ready(); err != nil {
		return LoginResult{}, err
	}
	if err := checkIdentifiers(req.TenantID, req.SessionID); err != nil {
		return LoginResult{}, err
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	res := e.flows.Login(ctx, flows.LoginRequest{
		TenantID:      req.TenantID,
		Username:      req.Username,
		Password:      req.Password,
		SessionID:     req.SessionID,
		CaptchaID:     req.CaptchaID,
		CaptchaAnswer: req.CaptchaAnswer,
	})

	if res.Failure == flows.LoginFailureNone {
		p := *res.Principal
		e.metricInc(MetricLoginSuccess)
		e.metricInc(MetricTokenIssued)
		e.emitAudit(ctx, auditEventLoginSuccess, true, p.TenantID, p.ID, res.Issue.Slot.SessionID, nil, nil)
		return LoginResult{TokenPair: tokenPair(res.Issue), Principal: p}, nil
	}

	err := e.loginError(res)
	e.metricInc(MetricLoginFailure)

	subject := ""
	if res.Principal != nil {
		subject = res.Principal.ID
	}
	eventType := auditEventLoginFailure
	if res.Failure == flows.LoginFailureRateLimited {
		eventType = auditEventLoginRateLimited
	}
	e.emitAudit(ctx, eventType, false, req.TenantID, subject, "", err, func() map[string]string {
		return map[string]string{"username": req.Username}
	})
	return LoginResult{}, err
}

func (e *Engine) loginError(res flows.LoginResult) error {
	switch res.Failure {
	case flows.LoginFailureRateLimited:
		e.metricInc(MetricLoginRateLimited)
		return ErrTooManyFailedAttempts
	case flows.LoginFailureCaptchaRequired:
		e.metricInc(MetricCaptchaFailure)
		return ErrCaptchaRequired
	case flows.LoginFailureCaptchaInvalid:
		e.metricInc(MetricCaptchaFailure)
		return ErrCaptchaInvalid
	case flows.LoginFailureInvalidCredentials:
		return ErrInvalidCredentials
	case flows.LoginFailureInactive:
		return ErrAccountInactive
	case flows.LoginFailureIssue:
		return e.issueError(res.Issue)
	default:
		return e.unavailable(res.Err)
	}
}

// IssueCaptcha creates a one-time challenge. The answer is stored in Redis
// for Captcha.TTL and is deleted by the first login that presents the id,
// whether or not the answer matched.
func (e *Engine) IssueCaptcha(ctx context.Context) (CaptchaChallenge, error) {
	if err := e.ready(); err != nil {
		return CaptchaChallenge{}, err
	}
	if e.captcha == nil {
		return CaptchaChallenge{}, ErrCaptchaDisabled
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	ch, err := e.captcha.Issue(ctx)
	if err != nil {
		return CaptchaChallenge{}, e.unavailable(err)
	}
	e.metricInc(MetricCaptchaIssued)
	e.emitAudit(ctx, auditEventCaptchaIssued, true, "", "", "", nil, func() map[string]string {
		return map[string]string{"captcha_id": ch.ID}
	})
	return CaptchaChallenge{ID: ch.ID, Image: ch.Image}, nil
}

// LoginAttempts returns the failed-attempt count for username in tenant and
// how long the current counter has left to live.
func (e *Engine) LoginAttempts(ctx context.Context, tenantID, username string) (int, time.Duration, error) {
	if err := e.ready(); err != nil {
		return 0, 0, err
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	n, err := e.limiter.Attempts(ctx, tenantID, username)
	if err != nil {
		return 0, 0, e.unavailable(err)
	}
	if n == 0 {
		return 0, 0, nil
	}
	ttl, err := e.limiter.Remaining(ctx, tenantID, username)
	if err != nil {
		return n, 0, e.unavailable(err)
	}
	return n, ttl, nil
}

// HashPassword hashes password with the configured Argon2id parameters, for
// callers provisioning principals in their own directory.
func (e *Engine) HashPassword(password string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	return e.passwords.Hash(password)
}

// PasswordNeedsUpgrade reports whether a stored hash was made with weaker
// parameters than the current config. Callers that own the directory can
// rehash after the next successful login.
func (e *Engine) PasswordNeedsUpgrade(hash string) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	return e.passwords.NeedsUpgrade(hash)
}
