package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goIdentity/directory"
	"github.com/MrEthical07/goIdentity/internal/rate"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureRateLimited
	LoginFailureThrottleStore
	LoginFailureCaptchaRequired
	LoginFailureCaptchaInvalid
	LoginFailureCaptchaStore
	LoginFailureInvalidCredentials
	LoginFailureDirectory
	LoginFailureInactive
	LoginFailureIssue
)

// LoginRequest is the flow-local login input.
type LoginRequest struct {
	TenantID      string
	Username      string
	Password      string
	SessionID     string
	CaptchaID     string
	CaptchaAnswer string
}

// LoginResult carries the issued pair or failure metadata.
type LoginResult struct {
	Failure   LoginFailureKind
	Err       error
	Principal *directory.Principal
	Issue     IssueResult
}

type LoginThrottle interface {
	PreCheck(ctx context.Context, tenantID, username string) error
	RecordAttempt(ctx context.Context, tenantID, username string, success bool) error
}

type CaptchaVerifier interface {
	Consume(ctx context.Context, id, answer string) (bool, error)
}

// LoginDeps captures login dependencies. Captcha is nil when the gate is disabled.
type LoginDeps struct {
	Throttle          LoginThrottle
	Captcha           CaptchaVerifier
	Directory         PrincipalLookup
	VerifyPassword    func(hash, password string) bool
	BurnPasswordCheck func(password string)
	NewSessionID      func() string
	Issue             func(context.Context, IssueRequest) IssueResult
	Warn              func(string, ...any)
}

// RunLogin runs throttle, captcha, credential and status checks, then
// issues a pair. Every failure before the password is verified counts
// against the throttle.
func RunLogin(ctx context.Context, req LoginRequest, deps LoginDeps) LoginResult {
	fail := func(kind LoginFailureKind, err error) LoginResult {
		if recErr := deps.Throttle.RecordAttempt(ctx, req.TenantID, req.Username, false); recErr != nil && deps.Warn != nil {
			deps.Warn("goIdentity: record failed login attempt", "error", recErr)
		}
		return LoginResult{Failure: kind, Err: err}
	}

	if err := deps.Throttle.PreCheck(ctx, req.TenantID, req.Username); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			return fail(LoginFailureRateLimited, err)
		}
		return fail(LoginFailureThrottleStore, err)
	}

	if deps.Captcha != nil {
		if req.CaptchaID == "" || req.CaptchaAnswer == "" {
			return fail(LoginFailureCaptchaRequired, nil)
		}
		ok, err := deps.Captcha.Consume(ctx, req.CaptchaID, req.CaptchaAnswer)
		if err != nil {
			return fail(LoginFailureCaptchaStore, err)
		}
		if !ok {
			return fail(LoginFailureCaptchaInvalid, nil)
		}
	}

	rec, err := deps.Directory.FindByUsername(ctx, req.TenantID, req.Username)
	if err != nil {
		if errors.Is(err, directory.ErrPrincipalNotFound) {
			deps.BurnPasswordCheck(req.Password)
			return fail(LoginFailureInvalidCredentials, err)
		}
		return fail(LoginFailureDirectory, err)
	}
	if !deps.VerifyPassword(rec.PasswordHash, req.Password) {
		return fail(LoginFailureInvalidCredentials, nil)
	}

	p := rec.Principal
	if !p.Active {
		return LoginResult{Failure: LoginFailureInactive, Principal: &p}
	}

	if err := deps.Throttle.RecordAttempt(ctx, req.TenantID, req.Username, true); err != nil && deps.Warn != nil {
		deps.Warn("goIdentity: reset login attempts", "error", err)
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = deps.NewSessionID()
	}
	issued := deps.Issue(ctx, IssueRequest{Principal: p, SessionID: sessionID})
	if issued.Failure != IssueFailureNone {
		return LoginResult{Failure: LoginFailureIssue, Err: issued.Err, Principal: &p, Issue: issued}
	}

	return LoginResult{Principal: &p, Issue: issued}
}
