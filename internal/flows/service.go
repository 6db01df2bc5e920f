package flows

import "context"

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Validate.ParseAccess != nil
}

func (s Service) Issue(ctx context.Context, req IssueRequest) IssueResult {
	return RunIssue(ctx, req, s.deps.Issue)
}

func (s Service) Validate(ctx context.Context, tokenStr string) ValidateResult {
	return RunValidate(ctx, tokenStr, s.deps.Validate)
}

func (s Service) Rotate(ctx context.Context, req RotateRequest) RotateResult {
	return RunRotate(ctx, req, s.deps.Rotate)
}

func (s Service) Revoke(ctx context.Context, tokenStr, sessionID string) RevokeResult {
	return RunRevoke(ctx, tokenStr, sessionID, s.deps.Revoke)
}

func (s Service) RevokeAll(ctx context.Context, tenantID, subject string) (int, error) {
	return RunRevokeAll(ctx, tenantID, subject, s.deps.Revoke)
}

func (s Service) Login(ctx context.Context, req LoginRequest) LoginResult {
	return RunLogin(ctx, req, s.deps.Login)
}
