package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goIdentity/directory"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/session"
)

// IssueFailureKind classifies issuance failures for root-level mapping.
type IssueFailureKind int

const (
	IssueFailureNone IssueFailureKind = iota
	IssueFailureSessionIDRequired
	IssueFailurePermissions
	IssueFailureSign
	IssueFailureStore
)

var errSessionIDRequired = errors.New("session id required for multi-session principal")

// IssueRequest names the principal to mint a pair for. SessionID is
// ignored for single-session principals.
type IssueRequest struct {
	Principal directory.Principal
	SessionID string
}

// IssueResult carries either the minted pair or failure metadata.
type IssueResult struct {
	Failure          IssueFailureKind
	Err              error
	Slot             session.Slot
	AccessToken      string
	RefreshToken     string
	AccessExpiresIn  time.Duration
	RefreshExpiresIn time.Duration
}

type IssueStore interface {
	SaveRefresh(ctx context.Context, slot session.Slot, token string, ttl time.Duration) error
}

// IssueDeps captures token issuance dependencies.
type IssueDeps struct {
	IsSingleSession func(roles []string) bool
	SignAccess      func(subject string, claims jwt.AccessClaims) (string, error)
	SignRefresh     func(subject string, claims jwt.RefreshClaims) (string, error)
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	// Permissions, when set, fills the access token's permissions claim.
	Permissions func(ctx context.Context, p directory.Principal) ([]string, error)
	Store       IssueStore
}

// RunIssue signs an access/refresh pair for req.Principal and records the
// refresh token as the only live one for its slot.
func RunIssue(ctx context.Context, req IssueRequest, deps IssueDeps) IssueResult {
	p := req.Principal
	slot := session.Slot{TenantID: p.TenantID, Subject: p.ID}
	if !deps.IsSingleSession(p.Roles) {
		if req.SessionID == "" {
			return IssueResult{Failure: IssueFailureSessionIDRequired, Err: errSessionIDRequired}
		}
		slot.SessionID = req.SessionID
	}

	var perms []string
	if deps.Permissions != nil {
		var err error
		perms, err = deps.Permissions(ctx, p)
		if err != nil {
			return IssueResult{Failure: IssueFailurePermissions, Err: err, Slot: slot}
		}
	}

	access, err := deps.SignAccess(p.ID, jwt.AccessClaims{
		Email:       p.Email,
		Username:    p.Username,
		Roles:       p.Roles,
		Permissions: perms,
		TenantID:    p.TenantID,
		SessionID:   slot.SessionID,
	})
	if err != nil {
		return IssueResult{Failure: IssueFailureSign, Err: err, Slot: slot}
	}

	refresh, err := deps.SignRefresh(p.ID, jwt.RefreshClaims{
		TenantID:  p.TenantID,
		Roles:     p.Roles,
		SessionID: slot.SessionID,
	})
	if err != nil {
		return IssueResult{Failure: IssueFailureSign, Err: err, Slot: slot}
	}

	if err := deps.Store.SaveRefresh(ctx, slot, refresh, deps.RefreshTTL); err != nil {
		return IssueResult{Failure: IssueFailureStore, Err: err, Slot: slot}
	}

	return IssueResult{
		Failure:          IssueFailureNone,
		Slot:             slot,
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresIn:  deps.AccessTTL,
		RefreshExpiresIn: deps.RefreshTTL,
	}
}
