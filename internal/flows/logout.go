package flows

import (
	"context"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/session"
)

// RevokeFailureKind classifies revocation failures for root-level mapping.
type RevokeFailureKind int

const (
	RevokeFailureNone RevokeFailureKind = iota
	RevokeFailureDecode
	RevokeFailureSessionIDRequired
	RevokeFailureSessionMismatch
	RevokeFailureStore
)

// RevokeResult reports what a revocation changed.
type RevokeResult struct {
	Failure     RevokeFailureKind
	Err         error
	Claims      *jwt.AccessClaims
	Slot        session.Slot
	Blacklisted bool
	SlotDeleted bool
}

type RevokeStore interface {
	Blacklist(ctx context.Context, token string, ttl time.Duration) (bool, error)
	DeleteRefresh(ctx context.Context, slot session.Slot) (bool, error)
	DeleteAllForSubject(ctx context.Context, tenantID, subject string) (int, error)
}

// RevokeDeps captures logout dependencies.
type RevokeDeps struct {
	DecodeAccess    func(string) (*jwt.AccessClaims, error)
	Residual        func(gojwt.RegisteredClaims) time.Duration
	IsSingleSession func(roles []string) bool
	Store           RevokeStore
}

// RunRevoke blacklists tokenStr for what is left of its lifetime and drops
// the refresh slot it belongs to. An expired token only loses its slot.
func RunRevoke(ctx context.Context, tokenStr, sessionID string, deps RevokeDeps) RevokeResult {
	claims, err := deps.DecodeAccess(tokenStr)
	if err != nil {
		return RevokeResult{Failure: RevokeFailureDecode, Err: err}
	}

	slot := session.Slot{TenantID: claims.TenantID, Subject: claims.Subject}
	if !deps.IsSingleSession(claims.Roles) {
		if sessionID == "" {
			return RevokeResult{Failure: RevokeFailureSessionIDRequired, Err: errSessionIDRequired, Claims: claims}
		}
		if claims.SessionID != "" && claims.SessionID != sessionID {
			return RevokeResult{Failure: RevokeFailureSessionMismatch, Err: errSessionMismatch, Claims: claims}
		}
		slot.SessionID = sessionID
	}

	blacklisted, err := deps.Store.Blacklist(ctx, tokenStr, deps.Residual(claims.RegisteredClaims))
	if err != nil {
		return RevokeResult{Failure: RevokeFailureStore, Err: err, Claims: claims, Slot: slot}
	}
	deleted, err := deps.Store.DeleteRefresh(ctx, slot)
	if err != nil {
		return RevokeResult{Failure: RevokeFailureStore, Err: err, Claims: claims, Slot: slot, Blacklisted: blacklisted}
	}

	return RevokeResult{
		Claims:      claims,
		Slot:        slot,
		Blacklisted: blacklisted,
		SlotDeleted: deleted,
	}
}

// RunRevokeAll drops every refresh slot of subject in tenant. Access tokens
// already handed out stay valid until they expire or are revoked one by one.
func RunRevokeAll(ctx context.Context, tenantID, subject string, deps RevokeDeps) (int, error) {
	return deps.Store.DeleteAllForSubject(ctx, tenantID, subject)
}
