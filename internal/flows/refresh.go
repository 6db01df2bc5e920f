package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goIdentity/directory"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/session"
)

// RotateFailureKind classifies rotation failures for root-level mapping.
type RotateFailureKind int

const (
	RotateFailureNone RotateFailureKind = iota
	RotateFailureDecode
	RotateFailureSessionMismatch
	RotateFailureInactive
	RotateFailureDirectory
	RotateFailureSign
	RotateFailureReuse
	RotateFailureSessionNotFound
	RotateFailureStore
	RotateFailurePermissions
)

var errSessionMismatch = errors.New("session id does not match token")

// RotateRequest is one rotation. Reload re-reads the principal from the
// directory and mints the new pair with its current roles; otherwise the
// roles carried by the refresh token are reused.
type RotateRequest struct {
	RefreshToken string
	SessionID    string
	Reload       bool
}

// RotateResult carries either the rotated pair or failure metadata.
type RotateResult struct {
	Failure      RotateFailureKind
	Err          error
	Slot         session.Slot
	AccessToken  string
	RefreshToken string
}

type RotateStore interface {
	RotateRefresh(ctx context.Context, slot session.Slot, presented, next string, ttl time.Duration) error
	DeleteRefresh(ctx context.Context, slot session.Slot) (bool, error)
}

// RotateDeps captures rotate and refresh dependencies.
type RotateDeps struct {
	ParseRefresh func(string) (*jwt.RefreshClaims, error)
	SignAccess   func(subject string, claims jwt.AccessClaims) (string, error)
	SignRefresh  func(subject string, claims jwt.RefreshClaims) (string, error)
	RefreshTTL   time.Duration
	Directory    PrincipalLookup
	Store        RotateStore
	Warn         func(string, ...any)
	// Permissions mirrors IssueDeps.Permissions.
	Permissions func(ctx context.Context, p directory.Principal) ([]string, error)
}

// RunRotate swaps the stored refresh token of the presented token's slot for
// a new one. Both tokens are signed before the swap so a signing failure
// leaves the slot untouched.
func RunRotate(ctx context.Context, req RotateRequest, deps RotateDeps) RotateResult {
	claims, err := deps.ParseRefresh(req.RefreshToken)
	if err != nil {
		return RotateResult{Failure: RotateFailureDecode, Err: err}
	}

	slot := session.Slot{TenantID: claims.TenantID, Subject: claims.Subject, SessionID: claims.SessionID}
	if !slot.Single() && req.SessionID != "" && req.SessionID != claims.SessionID {
		return RotateResult{Failure: RotateFailureSessionMismatch, Err: errSessionMismatch, Slot: slot}
	}

	access := jwt.AccessClaims{
		Roles:     claims.Roles,
		TenantID:  claims.TenantID,
		SessionID: claims.SessionID,
	}
	if req.Reload {
		rec, err := deps.Directory.FindByID(ctx, claims.TenantID, claims.Subject)
		switch {
		case errors.Is(err, directory.ErrPrincipalNotFound), err == nil && !rec.Active:
			if _, delErr := deps.Store.DeleteRefresh(ctx, slot); delErr != nil && deps.Warn != nil {
				deps.Warn("goIdentity: purge refresh slot of inactive principal failed", "error", delErr)
			}
			return RotateResult{Failure: RotateFailureInactive, Err: err, Slot: slot}
		case err != nil:
			return RotateResult{Failure: RotateFailureDirectory, Err: err, Slot: slot}
		}
		access.Roles = rec.Roles
		access.Email = rec.Email
		access.Username = rec.Username
	}

	if deps.Permissions != nil {
		perms, err := deps.Permissions(ctx, directory.Principal{
			ID:       claims.Subject,
			TenantID: claims.TenantID,
			Roles:    access.Roles,
		})
		if err != nil {
			return RotateResult{Failure: RotateFailurePermissions, Err: err, Slot: slot}
		}
		access.Permissions = perms
	}

	accessToken, err := deps.SignAccess(claims.Subject, access)
	if err != nil {
		return RotateResult{Failure: RotateFailureSign, Err: err, Slot: slot}
	}
	refreshToken, err := deps.SignRefresh(claims.Subject, jwt.RefreshClaims{
		TenantID:  claims.TenantID,
		Roles:     access.Roles,
		SessionID: claims.SessionID,
	})
	if err != nil {
		return RotateResult{Failure: RotateFailureSign, Err: err, Slot: slot}
	}

	if err := deps.Store.RotateRefresh(ctx, slot, req.RefreshToken, refreshToken, deps.RefreshTTL); err != nil {
		switch {
		case errors.Is(err, session.ErrRefreshHashMismatch):
			return RotateResult{Failure: RotateFailureReuse, Err: err, Slot: slot}
		case errors.Is(err, session.ErrRefreshSessionNotFound):
			return RotateResult{Failure: RotateFailureSessionNotFound, Err: err, Slot: slot}
		default:
			return RotateResult{Failure: RotateFailureStore, Err: err, Slot: slot}
		}
	}

	return RotateResult{
		Failure:      RotateFailureNone,
		Slot:         slot,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}
}
