package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goIdentity/directory"
	"github.com/MrEthical07/goIdentity/jwt"
)

// ValidateFailureKind classifies validation failures for root-level mapping.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureInvalid
	ValidateFailureBlacklisted
	ValidateFailureStore
	ValidateFailureInactive
	ValidateFailureDirectory
)

// ValidateResult returns either the claims and fresh principal or a classified failure.
type ValidateResult struct {
	Failure   ValidateFailureKind
	Err       error
	Claims    *jwt.AccessClaims
	Principal *directory.Principal
}

// ValidateDeps captures access-token validation dependencies.
type ValidateDeps struct {
	ParseAccess   func(string) (*jwt.AccessClaims, error)
	IsBlacklisted func(ctx context.Context, token string) (bool, error)
	Directory     PrincipalLookup
}

// RunValidate checks signature, liveness, blacklist membership and the
// principal's current state, in that order.
func RunValidate(ctx context.Context, tokenStr string, deps ValidateDeps) ValidateResult {
	claims, err := deps.ParseAccess(tokenStr)
	if err != nil {
		return ValidateResult{Failure: ValidateFailureInvalid, Err: err}
	}

	revoked, err := deps.IsBlacklisted(ctx, tokenStr)
	if err != nil {
		return ValidateResult{Failure: ValidateFailureStore, Err: err, Claims: claims}
	}
	if revoked {
		return ValidateResult{Failure: ValidateFailureBlacklisted, Claims: claims}
	}

	rec, err := deps.Directory.FindByID(ctx, claims.TenantID, claims.Subject)
	if err != nil {
		if errors.Is(err, directory.ErrPrincipalNotFound) {
			return ValidateResult{Failure: ValidateFailureInactive, Err: err, Claims: claims}
		}
		return ValidateResult{Failure: ValidateFailureDirectory, Err: err, Claims: claims}
	}
	if !rec.Active {
		return ValidateResult{Failure: ValidateFailureInactive, Claims: claims}
	}

	p := rec.Principal
	return ValidateResult{Claims: claims, Principal: &p}
}
