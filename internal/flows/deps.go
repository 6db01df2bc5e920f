package flows

import (
	"context"

	"github.com/MrEthical07/goIdentity/directory"
)

// Deps groups flow dependency sets. Root engine builds this once and delegates
// request methods to the matching flow implementation.
type Deps struct {
	Issue    IssueDeps
	Validate ValidateDeps
	Rotate   RotateDeps
	Revoke   RevokeDeps
	Login    LoginDeps
}

// PrincipalLookup is the slice of the principal directory the flows read.
type PrincipalLookup interface {
	FindByUsername(ctx context.Context, tenantID, username string) (*directory.Record, error)
	FindByID(ctx context.Context, tenantID, id string) (*directory.Record, error)
}
