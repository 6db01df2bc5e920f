package directory

import (
	"context"
	"errors"
)

var (
	// ErrPrincipalNotFound is returned when no principal matches a lookup.
	ErrPrincipalNotFound = errors.New("principal not found")
	// ErrUnavailable is returned when the backing store cannot answer.
	ErrUnavailable = errors.New("principal directory unavailable")
)

// Principal is an authenticated actor within one tenant.
type Principal struct {
	ID       string
	TenantID string
	Username string
	Email    string
	Roles    []string
	Active   bool
}

// Record is a [Principal] plus the argon2id PHC hash its password is checked against.
type Record struct {
	Principal
	PasswordHash string
}

// Directory looks principals up by username or id within a tenant.
// Misses return [ErrPrincipalNotFound].
type Directory interface {
	FindByUsername(ctx context.Context, tenantID, username string) (*Record, error)
	FindByID(ctx context.Context, tenantID, id string) (*Record, error)
}
