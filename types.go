package goIdentity

import (
	"time"

	"github.com/MrEthical07/goIdentity/directory"
	"github.com/MrEthical07/goIdentity/permission"
)

// Principal is an authenticated actor within one tenant.
type Principal = directory.Principal

// PrincipalRecord is a [Principal] plus its argon2id password hash.
type PrincipalRecord = directory.Record

// PrincipalDirectory is the interface callers implement to integrate
// goIdentity with their user store. Misses must return
// [ErrPrincipalNotFound]; store failures should wrap
// [directory.ErrUnavailable].
//
//	Implementations: directory.Memory, directory.Gorm, directory.Breaker
type PrincipalDirectory = directory.Directory

// ErrPrincipalNotFound is the miss sentinel a [PrincipalDirectory] returns.
var ErrPrincipalNotFound = directory.ErrPrincipalNotFound

// PermissionPair is one (resource, action) request of [Engine.BatchCheck].
type PermissionPair = permission.Pair

// TokenPair is an issued access/refresh pair.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresIn  time.Duration
	RefreshExpiresIn time.Duration

	// SessionID is empty for single-session principals.
	SessionID string
}

// LoginRequest is the input of [Engine.Login]. CaptchaID and CaptchaAnswer
// are ignored while the captcha gate is disabled. An empty SessionID gets a
// generated one for multi-session principals.
type LoginRequest struct {
	TenantID      string
	Username      string
	Password      string
	SessionID     string
	CaptchaID     string
	CaptchaAnswer string
}

// LoginResult is returned by [Engine.Login].
type LoginResult struct {
	TokenPair
	Principal Principal
}

// CaptchaChallenge is a one-time challenge from [Engine.IssueCaptcha].
// Image is an SVG document.
type CaptchaChallenge struct {
	ID    string
	Image string
}

// HealthStatus is returned by [Engine.Health].
type HealthStatus struct {
	RedisAvailable   bool
	RedisLatency     time.Duration
	PolicyLoaded     bool
	DirectoryBreaker string // empty when no breaker is configured
	AuditDelivered   uint64 // zero when audit is disabled
	AuditDropped     uint64
}
