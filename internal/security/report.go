package security

import "time"

// Report is a posture snapshot of an engine configuration.
type Report struct {
	ProductionMode         bool
	SigningAlgorithm       string
	AccessTTL              time.Duration
	RefreshTTL             time.Duration
	SeparateTokenKeys      bool
	Argon2                 Argon2Params
	LoginThrottleActive    bool
	MaxLoginAttempts       int
	LockDuration           time.Duration
	CaptchaEnabled         bool
	PermissionCacheTTL     time.Duration
	InvalidationRetries    int
	SingleSessionRoles     []string
	PermissionsEmbedded    bool
	DirectoryBreakerActive bool
	AuditEnabled           bool
	RegisteredOperations   int
}

// Argon2Params are the parameters new password hashes are made with.
type Argon2Params struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

type ReportInput struct {
	ProductionMode       bool
	SigningAlgorithm     string
	AccessTTL            time.Duration
	RefreshTTL           time.Duration
	AccessKey            []byte
	RefreshKey           []byte
	Argon2               Argon2Params
	MaxLoginAttempts     int
	LockDuration         time.Duration
	CaptchaEnabled       bool
	PermissionCacheTTL   time.Duration
	InvalidationRetries  int
	SingleSessionRoles   []string
	EmbedPermissions     bool
	CircuitBreaker       bool
	AuditEnabled         bool
	RegisteredOperations int
}

// BuildReport derives a Report. Key material is compared, never copied.
func BuildReport(input ReportInput) Report {
	roles := make([]string, len(input.SingleSessionRoles))
	copy(roles, input.SingleSessionRoles)

	return Report{
		ProductionMode:         input.ProductionMode,
		SigningAlgorithm:       input.SigningAlgorithm,
		AccessTTL:              input.AccessTTL,
		RefreshTTL:             input.RefreshTTL,
		SeparateTokenKeys:      string(input.AccessKey) != string(input.RefreshKey),
		Argon2:                 input.Argon2,
		LoginThrottleActive:    input.MaxLoginAttempts > 0 && input.LockDuration > 0,
		MaxLoginAttempts:       input.MaxLoginAttempts,
		LockDuration:           input.LockDuration,
		CaptchaEnabled:         input.CaptchaEnabled,
		PermissionCacheTTL:     input.PermissionCacheTTL,
		InvalidationRetries:    input.InvalidationRetries,
		SingleSessionRoles:     roles,
		PermissionsEmbedded:    input.EmbedPermissions,
		DirectoryBreakerActive: input.CircuitBreaker,
		AuditEnabled:           input.AuditEnabled,
		RegisteredOperations:   input.RegisteredOperations,
	}
}
