package goIdentity

import "github.com/MrEthical07/goIdentity/internal/security"

// SecurityReport is a posture snapshot of the engine configuration.
type SecurityReport = security.Report

// SecurityReport describes the securityreport operation and its observable behavior.
//
// SecurityReport does not mutate shared global state and can be used concurrently.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	cfg := e.config
	return security.BuildReport(security.ReportInput{
		ProductionMode:       cfg.Security.ProductionMode,
		SigningAlgorithm:     cfg.JWT.SigningMethod,
		AccessTTL:            cfg.JWT.Access.TTL,
		RefreshTTL:           cfg.JWT.Refresh.TTL,
		AccessKey:            signingKey(cfg.JWT.SigningMethod, cfg.JWT.Access),
		RefreshKey:           signingKey(cfg.JWT.SigningMethod, cfg.JWT.Refresh),
		Argon2: security.Argon2Params{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
		},
		MaxLoginAttempts:     cfg.Throttle.MaxLoginAttempts,
		LockDuration:         cfg.Throttle.LockDuration,
		CaptchaEnabled:       cfg.Captcha.Enabled,
		PermissionCacheTTL:   cfg.Permission.CacheTTL,
		InvalidationRetries:  cfg.Permission.InvalidationRetries,
		SingleSessionRoles:   cfg.Session.SingleSessionRoles,
		EmbedPermissions:     cfg.JWT.EmbedPermissions,
		CircuitBreaker:       cfg.Directory.CircuitBreaker,
		AuditEnabled:         cfg.Audit.Enabled,
		RegisteredOperations: e.registry.Count(),
	})
}

func signingKey(method string, t TokenConfig) []byte {
	if method == "ed25519" {
		return t.PrivateKey
	}
	return t.Secret
}
