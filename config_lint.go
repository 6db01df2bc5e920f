package goIdentity

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// LintSeverity ranks a [LintWarning].
type LintSeverity int

const (
	// LintInfo flags a setting worth knowing about.
	LintInfo LintSeverity = iota
	// LintWarn flags a setting that weakens a protection.
	LintWarn
	// LintHigh flags a setting that defeats a protection.
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return fmt.Sprintf("LintSeverity(%d)", int(s))
	}
}

// LintWarning is a configuration that passes Validate but is probably not
// what a production deployment wants.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintWarnings is the result of [Config.Lint].
type LintWarnings []LintWarning

// Codes returns the warning codes in order.
func (ws LintWarnings) Codes() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns the warnings at or above min.
func (ws LintWarnings) BySeverity(min LintSeverity) LintWarnings {
	var out LintWarnings
	for _, w := range ws {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError joins the warnings at or above min into one error, or returns nil.
func (ws LintWarnings) AsError(min LintSeverity) error {
	filtered := ws.BySeverity(min)
	if len(filtered) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(filtered))
	for _, w := range filtered {
		msgs = append(msgs, fmt.Sprintf("[%s] %s: %s", w.Severity, w.Code, w.Message))
	}
	return errors.New("config lint: " + strings.Join(msgs, "; "))
}

// Lint reports settings that are valid but risky. It never fails and does
// not replace Validate.
func (c *Config) Lint() LintWarnings {
	var ws LintWarnings
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if c.JWT.Leeway > time.Minute {
		add("leeway_large", LintWarn, "JWT leeway above 1m extends every token's effective lifetime")
	}
	if c.JWT.Access.TTL > time.Hour {
		add("access_ttl_long", LintWarn, "access tokens live longer than 1h; revocation relies on the blacklist")
	}
	if c.JWT.Refresh.TTL > 7*24*time.Hour {
		add("refresh_ttl_long", LintWarn, "refresh tokens live longer than 7d")
	}
	if c.JWT.SigningMethod == "hs256" {
		add("signing_hs256", LintInfo, "hs256 requires every verifier to hold the signing secret")
	}
	if c.JWT.Access.Issuer == c.JWT.Refresh.Issuer {
		add("shared_issuer", LintInfo, "access and refresh tokens share an issuer; audiences alone separate them")
	}
	if c.JWT.EmbedPermissions {
		add("permissions_embedded", LintInfo, "embedded permissions go stale until the access token expires")
	}

	if c.Throttle.MaxLoginAttempts > 10 {
		add("throttle_permissive", LintWarn, "more than 10 failed logins are allowed before lockout")
	}
	if c.Throttle.LockDuration < time.Minute {
		add("lock_duration_short", LintWarn, "lockout shorter than 1m barely slows brute force")
	}
	if !c.Captcha.Enabled {
		add("captcha_disabled", LintInfo, "logins are not captcha gated")
	}

	if c.Permission.InvalidationRetries == 0 {
		add("invalidation_no_retry", LintWarn, "a single failed cache eviction leaves stale decisions until CacheTTL")
	}
	if c.Permission.CacheTTL > time.Hour {
		add("permission_cache_ttl_long", LintWarn, "stale decisions survive up to CacheTTL if an eviction fails")
	}

	if c.Password.Memory < 19*1024 || c.Password.Time < 2 {
		add("argon2_params_low", LintHigh, "argon2id memory below 19 MiB or time below 2")
	}
	if len(c.Session.SingleSessionRoles) == 0 {
		add("single_session_roles_empty", LintInfo, "every principal may hold concurrent sessions")
	}
	if c.Timeouts.Operation > 30*time.Second {
		add("operation_timeout_long", LintInfo, "operations may block callers for more than 30s on a slow store")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "security events are not recorded")
	}

	return ws
}
