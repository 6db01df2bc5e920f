package goIdentity

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/MrEthical07/goIdentity/password"
)

// Config defines a public type used by goIdentity APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	JWT        JWTConfig        `koanf:"jwt"`
	Session    SessionConfig    `koanf:"session"`
	Throttle   ThrottleConfig   `koanf:"throttle"`
	Captcha    CaptchaConfig    `koanf:"captcha"`
	Permission PermissionConfig `koanf:"permission"`
	Password   PasswordConfig   `koanf:"password"`
	Directory  DirectoryConfig  `koanf:"directory"`
	Timeouts   TimeoutConfig    `koanf:"timeouts"`
	Audit      AuditConfig      `koanf:"audit"`
	Metrics    MetricsConfig    `koanf:"metrics"`
	Security   SecurityConfig   `koanf:"security"`
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures the access and refresh token managers. The two
// token kinds never share a secret, issuer or audience.
type JWTConfig struct {
	SigningMethod string        `koanf:"signing_method"` // "hs256" (default) or "ed25519"
	Leeway        time.Duration `koanf:"leeway"`
	MaxFutureIAT  time.Duration `koanf:"max_future_iat"`
	Access        TokenConfig   `koanf:"access"`
	Refresh       TokenConfig   `koanf:"refresh"`

	// EmbedPermissions fills the access token permissions claim with the
	// principal's implicit (resource, action) pairs at issue time.
	EmbedPermissions bool `koanf:"embed_permissions"`
}

// TokenConfig configures one token kind.
type TokenConfig struct {
	TTL        time.Duration `koanf:"ttl"`
	Secret     []byte        `koanf:"secret"`
	PrivateKey []byte        `koanf:"private_key"`
	PublicKey  []byte        `koanf:"public_key"`
	Issuer     string        `koanf:"issuer"`
	Audience   string        `koanf:"audience"`
	KeyID      string        `koanf:"key_id"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls refresh slot classification.
type SessionConfig struct {
	// SingleSessionRoles marks a principal single-session when it holds any
	// of these roles. Such principals keep one refresh slot per tenant and a
	// new login replaces the previous one.
	SingleSessionRoles []string `koanf:"single_session_roles"`
}

/*
====================================
THROTTLE / CAPTCHA CONFIG
====================================
*/

// ThrottleConfig bounds failed logins per (tenant, username).
type ThrottleConfig struct {
	MaxLoginAttempts int           `koanf:"max_login_attempts"`
	LockDuration     time.Duration `koanf:"lock_duration"`
}

// CaptchaConfig controls the captcha gate in front of credential checks.
type CaptchaConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Length     int           `koanf:"length"`
	TTL        time.Duration `koanf:"ttl"`
	Width      int           `koanf:"width"`
	Height     int           `koanf:"height"`
	NoiseLines int           `koanf:"noise_lines"`
}

/*
====================================
PERMISSION CONFIG
====================================
*/

// PermissionConfig configures the casbin enforcer and its decision cache.
type PermissionConfig struct {
	ModelPath           string        `koanf:"model_path"`  // empty uses the embedded RBAC-with-domains model
	PolicyPath          string        `koanf:"policy_path"` // casbin CSV policy; ignored when an adapter is supplied
	CacheTTL            time.Duration `koanf:"cache_ttl"`
	InvalidationRetries int           `koanf:"invalidation_retries"`
	RetryBackoff        time.Duration `koanf:"retry_backoff"`
}

// PasswordConfig holds the Argon2id parameters for new hashes. Memory is
// in KiB. Stored hashes carry their own parameters and keep verifying after
// these change.
type PasswordConfig struct {
	Memory           uint32 `koanf:"memory"`
	Time             uint32 `koanf:"time"`
	Parallelism      uint8  `koanf:"parallelism"`
	SaltLength       uint32 `koanf:"salt_length"`
	KeyLength        uint32 `koanf:"key_length"`
	MaxPasswordBytes int    `koanf:"max_password_bytes"`
}

func (p PasswordConfig) hasherConfig() password.Config {
	return password.Config{
		Memory:           p.Memory,
		Time:             p.Time,
		Parallelism:      p.Parallelism,
		SaltLength:       p.SaltLength,
		KeyLength:        p.KeyLength,
		MaxPasswordBytes: p.MaxPasswordBytes,
	}
}

// DirectoryConfig wraps the principal directory in a circuit breaker when
// CircuitBreaker is set.
type DirectoryConfig struct {
	CircuitBreaker bool          `koanf:"circuit_breaker"`
	MinRequests    uint32        `koanf:"min_requests"`
	FailureRate    float64       `koanf:"failure_rate"`
	OpenTimeout    time.Duration `koanf:"open_timeout"`
}

// TimeoutConfig bounds every Engine entry point.
type TimeoutConfig struct {
	Operation time.Duration `koanf:"operation"`
}

// AuditConfig defines a public type used by goIdentity APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled     bool          `koanf:"enabled"`
	BufferSize  int           `koanf:"buffer_size"`
	DropIfFull  bool          `koanf:"drop_if_full"`
	SinkTimeout time.Duration `koanf:"sink_timeout"`
}

// MetricsConfig defines a public type used by goIdentity APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool `koanf:"enabled"`
	EnableLatencyHistograms bool `koanf:"enable_latency_histograms"`
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig defines a public type used by goIdentity APIs.
type SecurityConfig struct {
	ProductionMode bool `koanf:"production_mode"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration. Token secrets are left
// empty and must be supplied before Build.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			SigningMethod: "hs256",
			Leeway:        30 * time.Second,
			MaxFutureIAT:  10 * time.Minute,
			Access: TokenConfig{
				TTL:      time.Hour,
				Issuer:   "goidentity",
				Audience: "goidentity-access",
			},
			Refresh: TokenConfig{
				TTL:      7 * 24 * time.Hour,
				Issuer:   "goidentity",
				Audience: "goidentity-refresh",
			},
		},
		Session: SessionConfig{
			SingleSessionRoles: []string{"admin", "superadmin"},
		},
		Throttle: ThrottleConfig{
			MaxLoginAttempts: 5,
			LockDuration:     15 * time.Minute,
		},
		Captcha: CaptchaConfig{
			Enabled:    false,
			Length:     5,
			TTL:        5 * time.Minute,
			Width:      150,
			Height:     50,
			NoiseLines: 4,
		},
		Permission: PermissionConfig{
			CacheTTL:            30 * time.Minute,
			InvalidationRetries: 3,
			RetryBackoff:        50 * time.Millisecond,
		},
		Password: PasswordConfig{
			Memory:           64 * 1024,
			Time:             3,
			Parallelism:      2,
			SaltLength:       16,
			KeyLength:        32,
			MaxPasswordBytes: password.DefaultMaxPasswordBytes,
		},
		Directory: DirectoryConfig{
			CircuitBreaker: false,
			MinRequests:    10,
			FailureRate:    0.6,
			OpenTimeout:    30 * time.Second,
		},
		Timeouts: TimeoutConfig{
			Operation: 5 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:     false,
			BufferSize:  1024,
			DropIfFull:  true,
			SinkTimeout: time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// HighSecurityConfig returns a production preset: short access tokens,
// captcha on, audit on, and a tighter throttle. Secrets must still be set.
func HighSecurityConfig() Config {
	cfg := defaultConfig()
	cfg.Security.ProductionMode = true
	cfg.JWT.Leeway = 10 * time.Second
	cfg.JWT.Access.TTL = 15 * time.Minute
	cfg.JWT.Refresh.TTL = 24 * time.Hour
	cfg.Throttle.MaxLoginAttempts = 5
	cfg.Throttle.LockDuration = 30 * time.Minute
	cfg.Captcha.Enabled = true
	cfg.Password.Memory = 128 * 1024
	cfg.Password.Time = 4
	cfg.Directory.CircuitBreaker = true
	cfg.Audit.Enabled = true
	cfg.Metrics.Enabled = true
	return cfg
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Access = cloneToken(cfg.JWT.Access)
	out.JWT.Refresh = cloneToken(cfg.JWT.Refresh)
	out.Session.SingleSessionRoles = slices.Clone(cfg.Session.SingleSessionRoles)
	return out
}

func cloneToken(t TokenConfig) TokenConfig {
	t.Secret = cloneBytes(t.Secret)
	t.PrivateKey = cloneBytes(t.PrivateKey)
	t.PublicKey = cloneBytes(t.PublicKey)
	return t
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.SigningMethod != "hs256" && c.JWT.SigningMethod != "ed25519" {
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}
	if err := c.JWT.Access.validate("Access", c.JWT.SigningMethod); err != nil {
		return err
	}
	if err := c.JWT.Refresh.validate("Refresh", c.JWT.SigningMethod); err != nil {
		return err
	}
	if c.JWT.Refresh.TTL <= c.JWT.Access.TTL {
		return errors.New("JWT Refresh TTL must be longer than Access TTL")
	}
	if c.JWT.Access.Audience == c.JWT.Refresh.Audience {
		return errors.New("JWT Access and Refresh audiences must differ")
	}
	if c.JWT.SigningMethod == "hs256" && string(c.JWT.Access.Secret) == string(c.JWT.Refresh.Secret) {
		return errors.New("JWT Access and Refresh secrets must differ")
	}

	// Session
	for _, role := range c.Session.SingleSessionRoles {
		if strings.TrimSpace(role) == "" {
			return errors.New("Session SingleSessionRoles must not contain empty roles")
		}
	}

	// Throttle
	if c.Throttle.MaxLoginAttempts <= 0 {
		return errors.New("Throttle MaxLoginAttempts must be > 0")
	}
	if c.Throttle.LockDuration <= 0 {
		return errors.New("Throttle LockDuration must be > 0")
	}

	// Captcha
	if c.Captcha.Enabled {
		if c.Captcha.Length < 4 || c.Captcha.Length > 12 {
			return errors.New("Captcha Length must be between 4 and 12")
		}
		if c.Captcha.TTL <= 0 {
			return errors.New("Captcha TTL must be > 0 when captcha is enabled")
		}
		if c.Captcha.Width <= 0 || c.Captcha.Height <= 0 {
			return errors.New("Captcha Width and Height must be > 0")
		}
		if c.Captcha.NoiseLines < 0 {
			return errors.New("Captcha NoiseLines must be >= 0")
		}
	}

	// Permission
	if c.Permission.CacheTTL <= 0 {
		return errors.New("Permission CacheTTL must be > 0")
	}
	if c.Permission.InvalidationRetries < 0 {
		return errors.New("Permission InvalidationRetries must be >= 0")
	}
	if c.Permission.RetryBackoff < 0 {
		return errors.New("Permission RetryBackoff must be >= 0")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MaxPasswordBytes < 0 {
		return errors.New("Password MaxPasswordBytes must be >= 0")
	}

	// Directory
	if c.Directory.CircuitBreaker {
		if c.Directory.FailureRate <= 0 || c.Directory.FailureRate > 1 {
			return errors.New("Directory FailureRate must be in (0, 1]")
		}
		if c.Directory.OpenTimeout <= 0 {
			return errors.New("Directory OpenTimeout must be > 0")
		}
	}

	if c.Timeouts.Operation <= 0 {
		return errors.New("Timeouts Operation must be > 0")
	}

	// Audit
	if c.Audit.Enabled {
		if c.Audit.BufferSize <= 0 {
			return errors.New("Audit BufferSize must be > 0 when audit is enabled")
		}
		if c.Audit.SinkTimeout < 0 {
			return errors.New("Audit SinkTimeout must be >= 0")
		}
	}

	if c.Security.ProductionMode {
		if c.JWT.Access.TTL > time.Hour {
			return errors.New("ProductionMode requires JWT Access TTL <= 1h")
		}
		if c.JWT.Refresh.TTL > 30*24*time.Hour {
			return errors.New("ProductionMode requires JWT Refresh TTL <= 30d")
		}
		if c.JWT.SigningMethod == "hs256" &&
			(len(c.JWT.Access.Secret) < 32 || len(c.JWT.Refresh.Secret) < 32) {
			return errors.New("ProductionMode requires hs256 key length >= 256 bits")
		}
		if c.Password.Memory < 64*1024 {
			return errors.New("ProductionMode requires Password Memory >= 65536 KB")
		}
		if c.Throttle.MaxLoginAttempts > 10 {
			return errors.New("ProductionMode requires Throttle MaxLoginAttempts <= 10")
		}
	}

	return nil
}

func (t TokenConfig) validate(kind, method string) error {
	if t.TTL <= 0 {
		return errors.New("JWT " + kind + " TTL must be > 0")
	}
	if strings.TrimSpace(t.Issuer) == "" {
		return errors.New("JWT " + kind + " Issuer is required")
	}
	if strings.TrimSpace(t.Audience) == "" {
		return errors.New("JWT " + kind + " Audience is required")
	}
	switch method {
	case "hs256":
		if len(t.Secret) == 0 {
			return errors.New("hs256 requires " + kind + " Secret")
		}
	case "ed25519":
		if len(t.PrivateKey) == 0 || len(t.PublicKey) == 0 {
			return errors.New("ed25519 requires " + kind + " PrivateKey and PublicKey")
		}
	}
	return nil
}

func (c *Config) isSingleSession(roles []string) bool {
	for _, r := range roles {
		if slices.Contains(c.Session.SingleSessionRoles, r) {
			return true
		}
	}
	return false
}
