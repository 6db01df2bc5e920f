package goIdentity

import (
	"context"
	"errors"
	"fmt"

	"github.com/casbin/casbin/v2/persist"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/MrEthical07/goIdentity/captcha"
	"github.com/MrEthical07/goIdentity/directory"
	internalaudit "github.com/MrEthical07/goIdentity/internal/audit"
	"github.com/MrEthical07/goIdentity/internal/flows"
	"github.com/MrEthical07/goIdentity/internal/rate"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/password"
	"github.com/MrEthical07/goIdentity/permission"
	"github.com/MrEthical07/goIdentity/session"
)

// Builder defines a public type used by goIdentity APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	directory     PrincipalDirectory
	policyAdapter persist.Adapter
	operations    []operation
	logger        zerolog.Logger
	auditSink     AuditSink

	built bool
}

type operation struct {
	name, resource, action string
}

// New describes the new operation and its observable behavior.
//
// New returns a Builder seeded with [DefaultConfig] and a no-op logger.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
		logger: zerolog.Nop(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client shared by the session store, login throttle,
// captcha gate and permission cache. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithDirectory sets the principal directory. Required.
func (b *Builder) WithDirectory(d PrincipalDirectory) *Builder {
	b.directory = d
	return b
}

// WithPolicyAdapter sets the casbin adapter policy is loaded from and
// persisted to. It takes precedence over Permission.PolicyPath.
func (b *Builder) WithPolicyAdapter(a persist.Adapter) *Builder {
	b.policyAdapter = a
	return b
}

// WithOperation registers the permission an operation requires. The table
// is frozen by Build.
func (b *Builder) WithOperation(name, resource, action string) *Builder {
	b.operations = append(b.operations, operation{name: name, resource: resource, action: action})
	return b
}

// WithLogger describes the withlogger operation and its observable behavior.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// The sink only receives events when Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build validates the configuration, constructs every component and loads
// the permission policy. A Builder can be built once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.directory == nil {
		return nil, errors.New("principal directory required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger.With().Str("component", "engine").Logger()
	for _, w := range cfg.Lint().BySeverity(LintWarn) {
		logger.Warn().Str("code", w.Code).Str("severity", w.Severity.String()).Msg(w.Message)
	}

	// -------- TOKENS --------
	access, err := newTokenManager(cfg.JWT, cfg.JWT.Access)
	if err != nil {
		return nil, fmt.Errorf("access token manager: %w", err)
	}
	refresh, err := newTokenManager(cfg.JWT, cfg.JWT.Refresh)
	if err != nil {
		return nil, fmt.Errorf("refresh token manager: %w", err)
	}

	// -------- PASSWORDS --------
	passwords, err := password.NewArgon2(cfg.Password.hasherConfig())
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}

	// -------- OPERATION REGISTRY --------
	registry := permission.NewRegistry()
	for _, op := range b.operations {
		if err := registry.Register(op.name, op.resource, op.action); err != nil {
			return nil, fmt.Errorf("register operation %q: %w", op.name, err)
		}
	}
	registry.Freeze()

	// -------- PERMISSION ENGINE --------
	perms, err := permission.NewEngine(permission.Config{
		ModelPath:           cfg.Permission.ModelPath,
		PolicyPath:          cfg.Permission.PolicyPath,
		Adapter:             b.policyAdapter,
		CacheTTL:            cfg.Permission.CacheTTL,
		InvalidationRetries: cfg.Permission.InvalidationRetries,
		RetryBackoff:        cfg.Permission.RetryBackoff,
	}, b.redis, b.logger)
	if err != nil {
		return nil, err
	}
	if err := perms.LoadPolicy(); err != nil {
		return nil, err
	}

	engine := &Engine{
		config:      cfg,
		redis:       b.redis,
		access:      access,
		refresh:     refresh,
		sessions:    session.NewStore(b.redis),
		passwords:   passwords,
		limiter:     rate.New(b.redis, rate.Config{MaxLoginAttempts: cfg.Throttle.MaxLoginAttempts, LockDuration: cfg.Throttle.LockDuration}),
		permissions: perms,
		registry:    registry,
		directory:   b.directory,
		metrics:     NewMetrics(cfg.Metrics),
		logger:      logger,
	}
	perms.SetObserver(permissionObserver{metrics: engine.metrics})

	if cfg.Directory.CircuitBreaker {
		engine.breaker = directory.NewBreaker(b.directory, directory.BreakerConfig{
			MinRequests: cfg.Directory.MinRequests,
			FailureRate: cfg.Directory.FailureRate,
			Timeout:     cfg.Directory.OpenTimeout,
		}, b.logger)
		engine.directory = engine.breaker
	}

	if cfg.Captcha.Enabled {
		engine.captcha = captcha.NewGate(b.redis, captcha.Config{
			Length:     cfg.Captcha.Length,
			TTL:        cfg.Captcha.TTL,
			Width:      cfg.Captcha.Width,
			Height:     cfg.Captcha.Height,
			NoiseLines: cfg.Captcha.NoiseLines,
		})
	}

	if cfg.Audit.Enabled {
		sink := b.auditSink
		if sink == nil {
			sink = NewLogSink(b.logger)
		}
		engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:     true,
			BufferSize:  cfg.Audit.BufferSize,
			DropIfFull:  cfg.Audit.DropIfFull,
			SinkTimeout: cfg.Audit.SinkTimeout,
		}, sink)
	}

	engine.flows = flows.New(engine.flowDeps())

	b.built = true
	return engine, nil
}

func newTokenManager(jc JWTConfig, t TokenConfig) (*jwt.Manager, error) {
	return jwt.NewManager(jwt.Config{
		TTL:           t.TTL,
		SigningMethod: jwt.SigningMethod(jc.SigningMethod),
		Secret:        cloneBytes(t.Secret),
		PrivateKey:    cloneBytes(t.PrivateKey),
		PublicKey:     cloneBytes(t.PublicKey),
		Issuer:        t.Issuer,
		Audience:      t.Audience,
		Leeway:        jc.Leeway,
		MaxFutureIAT:  jc.MaxFutureIAT,
		KeyID:         t.KeyID,
	})
}

// flowDeps wires the flow closures to the engine's components.
func (e *Engine) flowDeps() flows.Deps {
	var permissions func(ctx context.Context, p directory.Principal) ([]string, error)
	if e.config.JWT.EmbedPermissions {
		permissions = e.embeddedPermissions
	}

	issue := flows.IssueDeps{
		IsSingleSession: e.config.isSingleSession,
		SignAccess:      e.access.CreateAccess,
		SignRefresh:     e.refresh.CreateRefresh,
		AccessTTL:       e.access.TTL(),
		RefreshTTL:      e.refresh.TTL(),
		Permissions:     permissions,
		Store:           e.sessions,
	}

	login := flows.LoginDeps{
		Throttle:          e.limiter,
		Directory:         e.directory,
		VerifyPassword:    e.passwords.Matches,
		BurnPasswordCheck: e.passwords.Burn,
		NewSessionID:      uuid.NewString,
		Issue: func(ctx context.Context, req flows.IssueRequest) flows.IssueResult {
			return flows.RunIssue(ctx, req, issue)
		},
		Warn: e.warn,
	}
	if e.captcha != nil {
		login.Captcha = e.captcha
	}

	return flows.Deps{
		Issue: issue,
		Validate: flows.ValidateDeps{
			ParseAccess:   e.access.ParseAccess,
			IsBlacklisted: e.sessions.IsBlacklisted,
			Directory:     e.directory,
		},
		Rotate: flows.RotateDeps{
			ParseRefresh: e.refresh.ParseRefresh,
			SignAccess:   e.access.CreateAccess,
			SignRefresh:  e.refresh.CreateRefresh,
			RefreshTTL:   e.refresh.TTL(),
			Directory:    e.directory,
			Store:        e.sessions,
			Warn:         e.warn,
			Permissions:  permissions,
		},
		Revoke: flows.RevokeDeps{
			DecodeAccess:    e.access.DecodeAccess,
			Residual:        e.access.Residual,
			IsSingleSession: e.config.isSingleSession,
			Store:           e.sessions,
		},
		Login: login,
	}
}
