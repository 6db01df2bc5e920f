package permission

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/persist"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

//go:embed model.conf
var embeddedModel string

var (
	// ErrUnavailable is returned when the cache or the policy store fails.
	// Callers must treat it as a denial.
	ErrUnavailable = errors.New("permission store unavailable")
	// ErrInvalidationIncomplete is returned by a mutation that was
	// persisted but could not evict every affected cache entry.
	ErrInvalidationIncomplete = errors.New("permission cache invalidation incomplete")
	// ErrNotLoaded is returned before [Engine.LoadPolicy] has succeeded.
	ErrNotLoaded = errors.New("permission policy not loaded")
	// ErrInvalidKeyPart is returned when a tenant, subject or resource
	// contains ':'. Actions may contain it since they end the key. Role and
	// group names never reach a key and are not restricted.
	ErrInvalidKeyPart = errors.New("permission key part contains ':'")
)

// Config configures an [Engine].
type Config struct {
	// ModelPath overrides the embedded RBAC-with-domains model.
	ModelPath string
	// PolicyPath selects the casbin file adapter. Ignored when Adapter is set.
	// The file is rewritten after every mutation that changes policy.
	PolicyPath string
	// Adapter is any casbin adapter. Nil with an empty PolicyPath keeps
	// policy in memory only.
	Adapter persist.Adapter

	CacheTTL time.Duration
	// InvalidationRetries is how many times a failed eviction is retried
	// after the first attempt.
	InvalidationRetries int
	RetryBackoff        time.Duration
}

// Observer receives cache and invalidation events. Implementations must be
// safe for concurrent use.
type Observer interface {
	CacheHit()
	CacheMiss()
	InvalidationFailed(keys int)
}

type nopObserver struct{}

func (nopObserver) CacheHit() {}
func (nopObserver) CacheMiss() {}
func (nopObserver) InvalidationFailed(int) {}

// Engine answers (tenant, subject, resource, action) questions from a Redis
// decision cache backed by a casbin enforcer, and keeps the cache correct
// across policy mutations.
type Engine struct {
	enforcer *casbin.SyncedEnforcer
	cache    *decisionCache
	config   Config
	logger   zerolog.Logger
	observer Observer
	loaded   atomic.Bool
	// saveOnMutate is set for the file adapter, which cannot persist
	// single rules.
	saveOnMutate bool
}

// NewEngine builds the enforcer and cache. The policy is not served until
// [Engine.LoadPolicy] has been called.
func NewEngine(cfg Config, rdb redis.UniversalClient, logger zerolog.Logger) (*Engine, error) {
	if rdb == nil {
		return nil, errors.New("permission engine requires redis")
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Minute
	}
	if cfg.InvalidationRetries < 0 {
		cfg.InvalidationRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 25 * time.Millisecond
	}

	var (
		m   model.Model
		err error
	)
	if cfg.ModelPath != "" {
		m, err = model.NewModelFromFile(cfg.ModelPath)
	} else {
		m, err = model.NewModelFromString(embeddedModel)
	}
	if err != nil {
		return nil, fmt.Errorf("load casbin model: %w", err)
	}

	adapter := cfg.Adapter
	saveOnMutate := false
	if adapter == nil && cfg.PolicyPath != "" {
		adapter = fileadapter.NewAdapter(cfg.PolicyPath)
		saveOnMutate = true
	}

	var enforcer *casbin.SyncedEnforcer
	if adapter != nil {
		enforcer, err = casbin.NewSyncedEnforcer(m, adapter)
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
	}
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}
	cfg.Adapter = adapter

	return &Engine{
		enforcer: enforcer,
		cache:    &decisionCache{redis: rdb, ttl: cfg.CacheTTL},
		config:   cfg,
		logger:   logger.With().Str("component", "permission").Logger(),
		observer: nopObserver{},

		saveOnMutate: saveOnMutate,
	}, nil
}

// SetObserver installs o. Call before serving traffic.
func (e *Engine) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	e.observer = o
}

// LoadPolicy (re)loads all policy from the adapter and marks the engine
// ready. Cached decisions are not flushed; callers reloading a changed
// policy file should expect up to CacheTTL of staleness for subjects whose
// rules changed outside the mutation API.
func (e *Engine) LoadPolicy() error {
	if e.config.Adapter != nil {
		if err := e.enforcer.LoadPolicy(); err != nil {
			return fmt.Errorf("load policy: %w", err)
		}
	}
	e.loaded.Store(true)
	e.logger.Info().Msg("permission policy loaded")
	return nil
}

// SavePolicy writes the whole in-memory policy back through the adapter.
// Mutations call it themselves when the policy lives in a PolicyPath file.
func (e *Engine) SavePolicy() error {
	if e.config.Adapter == nil {
		return errors.New("no policy adapter configured")
	}
	return e.enforcer.SavePolicy()
}

// Ready reports whether the policy has been loaded.
func (e *Engine) Ready() bool {
	return e.loaded.Load()
}

// Check reports whether subject may perform action on resource in tenant.
// Any cache or enforcer failure returns false with [ErrUnavailable].
//
//	Performance: 1 Redis GET on hit; GET + enforce + Lua SET on miss.
func (e *Engine) Check(ctx context.Context, tenantID, subject, resource, action string) (bool, error) {
	if !e.loaded.Load() {
		return false, ErrNotLoaded
	}
	if err := checkKeyParts(tenantID, subject, resource); err != nil {
		return false, err
	}

	key := cacheKey(tenantID, subject, resource, action)
	allowed, hit, err := e.cache.get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if hit {
		e.observer.CacheHit()
		return allowed, nil
	}
	e.observer.CacheMiss()

	epoch, err := e.cache.epoch(ctx, tenantID, subject)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	allowed, err = e.enforcer.Enforce(subject, tenantID, resource, action)
	if err != nil {
		return false, fmt.Errorf("%w: enforce: %v", ErrUnavailable, err)
	}

	if err := e.cache.set(ctx, tenantID, subject, key, epoch, allowed); err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return allowed, nil
}

// Pair is one resource/action question in a [Engine.BatchCheck].
type Pair struct {
	Resource string
	Action   string
}

// Key returns "resource:action", the map key BatchCheck results use.
// Resources never contain ':', so distinct pairs never share a key.
func (p Pair) Key() string {
	return p.Resource + ":" + p.Action
}

// BatchCheck evaluates every pair concurrently. The first failure cancels
// the rest and the whole batch is denied with the error.
func (e *Engine) BatchCheck(ctx context.Context, tenantID, subject string, pairs []Pair) (map[string]bool, error) {
	results := make([]bool, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range pairs {
		g.Go(func() error {
			allowed, err := e.Check(gctx, tenantID, subject, p.Resource, p.Action)
			if err != nil {
				return err
			}
			results[i] = allowed
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]bool, len(pairs))
	for i, p := range pairs {
		out[p.Key()] = results[i]
	}
	return out, nil
}

// RolesForUser returns the roles directly bound to subject in tenant.
func (e *Engine) RolesForUser(tenantID, subject string) []string {
	return e.enforcer.GetRolesForUserInDomain(subject, tenantID)
}

// UsersForRole returns the subjects and groups directly bound to role in tenant.
func (e *Engine) UsersForRole(tenantID, role string) []string {
	return e.enforcer.GetUsersForRoleInDomain(role, tenantID)
}

// FilteredPolicy returns the p rules of role in tenant as
// [role, tenant, resource, action] tuples.
func (e *Engine) FilteredPolicy(tenantID, role string) ([][]string, error) {
	rules, err := e.enforcer.GetFilteredPolicy(0, role, tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return rules, nil
}

// ImplicitPermissions returns every rule subject reaches through roles and
// groups in tenant.
func (e *Engine) ImplicitPermissions(tenantID, subject string) ([][]string, error) {
	rules, err := e.enforcer.GetImplicitPermissionsForUser(subject, tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return rules, nil
}

// Enforcer exposes the underlying enforcer for read-only introspection.
// Writes through it bypass cache invalidation.
func (e *Engine) Enforcer() *casbin.SyncedEnforcer {
	return e.enforcer
}
