package goIdentity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

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

// Engine defines a public type used by goIdentity APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config      Config
	redis       redis.UniversalClient
	access      *jwt.Manager
	refresh     *jwt.Manager
	sessions    *session.Store
	passwords   *password.Argon2
	limiter     *rate.Limiter
	captcha     *captcha.Gate // nil when disabled
	permissions *permission.Engine
	registry    *permission.Registry
	directory   PrincipalDirectory
	breaker     *directory.Breaker // nil when disabled
	flows       flows.Service
	audit       *internalaudit.Dispatcher
	metrics     *Metrics
	logger      zerolog.Logger
}

// Close describes the close operation and its observable behavior.
//
// Close flushes queued audit events. It does not close the Redis client,
// which the caller owns.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Registry returns the frozen operation requirement table.
func (e *Engine) Registry() *permission.Registry {
	return e.registry
}

// Permissions exposes the underlying permission engine for policy
// administration not covered by the Engine passthroughs.
func (e *Engine) Permissions() *permission.Engine {
	return e.permissions
}

// Health pings Redis and reports policy and directory state.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e == nil {
		return HealthStatus{}
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	var h HealthStatus
	if latency, err := e.sessions.Ping(ctx); err == nil {
		h.RedisAvailable = true
		h.RedisLatency = latency
	}
	h.PolicyLoaded = e.permissions.Ready()
	if e.breaker != nil {
		h.DirectoryBreaker = e.breaker.State().String()
	}
	h.AuditDelivered = e.audit.Delivered()
	h.AuditDropped = e.audit.Dropped()
	return h
}

func (e *Engine) ready() error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	return nil
}

// checkIdentifiers rejects ids that would split into extra Redis key parts.
func checkIdentifiers(ids ...string) error {
	for _, id := range ids {
		if strings.IndexByte(id, ':') >= 0 {
			return fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
		}
	}
	return nil
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, e.config.Timeouts.Operation)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) observe(id MetricID, start time.Time) {
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(id, time.Since(start))
	}
}

// unavailable wraps a backend failure. Deadline overruns are reported the
// same way so a slow store never reads as a decision.
func (e *Engine) unavailable(err error) error {
	e.metricInc(MetricBackendUnavailable)
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: operation deadline exceeded", ErrServiceUnavailable)
	}
	return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
}

func (e *Engine) warn(msg string, kv ...any) {
	ev := e.logger.Warn()
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		if err, ok := kv[i+1].(error); ok {
			ev = ev.AnErr(key, err)
			continue
		}
		ev = ev.Interface(key, kv[i+1])
	}
	ev.Msg(msg)
}
