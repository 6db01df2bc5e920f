package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
)

// BreakerConfig tunes [Breaker]. Zero fields use the defaults noted.
type BreakerConfig struct {
	Name        string        // "principal-directory"
	MaxRequests uint32        // 3 probes while half-open
	Interval    time.Duration // 1m count reset while closed
	Timeout     time.Duration // 30s open before probing
	MinRequests uint32        // 10 requests before the ratio is considered
	FailureRate float64       // 0.6
}

// Breaker wraps a [Directory] with a circuit breaker. Misses are successes;
// only store failures count toward tripping. While open every call fails
// fast with [ErrUnavailable].
type Breaker struct {
	next Directory
	cb   *gobreaker.CircuitBreaker[*Record]
}

// NewBreaker wraps next.
func NewBreaker(next Directory, cfg BreakerConfig, logger zerolog.Logger) *Breaker {
	if cfg.Name == "" {
		cfg.Name = "principal-directory"
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 3
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 10
	}
	if cfg.FailureRate <= 0 || cfg.FailureRate > 1 {
		cfg.FailureRate = 0.6
	}
	log := logger.With().Str("component", "directory").Str("breaker", cfg.Name).Logger()

	cb := gobreaker.NewCircuitBreaker[*Record](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRate
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("circuit state change")
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrPrincipalNotFound)
		},
	})

	return &Breaker{next: next, cb: cb}
}

// State returns the current breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// FindByUsername implements [Directory].
func (b *Breaker) FindByUsername(ctx context.Context, tenantID, username string) (*Record, error) {
	return b.execute(func() (*Record, error) {
		return b.next.FindByUsername(ctx, tenantID, username)
	})
}

// FindByID implements [Directory].
func (b *Breaker) FindByID(ctx context.Context, tenantID, id string) (*Record, error) {
	return b.execute(func() (*Record, error) {
		return b.next.FindByID(ctx, tenantID, id)
	})
}

func (b *Breaker) execute(fn func() (*Record, error)) (*Record, error) {
	rec, err := b.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	}
	return rec, nil
}
