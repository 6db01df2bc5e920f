// Command identity-loadtest measures access validation, refresh rotation and
// permission check throughput against a goIdentity engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/directory"
)

const tenant = "load"

type sessionState struct {
	subject string
	sid     string
	access  string
	refresh string
	mu      sync.Mutex
}

func main() {
	var (
		principals  = flag.Int("principals", 1000, "number of principals to log in")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "operations per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *principals <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "principals, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := goIdentity.DefaultConfig()
	cfg.JWT.Access.Secret = []byte("loadtest-access-secret-0123456789")
	cfg.JWT.Refresh.Secret = []byte("loadtest-refresh-secret-012345678")
	cfg.Throttle.MaxLoginAttempts = 1 << 20
	cfg.Metrics.Enabled = true
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	dir := directory.NewMemory(nil)
	engine, err := goIdentity.New().
		WithConfig(cfg).
		WithRedis(client).
		WithDirectory(dir).
		WithLogger(zerolog.New(os.Stderr).Level(zerolog.WarnLevel)).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	if _, err := engine.AddPolicy(ctx, tenant, "member", "doc", "read"); err != nil {
		fmt.Fprintf(os.Stderr, "seed policy: %v\n", err)
		os.Exit(1)
	}

	states, err := seed(ctx, engine, dir, *principals)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}

	validateStats := runPhase(states, *ops, *concurrency, 7919, func(s *sessionState) error {
		_, err := engine.ValidateAccess(ctx, s.access)
		return err
	})
	checkStats := runPhase(states, *ops, *concurrency, 104729, func(s *sessionState) error {
		_, err := engine.Check(ctx, tenant, s.subject, "doc", "read")
		return err
	})
	refreshStats := runPhase(states, *ops, *concurrency, 6151, func(s *sessionState) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		pair, err := engine.Rotate(ctx, s.refresh, s.sid)
		if err != nil {
			return err
		}
		s.access, s.refresh = pair.AccessToken, pair.RefreshToken
		return nil
	})

	fmt.Println("---- results ----")
	printStats("validate", validateStats)
	printStats("check", checkStats)
	printStats("refresh", refreshStats)

	snap := engine.MetricsSnapshot()
	fmt.Printf("cache hits=%d misses=%d reuse=%d\n",
		snap.Counters[goIdentity.MetricPermissionCacheHit],
		snap.Counters[goIdentity.MetricPermissionCacheMiss],
		snap.Counters[goIdentity.MetricRefreshReuseDetected],
	)
}

func seed(ctx context.Context, engine *goIdentity.Engine, dir *directory.Memory, n int) ([]*sessionState, error) {
	hash, err := engine.HashPassword("loadtest-password")
	if err != nil {
		return nil, err
	}

	fmt.Printf("logging in %d principals...\n", n)
	start := time.Now()
	states := make([]*sessionState, n)
	for i := 0; i < n; i++ {
		username := fmt.Sprintf("user-%d", i)
		id, err := dir.Put(directory.Record{
			Principal:    directory.Principal{TenantID: tenant, Username: username, Roles: []string{"member"}, Active: true},
			PasswordHash: hash,
		})
		if err != nil {
			return nil, err
		}
		if _, err := engine.AddRoleForUser(ctx, tenant, id, "member"); err != nil {
			return nil, err
		}
		res, err := engine.Login(ctx, goIdentity.LoginRequest{
			TenantID:  tenant,
			Username:  username,
			Password:  "loadtest-password",
			SessionID: "load",
		})
		if err != nil {
			return nil, err
		}
		states[i] = &sessionState{subject: id, sid: res.SessionID, access: res.AccessToken, refresh: res.RefreshToken}
	}
	fmt.Printf("seeded in %s\n", time.Since(start).Round(time.Millisecond))
	return states, nil
}

func runPhase(states []*sessionState, ops, concurrency int, seedPrime int64, op func(*sessionState) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seedPrime))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				s := states[r.Intn(len(states))]
				t0 := time.Now()
				err := op(s)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
