package goIdentity

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricLoginSuccess)

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricRefreshSuccess)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricRefreshSuccess); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestEngineMetricsFlow(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	te := newTestEngine(t, cfg)
	te.createUser(t, "alice", "member")
	ctx := context.Background()

	_, _ = te.Login(ctx, LoginRequest{TenantID: testTenant, Username: "alice", Password: "wrong"})
	res := te.login(t, "alice", "a")
	if _, err := te.ValidateAccess(ctx, res.AccessToken); err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if _, err := te.Revoke(ctx, res.AccessToken, "a"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := te.ValidateAccess(ctx, res.AccessToken); !errors.Is(err, ErrTokenBlacklisted) {
		t.Fatalf("expected blacklisted, got %v", err)
	}
	_, _ = te.Check(ctx, testTenant, res.Principal.ID, "doc", "read")
	_, _ = te.Check(ctx, testTenant, res.Principal.ID, "doc", "read")

	snap := te.MetricsSnapshot()
	want := map[MetricID]uint64{
		MetricLoginFailure:        1,
		MetricLoginSuccess:        1,
		MetricTokenIssued:         1,
		MetricValidateSuccess:     1,
		MetricValidateFailure:     1,
		MetricTokenBlacklisted:    1,
		MetricLogout:              1,
		MetricPermissionDenied:    2,
		MetricPermissionCacheMiss: 1,
		MetricPermissionCacheHit:  1,
	}
	for id, n := range want {
		if got := snap.Counters[id]; got != n {
			t.Fatalf("%s: expected %d, got %d", id.Name(), n, got)
		}
	}

	var observed uint64
	for _, c := range snap.Histograms[MetricValidateLatency] {
		observed += c
	}
	if observed != 2 {
		t.Fatalf("expected 2 validate latency observations, got %d", observed)
	}
}
