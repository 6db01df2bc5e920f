package goIdentity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestConcurrentRefreshSingleWinner(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = true
	te := newTestEngine(t, cfg)
	te.createUser(t, "alice", "member")
	res := te.login(t, "alice", "a")

	const workers = 16
	var (
		wg          sync.WaitGroup
		successes   atomic.Int64
		invalidated atomic.Int64
		start       = make(chan struct{})
		winner      = make(chan TokenPair, workers)
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			pair, err := te.Rotate(context.Background(), res.RefreshToken, "a")
			switch {
			case err == nil:
				successes.Add(1)
				winner <- pair
			case errors.Is(err, ErrRefreshInvalidated):
				invalidated.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()
	close(winner)

	if successes.Load() != 1 {
		t.Fatalf("expected exactly one successful rotation, got %d", successes.Load())
	}
	if invalidated.Load() != workers-1 {
		t.Fatalf("expected %d invalidated rotations, got %d", workers-1, invalidated.Load())
	}

	// Losers replayed a consumed token, so the slot is purged and the
	// winner's new token is dead too.
	pair := <-winner
	if _, err := te.Rotate(context.Background(), pair.RefreshToken, "a"); !errors.Is(err, ErrRefreshInvalidated) {
		t.Fatalf("expected winner token to be invalidated by the replay, got %v", err)
	}
	if got := te.MetricsSnapshot().Counters[MetricRefreshReuseDetected]; got == 0 {
		t.Fatal("expected reuse to be counted")
	}
}

func TestRefreshReplayPurgesSlot(t *testing.T) {
	te := newTestEngine(t, testConfig())
	te.createUser(t, "alice", "member")
	res := te.login(t, "alice", "a")

	next, err := te.Refresh(context.Background(), res.RefreshToken, "a")
	if err != nil {
		t.Fatalf("first refresh failed: %v", err)
	}
	if next.RefreshToken == res.RefreshToken {
		t.Fatal("expected a new refresh token")
	}

	if _, err := te.Refresh(context.Background(), res.RefreshToken, "a"); !errors.Is(err, ErrRefreshInvalidated) {
		t.Fatalf("expected replay to be rejected, got %v", err)
	}
	if _, err := te.Refresh(context.Background(), next.RefreshToken, "a"); !errors.Is(err, ErrRefreshInvalidated) {
		t.Fatalf("expected the rotated token to be purged by the replay, got %v", err)
	}
	if te.mr.Exists("refresh:" + testTenant + ":" + res.Principal.ID + ":a") {
		t.Fatal("expected slot to be deleted")
	}
}

func TestRefreshChainKeepsWorking(t *testing.T) {
	te := newTestEngine(t, testConfig())
	te.createUser(t, "alice", "member")
	res := te.login(t, "alice", "a")

	token := res.RefreshToken
	for i := 0; i < 5; i++ {
		pair, err := te.Refresh(context.Background(), token, "a")
		if err != nil {
			t.Fatalf("refresh %d failed: %v", i, err)
		}
		if _, err := te.ValidateAccess(context.Background(), pair.AccessToken); err != nil {
			t.Fatalf("rotated access %d invalid: %v", i, err)
		}
		token = pair.RefreshToken
	}
}
