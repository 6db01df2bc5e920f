package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newSessionStoreTest(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return NewStore(rdb), mr
}

func TestSlotKeyLayout(t *testing.T) {
	single := Slot{TenantID: "t1", Subject: "u1"}
	if got := single.Key(); got != "refresh:t1:u1" {
		t.Fatalf("unexpected single-session key %q", got)
	}
	if !single.Single() {
		t.Fatal("expected empty session id to be the single slot")
	}
	multi := Slot{TenantID: "t1", Subject: "u1", SessionID: "a"}
	if got := multi.Key(); got != "refresh:t1:u1:a" {
		t.Fatalf("unexpected multi-session key %q", got)
	}
}

func TestSaveRefreshStoresDigestWithTTL(t *testing.T) {
	store, mr := newSessionStoreTest(t)
	ctx := context.Background()
	slot := Slot{TenantID: "t1", Subject: "u1", SessionID: "s1"}

	if err := store.SaveRefresh(ctx, slot, "refresh-token-1", time.Hour); err != nil {
		t.Fatalf("save refresh: %v", err)
	}

	got, err := mr.Get(slot.Key())
	if err != nil {
		t.Fatalf("get slot: %v", err)
	}
	if got != Digest("refresh-token-1") {
		t.Fatal("expected slot to hold the token digest")
	}
	if ttl := mr.TTL(slot.Key()); ttl <= 0 || ttl > time.Hour {
		t.Fatalf("unexpected slot ttl %v", ttl)
	}
}

func TestRotateRefreshReplacesStoredToken(t *testing.T) {
	store, _ := newSessionStoreTest(t)
	ctx := context.Background()
	slot := Slot{TenantID: "t1", Subject: "u1", SessionID: "s1"}

	if err := store.SaveRefresh(ctx, slot, "r1", time.Hour); err != nil {
		t.Fatalf("save refresh: %v", err)
	}
	if err := store.RotateRefresh(ctx, slot, "r1", "r2", time.Hour); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if err := store.RotateRefresh(ctx, slot, "r2", "r3", time.Hour); err != nil {
		t.Fatalf("rotate new token: %v", err)
	}
}

func TestRotateRefreshMismatchPurgesSlot(t *testing.T) {
	store, mr := newSessionStoreTest(t)
	ctx := context.Background()
	slot := Slot{TenantID: "t1", Subject: "u1"}

	if err := store.SaveRefresh(ctx, slot, "r1", time.Hour); err != nil {
		t.Fatalf("save refresh: %v", err)
	}
	if err := store.RotateRefresh(ctx, slot, "stale", "r2", time.Hour); !errors.Is(err, ErrRefreshHashMismatch) {
		t.Fatalf("expected ErrRefreshHashMismatch, got %v", err)
	}
	if mr.Exists(slot.Key()) {
		t.Fatal("expected slot to be purged after mismatch")
	}
	if err := store.RotateRefresh(ctx, slot, "r1", "r2", time.Hour); !errors.Is(err, ErrRefreshSessionNotFound) {
		t.Fatalf("expected ErrRefreshSessionNotFound after purge, got %v", err)
	}
}

func TestRotateRefreshConcurrentSingleWinner(t *testing.T) {
	store, _ := newSessionStoreTest(t)
	ctx := context.Background()
	slot := Slot{TenantID: "t1", Subject: "u1", SessionID: "s1"}

	if err := store.SaveRefresh(ctx, slot, "r1", time.Hour); err != nil {
		t.Fatalf("save refresh: %v", err)
	}

	const workers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := store.RotateRefresh(ctx, slot, "r1", "next-"+string(rune('a'+i)), time.Hour)
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one winning rotation, got %d", wins)
	}
}

func TestDeleteRefreshIdempotent(t *testing.T) {
	store, _ := newSessionStoreTest(t)
	ctx := context.Background()
	slot := Slot{TenantID: "t1", Subject: "u1", SessionID: "s1"}

	if err := store.SaveRefresh(ctx, slot, "r1", time.Hour); err != nil {
		t.Fatalf("save refresh: %v", err)
	}
	deleted, err := store.DeleteRefresh(ctx, slot)
	if err != nil || !deleted {
		t.Fatalf("first delete: deleted=%v err=%v", deleted, err)
	}
	deleted, err = store.DeleteRefresh(ctx, slot)
	if err != nil || deleted {
		t.Fatalf("second delete: deleted=%v err=%v", deleted, err)
	}
}

func TestDeleteAllForSubjectLeavesOtherSubjects(t *testing.T) {
	store, mr := newSessionStoreTest(t)
	ctx := context.Background()

	slots := []Slot{
		{TenantID: "t1", Subject: "u1"},
		{TenantID: "t1", Subject: "u1", SessionID: "a"},
		{TenantID: "t1", Subject: "u1", SessionID: "b"},
	}
	for _, s := range slots {
		if err := store.SaveRefresh(ctx, s, "r-"+s.SessionID, time.Hour); err != nil {
			t.Fatalf("save refresh: %v", err)
		}
	}
	other := Slot{TenantID: "t1", Subject: "u10", SessionID: "a"}
	if err := store.SaveRefresh(ctx, other, "r-other", time.Hour); err != nil {
		t.Fatalf("save refresh: %v", err)
	}

	n, err := store.DeleteAllForSubject(ctx, "t1", "u1")
	if err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 slots deleted, got %d", n)
	}
	if !mr.Exists(other.Key()) {
		t.Fatal("expected other subject slot to survive")
	}
}

func TestDeleteAllForSubjectEscapesGlob(t *testing.T) {
	store, mr := newSessionStoreTest(t)
	ctx := context.Background()

	slots := []Slot{
		{TenantID: "t1", Subject: "u1", SessionID: "a"},
		{TenantID: "t1", Subject: "u10", SessionID: "b"},
		{TenantID: "t2", Subject: "u1", SessionID: "c"},
	}
	for _, s := range slots {
		if err := store.SaveRefresh(ctx, s, "r-"+s.SessionID, time.Hour); err != nil {
			t.Fatalf("save refresh: %v", err)
		}
	}

	for _, tc := range []struct{ tenant, subject string }{
		{"t1", "u*"},
		{"t1", "u?"},
		{"t1", "u[0-9]"},
		{"t?", "u1"},
		{"*", "*"},
	} {
		n, err := store.DeleteAllForSubject(ctx, tc.tenant, tc.subject)
		if err != nil {
			t.Fatalf("delete all %+v: %v", tc, err)
		}
		if n != 0 {
			t.Fatalf("expected no slots deleted for %+v, got %d", tc, n)
		}
	}
	for _, s := range slots {
		if !mr.Exists(s.Key()) {
			t.Fatalf("expected slot %s to survive", s.Key())
		}
	}

	if got := subjectPattern("t*", `u\1`); got != `refresh:t\*:u\\1:*` {
		t.Fatalf("unexpected pattern %q", got)
	}
}

func TestBlacklistUsesResidualTTL(t *testing.T) {
	store, mr := newSessionStoreTest(t)
	ctx := context.Background()

	ok, err := store.Blacklist(ctx, "access-1", 10*time.Minute)
	if err != nil || !ok {
		t.Fatalf("blacklist: ok=%v err=%v", ok, err)
	}
	revoked, err := store.IsBlacklisted(ctx, "access-1")
	if err != nil || !revoked {
		t.Fatalf("expected token to be blacklisted: revoked=%v err=%v", revoked, err)
	}

	mr.FastForward(11 * time.Minute)
	revoked, err = store.IsBlacklisted(ctx, "access-1")
	if err != nil {
		t.Fatalf("is blacklisted: %v", err)
	}
	if revoked {
		t.Fatal("expected blacklist entry to expire with the token")
	}
}

func TestBlacklistSkipsExpiredToken(t *testing.T) {
	store, _ := newSessionStoreTest(t)
	ok, err := store.Blacklist(context.Background(), "access-1", 0)
	if err != nil {
		t.Fatalf("blacklist: %v", err)
	}
	if ok {
		t.Fatal("expected no entry for an already-expired token")
	}
}

func TestStoreRedisDownReturnsErrRedisUnavailable(t *testing.T) {
	store, mr := newSessionStoreTest(t)
	mr.Close()

	_, err := store.IsBlacklisted(context.Background(), "access-1")
	if !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
