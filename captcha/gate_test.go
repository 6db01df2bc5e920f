package captcha

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestGate(t *testing.T) (*Gate, *miniredis.Miniredis) {
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
	return NewGate(rdb, Config{TTL: 5 * time.Minute}), mr
}

func storedAnswer(t *testing.T, mr *miniredis.Miniredis, id string) string {
	t.Helper()
	v, err := mr.Get(key(id))
	if err != nil {
		t.Fatalf("read challenge: %v", err)
	}
	return v
}

func TestIssueStoresLowercaseAnswerWithTTL(t *testing.T) {
	g, mr := newTestGate(t)

	ch, err := g.Issue(context.Background())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if ch.ID == "" {
		t.Fatal("expected challenge id")
	}
	if !strings.HasPrefix(ch.Image, "<svg") || !strings.HasSuffix(ch.Image, "</svg>") {
		t.Fatal("expected svg image markup")
	}

	answer := storedAnswer(t, mr, ch.ID)
	if len(answer) != 5 || answer != strings.ToLower(answer) {
		t.Fatalf("unexpected stored answer %q", answer)
	}
	if ttl := mr.TTL(key(ch.ID)); ttl <= 0 || ttl > 5*time.Minute {
		t.Fatalf("unexpected ttl %v", ttl)
	}
}

func TestConsumeIsCaseInsensitiveAndOneTime(t *testing.T) {
	g, mr := newTestGate(t)
	ctx := context.Background()

	ch, err := g.Issue(ctx)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	answer := storedAnswer(t, mr, ch.ID)

	ok, err := g.Consume(ctx, ch.ID, " "+strings.ToUpper(answer)+" ")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if !ok {
		t.Fatal("expected upper-case answer to match")
	}

	ok, err = g.Consume(ctx, ch.ID, answer)
	if err != nil {
		t.Fatalf("second consume: %v", err)
	}
	if ok {
		t.Fatal("expected challenge to be single use")
	}
}

func TestWrongAnswerBurnsChallenge(t *testing.T) {
	g, mr := newTestGate(t)
	ctx := context.Background()

	ch, err := g.Issue(ctx)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	answer := storedAnswer(t, mr, ch.ID)

	ok, err := g.Consume(ctx, ch.ID, "wrong-answer")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if ok {
		t.Fatal("expected wrong answer to fail")
	}
	if mr.Exists(key(ch.ID)) {
		t.Fatal("expected challenge deleted after wrong answer")
	}

	ok, err = g.Consume(ctx, ch.ID, answer)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if ok {
		t.Fatal("expected correct answer to fail after challenge was burned")
	}
}

func TestConsumeExpiredChallenge(t *testing.T) {
	g, mr := newTestGate(t)
	ctx := context.Background()

	ch, err := g.Issue(ctx)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	answer := storedAnswer(t, mr, ch.ID)
	mr.FastForward(6 * time.Minute)

	ok, err := g.Consume(ctx, ch.ID, answer)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if ok {
		t.Fatal("expected expired challenge to fail")
	}
}

func TestConsumeEmptyInputs(t *testing.T) {
	g, _ := newTestGate(t)
	ok, err := g.Consume(context.Background(), "", "abc")
	if err != nil || ok {
		t.Fatalf("expected empty id to fail closed: ok=%v err=%v", ok, err)
	}
}

func TestGateRedisDown(t *testing.T) {
	g, mr := newTestGate(t)
	mr.Close()

	if _, err := g.Issue(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
