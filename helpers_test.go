package goIdentity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goIdentity/directory"
	"github.com/MrEthical07/goIdentity/password"
)

const (
	testTenant   = "acme"
	testPassword = "correct-password-123"
)

func newTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	return mr, rdb
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Access.Secret = []byte("access-secret-access-secret-0123")
	cfg.JWT.Refresh.Secret = []byte("refresh-secret-refresh-secret-01")
	cfg.Timeouts.Operation = 2 * time.Second
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

type testEngine struct {
	*Engine
	mr        *miniredis.Miniredis
	rdb       *redis.Client
	directory *directory.Memory
}

type engineOption func(*Builder)

func withSink(sink AuditSink) engineOption {
	return func(b *Builder) { b.WithAuditSink(sink) }
}

func withOperation(name, resource, action string) engineOption {
	return func(b *Builder) { b.WithOperation(name, resource, action) }
}

func newTestEngine(t testing.TB, cfg Config, opts ...engineOption) *testEngine {
	t.Helper()
	hasher, err := password.NewArgon2(cfg.Password.hasherConfig())
	if err != nil {
		t.Fatalf("password hasher: %v", err)
	}
	mr, rdb := newTestRedis(t)
	dir := directory.NewMemory(hasher)

	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithDirectory(dir)
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		_ = rdb.Close()
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return &testEngine{Engine: engine, mr: mr, rdb: rdb, directory: dir}
}

func (te *testEngine) createUser(t testing.TB, username string, roles ...string) string {
	t.Helper()
	id, err := te.directory.Create(testTenant, username, username+"@example.com", testPassword, roles...)
	if err != nil {
		t.Fatalf("create %s: %v", username, err)
	}
	return id
}

func (te *testEngine) login(t testing.TB, username, sessionID string) LoginResult {
	t.Helper()
	res, err := te.Login(context.Background(), LoginRequest{
		TenantID:  testTenant,
		Username:  username,
		Password:  testPassword,
		SessionID: sessionID,
	})
	if err != nil {
		t.Fatalf("login %s: %v", username, err)
	}
	return res
}

func (te *testEngine) captchaAnswer(t *testing.T, id string) string {
	t.Helper()
	v, err := te.mr.Get("captcha:" + id)
	if err != nil {
		t.Fatalf("read captcha answer: %v", err)
	}
	return v
}

type countingSink struct {
	mu    sync.Mutex
	count int
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.mu.Lock()
	s.count++
	s.mu.Unlock()
}

func (s *countingSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

type captureSink struct {
	*ChannelSink
}

func newCaptureSink(buffer int) *captureSink {
	return &captureSink{ChannelSink: NewChannelSink(buffer)}
}

// next returns the first event of eventType, skipping others.
func (s *captureSink) next(t *testing.T, eventType string) AuditEvent {
	t.Helper()
	timeout := time.After(time.Second)
	for {
		select {
		case e := <-s.Events():
			if e.EventType == eventType {
				return e
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s audit event", eventType)
		}
	}
}
