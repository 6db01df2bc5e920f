package goIdentity

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	sink := &countingSink{}
	te := newTestEngine(t, testConfig(), withSink(sink))
	te.createUser(t, "alice", "member")

	_, _ = te.Login(WithClientIP(context.Background(), "203.0.113.1"), LoginRequest{TenantID: testTenant, Username: "alice", Password: "wrong"})
	time.Sleep(30 * time.Millisecond)

	if sink.Count() != 0 {
		t.Fatalf("expected no audit sink calls when disabled, got %d", sink.Count())
	}
}

func TestAuditLoginFailureEventFields(t *testing.T) {
	sink := newCaptureSink(16)
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 16
	te := newTestEngine(t, cfg, withSink(sink))
	te.createUser(t, "alice", "member")

	_, _ = te.Login(WithClientIP(context.Background(), "203.0.113.1"), LoginRequest{TenantID: testTenant, Username: "alice", Password: "wrong-password"})

	ev := sink.next(t, auditEventLoginFailure)
	if ev.Success {
		t.Fatal("expected failure event")
	}
	if ev.TenantID != testTenant || ev.IP != "203.0.113.1" || ev.Error != "invalid_credentials" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.Metadata["username"] != "alice" {
		t.Fatalf("expected username metadata, got %v", ev.Metadata)
	}
	for k, v := range ev.Metadata {
		if strings.Contains(v, "wrong-password") {
			t.Fatalf("password leaked into metadata key %s", k)
		}
	}
	if ev.Timestamp.IsZero() {
		t.Fatal("expected timestamp")
	}
}

func TestAuditReuseEventCarriesFingerprintOnly(t *testing.T) {
	sink := newCaptureSink(64)
	cfg := testConfig()
	cfg.Audit.Enabled = true
	te := newTestEngine(t, cfg, withSink(sink))
	te.createUser(t, "alice", "member")
	res := te.login(t, "alice", "a")

	if _, err := te.Rotate(context.Background(), res.RefreshToken, "a"); err != nil {
		t.Fatalf("first rotate failed: %v", err)
	}
	_, _ = te.Rotate(context.Background(), res.RefreshToken, "a")

	ev := sink.next(t, auditEventRefreshReuseDetected)
	if ev.Subject != res.Principal.ID || ev.SessionID != "a" || ev.Error != "refresh_invalidated" {
		t.Fatalf("unexpected reuse event %+v", ev)
	}
	fp := ev.Metadata["fingerprint"]
	if len(fp) != 8 {
		t.Fatalf("expected 8 char fingerprint, got %q", fp)
	}
	for _, v := range ev.Metadata {
		if v == res.RefreshToken {
			t.Fatal("full token leaked into audit metadata")
		}
	}
}

func TestAuditDropIfFullCountsDrops(t *testing.T) {
	block := make(chan struct{})
	sink := &gateSink{gate: block}
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 1
	cfg.Audit.DropIfFull = true
	te := newTestEngine(t, cfg, withSink(sink))
	te.createUser(t, "alice", "member")

	for i := 0; i < 5; i++ {
		_, _ = te.Login(context.Background(), LoginRequest{TenantID: testTenant, Username: "alice", Password: "wrong"})
	}
	close(block)

	if te.AuditDropped() == 0 {
		t.Fatal("expected dropped events with a full buffer")
	}
}

func TestHealthReportsAuditCounters(t *testing.T) {
	sink := &countingSink{}
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 16
	te := newTestEngine(t, cfg, withSink(sink))
	te.createUser(t, "alice", "member")

	if h := te.Health(context.Background()); h.AuditDelivered != 0 || h.AuditDropped != 0 {
		t.Fatalf("expected zero audit counters, got %+v", h)
	}

	for i := 0; i < 3; i++ {
		_, _ = te.Login(context.Background(), LoginRequest{TenantID: testTenant, Username: "alice", Password: "wrong"})
	}
	te.Close()

	h := te.Health(context.Background())
	if h.AuditDelivered != uint64(sink.Count()) || h.AuditDelivered < 3 {
		t.Fatalf("expected delivered to match sink calls (%d), got %+v", sink.Count(), h)
	}
	if h.AuditDropped != 0 {
		t.Fatalf("expected no drops, got %d", h.AuditDropped)
	}
}

func TestJSONWriterSinkThroughEngine(t *testing.T) {
	var buf lockedBuffer
	cfg := testConfig()
	cfg.Audit.Enabled = true
	te := newTestEngine(t, cfg, withSink(NewJSONWriterSink(&buf)))
	te.createUser(t, "alice", "member")
	te.login(t, "alice", "a")
	te.Close()

	line, _, _ := strings.Cut(buf.String(), "\n")
	var ev AuditEvent
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		t.Fatalf("decode audit line %q: %v", line, err)
	}
	if ev.EventType != auditEventLoginSuccess || !ev.Success || ev.SessionID != "a" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

type gateSink struct {
	gate <-chan struct{}
}

func (s *gateSink) Emit(ctx context.Context, _ AuditEvent) {
	select {
	case <-s.gate:
	case <-ctx.Done():
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
