package goIdentity

import (
	"context"
	"testing"
)

func BenchmarkValidateAccess(b *testing.B) {
	te := newTestEngine(b, testConfig())
	te.createUser(b, "alice", "member")
	res := te.login(b, "alice", "a")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := te.ValidateAccess(context.Background(), res.AccessToken); err != nil {
			b.Fatalf("validate failed: %v", err)
		}
	}
}

func BenchmarkRotate(b *testing.B) {
	te := newTestEngine(b, testConfig())
	te.createUser(b, "alice", "member")
	res := te.login(b, "alice", "a")
	token := res.RefreshToken

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pair, err := te.Rotate(context.Background(), token, "a")
		if err != nil {
			b.Fatalf("rotate failed: %v", err)
		}
		token = pair.RefreshToken
	}
}

func BenchmarkCheckCached(b *testing.B) {
	te := newTestEngine(b, testConfig())
	ctx := context.Background()
	if _, err := te.AddPolicy(ctx, testTenant, "editor", "doc", "write"); err != nil {
		b.Fatalf("AddPolicy: %v", err)
	}
	if _, err := te.AddRoleForUser(ctx, testTenant, "u1", "editor"); err != nil {
		b.Fatalf("AddRoleForUser: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if ok, err := te.Check(ctx, testTenant, "u1", "doc", "write"); err != nil || !ok {
			b.Fatalf("check failed: %v %v", ok, err)
		}
	}
}
