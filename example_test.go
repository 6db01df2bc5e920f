package goIdentity_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/directory"
)

// ExampleNew builds an engine with a Redis client and an in-memory directory.
func ExampleNew() {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})

	cfg := goIdentity.DefaultConfig()
	cfg.JWT.Access.Secret = []byte("replace-with-32-bytes-of-entropy!")
	cfg.JWT.Refresh.Secret = []byte("and-a-different-32-byte-secret!!")

	engine, err := goIdentity.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithDirectory(directory.NewMemory(nil)).
		WithOperation("report.read", "report", "read").
		Build()
	if err != nil {
		return
	}
	defer engine.Close()
}

// ExampleEngine_Login shows mapping login failures to caller-facing codes.
func ExampleEngine_Login() {
	var engine *goIdentity.Engine
	_, err := engine.Login(context.Background(), goIdentity.LoginRequest{
		TenantID: "acme",
		Username: "alice",
		Password: "correct-horse-battery",
	})
	switch {
	case errors.Is(err, goIdentity.ErrCaptchaRequired):
		// fetch a challenge with IssueCaptcha and retry
	case err != nil:
		fmt.Println(goIdentity.ErrorCode(err))
	}
}

// ExampleEngine_Check shows a permission check after granting a role.
func ExampleEngine_Check() {
	var engine *goIdentity.Engine
	ctx := context.Background()

	_, _ = engine.AddPolicy(ctx, "acme", "editor", "doc", "write")
	_, _ = engine.AddRoleForUser(ctx, "acme", "u1", "editor")

	allowed, err := engine.Check(ctx, "acme", "u1", "doc", "write")
	_, _ = allowed, err
}
