// Command identityd serves the goIdentity engine over HTTP.
//
// Engine settings come from an optional YAML file plus GOIDENTITY_*
// environment overrides (see goIdentity.LoadConfig). Access and refresh
// secrets are required:
//
//	GOIDENTITY_JWT__ACCESS__SECRET=... GOIDENTITY_JWT__REFRESH__SECRET=... \
//	  go run ./cmd/identityd -seed-user alice -seed-password correct-horse-battery
//
// Without -redis-addr an in-process miniredis is used. Without
// -postgres-dsn principals live in memory and -seed-user creates one.
//
//	POST /v1/login       {"tenant_id","username","password","session_id","captcha_id","captcha_answer"}
//	POST /v1/refresh     {"refresh_token","session_id"}
//	GET  /v1/captcha
//	POST /v1/logout      bearer; ?session_id=
//	POST /v1/logout-all  bearer
//	GET  /v1/check       bearer; ?resource=&action=
//	GET  /v1/reports     bearer; requires report:read
//	GET  /healthz
//	GET  /metrics
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/directory"
)

type options struct {
	configPath   string
	addr         string
	redisAddr    string
	postgresDSN  string
	tenant       string
	seedUser     string
	seedPassword string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "YAML config file; empty uses defaults and environment only")
	flag.StringVar(&opts.addr, "addr", ":8080", "listen address")
	flag.StringVar(&opts.redisAddr, "redis-addr", os.Getenv("REDIS_ADDR"), "redis address; empty starts miniredis")
	flag.StringVar(&opts.postgresDSN, "postgres-dsn", os.Getenv("POSTGRES_DSN"), "principal directory DSN; empty uses an in-memory directory")
	flag.StringVar(&opts.tenant, "tenant", "default", "tenant of the seeded principal")
	flag.StringVar(&opts.seedUser, "seed-user", "", "username to create in the in-memory directory")
	flag.StringVar(&opts.seedPassword, "seed-password", "", "password of the seeded principal")
	flag.Parse()

	logger := zerolog.New(os.Stderr).With().Timestamp().Str("service", "identityd").Logger()

	if err := run(opts, logger); err != nil {
		logger.Fatal().Err(err).Msg("identityd stopped")
	}
}

func run(opts options, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := goIdentity.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}

	rdb, closeRedis, err := openRedis(opts.redisAddr, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	dir, memory, err := openDirectory(ctx, opts.postgresDSN)
	if err != nil {
		return err
	}

	engine, err := goIdentity.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithDirectory(dir).
		WithLogger(logger).
		WithOperation(opReportRead, "report", "read").
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	if memory != nil && opts.seedUser != "" {
		if err := seed(ctx, engine, memory, opts); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:              opts.addr,
		Handler:           newRouter(engine, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", opts.addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openRedis(addr string, logger zerolog.Logger) (redis.UniversalClient, func(), error) {
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		logger.Info().Str("addr", addr).Msg("using redis")
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	logger.Warn().Str("addr", mr.Addr()).Msg("no redis configured, using miniredis")
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

// openDirectory returns the Memory directory as well when it is the one in use.
func openDirectory(ctx context.Context, dsn string) (goIdentity.PrincipalDirectory, *directory.Memory, error) {
	if dsn == "" {
		m := directory.NewMemory(nil)
		return m, m, nil
	}

	db, err := directory.OpenPostgres(dsn)
	if err != nil {
		return nil, nil, err
	}
	g := directory.NewGorm(db)
	if err := g.Migrate(ctx); err != nil {
		return nil, nil, err
	}
	return g, nil, nil
}

// seed creates one principal with the "member" role and grants members
// report:read.
func seed(ctx context.Context, engine *goIdentity.Engine, m *directory.Memory, opts options) error {
	hash, err := engine.HashPassword(opts.seedPassword)
	if err != nil {
		return err
	}
	id, err := m.Put(directory.Record{
		Principal: directory.Principal{
			TenantID: opts.tenant,
			Username: opts.seedUser,
			Roles:    []string{"member"},
			Active:   true,
		},
		PasswordHash: hash,
	})
	if err != nil {
		return err
	}
	if _, err := engine.AddPolicy(ctx, opts.tenant, "member", "report", "read"); err != nil {
		return err
	}
	_, err = engine.AddRoleForUser(ctx, opts.tenant, id, "member")
	return err
}
