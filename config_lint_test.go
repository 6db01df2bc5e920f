package goIdentity

import (
	"slices"
	"strings"
	"testing"
	"time"
)

func TestLintDefaults(t *testing.T) {
	cfg := testConfig()
	cfg.Password = DefaultConfig().Password
	codes := cfg.Lint().Codes()

	for _, want := range []string{"signing_hs256", "shared_issuer", "captcha_disabled", "audit_disabled"} {
		if !slices.Contains(codes, want) {
			t.Fatalf("expected %s in %v", want, codes)
		}
	}
	if ws := cfg.Lint().BySeverity(LintWarn); len(ws) != 0 {
		t.Fatalf("defaults should not warn, got %v", ws.Codes())
	}
}

func TestLintFlagsRiskySettings(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.Leeway = 90 * time.Second
	cfg.JWT.Access.TTL = 2 * time.Hour
	cfg.Throttle.MaxLoginAttempts = 50
	cfg.Permission.InvalidationRetries = 0
	cfg.Password.Time = 1

	ws := cfg.Lint()
	codes := ws.Codes()
	for _, want := range []string{"leeway_large", "access_ttl_long", "throttle_permissive", "invalidation_no_retry", "argon2_params_low"} {
		if !slices.Contains(codes, want) {
			t.Fatalf("expected %s in %v", want, codes)
		}
	}

	high := ws.BySeverity(LintHigh)
	if len(high) != 1 || high[0].Code != "argon2_params_low" {
		t.Fatalf("expected only argon2_params_low at HIGH, got %v", high.Codes())
	}

	err := ws.AsError(LintHigh)
	if err == nil || !strings.Contains(err.Error(), "[HIGH] argon2_params_low") {
		t.Fatalf("unexpected AsError result %v", err)
	}
	if ws.BySeverity(LintHigh+1) != nil {
		t.Fatal("expected nothing above HIGH")
	}
}

func TestLintSeverityString(t *testing.T) {
	if LintInfo.String() != "INFO" || LintWarn.String() != "WARN" || LintHigh.String() != "HIGH" {
		t.Fatal("unexpected severity names")
	}
	if LintSeverity(9).String() != "LintSeverity(9)" {
		t.Fatalf("unexpected fallback %q", LintSeverity(9).String())
	}
}
