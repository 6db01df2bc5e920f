package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/permission"
)

type fakeEngine struct {
	principal *goIdentity.Principal
	validErr  error
	allowed   bool
	checkErr  error
	registry  *permission.Registry

	lastCheck string
}

func (f *fakeEngine) ValidateAccess(_ context.Context, token string) (*goIdentity.Principal, error) {
	if token != "good" {
		return nil, goIdentity.ErrTokenInvalid
	}
	if f.validErr != nil {
		return nil, f.validErr
	}
	return f.principal, nil
}

func (f *fakeEngine) Check(_ context.Context, tenantID, subject, resource, action string) (bool, error) {
	f.lastCheck = strings.Join([]string{tenantID, subject, resource, action}, "|")
	return f.allowed, f.checkErr
}

func (f *fakeEngine) Registry() *permission.Registry {
	return f.registry
}

func newFake() *fakeEngine {
	reg := permission.NewRegistry()
	_ = reg.Register("doc.read", "doc", "read")
	reg.Freeze()
	return &fakeEngine{
		principal: &goIdentity.Principal{ID: "u1", TenantID: "acme", Active: true},
		registry:  reg,
	}
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, "no principal", http.StatusInternalServerError)
		return
	}
	fmt.Fprint(w, p.ID)
})

func serve(h http.Handler, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGuard(t *testing.T) {
	f := newFake()
	h := Guard(f)(okHandler)

	tests := []struct {
		name   string
		auth   string
		status int
		body   string
	}{
		{"missing header", "", http.StatusUnauthorized, "token_invalid"},
		{"wrong scheme", "Basic good", http.StatusUnauthorized, "token_invalid"},
		{"empty token", "Bearer   ", http.StatusUnauthorized, "token_invalid"},
		{"bad token", "Bearer bad", http.StatusUnauthorized, "token_invalid"},
		{"good token", "Bearer good", http.StatusOK, "u1"},
		{"lowercase scheme", "bearer good", http.StatusOK, "u1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(h, tc.auth)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			if got := strings.TrimSpace(rec.Body.String()); got != tc.body {
				t.Fatalf("expected body %q, got %q", tc.body, got)
			}
		})
	}
}

func TestGuardMapsEngineErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{goIdentity.ErrTokenBlacklisted, http.StatusUnauthorized},
		{goIdentity.ErrAccountInactive, http.StatusUnauthorized},
		{fmt.Errorf("%w: redis down", goIdentity.ErrServiceUnavailable), http.StatusServiceUnavailable},
		{goIdentity.ErrEngineNotReady, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		f := newFake()
		f.validErr = tc.err
		rec := serve(Guard(f)(okHandler), "Bearer good")
		if rec.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, rec.Code)
		}
	}
}

func TestGuardNilValidator(t *testing.T) {
	rec := serve(Guard(nil)(okHandler), "Bearer good")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestRequireOperation(t *testing.T) {
	f := newFake()

	f.allowed = false
	rec := serve(Guard(f)(RequireOperation(f, "doc.read")(okHandler)), "Bearer good")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if f.lastCheck != "acme|u1|doc|read" {
		t.Fatalf("unexpected check %q", f.lastCheck)
	}

	f.allowed = true
	rec = serve(Guard(f)(RequireOperation(f, "doc.read")(okHandler)), "Bearer good")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = serve(Guard(f)(RequireOperation(f, "doc.delete")(okHandler)), "Bearer good")
	if rec.Code != http.StatusInternalServerError || strings.TrimSpace(rec.Body.String()) != "unknown_operation" {
		t.Fatalf("expected unknown operation refusal, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestRequireWithoutGuard(t *testing.T) {
	f := newFake()
	f.allowed = true
	rec := serve(Require(f, "doc", "read")(okHandler), "Bearer good")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a guarded principal, got %d", rec.Code)
	}
}

func TestRequireCheckFailureIsUnavailable(t *testing.T) {
	f := newFake()
	f.checkErr = fmt.Errorf("%w: timeout", goIdentity.ErrServiceUnavailable)
	rec := serve(Guard(f)(Require(f, "doc", "read")(okHandler)), "Bearer good")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestStatusCode(t *testing.T) {
	if StatusCode(nil) != http.StatusOK {
		t.Fatal("nil must map to 200")
	}
	if StatusCode(goIdentity.ErrTooManyFailedAttempts) != http.StatusTooManyRequests {
		t.Fatal("lockout must map to 429")
	}
	if StatusCode(goIdentity.ErrCaptchaRequired) != http.StatusBadRequest {
		t.Fatal("captcha required must map to 400")
	}
}
