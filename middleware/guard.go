package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/permission"
)

// Validator is the part of goIdentity.Engine Guard needs.
type Validator interface {
	ValidateAccess(ctx context.Context, token string) (*goIdentity.Principal, error)
}

// Authorizer is the part of goIdentity.Engine the permission guards need.
type Authorizer interface {
	Check(ctx context.Context, tenantID, subject, resource, action string) (bool, error)
	Registry() *permission.Registry
}

type principalContextKey struct{}

// PrincipalFromContext returns the principal stored by [Guard].
func PrincipalFromContext(ctx context.Context) (*goIdentity.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*goIdentity.Principal)
	return p, ok && p != nil
}

// Guard rejects requests without a valid bearer access token. The client IP
// is attached for audit events before validation runs.
func Guard(v Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				writeError(w, goIdentity.ErrEngineNotReady)
				return
			}

			token, ok := BearerToken(r)
			if !ok {
				writeError(w, goIdentity.ErrTokenInvalid)
				return
			}

			ctx := goIdentity.WithClientIP(r.Context(), ClientIP(r))
			p, err := v.ValidateAccess(ctx, token)
			if err != nil {
				writeError(w, err)
				return
			}

			ctx = context.WithValue(ctx, principalContextKey{}, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireOperation allows the request when the principal stored by [Guard]
// holds the permission operation was registered with. Operations missing
// from the registry are refused with 500 so a typo never opens a route.
func RequireOperation(a Authorizer, operation string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a == nil {
				writeError(w, goIdentity.ErrEngineNotReady)
				return
			}
			req, ok := a.Registry().Requirement(operation)
			if !ok {
				writeError(w, goIdentity.ErrUnknownOperation)
				return
			}
			authorize(a, req.Resource, req.Action, next, w, r)
		})
	}
}

// Require allows the request when the principal stored by [Guard] may
// perform action on resource in its own tenant.
func Require(a Authorizer, resource, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a == nil {
				writeError(w, goIdentity.ErrEngineNotReady)
				return
			}
			authorize(a, resource, action, next, w, r)
		})
	}
}

func authorize(a Authorizer, resource, action string, next http.Handler, w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, goIdentity.ErrTokenInvalid)
		return
	}

	allowed, err := a.Check(r.Context(), p.TenantID, p.ID, resource, action)
	if err != nil {
		writeError(w, err)
		return
	}
	if !allowed {
		writeError(w, goIdentity.ErrPermissionDenied)
		return
	}
	next.ServeHTTP(w, r)
}

// StatusCode maps an Engine error to an HTTP status.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, goIdentity.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, goIdentity.ErrTooManyFailedAttempts):
		return http.StatusTooManyRequests
	case errors.Is(err, goIdentity.ErrServiceUnavailable),
		errors.Is(err, goIdentity.ErrInvalidationIncomplete):
		return http.StatusServiceUnavailable
	case errors.Is(err, goIdentity.ErrCaptchaRequired),
		errors.Is(err, goIdentity.ErrCaptchaInvalid),
		errors.Is(err, goIdentity.ErrSessionIDRequired),
		errors.Is(err, goIdentity.ErrInvalidIdentifier):
		return http.StatusBadRequest
	case errors.Is(err, goIdentity.ErrCaptchaDisabled):
		return http.StatusNotFound
	case errors.Is(err, goIdentity.ErrInvalidCredentials),
		errors.Is(err, goIdentity.ErrAccountInactive),
		errors.Is(err, goIdentity.ErrTokenInvalid),
		errors.Is(err, goIdentity.ErrTokenBlacklisted),
		errors.Is(err, goIdentity.ErrRefreshInvalidated):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, goIdentity.ErrorCode(err), StatusCode(err))
}

// BearerToken extracts the token of an "Authorization: Bearer" header. The
// scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, bool) {
	const bearer = "Bearer "
	value := r.Header.Get("Authorization")
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

// ClientIP returns the host part of the request's remote address.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
