package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/metrics/export/prometheus"
	"github.com/MrEthical07/goIdentity/middleware"
)

const opReportRead = "report.read"

type server struct {
	engine *goIdentity.Engine
	logger zerolog.Logger
}

func newRouter(engine *goIdentity.Engine, logger zerolog.Logger) http.Handler {
	s := &server{engine: engine, logger: logger}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.accessLog)

	r.Get("/healthz", s.health)
	r.Handle("/metrics", prometheus.NewCollector(engine).Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/login", s.login)
		r.Post("/refresh", s.refresh)
		r.Get("/captcha", s.captcha)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Guard(engine))
			r.Post("/logout", s.logout)
			r.Post("/logout-all", s.logoutAll)
			r.Get("/check", s.check)
			r.With(middleware.RequireOperation(engine, opReportRead)).Get("/reports", s.reports)
		})
	})
	return r
}

func (s *server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", chimw.GetReqID(r.Context())).
			Msg("request")
	})
}

type loginBody struct {
	TenantID      string `json:"tenant_id"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	SessionID     string `json:"session_id"`
	CaptchaID     string `json:"captcha_id"`
	CaptchaAnswer string `json:"captcha_answer"`
}

type refreshBody struct {
	RefreshToken string `json:"refresh_token"`
	SessionID    string `json:"session_id"`
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	SessionID        string `json:"session_id,omitempty"`
	AccessExpiresIn  int64  `json:"access_expires_in"`
	RefreshExpiresIn int64  `json:"refresh_expires_in"`
}

func newTokenResponse(p goIdentity.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		SessionID:        p.SessionID,
		AccessExpiresIn:  int64(p.AccessExpiresIn.Seconds()),
		RefreshExpiresIn: int64(p.RefreshExpiresIn.Seconds()),
	}
}

func (s *server) login(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request"})
		return
	}

	res, err := s.engine.Login(requestContext(r), goIdentity.LoginRequest{
		TenantID:      body.TenantID,
		Username:      body.Username,
		Password:      body.Password,
		SessionID:     body.SessionID,
		CaptchaID:     body.CaptchaID,
		CaptchaAnswer: body.CaptchaAnswer,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTokenResponse(res.TokenPair))
}

func (s *server) refresh(w http.ResponseWriter, r *http.Request) {
	var body refreshBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RefreshToken == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request"})
		return
	}

	pair, err := s.engine.Refresh(requestContext(r), body.RefreshToken, body.SessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTokenResponse(pair))
}

func (s *server) captcha(w http.ResponseWriter, r *http.Request) {
	ch, err := s.engine.IssueCaptcha(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": ch.ID, "image": ch.Image})
}

func (s *server) logout(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.BearerToken(r)
	if _, err := s.engine.Logout(r.Context(), token, r.URL.Query().Get("session_id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) logoutAll(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	n, err := s.engine.LogoutAll(r.Context(), p.TenantID, p.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"revoked": n})
}

func (s *server) check(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	q := r.URL.Query()
	allowed, err := s.engine.Check(r.Context(), p.TenantID, p.ID, q.Get("resource"), q.Get("action"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}

func (s *server) reports(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"tenant_id": p.TenantID, "subject": p.ID})
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	h := s.engine.Health(r.Context())
	status := http.StatusOK
	if !h.RedisAvailable || !h.PolicyLoaded {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"redis":            h.RedisAvailable,
		"redis_latency_ms": h.RedisLatency.Milliseconds(),
		"policy_loaded":    h.PolicyLoaded,
		"directory":        h.DirectoryBreaker,
		"audit_delivered":  h.AuditDelivered,
		"audit_dropped":    h.AuditDropped,
	})
}

func requestContext(r *http.Request) context.Context {
	return goIdentity.WithClientIP(r.Context(), middleware.ClientIP(r))
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, middleware.StatusCode(err), map[string]string{"error": goIdentity.ErrorCode(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
