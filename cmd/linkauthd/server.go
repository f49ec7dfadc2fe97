package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/MrEthical07/linkauth"
	"github.com/MrEthical07/linkauth/metrics/export/prometheus"
	"github.com/MrEthical07/linkauth/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type server struct {
	engine *linkauth.Engine
	logger *slog.Logger
}

func newRouter(engine *linkauth.Engine, s settings, logger *slog.Logger) http.Handler {
	srv := &server{engine: engine, logger: logger}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	if s.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.RequestInfo)

	r.Get("/healthz", srv.health)
	r.Handle("/metrics", prometheus.New(engine).Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", srv.register)
		r.Post("/login", srv.login)
		r.Get("/email-available", srv.emailAvailable)
		r.Get("/oauth/{provider}/url", srv.oauthURL)
		r.Post("/oauth/{provider}/callback", srv.oauthCallback)

		r.With(middleware.Guard(engine, middleware.WithLogger(logger))).Post("/logout", srv.logout)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Guard(engine, middleware.WithLogger(logger)))

		r.Get("/me", srv.getProfile)
		r.Patch("/me", srv.updateProfile)
		r.Delete("/me", srv.deleteAccount)
		r.Post("/me/premium", srv.upgrade)
		r.Post("/me/password", srv.changePassword)
		r.Post("/me/2fa/setup", srv.setup2FA)
		r.Post("/me/2fa/confirm", srv.confirm2FA)
		r.Post("/me/2fa/disable", srv.disable2FA)

		r.Get("/sessions", srv.listSessions)
		r.Get("/sessions/current", srv.currentSession)
		r.Delete("/sessions/{id}", srv.revokeSession)
		r.Post("/sessions/revoke-others", srv.revokeOthers)
	})
	return r
}

/*
====================================
WIRE TYPES
====================================
*/

type credentialsRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	TOTPCode  string `json:"totp_code,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type callbackRequest struct {
	Code        string `json:"code"`
	RedirectURI string `json:"redirect_uri,omitempty"`
	TOTPCode    string `json:"totp_code,omitempty"`
}

type profileRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	AvatarURL string `json:"avatar_url"`
}

type passwordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	IsOAuthUser     bool   `json:"is_oauth_user"`
}

type codeRequest struct {
	Code string `json:"code"`
}

type authResponse struct {
	RequiresTwoFactor bool       `json:"requires_2fa"`
	ID                int64      `json:"id"`
	Email             string     `json:"email"`
	Name              string     `json:"name"`
	FirstName         string     `json:"first_name,omitempty"`
	LastName          string     `json:"last_name,omitempty"`
	AvatarURL         string     `json:"avatar_url,omitempty"`
	IsPremium         bool       `json:"is_premium"`
	AuthProvider      string     `json:"auth_provider,omitempty"`
	TwoFactorEnabled  bool       `json:"two_factor_enabled"`
	IsNewUser         bool       `json:"is_new_user,omitempty"`
	Token             string     `json:"token,omitempty"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
}

func toAuthResponse(res linkauth.AuthResult) authResponse {
	out := authResponse{
		RequiresTwoFactor: res.RequiresTwoFactor,
		ID:                res.ID,
		Email:             res.Email,
		Name:              res.Name,
	}
	if res.RequiresTwoFactor {
		return out
	}
	out.FirstName = res.FirstName
	out.LastName = res.LastName
	out.AvatarURL = res.AvatarURL
	out.IsPremium = res.IsPremium
	out.AuthProvider = res.AuthProvider.String()
	out.TwoFactorEnabled = res.TwoFactorEnabled
	out.IsNewUser = res.IsNewUser
	out.Token = res.Token
	if !res.ExpiresAt.IsZero() {
		exp := res.ExpiresAt
		out.ExpiresAt = &exp
	}
	return out
}

type profileResponse struct {
	ID               int64      `json:"id"`
	Email            string     `json:"email"`
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name"`
	AvatarURL        string     `json:"avatar_url"`
	IsPremium        bool       `json:"is_premium"`
	AuthProvider     string     `json:"auth_provider"`
	TwoFactorEnabled bool       `json:"two_factor_enabled"`
	CreatedAt        time.Time  `json:"created_at"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
}

func toProfileResponse(p linkauth.UserProfile) profileResponse {
	out := profileResponse{
		ID:               p.ID,
		Email:            p.Email,
		FirstName:        p.FirstName,
		LastName:         p.LastName,
		AvatarURL:        p.AvatarURL,
		IsPremium:        p.IsPremium,
		AuthProvider:     p.AuthProvider.String(),
		TwoFactorEnabled: p.TwoFactorEnabled,
		CreatedAt:        p.CreatedAt,
	}
	if !p.LastLoginAt.IsZero() {
		last := p.LastLoginAt
		out.LastLoginAt = &last
	}
	return out
}

type sessionResponse struct {
	ID             int64     `json:"id"`
	DeviceInfo     string    `json:"device_info"`
	IPAddress      string    `json:"ip_address"`
	Location       string    `json:"location"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	IsCurrent      bool      `json:"is_current"`
}

func toSessionResponse(s linkauth.SessionInfo) sessionResponse {
	return sessionResponse{
		ID:             s.ID,
		DeviceInfo:     s.DeviceInfo,
		IPAddress:      s.IPAddress,
		Location:       s.Location,
		CreatedAt:      s.CreatedAt,
		LastActivityAt: s.LastActivityAt,
		IsCurrent:      s.IsCurrent,
	}
}

/*
====================================
PUBLIC HANDLERS
====================================
*/

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	h := s.engine.Health(r.Context())
	status := http.StatusOK
	if !h.OK() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"ok":       h.OK(),
		"users":    backendView(h.Users),
		"sessions": backendView(h.Sessions),
	})
}

func backendView(b linkauth.BackendHealth) map[string]any {
	out := map[string]any{"available": b.Available, "latency_ms": b.Latency.Milliseconds()}
	if b.Error != "" {
		out["error"] = b.Error
	}
	return out
}

func (s *server) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.engine.Register(r.Context(), req.Email, req.Password, linkauth.Profile{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAuthResponse(res))
}

func (s *server) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.engine.Login(r.Context(), req.Email, req.Password, req.TOTPCode)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuthResponse(res))
}

func (s *server) emailAvailable(w http.ResponseWriter, r *http.Request) {
	ok, err := s.engine.IsEmailAvailable(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"available": ok})
}

// oauthURL returns the provider consent URL with a fresh state value. The
// client keeps the state and compares it on the callback.
func (s *server) oauthURL(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	u, err := s.engine.AuthorizationURL(chi.URLParam(r, "provider"), state)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": u, "state": state})
}

func (s *server) oauthCallback(w http.ResponseWriter, r *http.Request) {
	var req callbackRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.engine.LoginWithProvider(r.Context(), chi.URLParam(r, "provider"), req.Code, req.RedirectURI, req.TOTPCode)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuthResponse(res))
}

/*
====================================
AUTHENTICATED HANDLERS
====================================
*/

func caller(r *http.Request) (linkauth.Principal, string) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	token, _ := middleware.TokenFromContext(r.Context())
	return p, token
}

func (s *server) logout(w http.ResponseWriter, r *http.Request) {
	p, token := caller(r)
	if err := s.engine.Logout(r.Context(), p.UserID, token); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (s *server) getProfile(w http.ResponseWriter, r *http.Request) {
	p, _ := caller(r)
	profile, err := s.engine.GetProfile(r.Context(), p.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}

func (s *server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !decode(w, r, &req) {
		return
	}
	p, _ := caller(r)
	profile, err := s.engine.UpdateProfile(r.Context(), p.UserID, linkauth.Profile(req))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}

func (s *server) deleteAccount(w http.ResponseWriter, r *http.Request) {
	p, _ := caller(r)
	if err := s.engine.DeleteAccount(r.Context(), p.UserID); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) upgrade(w http.ResponseWriter, r *http.Request) {
	p, _ := caller(r)
	profile, err := s.engine.UpgradeToPremium(r.Context(), p.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}

func (s *server) changePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if !decode(w, r, &req) {
		return
	}
	p, _ := caller(r)
	if err := s.engine.ChangePassword(r.Context(), p.UserID, req.CurrentPassword, req.NewPassword, req.IsOAuthUser); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

func (s *server) setup2FA(w http.ResponseWriter, r *http.Request) {
	p, _ := caller(r)
	setup, err := s.engine.Setup2FA(r.Context(), p.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"secret":           setup.Secret,
		"provisioning_uri": setup.ProvisioningURI,
		"manual_key":       setup.ManualKey,
	})
}

func (s *server) confirm2FA(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !decode(w, r, &req) {
		return
	}
	p, _ := caller(r)
	already, err := s.engine.Confirm2FA(r.Context(), p.UserID, req.Code)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"two_factor_enabled": true, "already_enabled": already})
}

func (s *server) disable2FA(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !decode(w, r, &req) {
		return
	}
	p, _ := caller(r)
	if err := s.engine.Disable2FA(r.Context(), p.UserID, req.Code); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"two_factor_enabled": false})
}

func (s *server) listSessions(w http.ResponseWriter, r *http.Request) {
	p, token := caller(r)
	sessions, err := s.engine.ListSessions(r.Context(), p.UserID, token)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]sessionResponse, len(sessions))
	for i, sess := range sessions {
		out[i] = toSessionResponse(sess)
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (s *server) currentSession(w http.ResponseWriter, r *http.Request) {
	_, token := caller(r)
	sess, err := s.engine.CurrentSession(r.Context(), token)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

func (s *server) revokeSession(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid session id")
		return
	}
	p, token := caller(r)
	if err := s.engine.RevokeSession(r.Context(), p.UserID, id, token); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) revokeOthers(w http.ResponseWriter, r *http.Request) {
	p, token := caller(r)
	n, err := s.engine.RevokeAllExceptCurrent(r.Context(), p.UserID, token)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"revoked": n})
}

/*
====================================
RESPONSE HELPERS
====================================
*/

func statusFor(err error) int {
	switch {
	case errors.Is(err, linkauth.ErrProviderNotConfigured):
		return http.StatusNotFound
	case errors.Is(err, linkauth.ErrEngineNotReady):
		return http.StatusServiceUnavailable
	}
	switch linkauth.KindOf(err) {
	case linkauth.KindValidation:
		return http.StatusBadRequest
	case linkauth.KindConflict:
		return http.StatusConflict
	case linkauth.KindAuthentication:
		return http.StatusUnauthorized
	case linkauth.KindAuthorization:
		return http.StatusForbidden
	case linkauth.KindNotFound:
		return http.StatusNotFound
	case linkauth.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the sentinel's message, never the wrapped cause. Server-side
// failures are logged with the full chain.
func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	msg := "internal error"
	var e *linkauth.Error
	if errors.As(err, &e) && status != http.StatusInternalServerError {
		msg = e.Error()
	}
	writeMessage(w, status, msg)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
