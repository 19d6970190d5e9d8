package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/foliohq/folio/internal/metrics"
	"github.com/foliohq/folio/internal/model"
	"github.com/foliohq/folio/internal/server/middleware"
	"github.com/foliohq/folio/internal/service"
)

// logoutCookieTTL is how long the overwritten session cookie lives.
const logoutCookieTTL = 10 * time.Second

// CookieOptions configures the session cookie.
type CookieOptions struct {
	Name   string
	Secure bool
}

// AuthHandler serves /api/admin/auth.
type AuthHandler struct {
	auth    *service.AuthService
	cookie  CookieOptions
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewAuthHandler creates an AuthHandler. m may be nil.
func NewAuthHandler(auth *service.AuthService, cookie CookieOptions, m *metrics.Metrics, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if cookie.Name == "" {
		cookie.Name = "adminToken"
	}
	return &AuthHandler{auth: auth, cookie: cookie, metrics: m, logger: logger, now: time.Now}
}

// sessionData is the data payload of login and register responses.
type sessionData struct {
	Admin *model.Admin `json:"admin"`
	Token string       `json:"token"`
}

type adminData struct {
	Admin *model.Admin `json:"admin"`
}

type tokenData struct {
	Token string `json:"token"`
}

// Login checks credentials and starts a session.
// POST /api/admin/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in service.LoginInput
	if err := readJSON(r, &in, false); err != nil {
		h.countLogin(metrics.OutcomeValidation)
		writeServiceError(w, r, h.logger, err)
		return
	}

	sess, err := h.auth.Login(r.Context(), in)
	if err != nil {
		var verr *service.ValidationError
		switch {
		case errors.As(err, &verr):
			h.countLogin(metrics.OutcomeValidation)
		case errors.Is(err, service.ErrInvalidCredentials):
			h.countLogin(metrics.OutcomeInvalid)
			h.logger.Warn("admin login failed", "email", service.NormalizeEmail(in.Email))
		default:
			h.countLogin(metrics.OutcomeError)
		}
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.countLogin(metrics.OutcomeSuccess)
	h.countToken("login")
	h.logger.Info("admin logged in", "admin_id", sess.Admin.ID)
	h.setSessionCookie(w, sess)
	writeSuccess(w, http.StatusOK, "Login successful", sessionData{Admin: sess.Admin, Token: sess.Token})
}

// Register creates another admin. Requires an authenticated admin.
// POST /api/admin/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := readJSON(r, &in, true); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	sess, err := h.auth.Register(r.Context(), in)
	if err != nil {
		if errors.Is(err, service.ErrEmailInUse) {
			writeError(w, http.StatusBadRequest, "Admin already exists with this email")
			return
		}
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.countToken("register")
	h.logger.Info("admin registered",
		"admin_id", sess.Admin.ID,
		"by", callerID(r),
	)
	h.setSessionCookie(w, sess)
	writeSuccess(w, http.StatusCreated, "Admin registered successfully", sessionData{Admin: sess.Admin, Token: sess.Token})
}

// Me returns the caller's identity.
// GET /api/admin/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	admin, err := h.auth.GetSelf(r.Context(), callerID(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", adminData{Admin: admin})
}

// Logout overwrites the session cookie. The token itself stays valid until
// it expires.
// POST /api/admin/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.cookieFor(middleware.LoggedOutCookieValue, h.now().Add(logoutCookieTTL)))
	writeSuccess(w, http.StatusOK, "Logout successful", nil)
}

// Profile updates the caller's name and/or email.
// PUT /api/admin/auth/profile
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	var in service.ProfileInput
	if err := readJSON(r, &in, true); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	admin, err := h.auth.UpdateProfile(r.Context(), callerID(r), in)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Profile updated successfully", adminData{Admin: admin})
}

// Password changes the caller's password and returns a fresh token.
// PUT /api/admin/auth/password
func (h *AuthHandler) Password(w http.ResponseWriter, r *http.Request) {
	var in service.PasswordInput
	if err := readJSON(r, &in, true); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	sess, err := h.auth.UpdatePassword(r.Context(), callerID(r), in)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.countToken("password")
	h.logger.Info("admin password changed", "admin_id", sess.Admin.ID)
	h.setSessionCookie(w, sess)
	writeSuccess(w, http.StatusOK, "Password updated successfully", tokenData{Token: sess.Token})
}

// Verify confirms the token passed the gate.
// GET /api/admin/auth/verify
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, "Token is valid", adminData{Admin: middleware.AdminFromContext(r.Context())})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, sess *service.Session) {
	http.SetCookie(w, h.cookieFor(sess.Token, sess.ExpiresAt))
}

func (h *AuthHandler) cookieFor(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     h.cookie.Name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (h *AuthHandler) countLogin(outcome string) {
	if h.metrics != nil {
		h.metrics.LoginAttempts.WithLabelValues(outcome).Inc()
	}
}

func (h *AuthHandler) countToken(reason string) {
	if h.metrics != nil {
		h.metrics.TokensIssued.WithLabelValues(reason).Inc()
	}
}

// callerID returns the gate-resolved admin id, or "" when unauthenticated.
func callerID(r *http.Request) string {
	if a := middleware.AdminFromContext(r.Context()); a != nil {
		return a.ID
	}
	return ""
}
