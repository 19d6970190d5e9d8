package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/foliohq/folio/internal/metrics"
	"github.com/foliohq/folio/internal/model"
	"github.com/foliohq/folio/internal/service"
)

// LoggedOutCookieValue is written over the session cookie on logout.
const LoggedOutCookieValue = "none"

// Authenticator resolves a raw token to an admin. *service.AuthService
// satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.Admin, error)
}

// gateFailure is the client-facing message and metric label for one
// rejection cause.
type gateFailure struct {
	reason  string
	message string
}

var gateFailures = map[error]gateFailure{
	service.ErrTokenMissing:     {"missing", "Not authorized to access this route. Please login."},
	service.ErrTokenExpired:     {"expired", "Token has expired. Please login again."},
	service.ErrTokenMalformed:   {"malformed", "Malformed token. Please login again."},
	service.ErrTokenInvalid:     {"invalid", "Invalid token. Please login again."},
	service.ErrIdentityNotFound: {"not_found", "Admin not found. Authorization failed."},
}

// Gate resolves the caller's admin identity from a bearer header or the
// session cookie.
type Gate struct {
	auth       Authenticator
	cookieName string
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewGate returns a Gate reading tokens from the Authorization header and
// then from cookieName. m and logger may be nil.
func NewGate(auth Authenticator, cookieName string, m *metrics.Metrics, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{auth: auth, cookieName: cookieName, metrics: m, logger: logger}
}

// Require rejects the request with 401 unless a valid token resolves to an
// existing admin.
func (g *Gate) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		admin, err := g.auth.Authenticate(r.Context(), TokenFromRequest(r, g.cookieName))
		if err != nil {
			g.reject(w, r, err)
			return
		}
		AddLogFields(r.Context(), "admin_id", admin.ID)
		next.ServeHTTP(w, r.WithContext(WithAdmin(r.Context(), admin)))
	})
}

// Optional attaches the admin when the token resolves and otherwise lets the
// request through anonymously.
func (g *Gate) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := TokenFromRequest(r, g.cookieName)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		admin, err := g.auth.Authenticate(r.Context(), token)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		AddLogFields(r.Context(), "admin_id", admin.ID)
		next.ServeHTTP(w, r.WithContext(WithAdmin(r.Context(), admin)))
	})
}

func (g *Gate) reject(w http.ResponseWriter, r *http.Request, err error) {
	for sentinel, f := range gateFailures {
		if errors.Is(err, sentinel) {
			g.count(f.reason)
			writeFailure(w, http.StatusUnauthorized, f.message)
			return
		}
	}

	g.count("error")
	g.logger.Error("admin gate failed",
		"error", err,
		"request_id", GetRequestID(r.Context()),
	)
	writeFailure(w, http.StatusInternalServerError, "Internal server error")
}

func (g *Gate) count(reason string) {
	if g.metrics != nil {
		g.metrics.GateRejections.WithLabelValues(reason).Inc()
	}
}

// TokenFromRequest returns the bearer token, falling back to the session
// cookie only when no Bearer header is sent. An empty Bearer header and the
// logged-out sentinel both count as no token.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if h := r.Header.Get("Authorization"); h == "Bearer" || strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer"))
	}
	if cookieName == "" {
		return ""
	}
	c, err := r.Cookie(cookieName)
	if err != nil || c.Value == LoggedOutCookieValue {
		return ""
	}
	return c.Value
}

// WithAdmin returns ctx carrying admin.
func WithAdmin(ctx context.Context, admin *model.Admin) context.Context {
	return context.WithValue(ctx, adminKey, admin)
}

// AdminFromContext returns the admin attached by the gate, or nil for
// anonymous requests.
func AdminFromContext(ctx context.Context) *model.Admin {
	if a, ok := ctx.Value(adminKey).(*model.Admin); ok {
		return a
	}
	return nil
}
