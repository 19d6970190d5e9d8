package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/foliohq/folio/internal/metrics"
	"github.com/foliohq/folio/internal/model"
	"github.com/foliohq/folio/internal/ratelimit"
	"github.com/foliohq/folio/internal/service"
)

// ---------------------------------------------------------------------------
// RequestID middleware tests
// ---------------------------------------------------------------------------

func TestRequestIDGeneratesUUID(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetRequestID(r.Context()) == "" {
			t.Error("expected non-empty request ID in context")
		}
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/test", nil))

	if got := rr.Header().Get(RequestIDHeader); len(got) != 36 {
		t.Errorf("expected UUID-length request ID, got %q", got)
	}
}

func TestRequestIDPreservesClientID(t *testing.T) {
	clientID := "my-custom-trace-id-123"
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := GetRequestID(r.Context()); id != clientID {
			t.Errorf("expected context ID %q, got %q", clientID, id)
		}
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set(RequestIDHeader, clientID)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get(RequestIDHeader); got != clientID {
		t.Errorf("expected response X-Request-ID %q, got %q", clientID, got)
	}
}

func TestRequestIDReplacesOversizedID(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", maxRequestIDLen+1))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get(RequestIDHeader); len(got) != 36 {
		t.Errorf("expected generated id, got %q", got)
	}
}

func TestGetRequestIDEmptyContext(t *testing.T) {
	if id := GetRequestID(context.Background()); id != "" {
		t.Errorf("expected empty string from bare context, got %q", id)
	}
}

// ---------------------------------------------------------------------------
// Logger middleware tests
// ---------------------------------------------------------------------------

func TestLoggerIncludesAddedFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		AddLogFields(r.Context(), "admin_id", "a-1")
		w.WriteHeader(http.StatusNotFound)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/x", nil))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if line["level"] != "WARN" {
		t.Errorf("level = %v, want WARN", line["level"])
	}
	if line["admin_id"] != "a-1" {
		t.Errorf("admin_id = %v, want a-1", line["admin_id"])
	}
	if line["status"] != float64(404) {
		t.Errorf("status = %v, want 404", line["status"])
	}
}

// ---------------------------------------------------------------------------
// Gate tests
// ---------------------------------------------------------------------------

type stubAuth struct {
	tokens map[string]*model.Admin
	errs   map[string]error
}

func (s *stubAuth) Authenticate(_ context.Context, token string) (*model.Admin, error) {
	if token == "" {
		return nil, service.ErrTokenMissing
	}
	if err, ok := s.errs[token]; ok {
		return nil, err
	}
	if a, ok := s.tokens[token]; ok {
		return a, nil
	}
	return nil, service.ErrTokenInvalid
}

func newStubGate(t *testing.T) (*Gate, *metrics.Metrics) {
	t.Helper()
	m := metrics.New(nil)
	auth := &stubAuth{
		tokens: map[string]*model.Admin{"good": {ID: "admin-1", Email: "a@example.com"}},
		errs: map[string]error{
			"expired":   service.ErrTokenExpired,
			"malformed": service.ErrTokenMalformed,
			"ghost":     service.ErrIdentityNotFound,
			"boom":      errors.New("db down"),
		},
	}
	return NewGate(auth, "adminToken", m, slog.New(slog.DiscardHandler)), m
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) model.Envelope {
	t.Helper()
	var env model.Envelope
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func TestGateRequire(t *testing.T) {
	gate, m := newStubGate(t)
	handler := gate.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		admin := AdminFromContext(r.Context())
		if admin == nil || admin.ID != "admin-1" {
			t.Errorf("expected admin-1 in context, got %+v", admin)
		}
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name    string
		header  string
		cookie  string
		status  int
		message string
	}{
		{"bearer", "Bearer good", "", http.StatusOK, ""},
		{"cookie", "", "good", http.StatusOK, ""},
		{"header wins over cookie", "Bearer good", "expired", http.StatusOK, ""},
		{"missing", "", "", http.StatusUnauthorized, "Not authorized to access this route. Please login."},
		{"logged out cookie", "", LoggedOutCookieValue, http.StatusUnauthorized, "Not authorized to access this route. Please login."},
		{"non-bearer scheme", "Basic abc", "", http.StatusUnauthorized, "Not authorized to access this route. Please login."},
		{"empty bearer skips cookie", "Bearer ", "good", http.StatusUnauthorized, "Not authorized to access this route. Please login."},
		{"bare bearer skips cookie", "Bearer", "good", http.StatusUnauthorized, "Not authorized to access this route. Please login."},
		{"non-bearer scheme uses cookie", "Basic abc", "good", http.StatusOK, ""},
		{"expired", "Bearer expired", "", http.StatusUnauthorized, "Token has expired. Please login again."},
		{"malformed", "Bearer malformed", "", http.StatusUnauthorized, "Malformed token. Please login again."},
		{"invalid", "Bearer forged", "", http.StatusUnauthorized, "Invalid token. Please login again."},
		{"identity gone", "Bearer ghost", "", http.StatusUnauthorized, "Admin not found. Authorization failed."},
		{"store error", "Bearer boom", "", http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/admin/auth/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "adminToken", Value: tt.cookie})
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			if tt.message != "" {
				env := decodeEnvelope(t, rr)
				if env.Status != model.StatusError || env.Message != tt.message {
					t.Errorf("envelope = %+v, want message %q", env, tt.message)
				}
			}
		})
	}

	if got := testutil.ToFloat64(m.GateRejections.WithLabelValues("expired")); got != 1 {
		t.Errorf("expired rejections = %v, want 1", got)
	}
}

func TestGateOptional(t *testing.T) {
	gate, _ := newStubGate(t)
	var seen *model.Admin
	handler := gate.Optional(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = AdminFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	for _, tc := range []struct {
		header string
		wantID string
	}{
		{"", ""},
		{"Bearer expired", ""},
		{"Bearer ghost", ""},
		{"Bearer good", "admin-1"},
	} {
		seen = nil
		req := httptest.NewRequest("GET", "/api/projects", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("%q: status = %d, want 200", tc.header, rr.Code)
		}
		gotID := ""
		if seen != nil {
			gotID = seen.ID
		}
		if gotID != tc.wantID {
			t.Errorf("%q: admin = %q, want %q", tc.header, gotID, tc.wantID)
		}
	}
}

// ---------------------------------------------------------------------------
// Login rate limit tests
// ---------------------------------------------------------------------------

func loginRequest(email, remote string) *http.Request {
	body := `{"email":"` + email + `","password":"x"}`
	req := httptest.NewRequest("POST", "/api/admin/auth/login", strings.NewReader(body))
	req.RemoteAddr = remote
	return req
}

func TestLoginKey(t *testing.T) {
	tests := []struct {
		keyBy string
		email string
		want  string
	}{
		{KeyByEmail, " Alice@Example.com ", "email:alice@example.com"},
		{KeyByEmail, "", "ip:10.0.0.1"},
		{KeyByIP, "alice@example.com", "ip:10.0.0.1"},
		{KeyByEmailIP, "alice@example.com", "email:alice@example.com|ip:10.0.0.1"},
	}
	for _, tt := range tests {
		req := loginRequest(tt.email, "10.0.0.1:5555")
		req.Header.Set("X-Forwarded-For", "203.0.113.9")
		if got := LoginKey(req, tt.keyBy); got != tt.want {
			t.Errorf("LoginKey(%q, %q) = %q, want %q", tt.keyBy, tt.email, got, tt.want)
		}
		rest, _ := io.ReadAll(req.Body)
		if !strings.Contains(string(rest), `"password":"x"`) {
			t.Errorf("body not restored: %q", rest)
		}
	}
}

func TestLoginRateLimit(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := ratelimit.New(ratelimit.NewMemoryStore(), ratelimit.Config{}).
		WithClock(func() time.Time { return now })
	m := metrics.New(nil)

	handler := LoginRateLimit(limiter, KeyByEmail, m, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	for i := 1; i <= 5; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, loginRequest("alice@example.com", "10.0.0.1:1"))
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: status = %d, want 401", i, rr.Code)
		}
		now = now.Add(2 * time.Minute)
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, loginRequest("ALICE@example.com", "10.0.0.2:1"))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("6th attempt: status = %d, want 429", rr.Code)
	}
	if got := rr.Header().Get("Retry-After"); got != "300" {
		t.Errorf("Retry-After = %q, want 300", got)
	}
	env := decodeEnvelope(t, rr)
	if env.Message != "Too many login attempts. Please try again after 5 minutes." {
		t.Errorf("message = %q", env.Message)
	}
	if got := testutil.ToFloat64(m.LoginRateLimited); got != 1 {
		t.Errorf("rate limited counter = %v, want 1", got)
	}
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, errors.New("redis down")
}

func TestLoginRateLimitFailsOpen(t *testing.T) {
	handler := LoginRateLimit(failingLimiter{}, KeyByEmail, nil, slog.New(slog.DiscardHandler))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, loginRequest("a@example.com", "10.0.0.1:1"))
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}

func TestAPIRateLimit(t *testing.T) {
	handler := APIRateLimit(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/projects", nil)
		req.RemoteAddr = "192.0.2.7:1234"
		req.Header.Set("X-Real-IP", fmt.Sprintf("198.51.100.%d", i))
		handler.ServeHTTP(last, req)
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", last.Code)
	}
	env := decodeEnvelope(t, last)
	if env.Message != "Too many requests from this IP, please try again later." {
		t.Errorf("message = %q", env.Message)
	}
}
