package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/httprate"

	"github.com/foliohq/folio/internal/metrics"
	"github.com/foliohq/folio/internal/ratelimit"
)

// Login limiter key modes.
const (
	KeyByEmail   = "email"
	KeyByIP      = "ip"
	KeyByEmailIP = "email+ip"
)

// maxPeekBytes bounds how much of a login body is buffered for key lookup.
const maxPeekBytes = 64 << 10

// APIRateLimit limits requests per client IP across the whole API. The key
// is RemoteAddr, which only reflects forwarded headers when the server runs
// chi's RealIP middleware.
func APIRateLimit(requests int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeFailure(w, http.StatusTooManyRequests,
				"Too many requests from this IP, please try again later.")
		}),
	)
}

// LoginLimiter is the subset of *ratelimit.Limiter used by LoginRateLimit.
type LoginLimiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Decision, error)
}

// LoginRateLimit throttles login attempts per key. The key is derived from
// the submitted email and/or the client address according to keyBy. Store
// failures let the request through.
func LoginRateLimit(limiter LoginLimiter, keyBy string, m *metrics.Metrics, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := LoginKey(r, keyBy)

			d, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Error("login limiter unavailable, allowing attempt",
					"error", err,
					"request_id", GetRequestID(r.Context()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if !d.Allowed {
				if m != nil {
					m.LoginRateLimited.Inc()
				}
				AddLogFields(r.Context(), "limiter_key", key)
				secs := int(math.Ceil(d.RetryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				mins := (secs + 59) / 60
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				writeFailure(w, http.StatusTooManyRequests,
					fmt.Sprintf("Too many login attempts. Please try again after %d minutes.", mins))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LoginKey derives the limiter key for a login request. The body is read
// and restored so the handler can decode it again.
func LoginKey(r *http.Request, keyBy string) string {
	ip := "ip:" + clientIP(r)
	if keyBy == KeyByIP {
		return ip
	}

	email := peekEmail(r)
	switch {
	case email == "":
		return ip
	case keyBy == KeyByEmailIP:
		return "email:" + email + "|" + ip
	default:
		return "email:" + email
	}
}

func peekEmail(r *http.Request) string {
	if r.Body == nil {
		return ""
	}
	orig := r.Body
	buf, err := io.ReadAll(io.LimitReader(orig, maxPeekBytes))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(buf), orig), orig}
	if err != nil {
		return ""
	}

	var body struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(buf, &body) != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(body.Email))
}

// clientIP strips the port from RemoteAddr. Forwarded headers are never read
// here; with a trusted proxy, RealIP has already rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
