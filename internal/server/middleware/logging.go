package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// logFields collects attributes added by inner middleware and handlers so
// the access log line can include them.
type logFields struct {
	mu    sync.Mutex
	attrs []any
}

// AddLogFields appends key/value pairs to the access log line of the
// current request. It is a no-op outside a Logger chain.
func AddLogFields(ctx context.Context, args ...any) {
	lf, ok := ctx.Value(logFieldsKey).(*logFields)
	if !ok {
		return
	}
	lf.mu.Lock()
	lf.attrs = append(lf.attrs, args...)
	lf.mu.Unlock()
}

// Logger writes one structured line per request. 4xx responses log at Warn
// and 5xx at Error.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			lf := &logFields{}
			ctx := context.WithValue(r.Context(), logFieldsKey, lf)

			next.ServeHTTP(rec, r.WithContext(ctx))

			level := slog.LevelInfo
			switch {
			case rec.status >= 500:
				level = slog.LevelError
			case rec.status >= 400:
				level = slog.LevelWarn
			}

			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", float64(time.Since(start).Microseconds()) / 1000.0,
				"bytes", rec.bytes,
				"request_id", GetRequestID(r.Context()),
				"remote_addr", r.RemoteAddr,
			}
			lf.mu.Lock()
			args = append(args, lf.attrs...)
			lf.mu.Unlock()

			logger.Log(r.Context(), level, "request", args...)
		})
	}
}

// statusRecorder captures the status code and body size.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (w *statusRecorder) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
