// Package metrics defines the prometheus collectors for authentication
// events.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Login outcomes.
const (
	OutcomeSuccess    = "success"
	OutcomeInvalid    = "invalid"
	OutcomeValidation = "validation"
	OutcomeError      = "error"
)

// Metrics holds the collectors registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	// LoginAttempts counts login requests that reached the auth service.
	// Labels:
	//   - outcome: "success", "invalid", "validation", "error"
	LoginAttempts *prometheus.CounterVec

	// LoginRateLimited counts login requests rejected by the limiter.
	LoginRateLimited prometheus.Counter

	// GateRejections counts requests denied by the admin gate.
	// Labels:
	//   - reason: "missing", "malformed", "invalid", "expired", "not_found", "error"
	GateRejections *prometheus.CounterVec

	// TokensIssued counts session tokens handed out.
	// Labels:
	//   - reason: "login", "register", "password"
	TokensIssued *prometheus.CounterVec
}

// New registers the collectors on reg. Passing a fresh registry per test
// keeps tests independent.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		LoginAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_login_attempts_total",
			Help: "Total number of admin login attempts by outcome",
		}, []string{"outcome"}),
		LoginRateLimited: f.NewCounter(prometheus.CounterOpts{
			Name: "folio_login_rate_limited_total",
			Help: "Total number of login attempts rejected by the rate limiter",
		}),
		GateRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_auth_gate_rejections_total",
			Help: "Total number of requests rejected by the admin gate",
		}, []string{"reason"}),
		TokensIssued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_tokens_issued_total",
			Help: "Total number of session tokens issued",
		}, []string{"reason"}),
	}
}

// NewWithRuntime is New plus the Go runtime and process collectors. Used by
// the server binary.
func NewWithRuntime() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return New(reg)
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
