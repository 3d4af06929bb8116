// Package observability provides Prometheus metrics, HTTP metrics middleware
// and logger construction for the main-api.
package observability

import "github.com/prometheus/client_golang/prometheus"

// AuthBuckets covers bcrypt-dominated login latencies, from 5ms to 5s.
var AuthBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// Login outcomes
const (
	OutcomeSuccess      = "success"
	OutcomeInvalidInput = "invalid_input"
	OutcomeFailed       = "failed"
	OutcomeBlocked      = "blocked"
	OutcomeError        = "error"
)

// Identity resolution results recorded by the identity filter
const (
	IdentityAnonymous = "anonymous"
	IdentityResolved  = "resolved"
	IdentityRejected  = "rejected"
	IdentityError     = "error"
)

var (
	// RequestsTotal counts all HTTP requests by method, status class and route.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coffee_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "status", "route"},
	)

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coffee_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// LoginAttemptsTotal counts login attempts by outcome.
	LoginAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coffee_auth_login_attempts_total",
			Help: "Login attempts",
		},
		[]string{"outcome"},
	)

	// LoginDuration records how long credential verification took.
	LoginDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coffee_auth_login_duration_seconds",
			Help:    "Login duration",
			Buckets: AuthBuckets,
		},
		[]string{"outcome"},
	)

	// TokensIssuedTotal counts access tokens issued.
	TokensIssuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coffee_auth_tokens_issued_total",
			Help: "Access tokens issued",
		},
	)

	// TokenRejectionsTotal counts bearer tokens that failed verification, by reason.
	TokenRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coffee_auth_token_rejections_total",
			Help: "Rejected bearer tokens",
		},
		[]string{"reason"},
	)

	// IdentityResolutionsTotal counts identity filter results.
	IdentityResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coffee_auth_identity_resolutions_total",
			Help: "Identity filter results",
		},
		[]string{"result"},
	)

	// AuditEventsDroppedTotal counts auth events dropped because the audit buffer was full.
	AuditEventsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coffee_audit_events_dropped_total",
			Help: "Audit events dropped",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		LoginAttemptsTotal,
		LoginDuration,
		TokensIssuedTotal,
		TokenRejectionsTotal,
		IdentityResolutionsTotal,
		AuditEventsDroppedTotal,
	)
}
