package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestMetricsRegistered(t *testing.T) {
	LoginAttemptsTotal.WithLabelValues(OutcomeSuccess).Add(0)
	LoginDuration.WithLabelValues(OutcomeSuccess).Observe(0.01)
	TokenRejectionsTotal.WithLabelValues("expired").Add(0)
	IdentityResolutionsTotal.WithLabelValues(IdentityAnonymous).Add(0)
	RequestsTotal.WithLabelValues("GET", "2xx", "/healthz").Add(0)
	RequestDuration.WithLabelValues("GET", "/healthz").Observe(0.001)

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	expected := map[string]bool{
		"coffee_http_requests_total":             false,
		"coffee_http_request_duration_seconds":   false,
		"coffee_auth_login_attempts_total":       false,
		"coffee_auth_login_duration_seconds":     false,
		"coffee_auth_tokens_issued_total":        false,
		"coffee_auth_token_rejections_total":     false,
		"coffee_auth_identity_resolutions_total": false,
		"coffee_audit_events_dropped_total":      false,
	}
	for _, mf := range families {
		if _, ok := expected[mf.GetName()]; ok {
			expected[mf.GetName()] = true
		}
	}
	for name, found := range expected {
		assert.True(t, found, "metric %q not registered", name)
	}
}

func TestMetricsMiddleware(t *testing.T) {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware)
	r.Get("/api/v1/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	before := testutil.ToFloat64(RequestsTotal.WithLabelValues("GET", "4xx", "/api/v1/users/{id}"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users/42", nil))

	after := testutil.ToFloat64(RequestsTotal.WithLabelValues("GET", "4xx", "/api/v1/users/{id}"))
	assert.Equal(t, float64(1), after-before)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMetricsMiddleware_Unmatched(t *testing.T) {
	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	before := testutil.ToFloat64(RequestsTotal.WithLabelValues("POST", "2xx", "unmatched"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/anything", nil))

	after := testutil.ToFloat64(RequestsTotal.WithLabelValues("POST", "2xx", "unmatched"))
	assert.Equal(t, float64(1), after-before)
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
		enabled zapcore.Level
	}{
		{name: "json info", level: "info", format: "json", enabled: zapcore.InfoLevel},
		{name: "console debug", level: "debug", format: "console", enabled: zapcore.DebugLevel},
		{name: "text alias", level: "warn", format: "text", enabled: zapcore.WarnLevel},
		{name: "default format", level: "error", format: "", enabled: zapcore.ErrorLevel},
		{name: "bad level", level: "verbose", format: "json", wantErr: true},
		{name: "bad format", level: "info", format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.level, tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, logger)
				return
			}
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.enabled))
			assert.False(t, logger.Core().Enabled(tt.enabled-1))
		})
	}
}
