package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveHTTP(t *testing.T) {
	m := NewManager()

	m.ObserveHTTP(http.MethodPost, "/login", http.StatusOK, 20*time.Millisecond)
	m.ObserveHTTP(http.MethodPost, "/login", http.StatusOK, 10*time.Millisecond)
	m.ObserveHTTP(http.MethodPost, "/login", http.StatusUnauthorized, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/login", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/login", "401")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPRequestDuration))
}

func TestResult(t *testing.T) {
	assert.Equal(t, "ok", Result(nil))
	assert.Equal(t, "error", Result(errors.New("x")))
}

func TestHandler(t *testing.T) {
	m := NewManager()
	m.SignupsTotal.Inc()
	m.OnboardingsTotal.WithLabelValues("ok").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "petmarket_signups_total 1")
	assert.Contains(t, string(body), `petmarket_seller_onboardings_total{result="ok"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
