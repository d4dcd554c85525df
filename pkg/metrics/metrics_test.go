package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesInstruments(t *testing.T) {
	AuthAttempts.WithLabelValues("success").Inc()
	HealthProbeUp.WithLabelValues("database").Set(1)

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	require.Contains(t, body, `hrconsole_auth_attempts_total{result="success"}`)
	require.Contains(t, body, `hrconsole_health_probe_up{component="database"} 1`)
	require.Contains(t, body, "go_goroutines")
}

func TestCountersAccumulate(t *testing.T) {
	before := testutil.ToFloat64(PermissionChecks.WithLabelValues("menu.view", "denied"))
	PermissionChecks.WithLabelValues("menu.view", "denied").Inc()
	PermissionChecks.WithLabelValues("menu.view", "denied").Inc()
	require.InDelta(t, before+2, testutil.ToFloat64(PermissionChecks.WithLabelValues("menu.view", "denied")), 0)
}
