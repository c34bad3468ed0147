package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.StageTransition("COMPLETED")
		m.PointsAwarded("registration", 100)
		m.OTPVerification("ok")
		m.NotificationCreated("STAGE_UPDATE")
		m.MessageDispatched("email", nil)
		m.JobRun("reconcile", errors.New("x"))
	})
}

func TestDomainCounters(t *testing.T) {
	m := New("test")
	m.PointsAwarded("registration", 100)
	m.PointsAwarded("registration", 50)
	m.PointsAwarded("registration", -10)
	m.StageTransition("DEPOSIT_PAID")

	assert.Equal(t, 150.0, testutil.ToFloat64(m.pointsAwarded.WithLabelValues("registration")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stageTransitions.WithLabelValues("DEPOSIT_PAID")))
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New("test")

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `test_http_requests_total{method="GET",path="/ping",status="200"} 1`))
}
