package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAuth(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAuth("login", OutcomeDenied)
	c.RecordAuth("login", OutcomeDenied)
	c.RecordAuth("register", OutcomeSuccess)

	assert.Equal(t, float64(2), testutil.ToFloat64(c.authOps.WithLabelValues("login", OutcomeDenied)))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.authOps.WithLabelValues("register", OutcomeSuccess)))
}

func TestRecordRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRequest(http.MethodPost, "/api/auth/login", http.StatusUnauthorized, 20*time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(c.requests.WithLabelValues("POST", "/api/auth/login", "401")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.latency))
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	r := gin.New()
	r.Use(c.Middleware())
	r.GET("/patients/:id", func(ctx *gin.Context) { ctx.Status(http.StatusNoContent) })

	for _, path := range []string{"/patients/1", "/patients/2", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(c.requests.WithLabelValues("GET", "/patients/:id", "204")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.requests.WithLabelValues("GET", "unmatched", "404")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordAuth("register", OutcomeConflict)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), `auth_operations_total{operation="register",outcome="conflict"} 1`))
}
