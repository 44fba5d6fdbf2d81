package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveOperation(t *testing.T) {
	before := testutil.ToFloat64(operationsTotal.WithLabelValues("donate", KindWrite, "error"))

	ObserveOperation("donate", KindWrite, time.Now(), errors.New("reverted"))

	after := testutil.ToFloat64(operationsTotal.WithLabelValues("donate", KindWrite, "error"))
	require.Equal(t, before+1, after)
}

func TestWritesInFlight(t *testing.T) {
	before := testutil.ToFloat64(writesInFlight)
	WriteStarted()
	require.Equal(t, before+1, testutil.ToFloat64(writesInFlight))
	WriteFinished()
	require.Equal(t, before, testutil.ToFloat64(writesInFlight))
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/metrics", Handler())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "donation_api_requests_total")
}
