package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg"
	"github.com/stretchr/testify/assert"
)

func newTracedEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TraceID(), Metrics())
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(pkg.TraceId))
	})
	return r
}

func TestTraceID_PropagatesIncomingHeader(t *testing.T) {
	r := newTracedEngine()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(pkg.HeaderTraceId, "trace-abc")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	assert.Equal(t, "trace-abc", w.Header().Get(pkg.HeaderTraceId))
	assert.Equal(t, "trace-abc", w.Body.String())
}

func TestTraceID_GeneratesWhenMissing(t *testing.T) {
	r := newTracedEngine()
	w := httptest.NewRecorder()

	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.NotEmpty(t, w.Header().Get(pkg.HeaderTraceId))
	assert.Equal(t, w.Header().Get(pkg.HeaderTraceId), w.Body.String())
}
