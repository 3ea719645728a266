package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestGinMiddlewareCountsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.apiRequests.WithLabelValues("GET", "/health", "200")))
}

func TestRecordDeliveryDefaultsEmptyLabels(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.RecordDelivery("", "sent")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.outboxDispatch.WithLabelValues("unknown", "sent")))
}
