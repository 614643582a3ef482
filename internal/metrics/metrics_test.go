package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRenderMetrics(t *testing.T) {
	m := New()

	m.JobFinished(OutcomeReady, 3*time.Second)
	m.JobFinished(OutcomeReady, 5*time.Second)
	m.JobFinished(OutcomeError, time.Second)
	m.JobFinished(OutcomeRejected, 0)
	m.SetQueueDepth(4)
	m.SetActive(true)
	m.SegmentComposed("image")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.jobs.WithLabelValues(OutcomeReady)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobs.WithLabelValues(OutcomeRejected)))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.queueDepth))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.active))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.segments.WithLabelValues("image")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "reelsmith_render_jobs_total"))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *RenderMetrics
	m.JobFinished(OutcomeReady, time.Second)
	m.SetQueueDepth(1)
	m.SetActive(false)
	m.SegmentComposed("color")
}
