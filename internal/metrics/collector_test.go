package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorsAreIndependent(t *testing.T) {
	a := NewCollector("sketch3d")
	b := NewCollector("sketch3d")

	a.ObserveJob("text", "success", 3*time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.jobsTotal.WithLabelValues("text", "success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.jobsTotal.WithLabelValues("text", "success")))
}

func TestObservations(t *testing.T) {
	c := NewCollector("sketch3d")

	c.ObservePoll("image", "pending")
	c.ObservePoll("image", "pending")
	c.ObservePoll("image", "success")
	c.ObserveRemote("text_to_3d", "processing")
	c.ObserveRemote("fetch_result", "")
	c.ObserveRemote("fetch_result", "queued: eta 12s")
	c.ObserveRemote("fetch_result", "Queued for GPU #3")
	c.RecordHTTPRequest(http.MethodPost, "/api/text-to-3d", http.StatusOK, 40*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.pollsTotal.WithLabelValues("image", "pending")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.pollsTotal.WithLabelValues("image", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.remoteRequestsTotal.WithLabelValues("fetch_result", "unknown")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.remoteRequestsTotal.WithLabelValues("fetch_result", "other")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.remoteRequestsTotal.WithLabelValues("text_to_3d", "processing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("POST", "/api/text-to-3d", "200")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector("sketch3d")
	c.ObserveJob("text", "job_incomplete", time.Minute)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `sketch3d_generation_jobs_total{kind="text",outcome="job_incomplete"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestRemoteStatusLabelIsBounded(t *testing.T) {
	tests := map[string]string{
		"success":          "success",
		"failed":           "failed",
		"processing":       "processing",
		"error":            "error",
		"transport_error":  "transport_error",
		"":                 "unknown",
		"SUCCESS":          "other",
		"job 42 is queued": "other",
	}
	for in, want := range tests {
		assert.Equal(t, want, remoteStatusLabel(in), "status %q", in)
	}
}
