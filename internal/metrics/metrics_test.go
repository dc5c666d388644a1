package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	assert.NotNil(t, c.httpRequests)
	assert.NotNil(t, c.referenceWrites)
	assert.NotNil(t, c.jobTransitions)
	assert.NotNil(t, c.jobsActive)

	// registering twice on the same registry must panic
	assert.Panics(t, func() { NewCollector(reg) })
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordHTTP(http.MethodGet, "/x", 200, time.Millisecond)
		c.RecordReferenceWrite("parent", "add")
		c.RecordNodeDeleted("skills", true)
		c.RecordJobTransition("csv_ingestion", "active")
		c.RecordJobDuration("csv_ingestion", "succeeded", time.Second)
		c.RecordRunnerError("delete")
		c.SetActiveJobs(3)
	})
}

func TestCounters(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.RecordReferenceWrite("parent", "add")
	c.RecordReferenceWrite("parent", "add")
	c.RecordJobTransition("csv_ingestion", "aborted")
	c.RecordRunnerError("delete")
	c.SetActiveJobs(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.referenceWrites.WithLabelValues("parent", "add")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.jobTransitions.WithLabelValues("csv_ingestion", "aborted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runnerErrors.WithLabelValues("delete")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.jobsActive))
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordHTTP(http.MethodGet, "/api/v1/nodes/{collection}", 200, 10*time.Millisecond)

	rr := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "engine_http_requests_total")
}
