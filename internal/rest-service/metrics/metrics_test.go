package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := New()

	m.ObserveRemoteOperation("start_copy", 20*time.Millisecond, nil)
	m.ObserveRemoteOperation("start_copy", time.Millisecond, errors.New("boom"))
	m.ObserveRemoteOperation("list", time.Millisecond, nil)
	m.ObserveRequest("POST /files", http.StatusCreated, 5*time.Millisecond)
	m.QuotaRejected("user")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.remoteOperations.WithLabelValues("start_copy", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.remoteOperations.WithLabelValues("start_copy", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST /files", "201")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.quotaRejections.WithLabelValues("user")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.remoteDuration))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `cabinet_remote_operations_total{operation="list",status="success"} 1`))
	assert.True(t, strings.Contains(body, "go_goroutines"))
}
