package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveMutation("create_gift", "ok")
		m.ObserveBatch(10, time.Millisecond)
		m.ImportFinished("ok")
		m.SetExecutorState(1, 2, 3)
		m.ExecutorRejected()
	})
	assert.Nil(t, m.Registry())
}

func TestCounters(t *testing.T) {
	m := New()

	m.ObserveMutation("create_gift", "ok")
	m.ObserveMutation("create_gift", "ok")
	m.ObserveMutation("create_gift", "too_many_gifts")
	m.ObserveBatch(2, time.Millisecond)
	m.ObserveBatch(1, time.Millisecond)
	m.ImportFinished("failed")
	m.ExecutorRejected()
	m.SetExecutorState(1, 2, 5)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.mutations.WithLabelValues("create_gift", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mutations.WithLabelValues("create_gift", "too_many_gifts")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.importRows))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.importJobs.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.executorRejected))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.executorQueued))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveMutation("update_kid", "conflict")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `giftapi_mutations_total{op="update_kid",outcome="conflict"} 1`), body)
	assert.True(t, strings.Contains(body, "go_goroutines"), "runtime collector missing")
}
