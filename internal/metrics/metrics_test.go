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

func TestObserveStoreOp(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	m.ObserveStoreOp("drive", "read_all", 20*time.Millisecond, nil)
	m.ObserveStoreOp("drive", "read_all", 20*time.Millisecond, errors.New("boom"))
	m.ObserveStoreOp("drive", "read_all", 20*time.Millisecond, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.storeOpsTotal.WithLabelValues("drive", "read_all", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeOpsTotal.WithLabelValues("drive", "read_all", "error")))
}

func TestCounters(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	m.LabelSubmitted("Yes")
	m.LabelSubmitted("Yes")
	m.Login("success")
	m.Registration("duplicate")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.labelsSubmitted.WithLabelValues("Yes")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.loginsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.registrationsTotal.WithLabelValues("duplicate")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveStoreOp("local", "write_all", time.Second, nil)
		m.LabelSubmitted("No")
		m.Login("failure")
		m.Registration("success")
	})
}

func TestHandler(t *testing.T) {
	m, err := New()
	require.NoError(t, err)
	m.LabelSubmitted("No")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "marketlabel_labels_submitted_total"))
}
