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

func TestRegistry_QueueCounters(t *testing.T) {
	r := New()

	r.ObserveCheckIn("OPD")
	r.ObserveCheckIn("OPD")
	r.ObserveCall("OPD", true, 90*time.Second)
	r.ObserveCall("OPD", false, 0)
	r.ObserveCompletion("OPD", true)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.CheckIns.WithLabelValues("OPD")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Calls.WithLabelValues("OPD", "claimed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Calls.WithLabelValues("OPD", "empty")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Completions.WithLabelValues("OPD", "true")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.WaitSeconds))
}

func TestRegistry_Outbox(t *testing.T) {
	r := New()
	r.OutboxEvent("published")
	r.OutboxEvent("dropped")
	r.OutboxHandlerError("notifications")

	assert.Equal(t, 1.0, testutil.ToFloat64(r.OutboxEvents.WithLabelValues("dropped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.OutboxHandlerErrors.WithLabelValues("notifications")))
}

func TestRegistry_IndependentInstances(t *testing.T) {
	a, b := New(), New()
	a.ObserveCheckIn("Billing")
	assert.Equal(t, 0.0, testutil.ToFloat64(b.CheckIns.WithLabelValues("Billing")))
}

func TestRegistry_Handler(t *testing.T) {
	r := New()
	r.ObserveCheckIn("Pharmacy")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `smartcare_queue_checkins_total{department="Pharmacy"} 1`))
}
