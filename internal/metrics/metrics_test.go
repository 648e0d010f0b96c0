package metrics

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRecordCheckIn(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry, Config{ServiceName: "routeledger", Environment: "test", PlantID: "PLANT-01"})

	m.RecordCheckIn("INVENTORY_PARITY", "LOCKED_DEBT", decimal.RequireFromString("300.00"))
	m.RecordCheckIn("INVENTORY_PARITY", "LOCKED_DEBT", decimal.RequireFromString("60.00"))
	m.RecordCheckIn("SALES_BASED", "CLOSED", decimal.RequireFromString("3600.00"))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.checkins.WithLabelValues("INVENTORY_PARITY", "LOCKED_DEBT")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.checkins.WithLabelValues("SALES_BASED", "CLOSED")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.debtAmount))
}

func TestCountersAndRequests(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry, Config{Environment: "test"})

	m.RecordCheckout()
	m.RecordCheckout()
	m.RecordDebtResolution("PAID")
	m.RecordLockContention()
	m.RecordPublishFailure()
	m.ObserveRequest(http.MethodPost, "/v1/routes/:id/checkin", http.StatusOK, 15*time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.checkouts))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.debtResolutions.WithLabelValues("PAID")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.lockContention))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.publishFailures))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/v1/routes/:id/checkin", "200")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordCheckout()
		m.RecordCheckIn("SALES_BASED", "CLOSED", decimal.Zero)
		m.RecordDebtResolution("PAID")
		m.RecordLockContention()
		m.RecordPublishFailure()
		m.ObserveRequest("GET", "/healthz", 200, time.Millisecond)
	})
}
