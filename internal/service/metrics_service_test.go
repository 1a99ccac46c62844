package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/library-loans-api/internal/models"
)

func TestMetricsServiceCounters(t *testing.T) {
	m := NewMetricsService()
	m.ObserveLoanEvent(LoanEventCreated)
	m.ObserveLoanEvent(LoanEventCreated)
	m.ObserveSweep(models.SweepReport{Scanned: 3, Expired: 2, Skipped: 1, Duration: time.Millisecond})
	m.ObserveNotification(models.NotificationLoanExpired, NotificationOutcomeDelivered)
	m.ObserveHTTPRequest(http.MethodGet, "/v1.0/prestamos", http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	require.Contains(t, body, `loan_events_total{event="created"} 2`)
	require.Contains(t, body, "loan_sweep_runs_total 1")
	require.Contains(t, body, `loan_sweep_loans_total{outcome="expired"} 2`)
	require.Contains(t, body, `loan_notifications_total{outcome="delivered",type="PRESTAMO_VENCIDO"} 1`)
	require.Contains(t, body, "http_requests_total")
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	m.ObserveLoanEvent(LoanEventCreated)
	m.ObserveSweep(models.SweepReport{})
	m.ObserveNotification(models.NotificationLoanCreated, NotificationOutcomeDropped)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
