package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/library-loans-api/internal/models"
)

// Loan events counted by MetricsService.
const (
	LoanEventCreated  = "created"
	LoanEventUpdated  = "updated"
	LoanEventDeleted  = "deleted"
	LoanEventReturned = "returned"
	LoanEventExpired  = "expired"
	LoanEventRejected = "rejected"
)

// Notification dispatch outcomes.
const (
	NotificationOutcomeDelivered = "delivered"
	NotificationOutcomeRejected  = "rejected"
	NotificationOutcomeDropped   = "dropped"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	loanEvents      *prometheus.CounterVec
	sweepRuns       prometheus.Counter
	sweepLoans      *prometheus.CounterVec
	sweepDuration   prometheus.Histogram
	notifications   *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	loanEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "loan_events_total",
		Help: "Loan lifecycle events by kind",
	}, []string{"event"})

	sweepRuns := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "loan_sweep_runs_total",
		Help: "Completed overdue sweeps",
	})

	sweepLoans := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "loan_sweep_loans_total",
		Help: "Loans visited by overdue sweeps by outcome",
	}, []string{"outcome"})

	sweepDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "loan_sweep_duration_seconds",
		Help:    "Duration of overdue sweeps",
		Buckets: prometheus.DefBuckets,
	})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "loan_notifications_total",
		Help: "Loan notifications by type and outcome",
	}, []string{"type", "outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, loanEvents, sweepRuns, sweepLoans, sweepDuration, notifications, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		loanEvents:      loanEvents,
		sweepRuns:       sweepRuns,
		sweepLoans:      sweepLoans,
		sweepDuration:   sweepDuration,
		notifications:   notifications,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the underlying registry, mostly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveLoanEvent counts a loan lifecycle event.
func (m *MetricsService) ObserveLoanEvent(event string) {
	if m == nil {
		return
	}
	m.loanEvents.WithLabelValues(event).Inc()
}

// ObserveSweep records the outcome of one overdue sweep.
func (m *MetricsService) ObserveSweep(report models.SweepReport) {
	if m == nil {
		return
	}
	m.sweepRuns.Inc()
	m.sweepDuration.Observe(report.Duration.Seconds())
	m.sweepLoans.WithLabelValues("expired").Add(float64(report.Expired))
	m.sweepLoans.WithLabelValues("skipped").Add(float64(report.Skipped))
	m.sweepLoans.WithLabelValues("failed").Add(float64(report.Failed))
}

// ObserveNotification counts a notification dispatch outcome.
func (m *MetricsService) ObserveNotification(kind models.NotificationType, outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(string(kind), outcome).Inc()
}
