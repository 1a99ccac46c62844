package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/library-loans-api/internal/models"
	"github.com/noah-isme/library-loans-api/pkg/jobs"
)

const notificationJobType = "loan_notification"

// LoanNotifier receives loan events. Implementations must not block the
// caller and must swallow their own failures.
type LoanNotifier interface {
	NotifyLoanCreated(loan models.Loan)
	NotifyLoanExpired(notice models.LoanExpiredNotice)
	NotifyLoanReturned(loan models.Loan)
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) NotifyLoanCreated(models.Loan)              {}
func (NopNotifier) NotifyLoanExpired(models.LoanExpiredNotice) {}
func (NopNotifier) NotifyLoanReturned(models.Loan)             {}

type notificationPublisher interface {
	Publish(ctx context.Context, notification models.Notification) error
}

type notificationMetrics interface {
	ObserveNotification(kind models.NotificationType, outcome string)
}

// LogNotificationPublisher writes notifications to the log. It stands in
// for the outbox when Redis is disabled.
type LogNotificationPublisher struct {
	logger *zap.Logger
}

// NewLogNotificationPublisher constructs the publisher.
func NewLogNotificationPublisher(logger *zap.Logger) *LogNotificationPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotificationPublisher{logger: logger}
}

// Publish implements notificationPublisher.
func (p *LogNotificationPublisher) Publish(ctx context.Context, n models.Notification) error {
	p.logger.Info("loan notification",
		zap.String("type", string(n.Type)),
		zap.String("loan_id", n.LoanID),
		zap.String("student_id", n.StudentID),
		zap.String("book_id", n.BookID),
	)
	return nil
}

// QueueNotifier hands events to a background worker pool that publishes
// them, retrying transient failures.
type QueueNotifier struct {
	queue     *jobs.Queue
	publisher notificationPublisher
	metrics   notificationMetrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewQueueNotifier builds the notifier and its worker queue.
func NewQueueNotifier(publisher notificationPublisher, cfg jobs.QueueConfig, metrics notificationMetrics, logger *zap.Logger) *QueueNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &QueueNotifier{
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
	cfg.Logger = logger
	cfg.OnExhausted = n.onExhausted
	n.queue = jobs.NewQueue("loan-notifications", n.deliver, cfg)
	return n
}

// Start launches the delivery workers.
func (n *QueueNotifier) Start(ctx context.Context) {
	n.queue.Start(ctx)
}

// Stop drains the delivery workers.
func (n *QueueNotifier) Stop() {
	n.queue.Stop()
}

// NotifyLoanCreated implements LoanNotifier.
func (n *QueueNotifier) NotifyLoanCreated(loan models.Loan) {
	n.dispatch(n.fromLoan(models.NotificationLoanCreated, loan))
}

// NotifyLoanReturned implements LoanNotifier.
func (n *QueueNotifier) NotifyLoanReturned(loan models.Loan) {
	notification := n.fromLoan(models.NotificationLoanReturned, loan)
	notification.Note = loan.StatusHistory
	n.dispatch(notification)
}

// NotifyLoanExpired implements LoanNotifier.
func (n *QueueNotifier) NotifyLoanExpired(notice models.LoanExpiredNotice) {
	n.dispatch(models.Notification{
		ID:         uuid.NewString(),
		Type:       models.NotificationLoanExpired,
		LoanID:     notice.LoanID,
		StudentID:  notice.StudentID,
		BookID:     notice.BookID,
		LoanDate:   notice.LoanDate,
		DueDate:    notice.DueDate,
		OccurredAt: n.now().UTC(),
	})
}

func (n *QueueNotifier) fromLoan(kind models.NotificationType, loan models.Loan) models.Notification {
	return models.Notification{
		ID:         uuid.NewString(),
		Type:       kind,
		LoanID:     loan.ID,
		StudentID:  loan.StudentID,
		BookID:     loan.BookID,
		LoanDate:   loan.LoanDate,
		DueDate:    loan.ReturnDate,
		OccurredAt: n.now().UTC(),
	}
}

func (n *QueueNotifier) dispatch(notification models.Notification) {
	err := n.queue.Enqueue(jobs.Job{ID: notification.ID, Type: notificationJobType, Payload: notification})
	if err != nil {
		n.observe(notification.Type, NotificationOutcomeRejected)
		n.logger.Warn("notification not queued",
			zap.String("type", string(notification.Type)),
			zap.String("loan_id", notification.LoanID),
			zap.Error(err),
		)
	}
}

func (n *QueueNotifier) deliver(ctx context.Context, job jobs.Job) error {
	notification, ok := job.Payload.(models.Notification)
	if !ok {
		return fmt.Errorf("unexpected notification payload %T", job.Payload)
	}
	if err := n.publisher.Publish(ctx, notification); err != nil {
		return err
	}
	n.observe(notification.Type, NotificationOutcomeDelivered)
	return nil
}

func (n *QueueNotifier) onExhausted(job jobs.Job, err error) {
	kind := models.NotificationType("")
	if notification, ok := job.Payload.(models.Notification); ok {
		kind = notification.Type
	}
	n.observe(kind, NotificationOutcomeDropped)
	n.logger.Error("notification dropped", zap.String("job_id", job.ID), zap.String("type", string(kind)), zap.Error(err))
}

func (n *QueueNotifier) observe(kind models.NotificationType, outcome string) {
	if n.metrics != nil {
		n.metrics.ObserveNotification(kind, outcome)
	}
}
