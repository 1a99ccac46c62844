package service

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/library-loans-api/internal/models"
	appErrors "github.com/noah-isme/library-loans-api/pkg/errors"
	"github.com/noah-isme/library-loans-api/pkg/logger"
)

type sweepTarget interface {
	ListActive(ctx context.Context) ([]models.Loan, error)
	Expire(ctx context.Context, id string, now time.Time) (*models.Loan, bool, error)
}

type sweepMetrics interface {
	ObserveSweep(report models.SweepReport)
}

// LoanSweeper periodically moves loans past their grace period to Vencido
// and notifies the student of each one.
type LoanSweeper struct {
	loans    sweepTarget
	notifier LoanNotifier
	metrics  sweepMetrics
	logger   *zap.Logger
	now      func() time.Time

	running sync.Mutex
	cron    *cron.Cron
}

// LoanSweeperOption configures the sweeper.
type LoanSweeperOption func(*LoanSweeper)

// WithSweepMetrics attaches sweep instrumentation.
func WithSweepMetrics(metrics sweepMetrics) LoanSweeperOption {
	return func(s *LoanSweeper) {
		s.metrics = metrics
	}
}

// NewLoanSweeper constructs the sweeper.
func NewLoanSweeper(loans sweepTarget, notifier LoanNotifier, logger *zap.Logger, opts ...LoanSweeperOption) *LoanSweeper {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &LoanSweeper{
		loans:    loans,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run performs one sweep evaluated against now. A sweep already in flight
// makes it return ErrSweepInProgress without touching any loan. Failures on
// individual loans are logged and counted; only a failed listing aborts.
func (s *LoanSweeper) Run(ctx context.Context, now time.Time) (models.SweepReport, error) {
	if !s.running.TryLock() {
		return models.SweepReport{}, appErrors.ErrSweepInProgress
	}
	defer s.running.Unlock()

	now = now.UTC()
	clock := time.Now()
	report := models.SweepReport{StartedAt: now.UTC()}

	candidates, err := s.loans.ListActive(ctx)
	if err != nil {
		s.logger.Error("overdue sweep aborted", zap.Error(err))
		return report, err
	}
	report.Scanned = len(candidates)

	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("overdue sweep interrupted", zap.Int("remaining", report.Scanned-report.Expired-report.Skipped-report.Failed))
			break
		}
		if candidate.ReturnDate == nil {
			report.Skipped++
			continue
		}

		loan, expired, err := s.loans.Expire(ctx, candidate.ID, now)
		if err != nil {
			report.Failed++
			s.logger.Error("failed to expire loan", zap.String("loan_id", candidate.ID), zap.Error(err))
			continue
		}
		if !expired {
			report.Skipped++
			continue
		}

		report.Expired++
		s.logger.Info("loan expired",
			zap.String("loan_id", loan.ID),
			zap.String("student_id", loan.StudentID),
			zap.Time("due_date", *loan.ReturnDate),
		)
		s.notifier.NotifyLoanExpired(models.NewLoanExpiredNotice(*loan))
	}

	report.Duration = time.Since(clock)
	report.FinishedAt = report.StartedAt.Add(report.Duration)
	if s.metrics != nil {
		s.metrics.ObserveSweep(report)
	}
	s.logger.Info("overdue sweep finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("expired", report.Expired),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

// Start schedules the sweep with a seconds-resolution cron expression.
// Overlapping ticks are skipped.
func (s *LoanSweeper) Start(ctx context.Context, schedule string) error {
	cronLogger := logger.Cron(s.logger)
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	if _, err := c.AddFunc(schedule, func() {
		if _, err := s.Run(ctx, s.now().UTC()); err != nil {
			s.logger.Warn("scheduled overdue sweep failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}
	c.Start()
	s.cron = c
	s.logger.Info("overdue sweeper scheduled", zap.String("schedule", schedule))
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *LoanSweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}
