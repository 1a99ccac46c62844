package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/library-loans-api/internal/models"
	appErrors "github.com/noah-isme/library-loans-api/pkg/errors"
)

func overdueIDs(t *testing.T, store *loanStoreStub) []string {
	loans, err := store.FindByStatus(context.Background(), models.LoanStatusOverdue)
	require.NoError(t, err)
	ids := make([]string, 0, len(loans))
	for _, loan := range loans {
		ids = append(ids, loan.ID)
	}
	return ids
}

func TestLoanSweeperScenario(t *testing.T) {
	store := newLoanStoreStub(
		seededLoan("late", models.LoanStatusActive, day(-2)),
		seededLoan("today", models.LoanStatusActive, day(0)),
		seededLoan("open", models.LoanStatusActive, nil),
		seededLoan("back", models.LoanStatusReturned, day(-30)),
	)
	notifier := &notifierStub{}
	engine := newTestLoanService(store, nil)
	sweeper := NewLoanSweeper(engine, notifier, nil)

	report, err := sweeper.Run(context.Background(), fixedNow)
	require.NoError(t, err)
	require.Equal(t, 3, report.Scanned)
	require.Equal(t, 1, report.Expired)
	require.Equal(t, 2, report.Skipped)
	require.Zero(t, report.Failed)

	require.Equal(t, models.LoanStatusOverdue, store.get("late").Status)
	require.Equal(t, models.LoanStatusActive, store.get("today").Status)
	require.Equal(t, models.LoanStatusActive, store.get("open").Status)
	require.Equal(t, models.LoanStatusReturned, store.get("back").Status)

	require.Len(t, notifier.expired, 1)
	notice := notifier.expired[0]
	require.Equal(t, "late", notice.LoanID)
	require.Equal(t, "est-late", notice.StudentID)
	require.Equal(t, "lib-late", notice.BookID)
	require.True(t, day(-2).Equal(*notice.DueDate))
	require.True(t, day(-10).Equal(notice.LoanDate))
}

func TestLoanSweeperIdempotent(t *testing.T) {
	store := newLoanStoreStub(
		seededLoan("a", models.LoanStatusActive, day(-3)),
		seededLoan("b", models.LoanStatusActive, day(-8)),
		seededLoan("c", models.LoanStatusActive, day(2)),
	)
	notifier := &notifierStub{}
	sweeper := NewLoanSweeper(newTestLoanService(store, nil), notifier, nil)
	ctx := context.Background()

	_, err := sweeper.Run(ctx, fixedNow)
	require.NoError(t, err)
	first := overdueIDs(t, store)

	report, err := sweeper.Run(ctx, fixedNow)
	require.NoError(t, err)
	require.Zero(t, report.Expired)
	require.Equal(t, first, overdueIDs(t, store))
	require.Equal(t, []string{"a", "b"}, first)
	require.Len(t, notifier.expired, 2)
}

func TestLoanSweeperJudgesGraceInUTC(t *testing.T) {
	store := newLoanStoreStub(
		seededLoan("yesterday", models.LoanStatusActive, day(-1)),
		seededLoan("late", models.LoanStatusActive, day(-2)),
	)
	sweeper := NewLoanSweeper(newTestLoanService(store, nil), nil, nil)

	// Already the 20th on a UTC+14 wall clock, still the 19th in UTC.
	local := fixedNow.In(time.FixedZone("UTC+14", 14*60*60))
	report, err := sweeper.Run(context.Background(), local)
	require.NoError(t, err)
	require.Equal(t, 1, report.Expired)
	require.Equal(t, time.UTC, report.StartedAt.Location())
	require.Equal(t, models.LoanStatusActive, store.get("yesterday").Status)
	require.Equal(t, models.LoanStatusOverdue, store.get("late").Status)
}

func TestLoanSweeperCountsFailuresAndContinues(t *testing.T) {
	store := newLoanStoreStub(
		seededLoan("a", models.LoanStatusActive, day(-3)),
		seededLoan("b", models.LoanStatusActive, day(-3)),
	)
	store.findErr["a"] = errors.New("timeout")
	sweeper := NewLoanSweeper(newTestLoanService(store, nil), nil, nil)

	report, err := sweeper.Run(context.Background(), fixedNow)
	require.NoError(t, err)
	require.Equal(t, 1, report.Failed)
	require.Equal(t, 1, report.Expired)
	require.Equal(t, models.LoanStatusOverdue, store.get("b").Status)
}

func TestLoanSweeperListFailureAborts(t *testing.T) {
	store := newLoanStoreStub()
	store.listErr = errors.New("db down")
	sweeper := NewLoanSweeper(newTestLoanService(store, nil), nil, nil)

	_, err := sweeper.Run(context.Background(), fixedNow)
	require.Error(t, err)
}

type blockingSweepTarget struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSweepTarget) ListActive(ctx context.Context) ([]models.Loan, error) {
	close(b.entered)
	<-b.release
	return nil, nil
}

func (b *blockingSweepTarget) Expire(ctx context.Context, id string, now time.Time) (*models.Loan, bool, error) {
	return nil, false, nil
}

func TestLoanSweeperSingleFlight(t *testing.T) {
	target := &blockingSweepTarget{entered: make(chan struct{}), release: make(chan struct{})}
	sweeper := NewLoanSweeper(target, nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := sweeper.Run(context.Background(), fixedNow)
		done <- err
	}()
	<-target.entered

	_, err := sweeper.Run(context.Background(), fixedNow)
	require.ErrorIs(t, err, appErrors.ErrSweepInProgress)

	close(target.release)
	require.NoError(t, <-done)
}

type sweepMetricsStub struct {
	reports []models.SweepReport
}

func (m *sweepMetricsStub) ObserveSweep(report models.SweepReport) {
	m.reports = append(m.reports, report)
}

func TestLoanSweeperReportsMetrics(t *testing.T) {
	store := newLoanStoreStub(seededLoan("a", models.LoanStatusActive, day(-3)))
	metrics := &sweepMetricsStub{}
	sweeper := NewLoanSweeper(newTestLoanService(store, nil), nil, nil, WithSweepMetrics(metrics))

	_, err := sweeper.Run(context.Background(), fixedNow)
	require.NoError(t, err)
	require.Len(t, metrics.reports, 1)
	require.Equal(t, 1, metrics.reports[0].Expired)
	require.True(t, fixedNow.Equal(metrics.reports[0].StartedAt))
}

func TestLoanSweeperStartValidatesSchedule(t *testing.T) {
	sweeper := NewLoanSweeper(newTestLoanService(newLoanStoreStub(), nil), nil, nil)

	require.Error(t, sweeper.Start(context.Background(), "not a schedule"))
	require.NoError(t, sweeper.Start(context.Background(), "0 0 10 * * *"))
	sweeper.Stop()
}
