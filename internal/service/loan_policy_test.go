package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/library-loans-api/internal/models"
	appErrors "github.com/noah-isme/library-loans-api/pkg/errors"
)

func TestSingleActiveLoanPolicy(t *testing.T) {
	open := seededLoan("a", models.LoanStatusActive, day(3))
	overdue := seededLoan("b", models.LoanStatusOverdue, day(-4))
	returned := seededLoan("c", models.LoanStatusReturned, day(-1))
	store := newLoanStoreStub(open, overdue, returned)
	policy := NewSingleActiveLoanPolicy(store)
	ctx := context.Background()

	busy, err := policy.HasActiveLoan(ctx, open.StudentID)
	require.NoError(t, err)
	require.True(t, busy)

	busy, err = policy.HasActiveLoan(ctx, overdue.StudentID)
	require.NoError(t, err)
	require.True(t, busy)

	busy, err = policy.HasActiveLoan(ctx, returned.StudentID)
	require.NoError(t, err)
	require.False(t, busy)

	available, err := policy.IsAvailable(ctx, open.BookID)
	require.NoError(t, err)
	require.False(t, available)

	available, err = policy.IsAvailable(ctx, "lib-new")
	require.NoError(t, err)
	require.True(t, available)
}

func TestLoanServiceWithSingleActivePolicy(t *testing.T) {
	store := newLoanStoreStub()
	policy := NewSingleActiveLoanPolicy(store)
	svc := newTestLoanService(store, nil, WithActiveLoanPolicy(policy), WithBookAvailabilityPolicy(policy))
	ctx := context.Background()

	_, err := svc.Create(ctx, draftLoan(), "admin")
	require.NoError(t, err)

	_, err = svc.Create(ctx, draftLoan(), "admin")
	require.ErrorIs(t, err, appErrors.ErrStudentHasActiveLoan)

	other := draftLoan()
	other.StudentID = "est-2"
	_, err = svc.Create(ctx, other, "admin")
	require.ErrorIs(t, err, appErrors.ErrBookUnavailable)
}

func TestAllowAllPolicy(t *testing.T) {
	busy, err := AllowAllPolicy{}.HasActiveLoan(context.Background(), "est-1")
	require.NoError(t, err)
	require.False(t, busy)

	available, err := AllowAllPolicy{}.IsAvailable(context.Background(), "lib-1")
	require.NoError(t, err)
	require.True(t, available)
}
